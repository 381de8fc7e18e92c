package swrcache

import "time"

// Entry is one cached read as written to disk.
type Entry[T any] struct {
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// age returns how long before now the entry was fetched. ok is false for an
// entry without a fetch time or one stamped in the future; both count as a
// miss.
func (e Entry[T]) age(now time.Time) (time.Duration, bool) {
	if e.FetchedAt.IsZero() {
		return 0, false
	}
	d := now.Sub(e.FetchedAt)
	if d < 0 {
		return 0, false
	}
	return d, true
}
