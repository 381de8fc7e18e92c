package quotastore

import (
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
)

// Snapshot is a point-in-time copy of one country's quota.
type Snapshot struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	Country    string    `json:"country"`
	DailyLimit int       `json:"daily_limit"`
	Used       int       `json:"used"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Quota converts the snapshot back to the domain type.
func (s Snapshot) Quota() domain.CliCountryQuota {
	return domain.CliCountryQuota{Country: s.Country, DailyLimit: s.DailyLimit, Used: s.Used}
}

// FromQuotas builds one snapshot per quota, all stamped with at.
func FromQuotas(source string, quotas []domain.CliCountryQuota, at time.Time) []Snapshot {
	out := make([]Snapshot, len(quotas))
	for i, q := range quotas {
		out[i] = Snapshot{Source: source, Country: q.Country, DailyLimit: q.DailyLimit, Used: q.Used, RecordedAt: at}
	}
	return out
}
