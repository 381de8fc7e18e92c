// Package swrcache caches slow-changing performance API reads (the CLI
// inventory, DTMF overrides) on disk with stale-while-revalidate semantics.
package swrcache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultFreshTTL = 30 * time.Second
	defaultMaxStale = 15 * time.Minute
	refreshTimeout  = 30 * time.Second
)

// Cache provides stale-while-revalidate caching with file-backed JSON storage.
type Cache struct {
	dir      string
	freshTTL time.Duration
	maxStale time.Duration
}

// New returns a cache rooted at dir with default TTLs.
func New(dir string) *Cache {
	return &Cache{dir: dir, freshTTL: defaultFreshTTL, maxStale: defaultMaxStale}
}

// NewDefault returns a cache rooted at the OS user cache dir.
func NewDefault() *Cache {
	return New(defaultDir())
}

// WithTTLs returns a new cache rooted at dir with custom TTLs.
func WithTTLs(dir string, freshTTL, maxStale time.Duration) *Cache {
	return &Cache{dir: dir, freshTTL: freshTTL, maxStale: maxStale}
}

// GetOrFetch returns cached data using stale-while-revalidate semantics.
func GetOrFetch[T any](c *Cache, ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if c == nil || c.dir == "" {
		return fetch(ctx)
	}

	entry, ok, err := readEntry[T](c, key)
	if err != nil || !ok {
		return fetchAndStore(c, ctx, key, fetch)
	}
	age, ok := entry.age(time.Now())
	if !ok {
		return fetchAndStore(c, ctx, key, fetch)
	}

	switch c.freshness(age) {
	case Fresh:
		return entry.Data, nil
	case Stale:
		revalidate(c, key, fetch)
		return entry.Data, nil
	}
	return fetchAndStore(c, ctx, key, fetch)
}

// Freshness classifies a cached entry by age.
type Freshness string

const (
	// Fresh entries are served as is.
	Fresh Freshness = "fresh"
	// Stale entries are served while a background fetch replaces them.
	Stale Freshness = "stale"
	// Expired entries are refetched before anything is served.
	Expired Freshness = "expired"
)

func (c *Cache) freshness(age time.Duration) Freshness {
	switch {
	case age <= c.freshTTL:
		return Fresh
	case c.maxStale <= 0 || age <= c.maxStale:
		return Stale
	}
	return Expired
}

// Status describes one entry on disk.
type Status struct {
	Source    string    `json:"source"`
	Resource  string    `json:"resource"`
	FetchedAt time.Time `json:"fetched_at"`
	Age       Duration  `json:"age"`
	Freshness Freshness `json:"freshness"`
}

// Duration marshals as a Go duration string.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).Round(time.Second).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// List returns every readable entry, sorted by key. Unreadable or
// half-written files are skipped.
func (c *Cache) List(now time.Time) ([]Status, error) {
	if c == nil || c.dir == "" {
		return nil, nil
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Status
	for _, f := range files {
		key, ok := strings.CutSuffix(f.Name(), ".json")
		if !ok || f.IsDir() {
			continue
		}
		entry, ok, err := readEntry[json.RawMessage](c, key)
		if err != nil || !ok {
			continue
		}
		age, ok := entry.age(now)
		if !ok {
			continue
		}
		source, resource, _ := strings.Cut(key, "_")
		out = append(out, Status{
			Source:    source,
			Resource:  resource,
			FetchedAt: entry.FetchedAt,
			Age:       Duration(age),
			Freshness: c.freshness(age),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Resource < out[j].Resource
	})
	return out, nil
}

// Key joins a source name and a resource name into a cache key, so the
// static and live sources never share entries.
func Key(source, resource string) string {
	return SourcePrefix(source) + sanitizeKey(resource)
}

// SourcePrefix is the key prefix shared by every entry of source.
func SourcePrefix(source string) string {
	return sanitizeKey(source) + "_"
}

// Age reports how long ago the entry for key was fetched. ok is false when
// nothing is cached.
func (c *Cache) Age(key string) (age time.Duration, ok bool) {
	if c == nil || c.dir == "" {
		return 0, false
	}
	entry, ok, err := readEntry[json.RawMessage](c, key)
	if err != nil || !ok {
		return 0, false
	}
	return entry.age(time.Now())
}

// Invalidate removes a single cached entry.
func (c *Cache) Invalidate(key string) error {
	if c == nil || c.dir == "" {
		return nil
	}

	err := os.Remove(c.pathForKey(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// InvalidatePrefix removes cached entries with the given key prefix.
func (c *Cache) InvalidatePrefix(prefix string) error {
	if c == nil || c.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	sanitized := sanitizeKey(prefix)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, sanitized) {
			if err := os.RemoveAll(filepath.Join(c.dir, name)); err != nil {
				return err
			}
		}
	}

	return nil
}

// Clear removes all cached entries in the cache directory.
func (c *Cache) Clear() error {
	if c == nil || c.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

func fetchAndStore[T any](c *Cache, ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	data, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = writeEntry(c, key, Entry[T]{Data: data, FetchedAt: time.Now()})
	return data, nil
}

func revalidate[T any](c *Cache, key string, fetch func(context.Context) (T, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		data, err := fetch(ctx)
		if err != nil {
			return
		}
		_ = writeEntry(c, key, Entry[T]{Data: data, FetchedAt: time.Now()})
	}()
}

func readEntry[T any](c *Cache, key string) (Entry[T], bool, error) {
	var zero Entry[T]
	path := c.pathForKey(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, false, nil
		}
		return zero, false, err
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, false, nil
	}

	return entry, true, nil
}

func writeEntry[T any](c *Cache, key string, entry Entry[T]) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, sanitizeKey(key)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}

	return os.Rename(name, c.pathForKey(key))
}

func (c *Cache) pathForKey(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".json")
}

func defaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "dialctl", "perf")
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
