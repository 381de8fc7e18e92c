// Package catalog lists the caller-ID numbers in the rotation pool with
// filtering, sorting and pagination.
package catalog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/util"
)

// DefaultPerPage is used when a query does not set PerPage.
const DefaultPerPage = 10

// Sort keys accepted by Query.SortBy.
const (
	SortID          = "id"
	SortPhoneNumber = "phone_number"
	SortCountry     = "country"
	SortProvider    = "provider"
	SortUsageCount  = "usage_count"
	SortLastUsed    = "last_used"
	SortSuccessRate = "success_rate"
	SortStatus      = "status"
	SortCreatedAt   = "created_at"
)

// SortKeys lists every accepted sort key.
var SortKeys = []string{
	SortID, SortPhoneNumber, SortCountry, SortProvider, SortUsageCount,
	SortLastUsed, SortSuccessRate, SortStatus, SortCreatedAt,
}

// statusRank orders statuses from healthiest to unusable.
var statusRank = map[domain.CliStatus]int{
	domain.CliStatusActive:       0,
	domain.CliStatusHighUsage:    1,
	domain.CliStatusLimitReached: 2,
	domain.CliStatusBlocked:      3,
	domain.CliStatusInactive:     4,
}

var comparators = map[string]func(a, b domain.CliRecord) int{
	SortID:          func(a, b domain.CliRecord) int { return 0 },
	SortPhoneNumber: func(a, b domain.CliRecord) int { return strings.Compare(a.PhoneNumber, b.PhoneNumber) },
	SortCountry:     func(a, b domain.CliRecord) int { return strings.Compare(a.Country, b.Country) },
	SortProvider:    func(a, b domain.CliRecord) int { return strings.Compare(a.Provider, b.Provider) },
	SortUsageCount:  func(a, b domain.CliRecord) int { return cmp.Compare(a.UsageCount, b.UsageCount) },
	SortLastUsed:    func(a, b domain.CliRecord) int { return a.LastUsed.Compare(b.LastUsed) },
	SortSuccessRate: func(a, b domain.CliRecord) int { return cmp.Compare(a.SuccessRate, b.SuccessRate) },
	SortStatus:      func(a, b domain.CliRecord) int { return cmp.Compare(statusRank[a.Status], statusRank[b.Status]) },
	SortCreatedAt:   func(a, b domain.CliRecord) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// LimitFunc returns the daily limit for a country; 0 means unlimited.
type LimitFunc func(country string) int

// ClassifyRecord derives the status of r from its usage against limit.
// Blocked and inactive records keep their asserted status.
func ClassifyRecord(r domain.CliRecord, limit int) domain.CliStatus {
	if r.Status.Asserted() {
		return r.Status
	}
	return domain.ClassifyUsage(r.UsageCount, limit).CliStatus()
}

// Query selects a page of records. Zero values mean "no filter",
// ascending by id, page 1 and DefaultPerPage.
type Query struct {
	Country  string
	Provider string
	Status   domain.CliStatus

	SortBy string
	Desc   bool

	Page    int
	PerPage int
}

// Page is one page of query results.
type Page struct {
	Items      []domain.CliRecord `json:"items"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// Catalog holds classified CLI records.
type Catalog struct {
	mu      sync.RWMutex
	records []domain.CliRecord
}

// New classifies records against limit and returns a catalog over them.
// A nil limit treats every country as unlimited.
func New(records []domain.CliRecord, limit LimitFunc) *Catalog {
	c := &Catalog{}
	c.Replace(records, limit)
	return c
}

// Limiter is anything that can report a country's daily limit, such as
// *quota.Engine.
type Limiter interface {
	Limit(country string) int
}

// Load fetches the inventory and classifies it against the limits cached
// in limits.
func Load(ctx context.Context, inv domain.CliInventory, limits Limiter) (*Catalog, error) {
	records, err := inv.ListCLIs(ctx)
	if err != nil {
		return nil, err
	}
	var fn LimitFunc
	if limits != nil {
		fn = limits.Limit
	}
	return New(records, fn), nil
}

// Replace swaps in a new set of records.
func (c *Catalog) Replace(records []domain.CliRecord, limit LimitFunc) {
	classified := make([]domain.CliRecord, len(records))
	for i, r := range records {
		r.Country = util.NormalizeKey(r.Country)
		l := 0
		if limit != nil {
			l = limit(r.Country)
		}
		r.Status = ClassifyRecord(r, l)
		classified[i] = r
	}

	c.mu.Lock()
	c.records = classified
	c.mu.Unlock()
}

// Len returns the number of records in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// List filters, then sorts, then paginates. An unknown sort key is a
// *domain.ValidationError.
func (c *Catalog) List(q Query) (Page, error) {
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortID
	}
	compare, ok := comparators[sortBy]

	v := domain.NewValidator("list CLIs")
	v.Check(ok, "sort", "unknown sort key %q (valid: %s)", q.SortBy, strings.Join(SortKeys, ", "))
	v.Check(q.Page >= 0, "page", "must not be negative, got %d", q.Page)
	v.Check(q.PerPage >= 0, "per_page", "must not be negative, got %d", q.PerPage)
	if err := v.Err(); err != nil {
		return Page{}, err
	}

	page, perPage := q.Page, q.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}

	country := util.NormalizeKey(q.Country)
	provider := util.NormalizeKey(q.Provider)

	c.mu.RLock()
	filtered := make([]domain.CliRecord, 0, len(c.records))
	for _, r := range c.records {
		if country != "" && r.Country != country {
			continue
		}
		if provider != "" && util.NormalizeKey(r.Provider) != provider {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		filtered = append(filtered, r)
	}
	c.mu.RUnlock()

	slices.SortStableFunc(filtered, func(a, b domain.CliRecord) int {
		n := compare(a, b)
		if q.Desc {
			n = -n
		}
		if n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})

	// Descending by id is the one case the tie-break cannot express.
	if sortBy == SortID && q.Desc {
		slices.Reverse(filtered)
	}

	total := len(filtered)
	start, end := bounds(page, perPage, total)
	totalPages := 0
	if total > 0 {
		totalPages = (total-1)/perPage + 1
	}

	return Page{
		Items:      filtered[start:end],
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// bounds returns the slice range of a 1-based page. It never multiplies
// past total, so huge page or perPage values cannot overflow.
func bounds(page, perPage, total int) (start, end int) {
	if total == 0 || page-1 > (total-1)/perPage {
		return total, total
	}
	start = (page - 1) * perPage
	end = total
	if perPage < total-start {
		end = start + perPage
	}
	return start, end
}

// Providers returns the distinct providers, sorted.
func (c *Catalog) Providers() []string {
	return c.distinct(func(r domain.CliRecord) string { return r.Provider })
}

// Countries returns the distinct countries, sorted.
func (c *Catalog) Countries() []string {
	return c.distinct(func(r domain.CliRecord) string { return r.Country })
}

func (c *Catalog) distinct(field func(domain.CliRecord) string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, r := range c.records {
		v := field(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// StatusCounts tallies records by status.
func (c *Catalog) StatusCounts() map[domain.CliStatus]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[domain.CliStatus]int)
	for _, r := range c.records {
		counts[r.Status]++
	}
	return counts
}
