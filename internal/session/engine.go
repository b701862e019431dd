// Package session implements the per-chat working result set: post-search
// filtering, sorting, and pagination with bounded on-demand fetching.
package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"jobscout_bot/internal/model"
)

// Searcher runs an upstream search and returns normalized, deduplicated
// rows.
type Searcher interface {
	Search(ctx context.Context, filters model.FilterSet, sources []string, country string, wanted, offset int) ([]model.JobRecord, error)
}

const (
	// DefaultPageSize shows one job card per page.
	DefaultPageSize = 1

	initialResults   = 30
	maxFetchAttempts = 3
)

// Refine holds the user-side post-filters that are not pushed down to
// the scraper. Zero values mean "no constraint".
type Refine struct {
	MinSalaryAnnual  int
	Currency         string
	IncludeCompanies []string
}

// Window is one rendered page of the filtered result set.
type Window struct {
	Jobs    []model.JobRecord
	Start   int
	Total   int
	HasMore bool
}

// Session is the growable result set for one search. Rows are appended
// by fetch-more cycles and never re-fetched: fetched counts all rows
// obtained upstream so far and serves as the next request offset.
type Session struct {
	searcher Searcher
	log      *slog.Logger

	filters model.FilterSet
	sources []string
	country string

	PageSize int
	refine   Refine

	rows    []model.JobRecord
	fetched int
}

// New creates a Session for one search invocation.
func New(searcher Searcher, filters model.FilterSet, sources []string, country string, log *slog.Logger) *Session {
	return &Session{
		searcher: searcher,
		log:      log,
		filters:  filters,
		sources:  sources,
		country:  country,
		PageSize: DefaultPageSize,
	}
}

// Start runs the initial fetch and seeds the working set. Upstream
// failures propagate so the caller can show a "try again" outcome.
func (s *Session) Start(ctx context.Context) (int, error) {
	rows, err := s.searcher.Search(ctx, s.filters, s.sources, s.country, initialResults, 0)
	if err != nil {
		return 0, err
	}
	s.rows = rows
	s.fetched = len(rows)
	return len(rows), nil
}

// Rows returns the full working set in its current order.
func (s *Session) Rows() []model.JobRecord {
	return s.rows
}

// Filters returns the upstream filter set of this session.
func (s *Session) Filters() model.FilterSet {
	return s.filters
}

// Refine returns the current post-filters.
func (s *Session) Refine() Refine {
	return s.refine
}

// SetRefine replaces the post-filters.
func (s *Session) SetRefine(r Refine) {
	s.refine = r
}

// Filtered applies the session's refine filters plus the user's mute
// list to the working set.
func (s *Session) Filtered(muted map[string]bool) []model.JobRecord {
	return ApplyFilters(s.rows, s.refine, muted)
}

// AnnualAmount computes a row's yearly salary: the average of min/max
// when both are present, else whichever exists. Rows without a yearly
// interval have no comparable amount.
func AnnualAmount(j model.JobRecord) *int {
	if j.Interval != "yearly" {
		return nil
	}
	if j.MinAmount != nil && j.MaxAmount != nil {
		v := (*j.MinAmount + *j.MaxAmount) / 2
		return &v
	}
	if j.MinAmount != nil {
		return j.MinAmount
	}
	return j.MaxAmount
}

// ApplyFilters keeps rows passing every active predicate: company not
// muted, company in the include list (when non-empty), currency match
// (case-insensitive; rows without a currency are dropped while the
// filter is active), and annual salary at or above the floor.
func ApplyFilters(rows []model.JobRecord, r Refine, muted map[string]bool) []model.JobRecord {
	if r.MinSalaryAnnual == 0 && r.Currency == "" && len(r.IncludeCompanies) == 0 && len(muted) == 0 {
		return rows
	}

	include := make(map[string]bool, len(r.IncludeCompanies))
	for _, c := range r.IncludeCompanies {
		include[c] = true
	}

	out := make([]model.JobRecord, 0, len(rows))
	for _, row := range rows {
		if len(muted) > 0 && muted[row.Company] {
			continue
		}
		if len(include) > 0 && !include[row.Company] {
			continue
		}
		if r.Currency != "" {
			if row.Currency == "" || !strings.EqualFold(row.Currency, r.Currency) {
				continue
			}
		}
		if r.MinSalaryAnnual > 0 {
			amt := AnnualAmount(row)
			if amt == nil || *amt < r.MinSalaryAnnual {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}

// Page computes the requested window over the filtered set. When the
// filtered set cannot fill the page, up to three fetch-more cycles grow
// the working set before the window is truncated to what exists. An
// empty working set short-circuits without fetching.
func (s *Session) Page(ctx context.Context, page int, muted map[string]bool) Window {
	if len(s.rows) == 0 {
		return Window{}
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * s.PageSize
	end := start + s.PageSize

	filtered := s.Filtered(muted)
	for attempts := 0; len(filtered) < end && attempts < maxFetchAttempts; attempts++ {
		s.fetchMore(ctx, end-len(filtered))
		filtered = s.Filtered(muted)
	}

	total := len(filtered)
	if end > total {
		end = total
	}
	if start > total {
		start = total
	}
	return Window{
		Jobs:    filtered[start:end],
		Start:   start,
		Total:   total,
		HasMore: end < total,
	}
}

// fetchMore grows the working set from the upstream search. New rows
// are deduplicated by canonical URL against everything already fetched
// this session. Failures are absorbed: the page is simply rendered from
// what exists.
func (s *Session) fetchMore(ctx context.Context, needed int) {
	wanted := needed
	if m := s.PageSize * 2; wanted < m {
		wanted = m
	}

	newRows, err := s.searcher.Search(ctx, s.filters, s.sources, s.country, wanted, s.fetched)
	if err != nil {
		s.log.Warn("fetch more failed", "offset", s.fetched, "error", err)
		return
	}
	s.fetched += len(newRows)

	seen := make(map[string]bool, len(s.rows))
	for _, r := range s.rows {
		if r.URL != "" {
			seen[r.URL] = true
		}
	}
	for _, r := range newRows {
		if r.URL != "" {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
		}
		s.rows = append(s.rows, r)
	}
}

// SortBySalary reorders the working set by salary descending. Missing
// amounts sort as zero. The sort is stable; subsequent pagination
// follows the new order.
func (s *Session) SortBySalary() {
	key := func(j model.JobRecord) (int, int) {
		var mi, ma int
		if j.MinAmount != nil {
			mi = *j.MinAmount
		}
		if j.MaxAmount != nil {
			ma = *j.MaxAmount
		}
		return mi, ma
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		ai, aj := s.rows[i], s.rows[j]
		mi1, ma1 := key(ai)
		mi2, ma2 := key(aj)
		if mi1 != mi2 {
			return mi1 > mi2
		}
		return ma1 > ma2
	})
}

// SortByDate reorders the working set by posting date descending.
// Unparseable dates sort as oldest.
func (s *Session) SortByDate() {
	sort.SliceStable(s.rows, func(i, j int) bool {
		return parseDisplayDate(s.rows[i].DatePosted).After(parseDisplayDate(s.rows[j].DatePosted))
	})
}

func parseDisplayDate(s string) time.Time {
	if d, err := time.Parse("02.01.2006", s); err == nil {
		return d
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d
	}
	return time.Time{}
}
