package interest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Query selects the issues to aggregate and which derived views to compute
type Query struct {
	BaseURL          string `json:"baseUrl"`
	JQL              string `json:"jql"`
	IncludeReporters bool   `json:"includeReporters"`
	IncludeTotals    bool   `json:"includeTotals"`
	IncludeConflicts bool   `json:"includeConflicts"`
}

// Key returns a stable cache key for the query
func (q Query) Key() string {
	encoded, _ := json.Marshal(q)
	sum := sha256.Sum256(encoded)
	return "interest:" + hex.EncodeToString(sum[:])
}

// Source fetches the relations matching a query
type Source interface {
	Relations(ctx context.Context, q Query) (*FetchResult, error)
}

// Report is the aggregated result for one query
type Report struct {
	Query       Query           `json:"query"`
	Table       *Table          `json:"table"`
	Totals      map[string]int  `json:"totals,omitempty"`
	Conflicts   *ConflictMatrix `json:"conflicts,omitempty"`
	Skipped     []SkippedIssue  `json:"skipped,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Build turns fetched relations into a report: pivot, score, order, and
// the optional totals and conflict views.
func Build(q Query, fetched *FetchResult, generatedAt time.Time) *Report {
	table := Pivot(fetched.Relations)

	report := &Report{
		Query:       q,
		Table:       table,
		Skipped:     fetched.Skipped,
		GeneratedAt: generatedAt,
	}

	// An empty table renders header-only, without a Total row
	if q.IncludeTotals && table.Len() > 0 {
		table.SortPeopleByTotal()
		report.Totals = table.Totals()
	}

	table.SortByInterest()

	if q.IncludeConflicts {
		report.Conflicts = Conflicts(table)
	}

	return report
}

// Aggregator runs the fetch → aggregate pipeline
type Aggregator struct {
	source Source
	now    func() time.Time
}

// NewAggregator creates an aggregator reading from source
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{
		source: source,
		now:    time.Now,
	}
}

// Aggregate fetches the relations for q and builds the report
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*Report, error) {
	start := a.now()

	fetched, err := a.source.Relations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relations: %w", err)
	}

	report := Build(q, fetched, a.now().UTC())

	slog.Info("Interest report built",
		"issues", report.Table.Len(),
		"people", len(report.Table.People),
		"relations", len(fetched.Relations),
		"skipped", len(fetched.Skipped),
		"duration", a.now().Sub(start),
	)

	return report, nil
}

// Memoizer runs fn at most once per key while its result is cached.
// Errors returned by fn must not be cached.
type Memoizer interface {
	Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error)
	Cached(ctx context.Context, key string) bool
}

// CachedAggregator memoizes reports per query key
type CachedAggregator struct {
	aggregator *Aggregator
	memo       Memoizer
}

// NewCachedAggregator wraps an aggregator with a memoizer
func NewCachedAggregator(aggregator *Aggregator, memo Memoizer) *CachedAggregator {
	return &CachedAggregator{
		aggregator: aggregator,
		memo:       memo,
	}
}

// Cached reports whether the report for q can be served without a fetch
func (c *CachedAggregator) Cached(ctx context.Context, q Query) bool {
	return c.memo.Cached(ctx, q.Key())
}

// Report returns the cached report for q, building it on a miss
func (c *CachedAggregator) Report(ctx context.Context, q Query) (*Report, error) {
	data, err := c.memo.Do(ctx, q.Key(), func(ctx context.Context) ([]byte, error) {
		report, err := c.aggregator.Aggregate(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(report)
	})
	if err != nil {
		return nil, err
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return &report, nil
}
