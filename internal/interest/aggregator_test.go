package interest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	result *FetchResult
	err    error
	calls  int
}

func (f *fakeSource) Relations(ctx context.Context, q Query) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// mapMemo is a minimal Memoizer that never expires
type mapMemo struct {
	values map[string][]byte
}

func (m *mapMemo) Cached(ctx context.Context, key string) bool {
	_, ok := m.values[key]
	return ok
}

func (m *mapMemo) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	m.values[key] = v
	return v, nil
}

func TestQuery_Key(t *testing.T) {
	q := Query{BaseURL: "https://tracker.example/", JQL: "project = MATSIM"}
	same := q
	other := q
	other.IncludeConflicts = true

	assert.Equal(t, q.Key(), same.Key())
	assert.NotEqual(t, q.Key(), other.Key())
	assert.Contains(t, q.Key(), "interest:")
}

func TestBuild_RichestVariant(t *testing.T) {
	q := Query{JQL: "project = MATSIM", IncludeReporters: true, IncludeTotals: true, IncludeConflicts: true}
	now := time.Date(2018, 5, 1, 12, 0, 0, 0, time.UTC)

	report := Build(q, &FetchResult{
		Relations: []Relation{
			voted(issueB, "alice"),
			voted(issueA, "alice"), voted(issueA, "bob"), reported(issueA, "carol"),
		},
		Skipped: []SkippedIssue{{Key: "MATSIM-3", Reason: "status 500"}},
	}, now)

	assert.Equal(t, []string{issueA.Label(), issueB.Label()}, labels(report.Table))
	assert.Equal(t, "alice", report.Table.People[0])
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1, "carol": 1}, report.Totals)
	require.NotNil(t, report.Conflicts)
	assert.Equal(t, 1, report.Conflicts.At(0, 1))
	assert.Len(t, report.Skipped, 1)
	assert.Equal(t, now, report.GeneratedAt)
}

func TestBuild_PlainVariant(t *testing.T) {
	report := Build(Query{}, &FetchResult{Relations: []Relation{voted(issueA, "alice")}}, time.Now())
	assert.Nil(t, report.Totals)
	assert.Nil(t, report.Conflicts)
}

func TestBuild_EmptyTableHasNoTotals(t *testing.T) {
	report := Build(Query{IncludeTotals: true, IncludeConflicts: true}, &FetchResult{}, time.Now())
	assert.Equal(t, 0, report.Table.Len())
	assert.Nil(t, report.Totals)
	assert.Empty(t, report.Conflicts.Labels)
}

func TestAggregator_PropagatesSourceError(t *testing.T) {
	upstream := errors.New("status 503")
	agg := NewAggregator(&fakeSource{err: upstream})

	_, err := agg.Aggregate(context.Background(), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
}

func TestCachedAggregator_MemoizesPerQuery(t *testing.T) {
	source := &fakeSource{result: &FetchResult{Relations: []Relation{
		voted(issueA, "alice"), voted(issueA, "bob"), voted(issueB, "alice"),
	}}}
	cached := NewCachedAggregator(NewAggregator(source), &mapMemo{values: map[string][]byte{}})
	q := Query{JQL: "project = MATSIM", IncludeConflicts: true}

	first, err := cached.Report(context.Background(), q)
	require.NoError(t, err)
	second, err := cached.Report(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.True(t, cached.Cached(context.Background(), q))
	assert.Equal(t, labels(first.Table), labels(second.Table))
	assert.Equal(t, 2, second.Table.Rows[0].Interest)
	role, ok := second.Table.Rows[0].Role("bob")
	assert.True(t, ok)
	assert.Equal(t, RoleVoted, role)
	assert.Equal(t, first.Conflicts, second.Conflicts)

	q.IncludeConflicts = false
	assert.False(t, cached.Cached(context.Background(), q))
	_, err = cached.Report(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCachedAggregator_ErrorsAreNotCached(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	memo := &mapMemo{values: map[string][]byte{}}
	cached := NewCachedAggregator(NewAggregator(source), memo)

	_, err := cached.Report(context.Background(), Query{})
	require.Error(t, err)
	assert.Empty(t, memo.values)

	source.err = nil
	source.result = &FetchResult{}
	report, err := cached.Report(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Table.Len())
	assert.Equal(t, 2, source.calls)
}
