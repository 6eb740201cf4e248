package interest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issueA = Issue{Key: "MATSIM-1", Summary: "Parallel QSim"}
	issueB = Issue{Key: "MATSIM-2", Summary: "Drop Java 8"}
	issueC = Issue{Key: "MATSIM-3", Summary: "Signals docs"}
)

func voted(issue Issue, person string) Relation {
	return Relation{Issue: issue, Person: person, Role: RoleVoted}
}

func reported(issue Issue, person string) Relation {
	return Relation{Issue: issue, Person: person, Role: RoleReported}
}

func labels(t *Table) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Label()
	}
	return out
}

func TestIssue_Label(t *testing.T) {
	assert.Equal(t, "MATSIM-1 Parallel QSim", issueA.Label())
	assert.Equal(t, "MATSIM-9", Issue{Key: "MATSIM-9"}.Label())
}

func TestPivot_InterestAndOrder(t *testing.T) {
	table := Pivot([]Relation{
		voted(issueB, "alice"),
		voted(issueA, "alice"),
		voted(issueA, "bob"),
	})
	table.SortByInterest()

	require.Equal(t, []string{issueA.Label(), issueB.Label()}, labels(table))
	assert.Equal(t, 2, table.Rows[0].Interest)
	assert.Equal(t, 1, table.Rows[1].Interest)
	assert.ElementsMatch(t, []string{"alice", "bob"}, table.People)
}

func TestPivot_MissingCellsAreAbsent(t *testing.T) {
	table := Pivot([]Relation{
		voted(issueA, "alice"),
		voted(issueB, "bob"),
	})

	row, ok := table.Row(issueA.Label())
	require.True(t, ok)

	role, ok := row.Role("alice")
	assert.True(t, ok)
	assert.Equal(t, RoleVoted, role)

	_, ok = row.Role("bob")
	assert.False(t, ok)
}

func TestPivot_ReporterOutranksVoter(t *testing.T) {
	for name, relations := range map[string][]Relation{
		"vote first":   {voted(issueA, "alice"), reported(issueA, "alice")},
		"report first": {reported(issueA, "alice"), voted(issueA, "alice")},
	} {
		t.Run(name, func(t *testing.T) {
			table := Pivot(relations)
			require.Equal(t, 1, table.Len())

			role, ok := table.Rows[0].Role("alice")
			require.True(t, ok)
			assert.Equal(t, RoleReported, role)
			assert.Equal(t, 1, table.Rows[0].Interest)
		})
	}
}

func TestPivot_IgnoresInvalidRelations(t *testing.T) {
	table := Pivot([]Relation{
		{Issue: issueA, Person: "", Role: RoleVoted},
		{Issue: issueA, Person: "alice", Role: Role("watched")},
	})
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.People)
}

func TestPivot_Empty(t *testing.T) {
	table := Pivot(nil)
	table.SortByInterest()
	assert.Equal(t, 0, table.Len())
	assert.NotNil(t, table.Rows)
	assert.NotNil(t, table.People)
}

func TestPivot_InterestCountsDistinctPeople(t *testing.T) {
	relations := []Relation{
		voted(issueA, "alice"), voted(issueA, "alice"), reported(issueA, "bob"),
		voted(issueB, "carol"), voted(issueB, "bob"), reported(issueB, "bob"),
		voted(issueC, "dave"),
	}
	table := Pivot(relations)

	distinct := make(map[string]map[string]bool)
	for _, rel := range relations {
		if distinct[rel.Issue.Label()] == nil {
			distinct[rel.Issue.Label()] = make(map[string]bool)
		}
		distinct[rel.Issue.Label()][rel.Person] = true
	}

	for _, row := range table.Rows {
		assert.Equal(t, len(distinct[row.Label()]), row.Interest, row.Label())
	}
}

func TestPivot_OrderIndependent(t *testing.T) {
	relations := []Relation{
		voted(issueA, "alice"), voted(issueA, "bob"), reported(issueA, "carol"),
		voted(issueB, "alice"), reported(issueB, "alice"),
		voted(issueC, "bob"),
	}
	want := Pivot(relations)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]Relation(nil), relations...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Pivot(shuffled)
		assert.ElementsMatch(t, want.People, got.People)
		require.Equal(t, want.Len(), got.Len())
		for _, wantRow := range want.Rows {
			gotRow, ok := got.Row(wantRow.Label())
			require.True(t, ok)
			assert.Equal(t, wantRow.Cells, gotRow.Cells)
			assert.Equal(t, wantRow.Interest, gotRow.Interest)
		}
	}
}

func TestSortByInterest_Descending(t *testing.T) {
	table := Pivot([]Relation{
		voted(issueC, "alice"),
		voted(issueA, "alice"), voted(issueA, "bob"), voted(issueA, "carol"),
		voted(issueB, "alice"), voted(issueB, "bob"),
	})
	table.SortByInterest()

	for i := 1; i < len(table.Rows); i++ {
		assert.GreaterOrEqual(t, table.Rows[i-1].Interest, table.Rows[i].Interest)
	}
	assert.Equal(t, []string{issueA.Label(), issueB.Label(), issueC.Label()}, labels(table))
}

func TestSortByInterest_TiesKeepOrder(t *testing.T) {
	table := Pivot([]Relation{
		voted(issueB, "alice"),
		voted(issueA, "bob"),
		voted(issueC, "carol"),
	})
	table.SortByInterest()

	assert.Equal(t, []string{issueB.Label(), issueA.Label(), issueC.Label()}, labels(table))
}

func TestTotalsAndPeopleOrder(t *testing.T) {
	table := Pivot([]Relation{
		voted(issueA, "alice"),
		voted(issueA, "bob"), voted(issueB, "bob"), reported(issueC, "bob"),
		voted(issueB, "carol"), voted(issueC, "carol"),
	})

	totals := table.Totals()
	assert.Equal(t, map[string]int{"alice": 1, "bob": 3, "carol": 2}, totals)

	table.SortPeopleByTotal()
	assert.Equal(t, []string{"bob", "carol", "alice"}, table.People)
}
