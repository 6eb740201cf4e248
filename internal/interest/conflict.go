package interest

// ConflictMatrix counts, for every pair of issues, the people interested in both.
// Labels follow the row order of the table it was computed from.
type ConflictMatrix struct {
	Labels []string `json:"labels"`
	Counts [][]int  `json:"counts"`
}

// Conflicts computes the issue × issue matrix of shared interested people.
// This is the incidence matrix multiplied by its own transpose, so the
// result is symmetric and the diagonal equals each row's interest.
func Conflicts(t *Table) *ConflictMatrix {
	n := len(t.Rows)
	m := &ConflictMatrix{
		Labels: make([]string, n),
		Counts: make([][]int, n),
	}
	for i, row := range t.Rows {
		m.Labels[i] = row.Label()
		m.Counts[i] = make([]int, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			shared := sharedPeople(t.Rows[i], t.Rows[j])
			m.Counts[i][j] = shared
			m.Counts[j][i] = shared
		}
	}

	return m
}

func sharedPeople(a, b *Row) int {
	if len(b.Cells) < len(a.Cells) {
		a, b = b, a
	}
	shared := 0
	for person := range a.Cells {
		if _, ok := b.Cells[person]; ok {
			shared++
		}
	}
	return shared
}

// At returns the count for the i-th and j-th issue
func (m *ConflictMatrix) At(i, j int) int {
	return m.Counts[i][j]
}

// Between returns the count for two issue labels
func (m *ConflictMatrix) Between(a, b string) (int, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Counts[i][j], true
}

func (m *ConflictMatrix) index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}
