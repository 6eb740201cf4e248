package interest

import "sort"

// Row is one issue of the interest table.
// Cells maps a person to their role; people without a relation are absent.
type Row struct {
	Issue    Issue           `json:"issue"`
	Interest int             `json:"interest"`
	Cells    map[string]Role `json:"cells"`
}

// Label returns the row identity
func (r *Row) Label() string {
	return r.Issue.Label()
}

// Role returns the role of person on this row, if any
func (r *Row) Role(person string) (Role, bool) {
	role, ok := r.Cells[person]
	return role, ok
}

// Table is the issue × person interest table
type Table struct {
	People []string `json:"people"`
	Rows   []*Row   `json:"rows"`
}

// Pivot builds a table from a flat relation list.
//
// Rows and columns appear in first-seen order. When a person holds both
// roles on one issue the cell is RoleReported, whatever the input order.
// Relations with an empty person or unknown role are ignored.
func Pivot(relations []Relation) *Table {
	t := &Table{
		People: []string{},
		Rows:   []*Row{},
	}

	rows := make(map[string]*Row)
	people := make(map[string]bool)

	for _, rel := range relations {
		if rel.Person == "" || !rel.Role.Valid() {
			continue
		}

		label := rel.Issue.Label()
		row, exists := rows[label]
		if !exists {
			row = &Row{Issue: rel.Issue, Cells: make(map[string]Role)}
			rows[label] = row
			t.Rows = append(t.Rows, row)
		}

		if !people[rel.Person] {
			people[rel.Person] = true
			t.People = append(t.People, rel.Person)
		}

		if current, ok := row.Cells[rel.Person]; !ok || rel.Role.rank() > current.rank() {
			row.Cells[rel.Person] = rel.Role
		}
	}

	t.Score()
	return t
}

// Score recomputes the interest of every row: the number of people with
// any relation to the issue.
func (t *Table) Score() {
	for _, row := range t.Rows {
		row.Interest = len(row.Cells)
	}
}

// SortByInterest orders rows by interest, highest first.
// Ties keep their current relative order.
func (t *Table) SortByInterest() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Interest > t.Rows[j].Interest
	})
}

// Totals returns the number of issues each person is related to
func (t *Table) Totals() map[string]int {
	totals := make(map[string]int, len(t.People))
	for _, person := range t.People {
		totals[person] = 0
	}
	for _, row := range t.Rows {
		for person := range row.Cells {
			totals[person]++
		}
	}
	return totals
}

// SortPeopleByTotal orders columns by each person's total, highest first.
// Ties keep their current relative order.
func (t *Table) SortPeopleByTotal() {
	totals := t.Totals()
	sort.SliceStable(t.People, func(i, j int) bool {
		return totals[t.People[i]] > totals[t.People[j]]
	})
}

// Row returns the row with the given label
func (t *Table) Row(label string) (*Row, bool) {
	for _, row := range t.Rows {
		if row.Label() == label {
			return row, true
		}
	}
	return nil, false
}

// Len returns the number of issue rows
func (t *Table) Len() int {
	return len(t.Rows)
}
