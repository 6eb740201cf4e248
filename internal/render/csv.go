package render

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/skridlevsky/interest-dash/internal/interest"
)

// CSV writes the interest table: one header row, one row per issue with
// the role of each person (empty when absent) and the interest count,
// then a Total row when the report carries totals.
func CSV(w io.Writer, report *interest.Report) error {
	cw := csv.NewWriter(w)
	table := report.Table

	header := []string{"issue"}
	for _, person := range table.People {
		header = append(header, safeCell(person))
	}
	header = append(header, "interest")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range table.Rows {
		record := make([]string, 0, len(header))
		record = append(record, safeCell(row.Label()))
		for _, person := range table.People {
			role, _ := row.Role(person)
			record = append(record, string(role))
		}
		record = append(record, strconv.Itoa(row.Interest))
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	if len(report.Totals) > 0 {
		record := []string{"Total"}
		for _, person := range table.People {
			record = append(record, strconv.Itoa(report.Totals[person]))
		}
		record = append(record, "")
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// safeCell keeps spreadsheet programs from evaluating tracker text as a formula
func safeCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
