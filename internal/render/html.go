package render

import (
	"embed"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/skridlevsky/interest-dash/internal/interest"
	"github.com/skridlevsky/interest-dash/internal/jira"
)

//go:embed templates/*.html
var templatesFS embed.FS

var dashboard = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

// Stylesheets included in every page
var Stylesheets = []string{
	"https://codepen.io/chriddyp/pen/bWLwgP.css",
	"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/4.7.0/css/font-awesome.min.css",
}

// Marker icons per role
var roleIcons = map[interest.Role]string{
	interest.RoleVoted:    "fa fa-smile-o fa-2x",
	interest.RoleReported: "fa fa-pencil fa-2x",
}

// Page is the input of the dashboard template. Error replaces the table.
type Page struct {
	Title  string
	Report *interest.Report
	Error  string
}

type view struct {
	Title       string
	Stylesheets []string
	Error       string
	People      []string
	Rows        []viewRow
	Total       *viewRow
	Conflicts   *conflictView
	Skipped     []interest.SkippedIssue
	GeneratedAt string
}

type viewRow struct {
	Label    string
	Href     string
	Cells    []viewCell
	Interest string
}

type viewCell struct {
	Icon  string
	Title string
	Text  string
}

type conflictView struct {
	Labels []string
	Rows   []conflictRow
}

type conflictRow struct {
	Label  string
	Counts []int
}

// HTML writes the dashboard page
func HTML(w io.Writer, page Page) error {
	return dashboard.ExecuteTemplate(w, "dashboard.html", buildView(page))
}

func buildView(page Page) view {
	v := view{
		Title:       page.Title,
		Stylesheets: Stylesheets,
		Error:       page.Error,
	}
	if v.Title == "" {
		v.Title = "Issue interest"
	}

	report := page.Report
	if page.Error != "" || report == nil || report.Table == nil {
		return v
	}

	table := report.Table
	v.People = table.People
	v.Skipped = report.Skipped
	if !report.GeneratedAt.IsZero() {
		v.GeneratedAt = report.GeneratedAt.Format(time.RFC3339)
	}

	for _, row := range table.Rows {
		vr := viewRow{
			Label:    row.Label(),
			Href:     jira.BrowseURL(report.Query.BaseURL, row.Issue.Key),
			Cells:    make([]viewCell, len(table.People)),
			Interest: strconv.Itoa(row.Interest),
		}
		for i, person := range table.People {
			if role, ok := row.Role(person); ok {
				vr.Cells[i] = viewCell{Icon: roleIcons[role], Title: string(role)}
			}
		}
		v.Rows = append(v.Rows, vr)
	}

	if len(report.Totals) > 0 {
		total := &viewRow{
			Label: "Total",
			Cells: make([]viewCell, len(table.People)),
		}
		for i, person := range table.People {
			total.Cells[i] = viewCell{Text: strconv.Itoa(report.Totals[person])}
		}
		v.Total = total
	}

	if m := report.Conflicts; m != nil {
		cv := &conflictView{Labels: m.Labels}
		for i, label := range m.Labels {
			cv.Rows = append(cv.Rows, conflictRow{Label: label, Counts: m.Counts[i]})
		}
		v.Conflicts = cv
	}

	return v
}
