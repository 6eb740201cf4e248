package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/skridlevsky/interest-dash/internal/interest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(q interest.Query) *interest.Report {
	a := interest.Issue{Key: "MATSIM-1", Summary: "Parallel QSim"}
	b := interest.Issue{Key: "MATSIM-2", Summary: "Drop <Java> 8"}
	q.BaseURL = "https://matsim.atlassian.net/"

	return interest.Build(q, &interest.FetchResult{
		Relations: []interest.Relation{
			{Issue: a, Person: "alice", Role: interest.RoleVoted},
			{Issue: a, Person: "bob", Role: interest.RoleReported},
			{Issue: b, Person: "alice", Role: interest.RoleVoted},
		},
	}, time.Date(2018, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestHTML_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, Page{Report: sampleReport(interest.Query{IncludeTotals: true})}))
	out := buf.String()

	assert.Contains(t, out, "<th>Issue</th><th>alice</th><th>bob</th><th>Interest</th>")
	assert.Contains(t, out, `<a href="https://matsim.atlassian.net/browse/MATSIM-1">MATSIM-1 Parallel QSim</a>`)
	assert.Contains(t, out, `<i class="fa fa-smile-o fa-2x" title="voted"></i>`)
	assert.Contains(t, out, `<i class="fa fa-pencil fa-2x" title="reported"></i>`)
	assert.Contains(t, out, "Drop &lt;Java&gt; 8")
	assert.Contains(t, out, "<tr><td>Total</td><td>2</td><td>1</td><td></td></tr>")
	assert.NotContains(t, out, "browse/Total")
	assert.Contains(t, out, "font-awesome.min.css")
	assert.Contains(t, out, "2018-05-01T12:00:00Z")

	// Rows come out in interest order
	assert.Less(t, strings.Index(out, "MATSIM-1 Parallel"), strings.Index(out, "MATSIM-2 Drop"))
}

func TestHTML_Conflicts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, Page{Report: sampleReport(interest.Query{IncludeConflicts: true})}))
	out := buf.String()

	assert.Contains(t, out, "<h2>Conflicts</h2>")
	assert.Contains(t, out, "<tr><th>MATSIM-1 Parallel QSim</th><td>2</td><td>1</td></tr>")
	assert.NotContains(t, out, "<td>Total</td>")
}

func TestHTML_EmptyReport(t *testing.T) {
	report := interest.Build(interest.Query{IncludeTotals: true}, &interest.FetchResult{}, time.Now())

	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, Page{Report: report}))
	out := buf.String()

	assert.Contains(t, out, "<tr><th>Issue</th><th>Interest</th></tr>")
	assert.NotContains(t, out, "<a href=")
	assert.NotContains(t, out, "Total")
}

func TestCSV_EmptyReport(t *testing.T) {
	report := interest.Build(interest.Query{IncludeTotals: true}, &interest.FetchResult{}, time.Now())

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, report))
	assert.Equal(t, "issue,interest\n", buf.String())
}

func TestCSV_FormulaCells(t *testing.T) {
	issue := interest.Issue{Key: "MATSIM-3"}
	report := interest.Build(interest.Query{}, &interest.FetchResult{
		Relations: []interest.Relation{
			{Issue: issue, Person: "=HYPERLINK(\"x\")", Role: interest.RoleVoted},
			{Issue: interest.Issue{Key: "-1", Summary: "negative"}, Person: "@bob", Role: interest.RoleVoted},
		},
	}, time.Now())

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, report))

	assert.Equal(t, strings.Join([]string{
		`issue,"'=HYPERLINK(""x"")",'@bob,interest`,
		"MATSIM-3,voted,,1",
		"'-1 negative,,voted,1",
		"",
	}, "\n"), buf.String())
}

func TestHTML_ErrorPanel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, Page{Error: "JIRA query failed with status 503"}))
	out := buf.String()

	assert.Contains(t, out, `<div class="error">JIRA query failed with status 503</div>`)
	assert.NotContains(t, out, "<table")
}

func TestHTML_SkippedWarning(t *testing.T) {
	report := sampleReport(interest.Query{})
	report.Skipped = []interest.SkippedIssue{{Key: "MATSIM-9", Reason: "jira API error 500"}}

	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, Page{Report: report}))
	assert.Contains(t, buf.String(), "<li>MATSIM-9: jira API error 500</li>")
}

func TestHTML_Deterministic(t *testing.T) {
	report := sampleReport(interest.Query{IncludeTotals: true, IncludeConflicts: true})

	var first, second bytes.Buffer
	require.NoError(t, HTML(&first, Page{Report: report}))
	require.NoError(t, HTML(&second, Page{Report: report}))
	assert.Equal(t, first.String(), second.String())
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleReport(interest.Query{IncludeTotals: true})))

	assert.Equal(t, strings.Join([]string{
		"issue,alice,bob,interest",
		"MATSIM-1 Parallel QSim,voted,reported,2",
		"MATSIM-2 Drop <Java> 8,voted,,1",
		"Total,2,1,",
		"",
	}, "\n"), buf.String())
}
