package interest

// Role is the relationship a person holds to an issue
type Role string

// Role constants
const (
	RoleVoted    Role = "voted"
	RoleReported Role = "reported"
)

// rank orders roles for cell collisions: a reporter outranks a voter.
func (r Role) rank() int {
	switch r {
	case RoleReported:
		return 2
	case RoleVoted:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Issue is a tracker issue as shown on the dashboard
type Issue struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// Label returns "<key> <summary>", the row identity of an issue
func (i Issue) Label() string {
	if i.Summary == "" {
		return i.Key
	}
	return i.Key + " " + i.Summary
}

// Relation is a single (issue, person, role) fact fetched from the tracker
type Relation struct {
	Issue  Issue  `json:"issue"`
	Person string `json:"person"`
	Role   Role   `json:"role"`
}

// SkippedIssue records an issue whose voters could not be fetched
type SkippedIssue struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// FetchResult is what a Source returns for one query
type FetchResult struct {
	Relations []Relation     `json:"relations"`
	Skipped   []SkippedIssue `json:"skipped,omitempty"`
}
