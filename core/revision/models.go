package revision

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

// Stage is a step of the approval pipeline. Stages are ordered, see Stages.
type Stage string

const (
	StageGapAnalysis     Stage = "Gap Analysis"
	StageFacultyReview   Stage = "Faculty Review"
	StageCommitteeReview Stage = "Committee Review"
	StageFinalApproval   Stage = "Final Approval"
	StageImplementation  Stage = "Implementation"
)

var Stages = []Stage{
	StageGapAnalysis,
	StageFacultyReview,
	StageCommitteeReview,
	StageFinalApproval,
	StageImplementation,
}

// Index returns the position of s in Stages, -1 if unknown.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

func (s Stage) IsValid() bool    { return s.Index() >= 0 }
func (s Stage) IsTerminal() bool { return s == StageImplementation }
func (s Stage) String() string   { return string(s) }

// Next returns the stage following s. ok is false for the terminal stage and unknown stages.
func (s Stage) Next() (next Stage, ok bool) {
	i := s.Index()
	if i < 0 || i == len(Stages)-1 {
		return s, false
	}
	return Stages[i+1], true
}

// Status is the lifecycle state of a revision, orthogonal to its Stage.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusApproved   Status = "Approved"
	StatusRejected   Status = "Rejected"
	StatusCompleted  Status = "Completed"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusApproved, StatusRejected, StatusCompleted}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s Status) String() string { return string(s) }

// Priority is informational: it never reorders or schedules work.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

var priorityRanks = map[Priority]int{
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// ParsePriority matches s case-insensitively; unknown values are returned cleaned but unchanged.
func ParsePriority(s string) Priority {
	s = core.CleanString(s)
	for _, p := range Priorities {
		if strings.EqualFold(string(p), s) {
			return p
		}
	}
	return Priority(s)
}

// ParseStage matches s case-insensitively; unknown values are returned cleaned but unchanged.
func ParseStage(s string) Stage {
	s = core.CleanString(s)
	for _, st := range Stages {
		if strings.EqualFold(string(st), s) {
			return st
		}
	}
	return Stage(s)
}

// ParseStatus matches s case-insensitively; unknown values are returned cleaned but unchanged.
func ParseStatus(s string) Status {
	s = core.CleanString(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st
		}
	}
	return Status(s)
}

func (p Priority) IsValid() bool  { _, ok := priorityRanks[p]; return ok }
func (p Priority) Rank() int      { return priorityRanks[p] }
func (p Priority) String() string { return string(p) }

// Actor is the already-authenticated caller of a workflow operation.
type Actor struct {
	Role    access.Role
	Subject string
}

// Transition records one successful workflow operation.
type Transition struct {
	Action     string      `json:"action"`
	FromStage  Stage       `json:"from_stage"`
	ToStage    Stage       `json:"to_stage"`
	FromStatus Status      `json:"from_status"`
	ToStatus   Status      `json:"to_status"`
	Role       access.Role `json:"role"`
	Actor      string      `json:"actor,omitempty"`
	At         time.Time   `json:"at"` // UTC
}

// Revision is a proposed curriculum change. Revisions are never deleted:
// they end up Rejected or Completed.
type Revision struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Program       string       `json:"program"`
	Description   string       `json:"description"`
	Stage         Stage        `json:"stage"`
	Status        Status       `json:"status"`
	Priority      Priority     `json:"priority"`
	DueDate       time.Time    `json:"due_date"` // UTC
	RequestedBy   string       `json:"requested_by"`
	RequesterRole access.Role  `json:"requester_role"`
	CreatedAt     time.Time    `json:"created_at"` // UTC
	UpdatedAt     time.Time    `json:"updated_at"` // UTC
	History       []Transition `json:"history"`
}

// Clone returns a copy that shares no memory with r.
func (r Revision) Clone() Revision {
	c := r
	c.History = make([]Transition, len(r.History))
	copy(c.History, r.History)
	return c
}

// IsOpen reports whether the revision still accepts workflow operations.
func (r Revision) IsOpen() bool {
	return !r.Status.IsTerminal() && !(r.Stage.IsTerminal() && r.Status == StatusApproved)
}

// NewRevision contains information needed to initiate a Revision.
type NewRevision struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Program     string    `json:"program" validate:"required,notblank,max=200"`
	Priority    Priority  `json:"priority" validate:"required,priority"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Description string    `json:"description" validate:"max=2000"`
}

func (nr *NewRevision) Validate() error {
	nr.Title = core.CollapseSpaces(nr.Title)
	nr.Program = core.CollapseSpaces(nr.Program)
	nr.Description = core.CleanString(nr.Description)
	nr.Priority = ParsePriority(string(nr.Priority))
	if !nr.DueDate.IsZero() {
		nr.DueDate = nr.DueDate.UTC().Truncate(time.Microsecond)
	}
	return core.Validate.Struct(nr)
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDueDate(s string) (time.Time, error) {
	s = core.CleanString(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{Field: "due_date", Error: "invalid date"})
	}
	return t.UTC(), nil
}

// Ordering fields accepted by Repository.QueryRevisions.
var OrderingFields = []string{"created_at", "updated_at", "due_date", "priority", "title", "program", "stage", "status"}

type QueryFilter struct {
	Search     string
	Program    string
	Stages     []Stage
	Statuses   []Status
	Priorities []Priority
	DueFrom    time.Time
	DueTo      time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Program == "" && len(qf.Stages) == 0 && len(qf.Statuses) == 0 &&
		len(qf.Priorities) == 0 && qf.DueFrom.IsZero() && qf.DueTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Program = core.CleanString(qf.Program)
	for i, s := range qf.Stages {
		qf.Stages[i] = ParseStage(string(s))
	}
	for i, s := range qf.Statuses {
		qf.Statuses[i] = ParseStatus(string(s))
	}
	for i, p := range qf.Priorities {
		qf.Priorities[i] = ParsePriority(string(p))
	}
}

// Match applies AND on the set filter fields.
// Search does a case-insensitive match on one of Title, Program or Description.
// Program matches case-insensitively and exactly.
func (qf *QueryFilter) Match(r Revision) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(r.Title), s) &&
			!strings.Contains(strings.ToLower(r.Program), s) &&
			!strings.Contains(strings.ToLower(r.Description), s) {
			return false
		}
	}
	if qf.Program != "" && !strings.EqualFold(qf.Program, r.Program) {
		return false
	}
	if len(qf.Stages) > 0 && !containsStage(qf.Stages, r.Stage) {
		return false
	}
	if len(qf.Statuses) > 0 && !containsStatus(qf.Statuses, r.Status) {
		return false
	}
	if len(qf.Priorities) > 0 && !containsPriority(qf.Priorities, r.Priority) {
		return false
	}
	if !qf.DueFrom.IsZero() && r.DueDate.Before(qf.DueFrom.UTC()) {
		return false
	}
	if !qf.DueTo.IsZero() && r.DueDate.After(qf.DueTo.UTC()) {
		return false
	}
	return true
}

func containsStage(list []Stage, s Stage) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, s Status) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}

// SortRevisions stable-sorts revs by ordering. Ties keep their current (creation) order.
func SortRevisions(revs []Revision, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(revs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareField(revs[i], revs[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareField(a, b Revision, field string) int {
	switch field {
	case "created_at":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	case "due_date":
		return compareTime(a.DueDate, b.DueDate)
	case "priority":
		return a.Priority.Rank() - b.Priority.Rank()
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "program":
		return strings.Compare(strings.ToLower(a.Program), strings.ToLower(b.Program))
	case "stage":
		return a.Stage.Index() - b.Stage.Index()
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
