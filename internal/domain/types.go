package domain

import "time"

// Repo is a tracked source-control repository.
type Repo struct {
	ID           int64
	UserID       string
	GithubID     int64
	Name         string
	FullName     string
	URL          string
	IsPrivate    bool
	IsTracked    bool
	LastSyncedAt *time.Time
}

// Ticket is an issue-tracker ticket. Key is unique per user.
type Ticket struct {
	ID            int64
	UserID        string
	JiraID        string
	Key           string
	Title         string
	Status        string
	IssueType     string
	URL           string
	CreatedAtJira time.Time
	UpdatedAtJira time.Time
}

// Commit is a source-control commit. SHA is unique per user+repo.
// Unlinked holds iff TicketID is nil.
type Commit struct {
	ID            int64
	UserID        string
	RepoID        int64
	RepoFullName  string
	TicketID      *int64
	SHA           string
	Message       string
	AuthorName    string
	AuthorEmail   string
	CommittedAt   time.Time
	URL           string
	Additions     int
	Deletions     int
	FilesChanged  int
	ExtractedKeys []string
	Unlinked      bool
}

type ActivityKind string

const (
	ActivityStatusChange ActivityKind = "status_change"
	ActivityComment      ActivityKind = "comment"
	ActivityFieldChange  ActivityKind = "field_change"
)

// ActivityPayload is the variant part of a TicketActivity. Each record
// carries exactly one of StatusChange, CommentActivity or FieldChange.
type ActivityPayload interface {
	Kind() ActivityKind
}

type StatusChange struct {
	From string
	To   string
}

func (StatusChange) Kind() ActivityKind { return ActivityStatusChange }

type CommentActivity struct {
	Body string
}

func (CommentActivity) Kind() ActivityKind { return ActivityComment }

type FieldChange struct {
	Field string
	From  string
	To    string
}

func (FieldChange) Kind() ActivityKind { return ActivityFieldChange }

// TicketActivity is a single tracker event on a ticket. JiraID is the
// external dedup key, unique per user+ticket.
type TicketActivity struct {
	ID       int64
	UserID   string
	TicketID int64
	JiraID   string
	Author   string
	At       time.Time
	Payload  ActivityPayload
}

// StatusChangePayload returns the payload when the activity is a status
// change, nil otherwise.
func (a TicketActivity) StatusChangePayload() *StatusChange {
	if sc, ok := a.Payload.(StatusChange); ok {
		return &sc
	}
	return nil
}

// Worklog is a logged time entry. JiraID is unique per user.
type Worklog struct {
	ID        int64
	UserID    string
	TicketID  int64
	JiraID    string
	Author    string
	Seconds   int
	StartedAt time.Time
}

type AlertType string

// Alert types. AlertHighEffortLowOutput is reserved: no detector rule
// currently emits it.
const (
	AlertCommitNoTicket      AlertType = "commit_no_ticket"
	AlertStatusNoCommit      AlertType = "status_no_commit"
	AlertTimeNoCode          AlertType = "time_no_code"
	AlertStalledTicket       AlertType = "stalled_ticket"
	AlertHighEffortLowOutput AlertType = "high_effort_low_output"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// HygieneAlert flags a discrepancy between code activity and tracker
// activity. Created at most once per (user, type, subject, window);
// never deleted automatically.
type HygieneAlert struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"-"`
	Type           AlertType  `json:"alert_type"`
	Severity       Severity   `json:"severity"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Recommendation string     `json:"recommendation"`
	TicketID       *int64     `json:"ticket_id"`
	CommitID       *int64     `json:"commit_id"`
	WindowStart    time.Time  `json:"window_start"`
	WindowEnd      time.Time  `json:"window_end"`
	Resolved       bool       `json:"is_resolved"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// WeeklyReport is a stored report, one row per (user, start, end),
// overwritten on regeneration. Document holds the full report JSON.
type WeeklyReport struct {
	ID             int64
	UserID         string
	StartDate      time.Time
	EndDate        time.Time
	TotalTickets   int
	TotalCommits   int
	Completed      int
	TimeLoggedSecs int
	Unlinked       int
	NonCode        int
	SummaryText    string
	Markdown       string
	Document       []byte
	CreatedAt      time.Time
}
