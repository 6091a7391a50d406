package domain

import "fmt"

type EffortClass string

const (
	EffortFastWin             EffortClass = "fast_win"
	EffortHighEffortLowOutput EffortClass = "high_effort_low_output"
	EffortStalled             EffortClass = "stalled"
	EffortNormal              EffortClass = "normal"
)

// EffortResult is the outcome of classifying one ticket's effort vs
// output. Pure data, safe to serialize as-is.
type EffortResult struct {
	Classification EffortClass   `json:"classification"`
	Insights       []string      `json:"insights"`
	Metrics        EffortMetrics `json:"metrics"`
}

type EffortMetrics struct {
	Commits         int     `json:"commits"`
	TimeLoggedHours float64 `json:"time_logged_hours"`
	StatusChanges   int     `json:"status_changes"`
}

// ReportDocument is the full generated report as served to callers and
// stored alongside the weekly report row.
type ReportDocument struct {
	DateRange       DateRange        `json:"date_range"`
	Stats           ReportStats      `json:"stats"`
	Tickets         []TicketDetail   `json:"tickets"`
	UnlinkedCommits []UnlinkedCommit `json:"unlinked_commits"`
	Hygiene         HygieneSummary   `json:"hygiene"`
	EffortAnalysis  EffortAnalysis   `json:"effort_analysis"`
	Summary         string           `json:"summary"`
	Markdown        string           `json:"markdown"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ReportStats struct {
	TotalCommits           int    `json:"total_commits"`
	UnlinkedCommits        int    `json:"unlinked_commits"`
	TotalTickets           int    `json:"total_tickets"`
	TicketsCompleted       int    `json:"tickets_completed"`
	TotalTimeLoggedSeconds int    `json:"total_time_logged_seconds"`
	TotalTimeLoggedDisplay string `json:"total_time_logged_display"`
	NonCodeActivities      int    `json:"non_code_activities"`
}

type TicketDetail struct {
	ID                int64              `json:"id"`
	Key               string             `json:"key"`
	Title             string             `json:"title"`
	Status            string             `json:"status"`
	URL               string             `json:"url"`
	CommitsCount      int                `json:"commits_count"`
	Commits           []CommitLine       `json:"commits"`
	StatusChanges     []StatusChangeLine `json:"status_changes"`
	CommentsCount     int                `json:"comments_count"`
	TimeLoggedSeconds int                `json:"time_logged_seconds"`
	TimeLoggedDisplay string             `json:"time_logged_display"`
	Tags              []string           `json:"tags"`
}

type CommitLine struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	CommittedAt string `json:"committed_at"`
}

type StatusChangeLine struct {
	From string `json:"from"`
	To   string `json:"to"`
	At   string `json:"at"`
}

type UnlinkedCommit struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	Repository  string `json:"repository"`
	CommittedAt string `json:"committed_at"`
	URL         string `json:"url"`
	Tag         string `json:"tag"`
}

type HygieneSummary struct {
	TotalAlerts int            `json:"total_alerts"`
	ByType      map[string]int `json:"by_type"`
	Alerts      []AlertLine    `json:"alerts"`
}

type AlertLine struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	TicketKey      *string `json:"ticket_key"`
	CommitSHA      *string `json:"commit_sha"`
}

type EffortAnalysis struct {
	Summary EffortCounts  `json:"summary"`
	Details EffortBuckets `json:"details"`
}

type EffortCounts struct {
	FastWinsCount            int `json:"fast_wins_count"`
	HighEffortLowOutputCount int `json:"high_effort_low_output_count"`
	StalledCount             int `json:"stalled_count"`
	NormalCount              int `json:"normal_count"`
}

type EffortBuckets struct {
	FastWins            []TicketEffort `json:"fast_wins"`
	HighEffortLowOutput []TicketEffort `json:"high_effort_low_output"`
	Stalled             []TicketEffort `json:"stalled"`
	Normal              []TicketEffort `json:"normal"`
}

type TicketEffort struct {
	Key                string       `json:"key"`
	Title              string       `json:"title"`
	Status             string       `json:"status"`
	CommitsCount       int          `json:"commits_count"`
	StatusChangesCount int          `json:"status_changes_count"`
	TimeLoggedSeconds  int          `json:"time_logged_seconds"`
	TimeLoggedDisplay  string       `json:"time_logged_display"`
	Analysis           EffortResult `json:"analysis"`
}

// FormatTimeSpent renders a seconds total the way reports display it:
// "3h 20m", "3h", "45m", "0h".
func FormatTimeSpent(seconds int) string {
	if seconds == 0 {
		return "0h"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
