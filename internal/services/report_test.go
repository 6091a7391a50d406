package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

// seedReportWindow builds a week with mixed activity:
//   - PRJ-1: five commits, moved to Done
//   - PRJ-2: no commits, moved twice ending in Done (non-code work)
//   - PRJ-3: two commits, no status changes
//   - PRJ-4: two hours logged, nothing else
//   - three unlinked commits
func seedReportWindow(t *testing.T, st *memStore, since time.Time) {
	t.Helper()
	ctx := context.Background()
	at := since.Add(24 * time.Hour)

	t1, _ := st.UpsertTicket(ctx, domain.Ticket{UserID: "u1", JiraID: "1", Key: "PRJ-1", Title: "Ship login", Status: "Done", URL: "https://jira.local/browse/PRJ-1"})
	t2, _ := st.UpsertTicket(ctx, domain.Ticket{UserID: "u1", JiraID: "2", Key: "PRJ-2", Title: "Write RFC", Status: "Done", URL: "https://jira.local/browse/PRJ-2"})
	t3, _ := st.UpsertTicket(ctx, domain.Ticket{UserID: "u1", JiraID: "3", Key: "PRJ-3", Title: "Refactor cache", Status: "In Progress", URL: "https://jira.local/browse/PRJ-3"})
	t4, _ := st.UpsertTicket(ctx, domain.Ticket{UserID: "u1", JiraID: "4", Key: "PRJ-4", Title: "Support rotation", Status: "In Progress", URL: "https://jira.local/browse/PRJ-4"})

	var id int64 = 300
	addCommit := func(ticketID *int64, sha, msg string, offset time.Duration) {
		id++
		st.commits = append(st.commits, domain.Commit{
			ID: id, UserID: "u1", RepoFullName: "acme/api", SHA: sha, Message: msg,
			TicketID: ticketID, Unlinked: ticketID == nil, CommittedAt: at.Add(offset),
		})
	}
	for i := 0; i < 5; i++ {
		addCommit(&t1, fmt.Sprintf("a%07d", i), fmt.Sprintf("PRJ-1 step %d", i), time.Duration(i)*time.Hour)
	}
	for i := 0; i < 2; i++ {
		addCommit(&t3, fmt.Sprintf("b%07d", i), fmt.Sprintf("PRJ-3 step %d", i), time.Duration(i)*time.Hour)
	}
	for i := 0; i < 3; i++ {
		addCommit(nil, fmt.Sprintf("c%07d", i), "hotfix without reference", time.Duration(i)*time.Hour)
	}

	_ = st.BulkInsertActivities(ctx, []domain.TicketActivity{
		{UserID: "u1", TicketID: t1, JiraID: "h1_status", At: at, Payload: domain.StatusChange{From: "In Progress", To: "Done"}},
		{UserID: "u1", TicketID: t2, JiraID: "h2_status", At: at, Payload: domain.StatusChange{From: "To Do", To: "In Progress"}},
		{UserID: "u1", TicketID: t2, JiraID: "h3_status", At: at.Add(time.Hour), Payload: domain.StatusChange{From: "In Progress", To: "Done"}},
	})
	_ = st.BulkInsertWorklogs(ctx, []domain.Worklog{
		{UserID: "u1", TicketID: t4, JiraID: "w4", Seconds: 7200, StartedAt: at},
	})
}

func TestGenerateReportStats(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	since := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7).Add(-time.Second)
	seedReportWindow(t, st, since)

	doc, err := svc.GenerateReport(context.Background(), "u1", since, until, false)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if doc.DateRange.Start != "2026-01-05" || doc.DateRange.End != "2026-01-11" {
		t.Fatalf("date range = %+v", doc.DateRange)
	}
	s := doc.Stats
	if s.TotalCommits != 10 {
		t.Fatalf("total_commits = %d, want 10", s.TotalCommits)
	}
	if s.UnlinkedCommits != 3 {
		t.Fatalf("unlinked_commits = %d, want 3", s.UnlinkedCommits)
	}
	if s.TotalTickets != 4 {
		t.Fatalf("total_tickets = %d, want 4", s.TotalTickets)
	}
	if s.TicketsCompleted != 2 {
		t.Fatalf("tickets_completed = %d, want 2", s.TicketsCompleted)
	}
	// both of PRJ-2's moves count: the ticket has no commits in the window
	if s.NonCodeActivities != 2 {
		t.Fatalf("non_code_activities = %d, want 2", s.NonCodeActivities)
	}
	if s.TotalTimeLoggedSeconds != 7200 || s.TotalTimeLoggedDisplay != "2h" {
		t.Fatalf("time logged = %d (%s)", s.TotalTimeLoggedSeconds, s.TotalTimeLoggedDisplay)
	}
}

func TestGenerateReportTicketDetails(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	since := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7).Add(-time.Second)
	seedReportWindow(t, st, since)

	doc, err := svc.GenerateReport(context.Background(), "u1", since, until, false)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if len(doc.Tickets) != 4 {
		t.Fatalf("tickets = %d, want 4", len(doc.Tickets))
	}
	// busiest first
	if doc.Tickets[0].Key != "PRJ-1" || doc.Tickets[0].CommitsCount != 5 {
		t.Fatalf("tickets[0] = %+v", doc.Tickets[0])
	}
	if doc.Tickets[1].Key != "PRJ-3" || doc.Tickets[1].CommitsCount != 2 {
		t.Fatalf("tickets[1] = %+v", doc.Tickets[1])
	}
	if got := doc.Tickets[0].Commits[0].SHA; len(got) != 7 {
		t.Fatalf("commit sha not shortened: %q", got)
	}
	if len(doc.Tickets[0].StatusChanges) != 1 || doc.Tickets[0].StatusChanges[0].To != "Done" {
		t.Fatalf("status changes = %+v", doc.Tickets[0].StatusChanges)
	}

	tagged := map[string][]string{}
	for _, td := range doc.Tickets {
		tagged[td.Key] = td.Tags
	}
	if len(tagged["PRJ-2"]) != 1 || tagged["PRJ-2"][0] != "non-code-activity" {
		t.Fatalf("PRJ-2 tags = %v", tagged["PRJ-2"])
	}
	if len(tagged["PRJ-4"]) != 1 || tagged["PRJ-4"][0] != "non-code-activity" {
		t.Fatalf("PRJ-4 tags = %v", tagged["PRJ-4"])
	}
	if len(tagged["PRJ-1"]) != 0 {
		t.Fatalf("PRJ-1 must not be tagged, got %v", tagged["PRJ-1"])
	}

	if len(doc.UnlinkedCommits) != 3 {
		t.Fatalf("unlinked list = %d, want 3", len(doc.UnlinkedCommits))
	}
	for _, uc := range doc.UnlinkedCommits {
		if uc.Tag != "unlinked-work" {
			t.Fatalf("unlinked tag = %q", uc.Tag)
		}
		if len(uc.SHA) != 7 {
			t.Fatalf("unlinked sha not shortened: %q", uc.SHA)
		}
	}
}

func TestFallbackSummary(t *testing.T) {
	dr := domain.DateRange{Start: "2026-01-05", End: "2026-01-11"}
	got := fallbackSummary(domain.ReportStats{
		TotalTickets:           2,
		TotalCommits:           3,
		TicketsCompleted:       1,
		TotalTimeLoggedDisplay: "2h",
	}, dr)
	want := "Between 2026-01-05 and 2026-01-11, you worked on 2 ticket(s), made 3 commit(s), completed 1 ticket(s), logged 2h."
	if got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}

	got = fallbackSummary(domain.ReportStats{TotalCommits: 4}, dr)
	if !strings.Contains(got, "made 4 commit(s)") {
		t.Fatalf("summary = %q", got)
	}
}

func TestRenderMarkdownSectionOrder(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	since := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7).Add(-time.Second)
	seedReportWindow(t, st, since)

	doc, err := svc.GenerateReport(context.Background(), "u1", since, until, false)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	md := doc.Markdown
	sections := []string{
		"# Work Report: 2026-01-05 to 2026-01-11",
		"## Summary",
		"## Statistics",
		"## Tickets",
		"## Unlinked Work",
		"## Hygiene Alerts",
		"## Effort Analysis",
		"---",
		"*Generated on ",
	}
	last := -1
	for _, sec := range sections {
		idx := strings.Index(md, sec)
		if idx < 0 {
			t.Fatalf("section %q missing:\n%s", sec, md)
		}
		if idx < last {
			t.Fatalf("section %q out of order", sec)
		}
		last = idx
	}
	if !strings.Contains(md, "- Status: In Progress → Done") {
		t.Fatalf("status change line missing:\n%s", md)
	}
	if !strings.Contains(md, "*Commits without Jira ticket references:*") {
		t.Fatalf("unlinked preamble missing")
	}
	// PRJ-2 closed with no code attached, which is the one fast win here
	if !strings.Contains(md, "✅ **Fast Wins:** 1 tickets") {
		t.Fatalf("fast wins line missing:\n%s", md)
	}
}

func TestRenderMarkdownEffortSection(t *testing.T) {
	doc := domain.ReportDocument{
		DateRange: domain.DateRange{Start: "2026-01-05", End: "2026-01-11"},
		EffortAnalysis: domain.EffortAnalysis{
			Summary: domain.EffortCounts{FastWinsCount: 2, StalledCount: 1},
		},
	}
	md := renderMarkdown(doc, time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC))
	if !strings.Contains(md, "✅ **Fast Wins:** 2 tickets") {
		t.Fatalf("fast wins line missing:\n%s", md)
	}
	if !strings.Contains(md, "🔄 **Stalled:** 1 tickets") {
		t.Fatalf("stalled line missing:\n%s", md)
	}
	if !strings.HasSuffix(md, "*Generated on 2026-02-03 09:00 UTC*") {
		t.Fatalf("footer = %q", md[strings.LastIndex(md, "\n")+1:])
	}
}

func TestCreateWeeklyReportRoundTrip(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	since := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7).Add(-time.Second)
	seedReportWindow(t, st, since)
	ctx := context.Background()

	first, err := svc.CreateWeeklyReport(ctx, "u1", since, until)
	if err != nil {
		t.Fatalf("CreateWeeklyReport: %v", err)
	}
	second, err := svc.CreateWeeklyReport(ctx, "u1", since, until)
	if err != nil {
		t.Fatalf("second CreateWeeklyReport: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("regeneration must overwrite, got ids %d and %d", first.ID, second.ID)
	}
	if len(st.reports) != 1 {
		t.Fatalf("stored reports = %d, want 1", len(st.reports))
	}

	var doc domain.ReportDocument
	if err := json.Unmarshal(second.Document, &doc); err != nil {
		t.Fatalf("stored document: %v", err)
	}
	if doc.Stats.TotalCommits != second.TotalCommits || doc.Stats.TicketsCompleted != second.Completed {
		t.Fatalf("stored stats diverge: %+v vs %+v", doc.Stats, second)
	}

	latest, err := svc.LatestReport(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if latest.ID != first.ID {
		t.Fatalf("latest = %d, want %d", latest.ID, first.ID)
	}
	if _, err := svc.LatestReport(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found for empty user, got %v", err)
	}
}

func TestWeekBounds(t *testing.T) {
	wed := time.Date(2026, 1, 7, 15, 30, 0, 0, time.UTC)
	start, end := WeekBounds(wed)
	if !start.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}
	// Sunday belongs to the week that started the previous Monday
	sun := time.Date(2026, 1, 11, 2, 0, 0, 0, time.UTC)
	start2, _ := WeekBounds(sun)
	if !start2.Equal(start) {
		t.Fatalf("sunday start = %v", start2)
	}
}
