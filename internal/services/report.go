/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

var completedStatusPattern = regexp.MustCompile(`(?i)(done|closed|resolved|complete)`)

const displayLimit = 10

// GenerateReport assembles the full report document for [since, until].
// Persisting new hygiene alerts is the only lasting side effect, and that
// is idempotent; everything else is computed fresh from the window.
func (s *Service) GenerateReport(ctx context.Context, userID string, since, until time.Time, syncFirst bool) (domain.ReportDocument, error) {
	if syncFirst {
		if _, err := s.SyncRange(ctx, userID, since, until); err != nil {
			s.log.Warn().Err(err).Str("user", userID).Msg("sync before report failed")
		}
	}

	w, err := s.loadWindow(ctx, userID, since, until)
	if err != nil {
		return domain.ReportDocument{}, err
	}

	doc := domain.ReportDocument{
		DateRange: domain.DateRange{
			Start: since.Format("2006-01-02"),
			End:   until.Format("2006-01-02"),
		},
		Stats:           w.stats(),
		Tickets:         w.ticketDetails(),
		UnlinkedCommits: w.unlinkedCommitList(),
	}

	// side effect: persist any newly detected alerts before summarizing
	if _, err := s.DetectHygiene(ctx, userID, since, until); err != nil {
		return domain.ReportDocument{}, err
	}
	doc.Hygiene, err = s.HygieneSummary(ctx, userID, since, until)
	if err != nil {
		return domain.ReportDocument{}, err
	}
	doc.EffortAnalysis = w.effortAnalysis()

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, doc)
		if err == nil && strings.TrimSpace(summary) != "" {
			doc.Summary = summary
		} else {
			if err != nil {
				s.log.Warn().Err(err).Msg("summarizer failed, using fallback")
			}
			doc.Summary = fallbackSummary(doc.Stats, doc.DateRange)
		}
	} else {
		doc.Summary = fallbackSummary(doc.Stats, doc.DateRange)
	}

	doc.Markdown = renderMarkdown(doc, time.Now().UTC())
	return doc, nil
}

func (w *windowSnapshot) stats() domain.ReportStats {
	st := domain.ReportStats{
		TotalCommits: len(w.commits),
		TotalTickets: len(w.orderedTicketIDs),
	}
	for _, c := range w.commits {
		if c.Unlinked {
			st.UnlinkedCommits++
		}
	}
	completed := map[int64]struct{}{}
	for _, a := range w.activities {
		sc := a.StatusChangePayload()
		if sc == nil {
			continue
		}
		if completedStatusPattern.MatchString(sc.To) {
			completed[a.TicketID] = struct{}{}
		}
		// counted per status-change row: a ticket with commits elsewhere in
		// time still contributes rows when none fall inside this window
		if len(w.commitsByTicket[a.TicketID]) == 0 {
			st.NonCodeActivities++
		}
	}
	st.TicketsCompleted = len(completed)
	for _, wl := range w.worklogs {
		st.TotalTimeLoggedSeconds += wl.Seconds
	}
	st.TotalTimeLoggedDisplay = domain.FormatTimeSpent(st.TotalTimeLoggedSeconds)
	return st
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (w *windowSnapshot) ticketDetails() []domain.TicketDetail {
	out := make([]domain.TicketDetail, 0, len(w.orderedTicketIDs))
	for _, id := range w.orderedTicketIDs {
		t, ok := w.tickets[id]
		if !ok {
			continue
		}
		commits := w.commitsByTicket[id]
		seconds := w.secondsByTicket[id]

		detail := domain.TicketDetail{
			ID:                t.ID,
			Key:               t.Key,
			Title:             t.Title,
			Status:            t.Status,
			URL:               t.URL,
			CommitsCount:      len(commits),
			Commits:           []domain.CommitLine{},
			StatusChanges:     []domain.StatusChangeLine{},
			CommentsCount:     w.commentsByTicket[id],
			TimeLoggedSeconds: seconds,
			TimeLoggedDisplay: domain.FormatTimeSpent(seconds),
			Tags:              []string{},
		}
		for i, c := range commits {
			if i == displayLimit {
				break
			}
			detail.Commits = append(detail.Commits, domain.CommitLine{
				SHA:         shortSHA(c.SHA),
				Message:     truncate(c.Message, 100),
				CommittedAt: c.CommittedAt.Format(time.RFC3339),
			})
		}
		for _, a := range w.statusByTicket[id] {
			sc := a.StatusChangePayload()
			if sc == nil {
				continue
			}
			detail.StatusChanges = append(detail.StatusChanges, domain.StatusChangeLine{
				From: sc.From,
				To:   sc.To,
				At:   a.At.Format(time.RFC3339),
			})
		}
		if len(commits) == 0 && (len(w.statusByTicket[id]) > 0 || len(w.worklogsByTicket[id]) > 0) {
			detail.Tags = append(detail.Tags, "non-code-activity")
		}
		out = append(out, detail)
	}
	// most active first; ties keep enumeration order
	sort.SliceStable(out, func(i, j int) bool { return out[i].CommitsCount > out[j].CommitsCount })
	return out
}

func (w *windowSnapshot) unlinkedCommitList() []domain.UnlinkedCommit {
	out := []domain.UnlinkedCommit{}
	for _, c := range w.unlinkedCommits() {
		if len(out) == displayLimit {
			break
		}
		out = append(out, domain.UnlinkedCommit{
			SHA:         shortSHA(c.SHA),
			Message:     truncate(c.Message, 100),
			Repository:  c.RepoFullName,
			CommittedAt: c.CommittedAt.Format(time.RFC3339),
			URL:         c.URL,
			Tag:         "unlinked-work",
		})
	}
	return out
}

// fallbackSummary builds the deterministic sentence used whenever the
// summarizer is unavailable, from stats alone.
func fallbackSummary(stats domain.ReportStats, dr domain.DateRange) string {
	parts := []string{fmt.Sprintf("Between %s and %s", dr.Start, dr.End)}
	if stats.TotalTickets > 0 {
		parts = append(parts, fmt.Sprintf("you worked on %d ticket(s)", stats.TotalTickets))
	}
	if stats.TotalCommits > 0 {
		parts = append(parts, fmt.Sprintf("made %d commit(s)", stats.TotalCommits))
	}
	if stats.TicketsCompleted > 0 {
		parts = append(parts, fmt.Sprintf("completed %d ticket(s)", stats.TicketsCompleted))
	}
	if stats.TotalTimeLoggedDisplay != "" {
		parts = append(parts, fmt.Sprintf("logged %s", stats.TotalTimeLoggedDisplay))
	}
	if len(parts) == 1 {
		return parts[0] + ", no significant activity was recorded."
	}
	return parts[0] + ", " + strings.Join(parts[1:], ", ") + "."
}

// renderMarkdown produces the human-readable rendition with a fixed
// section order: title, summary, statistics, tickets, unlinked work,
// hygiene alerts, effort analysis, footer.
func renderMarkdown(doc domain.ReportDocument, now time.Time) string {
	var lines []string
	add := func(s string) { lines = append(lines, s) }

	add(fmt.Sprintf("# Work Report: %s to %s", doc.DateRange.Start, doc.DateRange.End))
	add("")

	add("## Summary")
	if doc.Summary != "" {
		add(doc.Summary)
	} else {
		add("No summary available.")
	}
	add("")

	add("## Statistics")
	add(fmt.Sprintf("- **Tickets Worked On:** %d", doc.Stats.TotalTickets))
	add(fmt.Sprintf("- **Commits Made:** %d", doc.Stats.TotalCommits))
	add(fmt.Sprintf("- **Tickets Completed:** %d", doc.Stats.TicketsCompleted))
	add(fmt.Sprintf("- **Time Logged:** %s", doc.Stats.TotalTimeLoggedDisplay))
	add(fmt.Sprintf("- **Unlinked Commits:** %d", doc.Stats.UnlinkedCommits))
	add(fmt.Sprintf("- **Non-Code Activities:** %d", doc.Stats.NonCodeActivities))
	add("")

	if len(doc.Tickets) > 0 {
		add("## Tickets")
		for i, t := range doc.Tickets {
			if i == displayLimit {
				break
			}
			var tags []string
			for _, tag := range t.Tags {
				tags = append(tags, "`"+tag+"`")
			}
			add(fmt.Sprintf("### [%s](%s): %s", t.Key, t.URL, t.Title))
			add(fmt.Sprintf("**Status:** %s | **Commits:** %d | **Time:** %s %s",
				t.Status, t.CommitsCount, t.TimeLoggedDisplay, strings.Join(tags, " ")))
			for _, sc := range t.StatusChanges {
				add(fmt.Sprintf("  - Status: %s → %s", sc.From, sc.To))
			}
			add("")
		}
	}

	if len(doc.UnlinkedCommits) > 0 {
		add("## Unlinked Work")
		add("*Commits without Jira ticket references:*")
		add("")
		for i, c := range doc.UnlinkedCommits {
			if i == displayLimit {
				break
			}
			add(fmt.Sprintf("- `%s` %s (%s)", c.SHA, c.Message, c.Repository))
		}
		add("")
	}

	if doc.Hygiene.TotalAlerts > 0 {
		add("## Hygiene Alerts")
		add(fmt.Sprintf("*%d issues detected*", doc.Hygiene.TotalAlerts))
		add("")
		for i, a := range doc.Hygiene.Alerts {
			if i == 5 {
				break
			}
			add(fmt.Sprintf("- **%s**: %s", a.Title, a.Description))
		}
		add("")
	}

	effort := doc.EffortAnalysis.Summary
	if effort.FastWinsCount > 0 || effort.HighEffortLowOutputCount > 0 {
		add("## Effort Analysis")
		if effort.FastWinsCount > 0 {
			add(fmt.Sprintf("✅ **Fast Wins:** %d tickets", effort.FastWinsCount))
		}
		if effort.HighEffortLowOutputCount > 0 {
			add(fmt.Sprintf("⚠️ **High Effort, Low Output:** %d tickets", effort.HighEffortLowOutputCount))
		}
		if effort.StalledCount > 0 {
			add(fmt.Sprintf("🔄 **Stalled:** %d tickets", effort.StalledCount))
		}
		add("")
	}

	add("---")
	add(fmt.Sprintf("*Generated on %s*", now.Format("2006-01-02 15:04 UTC")))
	return strings.Join(lines, "\n")
}

// CreateWeeklyReport generates the window's report and stores it, one row
// per (user, start, end); regenerating overwrites.
func (s *Service) CreateWeeklyReport(ctx context.Context, userID string, start, end time.Time) (domain.WeeklyReport, error) {
	doc, err := s.GenerateReport(ctx, userID, start, end, true)
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	w := domain.WeeklyReport{
		UserID:         userID,
		StartDate:      start,
		EndDate:        end,
		TotalTickets:   doc.Stats.TotalTickets,
		TotalCommits:   doc.Stats.TotalCommits,
		Completed:      doc.Stats.TicketsCompleted,
		TimeLoggedSecs: doc.Stats.TotalTimeLoggedSeconds,
		Unlinked:       doc.Stats.UnlinkedCommits,
		NonCode:        doc.Stats.NonCodeActivities,
		SummaryText:    doc.Summary,
		Markdown:       doc.Markdown,
		Document:       raw,
	}
	id, err := s.store.UpsertWeeklyReport(ctx, w)
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	w.ID = id
	return w, nil
}

// LatestReport returns the most recent stored weekly report.
func (s *Service) LatestReport(ctx context.Context, userID string) (*domain.WeeklyReport, error) {
	w, err := s.store.LatestWeeklyReport(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("weekly report: %w", domain.ErrNotFound)
	}
	return w, nil
}

func (s *Service) ListReports(ctx context.Context, userID string) ([]domain.WeeklyReport, error) {
	return s.store.ListWeeklyReports(ctx, userID)
}

// StoredReport returns the stored report for an exact window, or nil.
func (s *Service) StoredReport(ctx context.Context, userID string, start, end time.Time) (*domain.WeeklyReport, error) {
	return s.store.WeeklyReportByRange(ctx, userID, start, end)
}
