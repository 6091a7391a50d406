/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

func isDoneStatus(status string) bool {
	switch strings.ToLower(status) {
	case "done", "closed", "resolved":
		return true
	}
	return false
}

// ClassifyEffort rates one ticket's effort against its output. Pure: same
// inputs always give the same result. Rules apply top-down, first match
// wins; comparisons use full-precision hours, rounding is display-only.
func ClassifyEffort(commitsCount, timeLoggedSeconds, statusChangesCount int, currentStatus string) domain.EffortResult {
	hours := float64(timeLoggedSeconds) / 3600

	classification := domain.EffortNormal
	var insights []string
	switch {
	case isDoneStatus(currentStatus) && commitsCount <= 3 && hours <= 2:
		classification = domain.EffortFastWin
		insights = append(insights, "Quick turnaround with minimal effort")
	case commitsCount > 5 && statusChangesCount == 0:
		classification = domain.EffortHighEffortLowOutput
		insights = append(insights, "Multiple commits but no status progress")
	case hours > 8 && statusChangesCount == 0:
		classification = domain.EffortHighEffortLowOutput
		insights = append(insights, "Significant time logged but no status movement")
	case (commitsCount > 0 || hours > 0) && statusChangesCount == 0 && !isDoneStatus(currentStatus):
		classification = domain.EffortStalled
		insights = append(insights, "Work detected but ticket hasn't progressed")
	}

	return domain.EffortResult{
		Classification: classification,
		Insights:       insights,
		Metrics: domain.EffortMetrics{
			Commits:         commitsCount,
			TimeLoggedHours: math.Round(hours*10) / 10,
			StatusChanges:   statusChangesCount,
		},
	}
}

func (w *windowSnapshot) ticketEffort(t domain.Ticket) domain.TicketEffort {
	commits := len(w.commitsByTicket[t.ID])
	statusChanges := len(w.statusByTicket[t.ID])
	seconds := w.secondsByTicket[t.ID]
	return domain.TicketEffort{
		Key:                t.Key,
		Title:              t.Title,
		Status:             t.Status,
		CommitsCount:       commits,
		StatusChangesCount: statusChanges,
		TimeLoggedSeconds:  seconds,
		TimeLoggedDisplay:  domain.FormatTimeSpent(seconds),
		Analysis:           ClassifyEffort(commits, seconds, statusChanges, t.Status),
	}
}

func (w *windowSnapshot) effortAnalysis() domain.EffortAnalysis {
	var out domain.EffortAnalysis
	for _, id := range w.orderedTicketIDs {
		t, ok := w.tickets[id]
		if !ok {
			continue
		}
		te := w.ticketEffort(t)
		switch te.Analysis.Classification {
		case domain.EffortFastWin:
			out.Details.FastWins = append(out.Details.FastWins, te)
		case domain.EffortHighEffortLowOutput:
			out.Details.HighEffortLowOutput = append(out.Details.HighEffortLowOutput, te)
		case domain.EffortStalled:
			out.Details.Stalled = append(out.Details.Stalled, te)
		default:
			out.Details.Normal = append(out.Details.Normal, te)
		}
	}
	out.Summary = domain.EffortCounts{
		FastWinsCount:            len(out.Details.FastWins),
		HighEffortLowOutputCount: len(out.Details.HighEffortLowOutput),
		StalledCount:             len(out.Details.Stalled),
		NormalCount:              len(out.Details.Normal),
	}
	return out
}

// EffortAnalysis classifies every ticket touched in [since, until] and
// buckets the results.
func (s *Service) EffortAnalysis(ctx context.Context, userID string, since, until time.Time) (domain.EffortAnalysis, error) {
	w, err := s.loadWindow(ctx, userID, since, until)
	if err != nil {
		return domain.EffortAnalysis{}, err
	}
	return w.effortAnalysis(), nil
}

// ClassifyTicketEffort classifies a single ticket by key over the window.
func (s *Service) ClassifyTicketEffort(ctx context.Context, userID, key string, since, until time.Time) (domain.TicketEffort, error) {
	t, err := s.store.TicketByKey(ctx, userID, key)
	if err != nil {
		return domain.TicketEffort{}, err
	}
	if t == nil {
		return domain.TicketEffort{}, fmt.Errorf("ticket %s: %w", key, domain.ErrNotFound)
	}
	w, err := s.loadWindow(ctx, userID, since, until)
	if err != nil {
		return domain.TicketEffort{}, err
	}
	return w.ticketEffort(*t), nil
}
