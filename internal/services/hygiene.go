/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// DetectHygiene runs the four hygiene scans over [since, until] and
// persists any alerts not already present. The storage layer's dedup key
// makes repeated runs idempotent; only newly created alerts are returned.
//
// Scans:
//  1. commit_no_ticket: unlinked commits
//  2. status_no_commit: status changes on tickets with no commits
//  3. time_no_code: worklogs on tickets with no commits
//  4. stalled_ticket: commits on tickets with no status changes
func (s *Service) DetectHygiene(ctx context.Context, userID string, since, until time.Time) ([]domain.HygieneAlert, error) {
	w, err := s.loadWindow(ctx, userID, since, until)
	if err != nil {
		return nil, err
	}

	var created []domain.HygieneAlert
	emit := func(a domain.HygieneAlert) error {
		a.UserID = userID
		a.WindowStart = since
		a.WindowEnd = until
		stored, isNew, err := s.store.InsertAlert(ctx, a)
		if err != nil {
			return err
		}
		if isNew {
			created = append(created, stored)
		}
		return nil
	}

	for _, c := range w.unlinkedCommits() {
		commitID := c.ID
		err := emit(domain.HygieneAlert{
			Type:           domain.AlertCommitNoTicket,
			Severity:       domain.SeverityWarning,
			Title:          "Commit without ticket reference",
			Description:    fmt.Sprintf("Commit %s in %s has no Jira ticket reference.", shortSHA(c.SHA), c.RepoFullName),
			Recommendation: "Add a ticket reference (e.g., PROJ-123) to your commit messages for better tracking.",
			CommitID:       &commitID,
		})
		if err != nil {
			return nil, err
		}
	}

	for ticketID, changes := range w.statusByTicket {
		if len(changes) == 0 || len(w.commitsByTicket[ticketID]) > 0 {
			continue
		}
		t, ok := w.tickets[ticketID]
		if !ok {
			continue
		}
		id := ticketID
		err := emit(domain.HygieneAlert{
			Type:           domain.AlertStatusNoCommit,
			Severity:       domain.SeverityInfo,
			Title:          "Status change without commits",
			Description:    fmt.Sprintf("Ticket %s had status changes but no associated commits.", t.Key),
			Recommendation: "This may indicate non-code work like design or documentation. Consider logging this as part of your workflow.",
			TicketID:       &id,
		})
		if err != nil {
			return nil, err
		}
	}

	for ticketID, logs := range w.worklogsByTicket {
		if len(logs) == 0 || len(w.commitsByTicket[ticketID]) > 0 {
			continue
		}
		t, ok := w.tickets[ticketID]
		if !ok {
			continue
		}
		id := ticketID
		err := emit(domain.HygieneAlert{
			Type:           domain.AlertTimeNoCode,
			Severity:       domain.SeverityInfo,
			Title:          "Time logged without code",
			Description:    fmt.Sprintf("Time was logged on %s but no commits were made.", t.Key),
			Recommendation: "If this was non-coding work, this is fine. Otherwise, ensure commits reference the ticket.",
			TicketID:       &id,
		})
		if err != nil {
			return nil, err
		}
	}

	for ticketID, commits := range w.commitsByTicket {
		if len(commits) == 0 || len(w.statusByTicket[ticketID]) > 0 {
			continue
		}
		t, ok := w.tickets[ticketID]
		if !ok {
			continue
		}
		id := ticketID
		err := emit(domain.HygieneAlert{
			Type:           domain.AlertStalledTicket,
			Severity:       domain.SeverityWarning,
			Title:          "Stalled ticket",
			Description:    fmt.Sprintf("Ticket %s has commits but no status changes.", t.Key),
			Recommendation: "Consider updating the ticket status to reflect your progress.",
			TicketID:       &id,
		})
		if err != nil {
			return nil, err
		}
	}

	return created, nil
}

// HygieneSummary aggregates the window's unresolved alerts: total, counts
// per type, and the 20 most recent rendered for display.
func (s *Service) HygieneSummary(ctx context.Context, userID string, since, until time.Time) (domain.HygieneSummary, error) {
	alerts, err := s.store.UnresolvedAlerts(ctx, userID, since, until)
	if err != nil {
		return domain.HygieneSummary{}, err
	}
	keys, shas, err := s.store.AlertSubjects(ctx, userID, alerts)
	if err != nil {
		return domain.HygieneSummary{}, err
	}

	summary := domain.HygieneSummary{
		TotalAlerts: len(alerts),
		ByType:      map[string]int{},
		Alerts:      []domain.AlertLine{},
	}
	for _, a := range alerts {
		summary.ByType[string(a.Type)]++
	}
	display := alerts
	if len(display) > 20 {
		display = display[:20]
	}
	for _, a := range display {
		line := domain.AlertLine{
			ID:             a.ID,
			Type:           string(a.Type),
			Severity:       string(a.Severity),
			Title:          a.Title,
			Description:    a.Description,
			Recommendation: a.Recommendation,
		}
		if a.TicketID != nil {
			if k, ok := keys[*a.TicketID]; ok {
				line.TicketKey = &k
			}
		}
		if a.CommitID != nil {
			if sha, ok := shas[*a.CommitID]; ok {
				short := shortSHA(sha)
				line.CommitSHA = &short
			}
		}
		summary.Alerts = append(summary.Alerts, line)
	}
	return summary, nil
}

// ResolveAlerts marks the user's alerts resolved, skipping ones already
// resolved or belonging to someone else. Returns how many changed.
func (s *Service) ResolveAlerts(ctx context.Context, userID string, ids []int64) (int, error) {
	return s.store.ResolveAlerts(ctx, userID, ids)
}
