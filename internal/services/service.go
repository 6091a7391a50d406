/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/github"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/jira"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

// Store is the persistence surface the services consume. *repo.Repository
// implements it; tests substitute an in-memory fake.
type Store interface {
	ActiveUserIDs(ctx context.Context) ([]string, error)

	UpsertRepo(ctx context.Context, r domain.Repo) (int64, error)
	TrackedRepos(ctx context.Context, userID string) ([]domain.Repo, error)
	TouchRepoSynced(ctx context.Context, repoID int64, at time.Time) error

	UpsertTicket(ctx context.Context, t domain.Ticket) (int64, error)
	TicketByKey(ctx context.Context, userID, key string) (*domain.Ticket, error)
	TicketsByIDs(ctx context.Context, userID string, ids []int64) (map[int64]domain.Ticket, error)

	UpsertCommit(ctx context.Context, c domain.Commit) (int64, error)
	CommitsInWindow(ctx context.Context, userID string, since, until time.Time) ([]domain.Commit, error)

	BulkInsertActivities(ctx context.Context, acts []domain.TicketActivity) error
	ActivitiesInWindow(ctx context.Context, userID string, since, until time.Time) ([]domain.TicketActivity, error)

	BulkInsertWorklogs(ctx context.Context, wl []domain.Worklog) error
	WorklogsInWindow(ctx context.Context, userID string, since, until time.Time) ([]domain.Worklog, error)

	InsertAlert(ctx context.Context, a domain.HygieneAlert) (domain.HygieneAlert, bool, error)
	UnresolvedAlerts(ctx context.Context, userID string, since, until time.Time) ([]domain.HygieneAlert, error)
	AlertSubjects(ctx context.Context, userID string, alerts []domain.HygieneAlert) (map[int64]string, map[int64]string, error)
	ResolveAlerts(ctx context.Context, userID string, ids []int64) (int, error)

	UpsertWeeklyReport(ctx context.Context, w domain.WeeklyReport) (int64, error)
	LatestWeeklyReport(ctx context.Context, userID string) (*domain.WeeklyReport, error)
	WeeklyReportByRange(ctx context.Context, userID string, start, end time.Time) (*domain.WeeklyReport, error)
	ListWeeklyReports(ctx context.Context, userID string) ([]domain.WeeklyReport, error)
}

type GitHubAPI interface {
	Repos(ctx context.Context, token string) ([]github.Repo, error)
	Commits(ctx context.Context, token, repoFullName string, since, until time.Time) ([]github.Commit, error)
}

type JiraAPI interface {
	IssuesUpdatedBetween(ctx context.Context, token string, since, until time.Time) ([]jira.Issue, error)
	Worklogs(ctx context.Context, token, key string) ([]jira.Worklog, error)
}

// Summarizer produces the report prose. Generation falls back to a
// templated sentence when it errors, so implementations may fail freely.
type Summarizer interface {
	Summarize(ctx context.Context, doc domain.ReportDocument) (string, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessagePlain(ctx context.Context, chatID int64, text string) error
}

// TokenSource resolves a user's access token for a provider ("github" or
// "jira"). A missing token is domain.ErrNotConnected.
type TokenSource interface {
	AccessToken(ctx context.Context, userID, provider string) (string, error)
}

// StaticTokens serves the same configured tokens for every user, for
// single-tenant deployments driven purely by environment config.
type StaticTokens struct {
	Github string
	Jira   string
}

func (s StaticTokens) AccessToken(_ context.Context, _, provider string) (string, error) {
	var tok string
	switch provider {
	case "github":
		tok = s.Github
	case "jira":
		tok = s.Jira
	}
	if strings.TrimSpace(tok) == "" {
		return "", fmt.Errorf("%s: %w", provider, domain.ErrNotConnected)
	}
	return tok, nil
}

type Service struct {
	cfg        config.Config
	log        zerolog.Logger
	store      Store
	github     GitHubAPI
	jira       JiraAPI
	summarizer Summarizer
	tokens     TokenSource
	tg         Notifier
}

func New(cfg config.Config, log zerolog.Logger, store Store, gh GitHubAPI, jr JiraAPI, sum Summarizer, tokens TokenSource, tg Notifier) *Service {
	return &Service{cfg: cfg, log: log, store: store, github: gh, jira: jr, summarizer: sum, tokens: tokens, tg: tg}
}

// WeekBounds returns the Monday 00:00 start and Sunday 23:59:59 end of the
// week containing t, in t's location.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -(wd - 1))
	end := start.AddDate(0, 0, 7).Add(-time.Second)
	return start, end
}

// DeliverSummary pushes a rendered report to the configured chats,
// chunked to Telegram's message limit. No-op without a notifier.
func (s *Service) DeliverSummary(ctx context.Context, markdown string) {
	if s.tg == nil || len(s.cfg.TelegramChatIDs) == 0 {
		return
	}
	for _, chatID := range s.cfg.TelegramChatIDs {
		for _, part := range chunkText(markdown, 3500) {
			if err := s.tg.SendMessagePlain(ctx, chatID, part); err != nil {
				s.log.Error().Err(err).Int64("chat_id", chatID).Msg("telegram delivery failed")
			}
		}
	}
}

func chunkText(s string, n int) []string {
	if n <= 0 || len(s) <= n {
		return []string{s}
	}
	var out []string
	for len(s) > n {
		cut := strings.LastIndex(s[:n], "\n")
		if cut <= 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = strings.TrimLeft(s[cut:], "\n")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
