/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/github"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

// SyncResult counts what a sync pass ingested. Partial results are
// normal: one failing repo or provider does not void the rest.
type SyncResult struct {
	Repos      int
	Commits    int
	Tickets    int
	Activities int
	Worklogs   int
}

// SyncRange pulls commits and ticket activity for [since, until] into the
// store. A provider without a token is skipped; other provider failures
// are joined into the returned error alongside whatever did land.
func (s *Service) SyncRange(ctx context.Context, userID string, since, until time.Time) (SyncResult, error) {
	var res SyncResult
	var errs []error

	// jira first: commit linking resolves against tickets already stored
	if err := s.syncJira(ctx, userID, since, until, &res); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			s.log.Info().Str("user", userID).Msg("jira not connected, skipping")
		} else {
			errs = append(errs, err)
		}
	}
	if err := s.syncGithub(ctx, userID, since, until, &res); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			s.log.Info().Str("user", userID).Msg("github not connected, skipping")
		} else {
			errs = append(errs, err)
		}
	}

	s.log.Info().
		Str("user", userID).
		Int("repos", res.Repos).
		Int("commits", res.Commits).
		Int("tickets", res.Tickets).
		Int("activities", res.Activities).
		Int("worklogs", res.Worklogs).
		Msg("sync range done")
	return res, errors.Join(errs...)
}

func (s *Service) syncGithub(ctx context.Context, userID string, since, until time.Time, res *SyncResult) error {
	token, err := s.tokens.AccessToken(ctx, userID, "github")
	if err != nil {
		return err
	}

	repos, err := s.github.Repos(ctx, token)
	if err != nil {
		return err
	}
	for _, gr := range repos {
		_, err := s.store.UpsertRepo(ctx, domain.Repo{
			UserID:    userID,
			GithubID:  gr.ID,
			Name:      gr.Name,
			FullName:  gr.FullName,
			URL:       gr.HTMLURL,
			IsPrivate: gr.Private,
			IsTracked: true,
		})
		if err != nil {
			return err
		}
		res.Repos++
	}

	tracked, err := s.store.TrackedRepos(ctx, userID)
	if err != nil {
		return err
	}

	// fetch concurrently, persist serially
	type repoCommits struct {
		repo    domain.Repo
		commits []github.Commit
		err     error
	}
	workers := s.cfg.SyncWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	fetched := make([]repoCommits, len(tracked))
	var wg sync.WaitGroup
	for i, rp := range tracked {
		wg.Add(1)
		go func(i int, rp domain.Repo) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			commits, err := s.github.Commits(ctx, token, rp.FullName, since, until)
			fetched[i] = repoCommits{repo: rp, commits: commits, err: err}
		}(i, rp)
	}
	wg.Wait()

	for _, rc := range fetched {
		rp := rc.repo
		if rc.err != nil {
			// one bad repo must not sink the others
			s.log.Error().Err(rc.err).Str("repo", rp.FullName).Msg("commit sync failed")
			continue
		}
		for _, gc := range rc.commits {
			c := domain.Commit{
				UserID:       userID,
				RepoID:       rp.ID,
				RepoFullName: rp.FullName,
				SHA:          gc.SHA,
				Message:      gc.Message,
				AuthorName:   gc.AuthorName,
				AuthorEmail:  gc.AuthorEmail,
				CommittedAt:  gc.CommittedAt,
				URL:          gc.URL,
				Additions:    gc.Additions,
				Deletions:    gc.Deletions,
				FilesChanged: gc.FilesChanged,
			}
			if err := s.linkCommit(ctx, &c); err != nil {
				s.log.Error().Err(err).Str("sha", c.SHA).Msg("commit link failed")
				continue
			}
			if _, err := s.store.UpsertCommit(ctx, c); err != nil {
				s.log.Error().Err(err).Str("sha", c.SHA).Msg("commit upsert failed")
				continue
			}
			res.Commits++
		}
		if err := s.store.TouchRepoSynced(ctx, rp.ID, time.Now()); err != nil {
			s.log.Error().Err(err).Str("repo", rp.FullName).Msg("repo sync stamp failed")
		}
	}
	return nil
}

func (s *Service) syncJira(ctx context.Context, userID string, since, until time.Time, res *SyncResult) error {
	token, err := s.tokens.AccessToken(ctx, userID, "jira")
	if err != nil {
		return err
	}

	issues, err := s.jira.IssuesUpdatedBetween(ctx, token, since, until)
	if err != nil {
		return err
	}

	inWindow := func(t time.Time) bool {
		return !t.Before(since) && !t.After(until)
	}

	var activities []domain.TicketActivity
	var worklogs []domain.Worklog
	for _, iss := range issues {
		ticketID, err := s.store.UpsertTicket(ctx, domain.Ticket{
			UserID:        userID,
			JiraID:        iss.ID,
			Key:           iss.Key,
			Title:         iss.Title,
			Status:        iss.Status,
			IssueType:     iss.IssueType,
			URL:           iss.URL,
			CreatedAtJira: iss.Created,
			UpdatedAtJira: iss.Updated,
		})
		if err != nil {
			s.log.Error().Err(err).Str("key", iss.Key).Msg("ticket upsert failed")
			continue
		}
		res.Tickets++

		for _, grp := range iss.Changelog {
			if !inWindow(grp.Created) {
				continue
			}
			for _, item := range grp.Items {
				var payload domain.ActivityPayload
				suffix := item.FieldID
				if suffix == "" {
					suffix = item.Field
				}
				if item.Field == "status" || item.FieldID == "status" {
					payload = domain.StatusChange{From: item.From, To: item.To}
				} else {
					payload = domain.FieldChange{Field: item.Field, From: item.From, To: item.To}
				}
				activities = append(activities, domain.TicketActivity{
					UserID:   userID,
					TicketID: ticketID,
					JiraID:   grp.ID + "_" + suffix,
					Author:   grp.Author,
					At:       grp.Created,
					Payload:  payload,
				})
			}
		}
		for _, cm := range iss.Comments {
			if !inWindow(cm.Created) {
				continue
			}
			activities = append(activities, domain.TicketActivity{
				UserID:   userID,
				TicketID: ticketID,
				JiraID:   "comment_" + cm.ID,
				Author:   cm.Author,
				At:       cm.Created,
				Payload:  domain.CommentActivity{Body: cm.Body},
			})
		}

		wls, err := s.jira.Worklogs(ctx, token, iss.Key)
		if err != nil {
			s.log.Error().Err(err).Str("key", iss.Key).Msg("worklog fetch failed")
			continue
		}
		for _, wl := range wls {
			if !inWindow(wl.Started) {
				continue
			}
			worklogs = append(worklogs, domain.Worklog{
				UserID:    userID,
				TicketID:  ticketID,
				JiraID:    wl.ID,
				Author:    wl.Author,
				Seconds:   wl.Seconds,
				StartedAt: wl.Started,
			})
		}
	}

	if err := s.store.BulkInsertActivities(ctx, activities); err != nil {
		return err
	}
	res.Activities += len(activities)
	if err := s.store.BulkInsertWorklogs(ctx, worklogs); err != nil {
		return err
	}
	res.Worklogs += len(worklogs)
	return nil
}
