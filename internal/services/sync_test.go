package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/github"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/adapters/jira"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

type fakeGithub struct {
	repos   []github.Repo
	commits map[string][]github.Commit
}

func (f *fakeGithub) Repos(context.Context, string) ([]github.Repo, error) { return f.repos, nil }

func (f *fakeGithub) Commits(_ context.Context, _, repoFullName string, _, _ time.Time) ([]github.Commit, error) {
	return f.commits[repoFullName], nil
}

type fakeJira struct {
	issues   []jira.Issue
	worklogs map[string][]jira.Worklog
}

func (f *fakeJira) IssuesUpdatedBetween(context.Context, string, time.Time, time.Time) ([]jira.Issue, error) {
	return f.issues, nil
}

func (f *fakeJira) Worklogs(_ context.Context, _, key string) ([]jira.Worklog, error) {
	return f.worklogs[key], nil
}

func TestSyncRangeIngestsAndLinks(t *testing.T) {
	since := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7).Add(-time.Second)
	at := since.Add(24 * time.Hour)

	gh := &fakeGithub{
		repos: []github.Repo{{ID: 9001, Name: "api", FullName: "acme/api", HTMLURL: "https://github.com/acme/api"}},
		commits: map[string][]github.Commit{
			"acme/api": {
				{SHA: "aaa1111222233334444", Message: "PRJ-1 fix login", CommittedAt: at},
				{SHA: "bbb5555666677778888", Message: "tweak build", CommittedAt: at},
				{SHA: "ccc9999000011112222", Message: "out of range", CommittedAt: since.AddDate(0, 0, 30)},
			},
		},
	}
	jr := &fakeJira{
		issues: []jira.Issue{{
			ID: "1", Key: "PRJ-1", Title: "Fix login", Status: "Done",
			Changelog: []jira.ChangeGroup{
				{ID: "h1", Created: at, Items: []jira.ChangeItem{{Field: "status", From: "To Do", To: "Done"}}},
				{ID: "h2", Created: since.AddDate(0, 0, -30), Items: []jira.ChangeItem{{Field: "status", From: "Open", To: "To Do"}}},
			},
			Comments: []jira.Comment{{ID: "c1", Author: "dev", Body: "done", Created: at}},
		}},
		worklogs: map[string][]jira.Worklog{
			"PRJ-1": {
				{ID: "w1", Seconds: 3600, Started: at},
				{ID: "w2", Seconds: 3600, Started: since.AddDate(0, 0, -30)},
			},
		},
	}

	st := newMemStore()
	svc := New(config.Config{SyncDays: 7}, zerolog.Nop(), st, gh, jr,
		nil, StaticTokens{Github: "gt", Jira: "jt"}, nil)

	res, err := svc.SyncRange(context.Background(), "u1", since, until)
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}
	if res.Repos != 1 || res.Tickets != 1 {
		t.Fatalf("result = %+v", res)
	}
	// the adapter returned three commits; all are stored, windowing is a
	// read-side concern
	if res.Commits != 3 {
		t.Fatalf("commits = %d, want 3", res.Commits)
	}
	// only the in-window status change, comment and worklog land
	if res.Activities != 2 {
		t.Fatalf("activities = %d, want 2", res.Activities)
	}
	if res.Worklogs != 1 {
		t.Fatalf("worklogs = %d, want 1", res.Worklogs)
	}

	linked := 0
	for _, c := range st.commits {
		if c.SHA == "aaa1111222233334444" {
			if c.TicketID == nil || c.Unlinked {
				t.Fatalf("commit with known key not linked: %+v", c)
			}
			linked++
		}
		if c.SHA == "bbb5555666677778888" && !c.Unlinked {
			t.Fatalf("commit without keys must be unlinked: %+v", c)
		}
	}
	if linked != 1 {
		t.Fatalf("linked commit not stored")
	}

	if len(st.repos) != 1 || st.repos[0].LastSyncedAt == nil {
		t.Fatalf("repo sync stamp missing: %+v", st.repos)
	}

	// second pass upserts in place
	res2, err := svc.SyncRange(context.Background(), "u1", since, until)
	if err != nil {
		t.Fatalf("second SyncRange: %v", err)
	}
	if len(st.commits) != 3 || len(st.acts) != 2 || len(st.worklogs) != 1 {
		t.Fatalf("second sync duplicated rows: %d commits, %d acts, %d worklogs",
			len(st.commits), len(st.acts), len(st.worklogs))
	}
	if res2.Tickets != 1 {
		t.Fatalf("second sync result = %+v", res2)
	}
}

func TestSyncRangeSkipsDisconnectedProviders(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st) // empty StaticTokens

	res, err := svc.SyncRange(context.Background(), "u1", time.Now().AddDate(0, 0, -7), time.Now())
	if err != nil {
		t.Fatalf("SyncRange with no tokens must not error, got %v", err)
	}
	if res != (SyncResult{}) {
		t.Fatalf("result = %+v, want zero", res)
	}
}

func TestStaticTokens(t *testing.T) {
	tok := StaticTokens{Github: "g", Jira: ""}
	if got, err := tok.AccessToken(context.Background(), "u1", "github"); err != nil || got != "g" {
		t.Fatalf("github token = %q, %v", got, err)
	}
	_, err := tok.AccessToken(context.Background(), "u1", "jira")
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected not-connected, got %v", err)
	}
}
