package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

// memStore is an in-memory Store with the same upsert and window
// semantics as the Postgres repository.
type memStore struct {
	repos    []domain.Repo
	tickets  []domain.Ticket
	commits  []domain.Commit
	acts     []domain.TicketActivity
	worklogs []domain.Worklog
	alerts   []domain.HygieneAlert
	reports  []domain.WeeklyReport
	nextID   int64
}

func newMemStore() *memStore { return &memStore{} }

func newTestService(st Store) *Service {
	return New(config.Config{SyncDays: 7}, zerolog.Nop(), st, nil, nil, nil, StaticTokens{}, nil)
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func inWindow(t, since, until time.Time) bool {
	return !t.Before(since) && !t.After(until)
}

func (m *memStore) ActiveUserIDs(context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(uid string) {
		if _, ok := seen[uid]; !ok {
			seen[uid] = struct{}{}
			out = append(out, uid)
		}
	}
	for _, r := range m.repos {
		if r.IsTracked {
			add(r.UserID)
		}
	}
	for _, t := range m.tickets {
		add(t.UserID)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) UpsertRepo(_ context.Context, r domain.Repo) (int64, error) {
	for i := range m.repos {
		if m.repos[i].UserID == r.UserID && m.repos[i].GithubID == r.GithubID {
			r.ID = m.repos[i].ID
			r.IsTracked = m.repos[i].IsTracked
			m.repos[i] = r
			return r.ID, nil
		}
	}
	r.ID = m.id()
	m.repos = append(m.repos, r)
	return r.ID, nil
}

func (m *memStore) TrackedRepos(_ context.Context, userID string) ([]domain.Repo, error) {
	var out []domain.Repo
	for _, r := range m.repos {
		if r.UserID == userID && r.IsTracked {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) TouchRepoSynced(_ context.Context, repoID int64, at time.Time) error {
	for i := range m.repos {
		if m.repos[i].ID == repoID {
			m.repos[i].LastSyncedAt = &at
			return nil
		}
	}
	return nil
}

func (m *memStore) UpsertTicket(_ context.Context, t domain.Ticket) (int64, error) {
	for i := range m.tickets {
		if m.tickets[i].UserID == t.UserID && m.tickets[i].JiraID == t.JiraID {
			t.ID = m.tickets[i].ID
			m.tickets[i] = t
			return t.ID, nil
		}
	}
	t.ID = m.id()
	m.tickets = append(m.tickets, t)
	return t.ID, nil
}

func (m *memStore) TicketByKey(_ context.Context, userID, key string) (*domain.Ticket, error) {
	for _, t := range m.tickets {
		if t.UserID == userID && t.Key == key {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) TicketsByIDs(_ context.Context, userID string, ids []int64) (map[int64]domain.Ticket, error) {
	want := map[int64]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := map[int64]domain.Ticket{}
	for _, t := range m.tickets {
		if t.UserID != userID {
			continue
		}
		if _, ok := want[t.ID]; ok {
			out[t.ID] = t
		}
	}
	return out, nil
}

func (m *memStore) UpsertCommit(_ context.Context, c domain.Commit) (int64, error) {
	for i := range m.commits {
		if m.commits[i].UserID == c.UserID && m.commits[i].RepoID == c.RepoID && m.commits[i].SHA == c.SHA {
			c.ID = m.commits[i].ID
			m.commits[i] = c
			return c.ID, nil
		}
	}
	c.ID = m.id()
	m.commits = append(m.commits, c)
	return c.ID, nil
}

func (m *memStore) CommitsInWindow(_ context.Context, userID string, since, until time.Time) ([]domain.Commit, error) {
	var out []domain.Commit
	for _, c := range m.commits {
		if c.UserID == userID && inWindow(c.CommittedAt, since, until) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CommittedAt.Before(out[j].CommittedAt) })
	return out, nil
}

func (m *memStore) BulkInsertActivities(_ context.Context, acts []domain.TicketActivity) error {
	for _, a := range acts {
		dup := false
		for _, existing := range m.acts {
			if existing.UserID == a.UserID && existing.TicketID == a.TicketID && existing.JiraID == a.JiraID {
				dup = true
				break
			}
		}
		if !dup {
			a.ID = m.id()
			m.acts = append(m.acts, a)
		}
	}
	return nil
}

func (m *memStore) ActivitiesInWindow(_ context.Context, userID string, since, until time.Time) ([]domain.TicketActivity, error) {
	var out []domain.TicketActivity
	for _, a := range m.acts {
		if a.UserID == userID && inWindow(a.At, since, until) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (m *memStore) BulkInsertWorklogs(_ context.Context, wls []domain.Worklog) error {
	for _, w := range wls {
		dup := false
		for _, existing := range m.worklogs {
			if existing.UserID == w.UserID && existing.JiraID == w.JiraID {
				dup = true
				break
			}
		}
		if !dup {
			w.ID = m.id()
			m.worklogs = append(m.worklogs, w)
		}
	}
	return nil
}

func (m *memStore) WorklogsInWindow(_ context.Context, userID string, since, until time.Time) ([]domain.Worklog, error) {
	var out []domain.Worklog
	for _, w := range m.worklogs {
		if w.UserID == userID && inWindow(w.StartedAt, since, until) {
			out = append(out, w)
		}
	}
	return out, nil
}

func alertDedupKey(a domain.HygieneAlert) string {
	var tid, cid int64
	if a.TicketID != nil {
		tid = *a.TicketID
	}
	if a.CommitID != nil {
		cid = *a.CommitID
	}
	return fmt.Sprintf("%s|%s|%d|%d|%d|%d", a.UserID, a.Type, tid, cid, a.WindowStart.Unix(), a.WindowEnd.Unix())
}

func (m *memStore) InsertAlert(_ context.Context, a domain.HygieneAlert) (domain.HygieneAlert, bool, error) {
	key := alertDedupKey(a)
	for _, existing := range m.alerts {
		if alertDedupKey(existing) == key {
			return existing, false, nil
		}
	}
	a.ID = m.id()
	a.CreatedAt = time.Now()
	m.alerts = append(m.alerts, a)
	return a, true, nil
}

func (m *memStore) UnresolvedAlerts(_ context.Context, userID string, since, until time.Time) ([]domain.HygieneAlert, error) {
	var out []domain.HygieneAlert
	for _, a := range m.alerts {
		if a.UserID == userID && !a.Resolved && !a.WindowStart.Before(since) && !a.WindowEnd.After(until) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) AlertSubjects(_ context.Context, userID string, alerts []domain.HygieneAlert) (map[int64]string, map[int64]string, error) {
	keys := map[int64]string{}
	shas := map[int64]string{}
	for _, a := range alerts {
		if a.TicketID != nil {
			for _, t := range m.tickets {
				if t.UserID == userID && t.ID == *a.TicketID {
					keys[t.ID] = t.Key
				}
			}
		}
		if a.CommitID != nil {
			for _, c := range m.commits {
				if c.UserID == userID && c.ID == *a.CommitID {
					shas[c.ID] = c.SHA
				}
			}
		}
	}
	return keys, shas, nil
}

func (m *memStore) ResolveAlerts(_ context.Context, userID string, ids []int64) (int, error) {
	want := map[int64]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	n := 0
	now := time.Now()
	for i := range m.alerts {
		if _, ok := want[m.alerts[i].ID]; !ok {
			continue
		}
		if m.alerts[i].UserID != userID || m.alerts[i].Resolved {
			continue
		}
		m.alerts[i].Resolved = true
		m.alerts[i].ResolvedAt = &now
		n++
	}
	return n, nil
}

func (m *memStore) UpsertWeeklyReport(_ context.Context, w domain.WeeklyReport) (int64, error) {
	for i := range m.reports {
		if m.reports[i].UserID == w.UserID && m.reports[i].StartDate.Equal(w.StartDate) && m.reports[i].EndDate.Equal(w.EndDate) {
			w.ID = m.reports[i].ID
			w.CreatedAt = m.reports[i].CreatedAt
			m.reports[i] = w
			return w.ID, nil
		}
	}
	w.ID = m.id()
	w.CreatedAt = time.Now()
	m.reports = append(m.reports, w)
	return w.ID, nil
}

func (m *memStore) LatestWeeklyReport(_ context.Context, userID string) (*domain.WeeklyReport, error) {
	var latest *domain.WeeklyReport
	for i := range m.reports {
		if m.reports[i].UserID != userID {
			continue
		}
		if latest == nil || m.reports[i].StartDate.After(latest.StartDate) {
			cp := m.reports[i]
			latest = &cp
		}
	}
	return latest, nil
}

func (m *memStore) WeeklyReportByRange(_ context.Context, userID string, start, end time.Time) (*domain.WeeklyReport, error) {
	for _, r := range m.reports {
		if r.UserID == userID && r.StartDate.Equal(start) && r.EndDate.Equal(end) {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListWeeklyReports(_ context.Context, userID string) ([]domain.WeeklyReport, error) {
	var out []domain.WeeklyReport
	for _, r := range m.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}
