package services

import (
	"context"
	"time"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

// windowSnapshot is one consistent read of everything inside [since, until].
// All joins and groupings for hygiene, effort and reports run over this in
// memory, so every consumer sees the same bounds.
type windowSnapshot struct {
	commits    []domain.Commit
	activities []domain.TicketActivity
	worklogs   []domain.Worklog
	tickets    map[int64]domain.Ticket

	commitsByTicket  map[int64][]domain.Commit
	statusByTicket   map[int64][]domain.TicketActivity
	commentsByTicket map[int64]int
	worklogsByTicket map[int64][]domain.Worklog
	secondsByTicket  map[int64]int
	orderedTicketIDs []int64
}

func (s *Service) loadWindow(ctx context.Context, userID string, since, until time.Time) (*windowSnapshot, error) {
	commits, err := s.store.CommitsInWindow(ctx, userID, since, until)
	if err != nil {
		return nil, err
	}
	activities, err := s.store.ActivitiesInWindow(ctx, userID, since, until)
	if err != nil {
		return nil, err
	}
	worklogs, err := s.store.WorklogsInWindow(ctx, userID, since, until)
	if err != nil {
		return nil, err
	}

	w := &windowSnapshot{
		commits:          commits,
		activities:       activities,
		worklogs:         worklogs,
		commitsByTicket:  map[int64][]domain.Commit{},
		statusByTicket:   map[int64][]domain.TicketActivity{},
		commentsByTicket: map[int64]int{},
		worklogsByTicket: map[int64][]domain.Worklog{},
		secondsByTicket:  map[int64]int{},
	}

	seen := map[int64]struct{}{}
	touch := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			w.orderedTicketIDs = append(w.orderedTicketIDs, id)
		}
	}
	for _, c := range commits {
		if c.TicketID != nil {
			w.commitsByTicket[*c.TicketID] = append(w.commitsByTicket[*c.TicketID], c)
			touch(*c.TicketID)
		}
	}
	for _, a := range activities {
		switch a.Payload.Kind() {
		case domain.ActivityStatusChange:
			w.statusByTicket[a.TicketID] = append(w.statusByTicket[a.TicketID], a)
		case domain.ActivityComment:
			w.commentsByTicket[a.TicketID]++
		}
		touch(a.TicketID)
	}
	for _, wl := range worklogs {
		w.worklogsByTicket[wl.TicketID] = append(w.worklogsByTicket[wl.TicketID], wl)
		w.secondsByTicket[wl.TicketID] += wl.Seconds
		touch(wl.TicketID)
	}

	w.tickets, err = s.store.TicketsByIDs(ctx, userID, w.orderedTicketIDs)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *windowSnapshot) unlinkedCommits() []domain.Commit {
	var out []domain.Commit
	for _, c := range w.commits {
		if c.Unlinked {
			out = append(out, c)
		}
	}
	return out
}
