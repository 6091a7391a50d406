package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/repo"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/services"
)

type service interface {
	CreateWeeklyReport(ctx context.Context, userID string, start, end time.Time) (domain.WeeklyReport, error)
	DeliverSummary(ctx context.Context, markdown string)
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	repo *repo.Repository
	c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
	_, _ = c.AddFunc(cfg.WeeklyCron, cr.weekly)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

// weekly generates and delivers last week's report for every active user.
// The advisory lock keeps concurrent instances from double-running.
func (cr *Cron) weekly() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	const lockKey int64 = 734921
	ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Msg("cron: already running elsewhere")
		return
	}
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()

	start, end := services.WeekBounds(time.Now().AddDate(0, 0, -7))
	users, err := cr.repo.ActiveUserIDs(ctx)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: list users failed")
		return
	}
	cr.log.Info().Int("users", len(users)).Time("start", start).Time("end", end).Msg("cron: weekly reports")
	for _, uid := range users {
		w, err := cr.svc.CreateWeeklyReport(ctx, uid, start, end)
		if err != nil {
			// move on; one user's failure is not the batch's
			cr.log.Error().Err(err).Str("user", uid).Msg("cron: weekly report failed")
			continue
		}
		cr.svc.DeliverSummary(ctx, w.Markdown)
	}
}
