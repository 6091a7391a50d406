/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/services"
)

type service interface {
	GenerateReport(ctx context.Context, userID string, since, until time.Time, syncFirst bool) (domain.ReportDocument, error)
	CreateWeeklyReport(ctx context.Context, userID string, start, end time.Time) (domain.WeeklyReport, error)
	LatestReport(ctx context.Context, userID string) (*domain.WeeklyReport, error)
	ListReports(ctx context.Context, userID string) ([]domain.WeeklyReport, error)
	StoredReport(ctx context.Context, userID string, start, end time.Time) (*domain.WeeklyReport, error)
	EffortAnalysis(ctx context.Context, userID string, since, until time.Time) (domain.EffortAnalysis, error)
	ClassifyTicketEffort(ctx context.Context, userID, key string, since, until time.Time) (domain.TicketEffort, error)
	DetectHygiene(ctx context.Context, userID string, since, until time.Time) ([]domain.HygieneAlert, error)
	HygieneSummary(ctx context.Context, userID string, since, until time.Time) (domain.HygieneSummary, error)
	ResolveAlerts(ctx context.Context, userID string, ids []int64) (int, error)
	SyncRange(ctx context.Context, userID string, since, until time.Time) (services.SyncResult, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc}
}

func userID(c *gin.Context) string { return c.GetString(ctxUserID) }

// fail maps domain sentinels onto HTTP statuses and writes the error body.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotConnected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamAuth):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type dateRangeBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	SyncFirst *bool  `json:"sync_first"`
}

// rangeOrDefault parses start_date/end_date (YYYY-MM-DD, end inclusive to
// end of day) falling back to the given bounds when absent.
func rangeOrDefault(b dateRangeBody, defStart, defEnd time.Time) (time.Time, time.Time, error) {
	start, end := defStart, defEnd
	if b.StartDate != "" {
		t, err := time.Parse("2006-01-02", b.StartDate)
		if err != nil {
			return start, end, fmt.Errorf("invalid start_date: %q", b.StartDate)
		}
		start = t
	}
	if b.EndDate != "" {
		t, err := time.Parse("2006-01-02", b.EndDate)
		if err != nil {
			return start, end, fmt.Errorf("invalid end_date: %q", b.EndDate)
		}
		end = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return start, end, nil
}

func queryRange(c *gin.Context) (time.Time, time.Time, error) {
	defStart, defEnd := services.WeekBounds(time.Now())
	return rangeOrDefault(dateRangeBody{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}, defStart, defEnd)
}

func reportView(w domain.WeeklyReport) gin.H {
	v := gin.H{
		"id":                        w.ID,
		"start_date":                w.StartDate.Format("2006-01-02"),
		"end_date":                  w.EndDate.Format("2006-01-02"),
		"total_tickets":             w.TotalTickets,
		"total_commits":             w.TotalCommits,
		"tickets_completed":         w.Completed,
		"total_time_logged_seconds": w.TimeLoggedSecs,
		"unlinked_commits":          w.Unlinked,
		"non_code_activities":       w.NonCode,
		"summary":                   w.SummaryText,
		"markdown":                  w.Markdown,
		"created_at":                w.CreatedAt.Format(time.RFC3339),
	}
	if len(w.Document) > 0 {
		v["report_data"] = json.RawMessage(w.Document)
	}
	return v
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GenerateReport builds a report document for an arbitrary range without
// storing it. sync_first defaults to true.
func (h *Handlers) GenerateReport(c *gin.Context) {
	var body dateRangeBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	defStart, defEnd := services.WeekBounds(time.Now())
	start, end, err := rangeOrDefault(body, defStart, defEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	syncFirst := body.SyncFirst == nil || *body.SyncFirst
	doc, err := h.svc.GenerateReport(c.Request.Context(), userID(c), start, end, syncFirst)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateWeekly generates and stores a weekly report; the range defaults to
// the previous calendar week.
func (h *Handlers) CreateWeekly(c *gin.Context) {
	var body dateRangeBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	defStart, defEnd := services.WeekBounds(time.Now().AddDate(0, 0, -7))
	start, end, err := rangeOrDefault(body, defStart, defEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.svc.CreateWeeklyReport(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reportView(w))
}

func (h *Handlers) LatestReport(c *gin.Context) {
	w, err := h.svc.LatestReport(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reportView(*w))
}

func (h *Handlers) ListReports(c *gin.Context) {
	ws, err := h.svc.ListReports(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]gin.H, 0, len(ws))
	for _, w := range ws {
		views = append(views, reportView(w))
	}
	c.JSON(http.StatusOK, gin.H{"reports": views})
}

// CurrentWeek reports on Monday..now's week from already-synced data.
func (h *Handlers) CurrentWeek(c *gin.Context) {
	start, end := services.WeekBounds(time.Now())
	doc, err := h.svc.GenerateReport(c.Request.Context(), userID(c), start, end, false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// LastWeek serves the stored previous-week report when one exists,
// otherwise generates one on the fly.
func (h *Handlers) LastWeek(c *gin.Context) {
	start, end := services.WeekBounds(time.Now().AddDate(0, 0, -7))
	stored, err := h.svc.StoredReport(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	if stored != nil && len(stored.Document) > 0 {
		c.Data(http.StatusOK, "application/json", stored.Document)
		return
	}
	doc, err := h.svc.GenerateReport(c.Request.Context(), userID(c), start, end, false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handlers) Effort(c *gin.Context) {
	start, end, err := queryRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if key := c.Query("ticket"); key != "" {
		te, err := h.svc.ClassifyTicketEffort(c.Request.Context(), userID(c), key, start, end)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, te)
		return
	}
	ea, err := h.svc.EffortAnalysis(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ea)
}

func (h *Handlers) DetectHygiene(c *gin.Context) {
	var body dateRangeBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	defStart, defEnd := services.WeekBounds(time.Now())
	start, end, err := rangeOrDefault(body, defStart, defEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alerts, err := h.svc.DetectHygiene(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Detected %d hygiene issues", len(alerts)),
		"alerts":  alerts,
	})
}

func (h *Handlers) HygieneSummary(c *gin.Context) {
	start, end, err := queryRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sum, err := h.svc.HygieneSummary(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handlers) ResolveHygiene(c *gin.Context) {
	var body struct {
		AlertIDs []int64 `json:"alert_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if len(body.AlertIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert_ids is required"})
		return
	}
	n, err := h.svc.ResolveAlerts(c.Request.Context(), userID(c), body.AlertIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        fmt.Sprintf("Resolved %d alerts", n),
		"resolved_count": n,
	})
}

// Sync ingests provider data for a range, defaulting to the configured
// trailing sync window.
func (h *Handlers) Sync(c *gin.Context) {
	var body dateRangeBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	now := time.Now()
	start, end, err := rangeOrDefault(body, now.AddDate(0, 0, -h.cfg.SyncDays), now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.SyncRange(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"repos":      res.Repos,
		"commits":    res.Commits,
		"tickets":    res.Tickets,
		"activities": res.Activities,
		"worklogs":   res.Worklogs,
	})
}
