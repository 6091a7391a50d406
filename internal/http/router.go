/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
)

const ctxUserID = "user_id"

// requireUser resolves the caller's identity from the X-User-ID header.
// Every /api route runs behind it.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
			return
		}
		c.Set(ctxUserID, uid)
		c.Next()
	}
}

func NewRouter(cfg config.Config, log zerolog.Logger, svc service) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc)

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api", requireUser())
	{
		api.POST("/reports/generate", h.GenerateReport)
		api.POST("/reports/weekly", h.CreateWeekly)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/latest", h.LatestReport)
		api.GET("/reports/current-week", h.CurrentWeek)
		api.GET("/reports/last-week", h.LastWeek)

		api.GET("/analytics/effort", h.Effort)

		api.POST("/hygiene/detect", h.DetectHygiene)
		api.GET("/hygiene/summary", h.HygieneSummary)
		api.POST("/hygiene/resolve", h.ResolveHygiene)

		api.POST("/sync", h.Sync)
	}

	return r
}
