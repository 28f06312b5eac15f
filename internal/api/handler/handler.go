// Package handler exposes the read-only operations endpoints: a health
// check for the hosting platform and a JSON statistics snapshot.
package handler

import (
	"net/http"
	"time"

	"shikoyatbot/bot/internal/report"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	Reporter *report.Reporter
	Now      func() time.Time
}

func NewHandler(rep *report.Reporter, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{Reporter: rep, Now: now}
}

// Register mounts the routes.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/api/stats", h.Stats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns the same digest the scheduled group report is built from.
// It never mutates complaint rows.
func (h *Handler) Stats(c *gin.Context) {
	d, err := h.Reporter.DailyDigest(h.Now())
	if err != nil {
		log.WithError(err).Error("failed to build stats snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build stats"})
		return
	}
	c.JSON(http.StatusOK, d)
}
