package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shikoyatbot/bot/internal/models"
	"shikoyatbot/bot/internal/report"
	"shikoyatbot/bot/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T, now time.Time) (*gin.Engine, *storage.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))
	store := storage.NewStorageService(db)

	r := gin.New()
	NewHandler(report.NewReporter(store), func() time.Time { return now }).Register(r)
	return r, store
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, time.Now())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	r, store := newTestRouter(t, now)
	require.NoError(t, store.CreateComplaint(&models.Complaint{
		CreatedAt:  now.Add(-2 * time.Hour),
		ReporterID: 1,
		Employee:   "A",
		Text:       "broken scanner",
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var d report.Digest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, int64(1), d.Today.Total)
	assert.Equal(t, int64(1), d.OpenAllTime)
	assert.Equal(t, "2026-02", d.CycleKey)
}
