package report_test

import (
	"fmt"
	"testing"
	"time"

	"shikoyatbot/bot/internal/models"
	"shikoyatbot/bot/internal/report"
	"shikoyatbot/bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestReporter(t *testing.T) (*report.Reporter, *storage.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:report_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))
	store := storage.NewStorageService(db)
	return report.NewReporter(store), store
}

func file(t *testing.T, s *storage.Service, createdAt time.Time, employee, text string) *models.Complaint {
	t.Helper()
	c := &models.Complaint{
		CreatedAt:  createdAt,
		ReporterID: 100,
		Employee:   employee,
		Text:       text,
	}
	require.NoError(t, s.CreateComplaint(c))
	return c
}

func TestDailyDigest_CountsArePartitioned(t *testing.T) {
	rep, store := newTestReporter(t)
	asOf := at(2026, 2, 10, 21, 0, 0)
	dayStart := report.DayStartFor(asOf)

	file(t, store, dayStart.Add(8*time.Hour), "A", "still open")
	resolved := file(t, store, dayStart.Add(9*time.Hour), "A", "fixed")
	rejected := file(t, store, dayStart.Add(10*time.Hour), "B", "not valid")
	won, err := store.DecideComplaint(resolved.ID, models.StatusResolved, dayStart.Add(11*time.Hour), 1, "r")
	require.NoError(t, err)
	require.True(t, won)
	won, err = store.DecideComplaint(rejected.ID, models.StatusRejected, dayStart.Add(11*time.Hour), 1, "r")
	require.NoError(t, err)
	require.True(t, won)

	// In-cycle but not today; stays open, so it counts into the backlog.
	file(t, store, at(2026, 2, 3, 12, 0, 0), "A", "earlier this cycle")
	// Before the cycle started.
	file(t, store, at(2026, 1, 20, 12, 0, 0), "B", "previous cycle")

	d, err := rep.DailyDigest(asOf)
	require.NoError(t, err)

	assert.Equal(t, int64(3), d.Today.Total)
	assert.Equal(t, d.Today.Total, d.Today.Open+d.Today.Resolved+d.Today.Rejected+d.Today.Deleted)
	assert.Equal(t, int64(1), d.Today.Open)
	assert.Equal(t, int64(1), d.Today.Resolved)
	assert.Equal(t, int64(1), d.Today.Rejected)

	assert.Equal(t, "2026-02", d.CycleKey)
	assert.True(t, at(2026, 2, 2, 0, 0, 0).Equal(d.CycleStart))
	assert.Equal(t, int64(4), d.Cycle.Total)

	assert.Equal(t, int64(3), d.OpenAllTime, "backlog spans all cycles")
	assert.False(t, d.Quiet())
}

func TestDailyDigest_QuietDay(t *testing.T) {
	rep, store := newTestReporter(t)
	// Yesterday's complaint must not disturb today's quiet branch.
	file(t, store, at(2026, 2, 9, 12, 0, 0), "A", "yesterday")

	d, err := rep.DailyDigest(at(2026, 2, 10, 8, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, d.Today.Total)
	assert.True(t, d.Quiet())
}

func TestAlertDue_ThresholdAndIdempotency(t *testing.T) {
	rep, store := newTestReporter(t)
	asOf := at(2026, 2, 10, 14, 0, 0)
	dayStart := report.DayStartFor(asOf)
	for i := 0; i < 3; i++ {
		file(t, store, dayStart.Add(time.Duration(i)*time.Hour), "A", "spike")
	}

	due, total, err := rep.AlertDue(asOf, 5)
	require.NoError(t, err)
	assert.False(t, due, "below threshold")
	assert.Equal(t, int64(3), total)

	due, total, err = rep.AlertDue(asOf, 3)
	require.NoError(t, err)
	assert.True(t, due)
	assert.Equal(t, int64(3), total)

	// The check may run more than once per day; only the first fires.
	due, _, err = rep.AlertDue(asOf.Add(time.Hour), 3)
	require.NoError(t, err)
	assert.False(t, due)

	// A new day starts a fresh idempotency window.
	nextDay := asOf.Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		file(t, store, report.DayStartFor(nextDay).Add(time.Duration(i)*time.Hour), "A", "spike")
	}
	due, _, err = rep.AlertDue(nextDay, 3)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestAlertDue_DisabledThreshold(t *testing.T) {
	rep, store := newTestReporter(t)
	file(t, store, at(2026, 2, 10, 9, 0, 0), "A", "anything")

	due, total, err := rep.AlertDue(at(2026, 2, 10, 10, 0, 0), 0)
	require.NoError(t, err)
	assert.False(t, due)
	assert.Zero(t, total)
}
