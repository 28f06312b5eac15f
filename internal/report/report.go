package report

import (
	"time"

	"shikoyatbot/bot/internal/models"
	"shikoyatbot/bot/internal/storage"

	"github.com/pkg/errors"
)

// AlertKindDailyThreshold keys the once-per-day complaint-count alert in
// the alert_marks table.
const AlertKindDailyThreshold = "daily_threshold"

// Digest is a snapshot of complaint statistics as of one instant.
type Digest struct {
	AsOf        time.Time           `json:"as_of"`
	Today       models.StatusCounts `json:"today"`
	OpenAllTime int64               `json:"open_all_time"`
	CycleKey    string              `json:"cycle_key"`
	CycleStart  time.Time           `json:"cycle_start"`
	Cycle       models.StatusCounts `json:"cycle"`
}

// Quiet reports whether nothing was filed on the digest's day. The
// rendered message deliberately switches to a motivational variant then.
func (d *Digest) Quiet() bool { return d.Today.Total == 0 }

// Reporter aggregates complaint statistics from storage.
type Reporter struct {
	Storage storage.Storage
}

func NewReporter(s storage.Storage) *Reporter {
	return &Reporter{Storage: s}
}

// DailyDigest collects the day's counts, the all-time open backlog and
// the cycle-to-date totals for the day containing asOf.
func (r *Reporter) DailyDigest(asOf time.Time) (*Digest, error) {
	dayStart := DayStartFor(asOf)
	today, err := r.Storage.CountByStatus(dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "count today")
	}

	openAll, err := r.Storage.CountOpenAllTime()
	if err != nil {
		return nil, errors.Wrap(err, "count open backlog")
	}

	cycleStart := CycleStartFor(asOf)
	cycle, err := r.Storage.CountSince(cycleStart)
	if err != nil {
		return nil, errors.Wrap(err, "count cycle")
	}

	return &Digest{
		AsOf:        asOf,
		Today:       today,
		OpenAllTime: openAll,
		CycleKey:    CycleKey(asOf),
		CycleStart:  cycleStart,
		Cycle:       cycle,
	}, nil
}

// AlertDue reports whether the daily threshold alert should fire now.
// It returns true at most once per calendar day: the alert_marks row is
// claimed with a conditional insert before the caller sends anything.
func (r *Reporter) AlertDue(asOf time.Time, threshold int) (bool, int64, error) {
	if threshold <= 0 {
		return false, 0, nil
	}
	dayStart := DayStartFor(asOf)
	counts, err := r.Storage.CountByStatus(dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, 0, err
	}
	if counts.Total < int64(threshold) {
		return false, counts.Total, nil
	}
	claimed, err := r.Storage.MarkAlertSent(dayStart.Format("2006-01-02"), AlertKindDailyThreshold)
	if err != nil {
		return false, counts.Total, err
	}
	return claimed, counts.Total, nil
}
