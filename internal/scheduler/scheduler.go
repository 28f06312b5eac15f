// Package scheduler wires the wall-clock triggers: two daily digests,
// the cycle rollover announcement on the 2nd, the hourly alert check and
// a session sweep. The jobs themselves live elsewhere; this only fires
// callbacks at configured times.
package scheduler

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Jobs are the callbacks fired by the scheduler.
type Jobs struct {
	MorningDigest func()
	EveningDigest func()
	// Rollover fires once at the start of each new reporting cycle
	// (day 2, early morning).
	Rollover   func()
	AlertCheck func()
	Sweep      func()
}

// Times configure the digest trigger times of day.
type Times struct {
	MorningHour   int
	MorningMinute int
	EveningHour   int
	EveningMinute int
}

// Start registers all jobs and starts the cron runner in loc.
func Start(loc *time.Location, t Times, jobs Jobs) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))

	entries := []struct {
		spec string
		fn   func()
	}{
		{fmt.Sprintf("%d %d * * *", t.MorningMinute, t.MorningHour), jobs.MorningDigest},
		{fmt.Sprintf("%d %d * * *", t.EveningMinute, t.EveningHour), jobs.EveningDigest},
		{"5 0 2 * *", jobs.Rollover},
		{"0 * * * *", jobs.AlertCheck},
		{"*/10 * * * *", jobs.Sweep},
	}
	for _, e := range entries {
		if e.fn == nil {
			continue
		}
		if _, err := c.AddFunc(e.spec, e.fn); err != nil {
			return nil, errors.Wrapf(err, "bad cron spec %q", e.spec)
		}
	}

	c.Start()
	return c, nil
}
