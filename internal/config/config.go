// Package config holds the process configuration, loaded from config.yml
// and the environment. Configuration problems are fatal at startup and
// never surface to end users.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gotify/configor"
	"github.com/pkg/errors"
)

var Conf *Configuration

type Configuration struct {
	Bot struct {
		Token    string `default:"" env:"BOT_TOKEN"`
		Debug    *bool  `default:"false" env:"BOT_DEBUG"`
		TestMode *bool  `default:"false" env:"BOT_TEST_MODE"`
	}
	Group struct {
		ChatID int64 `default:"0" env:"GROUP_ID"`
	}
	Reviewers struct {
		// Policy is "anyone" (any member of the supervisory group may
		// decide) or "allowlist" (only the ids below).
		Policy string `default:"anyone" env:"REVIEWER_POLICY"`
		// AllowList is a comma-separated list of Telegram user ids.
		AllowList string `default:"" env:"ALLOWED_CLOSERS"`
	}
	Storage struct {
		Path string `default:"complaints.sqlite3" env:"DB_PATH"`
	}
	Time struct {
		Zone string `default:"Asia/Tashkent" env:"TZ_NAME"`
	}
	Report struct {
		MorningHour   int `default:"8" env:"REPORT_MORNING_HOUR"`
		MorningMinute int `default:"0" env:"REPORT_MORNING_MINUTE"`
		EveningHour   int `default:"21" env:"REPORT_EVENING_HOUR"`
		EveningMinute int `default:"0" env:"REPORT_EVENING_MINUTE"`
		// AlertThreshold is the per-day complaint count that triggers an
		// out-of-band alert. Zero disables the alert.
		AlertThreshold int `default:"0" env:"ALERT_THRESHOLD"`
	}
	Intake struct {
		MinTextLen        int `default:"3" env:"MIN_TEXT_LEN"`
		SessionTTLMinutes int `default:"30" env:"SESSION_TTL_MINUTES"`
	}
	Admin struct {
		// ResetPassphrase guards the full-store reset. Empty disables /reset.
		ResetPassphrase string `default:"" env:"RESET_PASSPHRASE"`
	}
	API struct {
		Port int `default:"8080" env:"API_PORT"`
	}
	// Employees is the fixed roster complaints can be filed against.
	// Set in config.yml, or via EMPLOYEES as a comma-separated list.
	Employees   []string `env:"-"`
	EmployeeEnv string   `default:"" env:"EMPLOYEES"`

	allowIDs map[int64]bool
	location *time.Location
}

func configFiles() []string {
	files := []string{}
	for _, name := range []string{"config.yml"} {
		if _, err := os.Stat(name); err == nil {
			files = append(files, name)
		}
	}
	return files
}

// InitConfig loads and validates the configuration exactly once.
func InitConfig() error {
	if Conf != nil {
		return nil
	}
	conf := new(Configuration)
	if err := configor.New(&configor.Config{}).Load(conf, configFiles()...); err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := conf.validate(); err != nil {
		return err
	}
	Conf = conf
	return nil
}

func (c *Configuration) validate() error {
	if strings.TrimSpace(c.Bot.Token) == "" {
		return errors.New("BOT_TOKEN is empty")
	}
	if c.Group.ChatID == 0 {
		return errors.New("GROUP_ID is not set")
	}
	if c.Report.MorningHour < 0 || c.Report.MorningHour > 23 ||
		c.Report.EveningHour < 0 || c.Report.EveningHour > 23 ||
		c.Report.MorningMinute < 0 || c.Report.MorningMinute > 59 ||
		c.Report.EveningMinute < 0 || c.Report.EveningMinute > 59 {
		return errors.New("report hour/minute out of range")
	}

	loc, err := time.LoadLocation(c.Time.Zone)
	if err != nil {
		return errors.Wrapf(err, "unknown timezone %q", c.Time.Zone)
	}
	c.location = loc

	if c.EmployeeEnv != "" {
		c.Employees = splitTrimmed(c.EmployeeEnv)
	}
	if len(c.Employees) == 0 {
		return errors.New("employee roster is empty")
	}

	c.allowIDs = make(map[int64]bool)
	for _, part := range splitTrimmed(c.Reviewers.AllowList) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "bad reviewer id %q in ALLOWED_CLOSERS", part)
		}
		c.allowIDs[id] = true
	}

	switch c.Reviewers.Policy {
	case "anyone":
	case "allowlist":
		if len(c.allowIDs) == 0 {
			return errors.New("REVIEWER_POLICY=allowlist requires a non-empty ALLOWED_CLOSERS")
		}
	default:
		return errors.Errorf("unknown REVIEWER_POLICY %q", c.Reviewers.Policy)
	}
	return nil
}

// Location returns the configured timezone.
func (c *Configuration) Location() *time.Location { return c.location }

// ReviewerAllowed reports whether the given user may decide complaints.
// Under the "anyone" policy the caller is expected to have already checked
// that the action comes from the supervisory group.
func (c *Configuration) ReviewerAllowed(userID int64) bool {
	if c.Reviewers.Policy == "anyone" {
		return true
	}
	return c.allowIDs[userID]
}

// ReviewerIDs returns the parsed allow-list.
func (c *Configuration) ReviewerIDs() []int64 {
	ids := make([]int64, 0, len(c.allowIDs))
	for id := range c.allowIDs {
		ids = append(ids, id)
	}
	return ids
}

func (c *Configuration) TestMode() bool { return c.Bot.TestMode != nil && *c.Bot.TestMode }
func (c *Configuration) BotDebug() bool { return c.Bot.Debug != nil && *c.Bot.Debug }

func (c *Configuration) SessionTTL() time.Duration {
	return time.Duration(c.Intake.SessionTTLMinutes) * time.Minute
}

func splitTrimmed(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
