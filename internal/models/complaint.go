package models

import "time"

// Complaint status values. A complaint starts open and moves to exactly
// one terminal status.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusRejected = "rejected"
	StatusDeleted  = "deleted"
)

// Complaint is a single reported issue tied to one employee and one reporter.
type Complaint struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// ReporterID is the Telegram user id of the person who filed the complaint.
	ReporterID     int64  `gorm:"not null" json:"reporter_id"`
	ReporterHandle string `json:"reporter_handle,omitempty"`

	Employee string `gorm:"not null;index" json:"employee"`
	Text     string `gorm:"not null" json:"text"`

	Status          string     `gorm:"not null;default:open;index" json:"status"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	DecidedByID     *int64     `json:"decided_by_id,omitempty"`
	DecidedByHandle string     `json:"decided_by_handle,omitempty"`

	// Reference to the relayed group notification, used to re-render or
	// delete that message later.
	RelayChatID    int64 `json:"-"`
	RelayMessageID int   `json:"-"`
}

// IsOpen reports whether the complaint is still awaiting a decision.
func (c *Complaint) IsOpen() bool { return c.Status == StatusOpen }

// StatusCounts is an aggregate breakdown of complaints by status over
// some time window.
type StatusCounts struct {
	Open     int64 `json:"open"`
	Resolved int64 `json:"resolved"`
	Rejected int64 `json:"rejected"`
	Deleted  int64 `json:"deleted"`
	Total    int64 `json:"total"`
}

// AlertMark records that an alert of a given kind already fired on a given
// calendar day, so a repeated check does not send it twice.
type AlertMark struct {
	ID        uint   `gorm:"primaryKey"`
	Day       string `gorm:"not null;uniqueIndex:idx_alert_day_kind"` // YYYY-MM-DD
	Kind      string `gorm:"not null;uniqueIndex:idx_alert_day_kind"`
	CreatedAt time.Time
}
