// Package complaint provides the core logic for the complaint lifecycle:
// intake validation, the exactly-once decision transition, and the
// administrative delete.
package complaint

import (
	"strings"
	"time"

	"shikoyatbot/bot/internal/models"
	"shikoyatbot/bot/internal/storage"

	"github.com/pkg/errors"
)

var (
	ErrNotFound        = errors.New("complaint not found")
	ErrAlreadyDecided  = errors.New("complaint already decided")
	ErrAlreadyDeleted  = errors.New("complaint already deleted")
	ErrTextTooShort    = errors.New("complaint text too short")
	ErrUnknownEmployee = errors.New("unknown employee")
	ErrBadOutcome      = errors.New("unknown decision outcome")
	ErrNotAllowed      = errors.New("not allowed")
)

// Identity is a Telegram user id with an optional handle.
type Identity struct {
	ID     int64
	Handle string
}

// Options configure the lifecycle service.
type Options struct {
	Roster     []string
	MinTextLen int
	// Now supplies the current time in the configured timezone.
	Now func() time.Time
}

// Service handles the business logic for complaints.
type Service struct {
	Storage storage.Storage

	roster     map[string]bool
	minTextLen int
	now        func() time.Time
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, opts Options) *Service {
	roster := make(map[string]bool, len(opts.Roster))
	for _, name := range opts.Roster {
		roster[name] = true
	}
	if opts.MinTextLen <= 0 {
		opts.MinTextLen = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		Storage:    s,
		roster:     roster,
		minTextLen: opts.MinTextLen,
		now:        opts.Now,
	}
}

// NormalizeText collapses all whitespace runs in a complaint text to
// single spaces and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// KnownEmployee reports whether name is on the fixed roster.
func (s *Service) KnownEmployee(name string) bool { return s.roster[name] }

// Create validates intake data and persists a new open complaint.
func (s *Service) Create(reporter Identity, employee, text string) (*models.Complaint, error) {
	if !s.KnownEmployee(employee) {
		return nil, ErrUnknownEmployee
	}
	text = NormalizeText(text)
	if len([]rune(text)) < s.minTextLen {
		return nil, ErrTextTooShort
	}

	c := &models.Complaint{
		CreatedAt:      s.now(),
		ReporterID:     reporter.ID,
		ReporterHandle: reporter.Handle,
		Employee:       employee,
		Text:           text,
		Status:         models.StatusOpen,
	}
	if err := s.Storage.CreateComplaint(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Decide moves an open complaint to resolved or rejected, exactly once.
// A second call for the same id returns ErrAlreadyDecided and mutates
// nothing. The returned complaint reflects the post-decision state.
func (s *Service) Decide(complaintID uint, outcome string, reviewer Identity) (*models.Complaint, error) {
	if outcome != models.StatusResolved && outcome != models.StatusRejected {
		return nil, ErrBadOutcome
	}

	won, err := s.Storage.DecideComplaint(complaintID, outcome, s.now(), reviewer.ID, reviewer.Handle)
	if err != nil {
		return nil, err
	}
	if !won {
		c, err := s.Storage.GetComplaintByID(complaintID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyDecided
	}

	c, err := s.Storage.GetComplaintByID(complaintID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete marks a complaint deleted. Deleting an already-deleted record
// returns ErrAlreadyDeleted.
func (s *Service) Delete(complaintID uint, admin Identity) (*models.Complaint, error) {
	won, err := s.Storage.SoftDeleteComplaint(complaintID, s.now(), admin.ID, admin.Handle)
	if err != nil {
		return nil, err
	}
	if !won {
		c, err := s.Storage.GetComplaintByID(complaintID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyDeleted
	}

	c, err := s.Storage.GetComplaintByID(complaintID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}
