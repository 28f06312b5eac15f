// Package storage is the persistence layer for complaints. It is the
// single source of truth; everything else reads and writes through it.
package storage

import (
	"errors"
	"time"

	"shikoyatbot/bot/internal/models"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Storage interface {
	CreateComplaint(c *models.Complaint) error
	SetRelayRef(complaintID uint, chatID int64, messageID int) error
	GetComplaintByID(complaintID uint) (*models.Complaint, error)

	// DecideComplaint moves an open complaint to a terminal status. The
	// update is guarded by status='open'; the returned bool reports
	// whether this call won the transition.
	DecideComplaint(complaintID uint, status string, decidedAt time.Time, byID int64, byHandle string) (bool, error)

	// SoftDeleteComplaint marks a record deleted; false if already deleted.
	SoftDeleteComplaint(complaintID uint, deletedAt time.Time, byID int64, byHandle string) (bool, error)

	CountByStatus(from, to time.Time) (models.StatusCounts, error)
	CountSince(from time.Time) (models.StatusCounts, error)
	CountOpenAllTime() (int64, error)

	ListOpen(limit int) ([]models.Complaint, error)
	ListByEmployee(employee string, offset, limit int) ([]models.Complaint, int64, error)

	// MarkAlertSent records that an alert fired for the given day and kind.
	// Returns false if it had already been recorded.
	MarkAlertSent(day, kind string) (bool, error)

	PurgeAll() error
}

type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AutoMigrate creates the complaints and alert_marks tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Complaint{}, &models.AlertMark{})
}

func (s *Service) CreateComplaint(c *models.Complaint) error {
	if c.Status == "" {
		c.Status = models.StatusOpen
	}
	if err := s.DB.Create(c).Error; err != nil {
		log.WithError(err).Errorf("failed to save complaint for employee %s", c.Employee)
		return pkgerrors.Wrap(err, "create complaint")
	}
	return nil
}

func (s *Service) SetRelayRef(complaintID uint, chatID int64, messageID int) error {
	return s.DB.Model(&models.Complaint{}).
		Where("id = ?", complaintID).
		Updates(map[string]interface{}{
			"relay_chat_id":    chatID,
			"relay_message_id": messageID,
		}).Error
}

// GetComplaintByID returns the complaint, or (nil, nil) if no such record.
func (s *Service) GetComplaintByID(complaintID uint) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.First(&c, complaintID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) DecideComplaint(complaintID uint, status string, decidedAt time.Time, byID int64, byHandle string) (bool, error) {
	res := s.DB.Model(&models.Complaint{}).
		Where("id = ? AND status = ?", complaintID, models.StatusOpen).
		Updates(map[string]interface{}{
			"status":            status,
			"decided_at":        decidedAt,
			"decided_by_id":     byID,
			"decided_by_handle": byHandle,
		})
	if res.Error != nil {
		log.WithError(res.Error).Errorf("failed to decide complaint %d", complaintID)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) SoftDeleteComplaint(complaintID uint, deletedAt time.Time, byID int64, byHandle string) (bool, error) {
	res := s.DB.Model(&models.Complaint{}).
		Where("id = ? AND status <> ?", complaintID, models.StatusDeleted).
		Updates(map[string]interface{}{
			"status":            models.StatusDeleted,
			"decided_at":        deletedAt,
			"decided_by_id":     byID,
			"decided_by_handle": byHandle,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

const countsSelect = `
	COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0)     AS open,
	COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END), 0) AS resolved,
	COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected,
	COALESCE(SUM(CASE WHEN status = 'deleted' THEN 1 ELSE 0 END), 0)  AS deleted,
	COUNT(*)                                                          AS total`

// CountByStatus aggregates complaints created within [from, to).
func (s *Service) CountByStatus(from, to time.Time) (models.StatusCounts, error) {
	var counts models.StatusCounts
	err := s.DB.Model(&models.Complaint{}).
		Select(countsSelect).
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&counts).Error
	if err != nil {
		log.WithError(err).Error("failed to aggregate complaints for window")
		return models.StatusCounts{}, err
	}
	return counts, nil
}

// CountSince aggregates complaints created at or after from.
func (s *Service) CountSince(from time.Time) (models.StatusCounts, error) {
	var counts models.StatusCounts
	err := s.DB.Model(&models.Complaint{}).
		Select(countsSelect).
		Where("created_at >= ?", from).
		Scan(&counts).Error
	if err != nil {
		log.WithError(err).Error("failed to aggregate complaints since cycle start")
		return models.StatusCounts{}, err
	}
	return counts, nil
}

func (s *Service) CountOpenAllTime() (int64, error) {
	var n int64
	err := s.DB.Model(&models.Complaint{}).
		Where("status = ?", models.StatusOpen).
		Count(&n).Error
	return n, err
}

func (s *Service) ListOpen(limit int) ([]models.Complaint, error) {
	var list []models.Complaint
	err := s.DB.Where("status = ?", models.StatusOpen).
		Order("created_at asc").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListByEmployee returns a page of complaints for one employee plus the
// total match count, newest first.
func (s *Service) ListByEmployee(employee string, offset, limit int) ([]models.Complaint, int64, error) {
	var total int64
	q := s.DB.Model(&models.Complaint{}).Where("employee = ?", employee)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Complaint
	err := s.DB.Where("employee = ?", employee).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Service) MarkAlertSent(day, kind string) (bool, error) {
	var mark models.AlertMark
	res := s.DB.Where(models.AlertMark{Day: day, Kind: kind}).FirstOrCreate(&mark)
	if res.Error != nil {
		log.WithError(res.Error).Errorf("failed to mark alert %s/%s", day, kind)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeAll irreversibly clears all complaints and alert marks.
func (s *Service) PurgeAll() error {
	if err := s.DB.Exec("DELETE FROM complaints").Error; err != nil {
		return pkgerrors.Wrap(err, "purge complaints")
	}
	if err := s.DB.Exec("DELETE FROM alert_marks").Error; err != nil {
		return pkgerrors.Wrap(err, "purge alert marks")
	}
	return nil
}
