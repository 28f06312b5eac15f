package complaint_test

import (
	"testing"
	"time"

	"shikoyatbot/bot/internal/complaint"
	"shikoyatbot/bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateComplaint(c *models.Complaint) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockStorage) SetRelayRef(complaintID uint, chatID int64, messageID int) error {
	args := m.Called(complaintID, chatID, messageID)
	return args.Error(0)
}

func (m *MockStorage) GetComplaintByID(complaintID uint) (*models.Complaint, error) {
	args := m.Called(complaintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Complaint), args.Error(1)
}

func (m *MockStorage) DecideComplaint(complaintID uint, status string, decidedAt time.Time, byID int64, byHandle string) (bool, error) {
	args := m.Called(complaintID, status, decidedAt, byID, byHandle)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) SoftDeleteComplaint(complaintID uint, deletedAt time.Time, byID int64, byHandle string) (bool, error) {
	args := m.Called(complaintID, deletedAt, byID, byHandle)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) CountByStatus(from, to time.Time) (models.StatusCounts, error) {
	args := m.Called(from, to)
	return args.Get(0).(models.StatusCounts), args.Error(1)
}

func (m *MockStorage) CountSince(from time.Time) (models.StatusCounts, error) {
	args := m.Called(from)
	return args.Get(0).(models.StatusCounts), args.Error(1)
}

func (m *MockStorage) CountOpenAllTime() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) ListOpen(limit int) ([]models.Complaint, error) {
	args := m.Called(limit)
	return args.Get(0).([]models.Complaint), args.Error(1)
}

func (m *MockStorage) ListByEmployee(employee string, offset, limit int) ([]models.Complaint, int64, error) {
	args := m.Called(employee, offset, limit)
	return args.Get(0).([]models.Complaint), args.Get(1).(int64), args.Error(2)
}

func (m *MockStorage) MarkAlertSent(day, kind string) (bool, error) {
	args := m.Called(day, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) PurgeAll() error {
	args := m.Called()
	return args.Error(0)
}

var fixedNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func newService(s *MockStorage) *complaint.Service {
	return complaint.NewService(s, complaint.Options{
		Roster:     []string{"A", "B"},
		MinTextLen: 3,
		Now:        func() time.Time { return fixedNow },
	})
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "broken scanner", complaint.NormalizeText("  broken \n\t scanner  "))
	assert.Equal(t, "", complaint.NormalizeText(" \n \t "))
}

func TestCreate_UnknownEmployee(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	_, err := svc.Create(complaint.Identity{ID: 1}, "C", "broken scanner")
	assert.ErrorIs(t, err, complaint.ErrUnknownEmployee)
	mockStorage.AssertNotCalled(t, "CreateComplaint", mock.Anything)
}

func TestCreate_TextTooShort(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	// Whitespace is normalized before the length check.
	_, err := svc.Create(complaint.Identity{ID: 1}, "A", "  a \n b ")
	assert.ErrorIs(t, err, complaint.ErrTextTooShort)
	mockStorage.AssertNotCalled(t, "CreateComplaint", mock.Anything)
}

func TestCreate_OK(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	mockStorage.On("CreateComplaint", mock.AnythingOfType("*models.Complaint")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*models.Complaint).ID = 7
		}).
		Return(nil)

	c, err := svc.Create(complaint.Identity{ID: 42, Handle: "user"}, "A", "  broken   scanner ")
	require.NoError(t, err)
	assert.Equal(t, uint(7), c.ID)
	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, "A", c.Employee)
	assert.Equal(t, "broken scanner", c.Text, "text is stored normalized")
	assert.Equal(t, int64(42), c.ReporterID)
	assert.Equal(t, "user", c.ReporterHandle)
	assert.True(t, fixedNow.Equal(c.CreatedAt))
	mockStorage.AssertExpectations(t)
}

func TestDecide_BadOutcome(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	_, err := svc.Decide(1, models.StatusDeleted, complaint.Identity{ID: 5})
	assert.ErrorIs(t, err, complaint.ErrBadOutcome)
	mockStorage.AssertNotCalled(t, "DecideComplaint",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecide_OK(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	decided := &models.Complaint{ID: 1, Status: models.StatusResolved}
	mockStorage.On("DecideComplaint", uint(1), models.StatusResolved, fixedNow, int64(5), "boss").
		Return(true, nil)
	mockStorage.On("GetComplaintByID", uint(1)).Return(decided, nil)

	c, err := svc.Decide(1, models.StatusResolved, complaint.Identity{ID: 5, Handle: "boss"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, c.Status)
	mockStorage.AssertExpectations(t)
}

func TestDecide_AlreadyDecided(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	existing := &models.Complaint{ID: 1, Status: models.StatusResolved}
	mockStorage.On("DecideComplaint", uint(1), models.StatusRejected, fixedNow, int64(5), "").
		Return(false, nil)
	mockStorage.On("GetComplaintByID", uint(1)).Return(existing, nil)

	_, err := svc.Decide(1, models.StatusRejected, complaint.Identity{ID: 5})
	assert.ErrorIs(t, err, complaint.ErrAlreadyDecided)
}

func TestDecide_NotFound(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	mockStorage.On("DecideComplaint", uint(99), models.StatusResolved, fixedNow, int64(5), "").
		Return(false, nil)
	mockStorage.On("GetComplaintByID", uint(99)).Return(nil, nil)

	_, err := svc.Decide(99, models.StatusResolved, complaint.Identity{ID: 5})
	assert.ErrorIs(t, err, complaint.ErrNotFound)
}

func TestDelete_AlreadyDeleted(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	existing := &models.Complaint{ID: 3, Status: models.StatusDeleted}
	mockStorage.On("SoftDeleteComplaint", uint(3), fixedNow, int64(5), "").
		Return(false, nil)
	mockStorage.On("GetComplaintByID", uint(3)).Return(existing, nil)

	_, err := svc.Delete(3, complaint.Identity{ID: 5})
	assert.ErrorIs(t, err, complaint.ErrAlreadyDeleted)
}

func TestDelete_OK(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := newService(mockStorage)

	deleted := &models.Complaint{ID: 3, Status: models.StatusDeleted}
	mockStorage.On("SoftDeleteComplaint", uint(3), fixedNow, int64(5), "admin").
		Return(true, nil)
	mockStorage.On("GetComplaintByID", uint(3)).Return(deleted, nil)

	c, err := svc.Delete(3, complaint.Identity{ID: 5, Handle: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, c.Status)
}

func TestKnownEmployee(t *testing.T) {
	svc := newService(new(MockStorage))
	assert.True(t, svc.KnownEmployee("A"))
	assert.False(t, svc.KnownEmployee("Z"))
}
