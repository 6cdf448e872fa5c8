package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campuscore/backend-go/internal/database/models"
)

// DeviceSessionRepository defines the interface for device session persistence
type DeviceSessionRepository interface {
	Create(session *models.DeviceSession) error
	FindByID(id uint) (*models.DeviceSession, error)
	// End marks a session inactive. Ending an already-ended session is
	// a no-op, not an error.
	End(id uint) error
	EndAllForUser(userID uint) (int64, error)
}

type deviceSessionRepository struct {
	db *gorm.DB
}

// NewDeviceSessionRepository creates a new device session repository instance
func NewDeviceSessionRepository(db *gorm.DB) DeviceSessionRepository {
	return &deviceSessionRepository{db: db}
}

func (r *deviceSessionRepository) Create(session *models.DeviceSession) error {
	return r.db.Create(session).Error
}

func (r *deviceSessionRepository) FindByID(id uint) (*models.DeviceSession, error) {
	var session models.DeviceSession
	if err := r.db.First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *deviceSessionRepository) End(id uint) error {
	return r.db.Model(&models.DeviceSession{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"ended_at":  time.Now(),
			"is_active": false,
		}).Error
}

func (r *deviceSessionRepository) EndAllForUser(userID uint) (int64, error) {
	result := r.db.Model(&models.DeviceSession{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{
			"ended_at":  time.Now(),
			"is_active": false,
		})
	return result.RowsAffected, result.Error
}

// Repository errors
var ErrSessionNotFound = errors.New("device session not found")
