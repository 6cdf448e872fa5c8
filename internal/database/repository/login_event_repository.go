package repository

import (
	"gorm.io/gorm"

	"github.com/campuscore/backend-go/internal/database/models"
)

// LoginEventRepository is the append-only store for audit events. There
// is deliberately no update or delete operation.
type LoginEventRepository interface {
	Create(event *models.LoginEvent) error
	ListByUser(userID uint, limit int) ([]models.LoginEvent, error)
}

type loginEventRepository struct {
	db *gorm.DB
}

// NewLoginEventRepository creates a new login event repository instance
func NewLoginEventRepository(db *gorm.DB) LoginEventRepository {
	return &loginEventRepository{db: db}
}

func (r *loginEventRepository) Create(event *models.LoginEvent) error {
	return r.db.Create(event).Error
}

func (r *loginEventRepository) ListByUser(userID uint, limit int) ([]models.LoginEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var events []models.LoginEvent
	err := r.db.Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
