package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/campuscore/backend-go/internal/database/models"
)

// RefreshTokenRepository defines the interface for refresh token
// persistence. Revocation writes only touch rows whose revoked_at is
// still unset, so a revocation can never be undone by a later call.
type RefreshTokenRepository interface {
	Create(token *models.RefreshToken) error
	FindByHash(tokenHash string) (*models.RefreshToken, error)
	TouchUsage(id uint, ip, userAgent string) error
	Revoke(id uint, reason string, replacedBy *uint) error
	RevokeFamily(familyID, reason string) (int64, error)
	RevokeFamilyForUser(userID uint, familyID, reason string) (int64, error)
	RevokeAllForUser(userID uint, reason string) (int64, error)
	ListByUser(userID uint) ([]models.RefreshToken, error)
	DeleteExpired() (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository instance
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(token *models.RefreshToken) error {
	if err := r.db.Create(token).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

// FindByHash returns the record for a presented token, including
// revoked records: the caller needs those to detect reuse.
func (r *refreshTokenRepository) FindByHash(tokenHash string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	err := r.db.Where("token_hash = ?", tokenHash).
		Preload("DeviceSession").
		First(&refreshToken).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &refreshToken, nil
}

func (r *refreshTokenRepository) TouchUsage(id uint, ip, userAgent string) error {
	return r.db.Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_used_at":         time.Now(),
			"last_used_ip":         ip,
			"last_used_user_agent": userAgent,
		}).Error
}

func (r *refreshTokenRepository) Revoke(id uint, reason string, replacedBy *uint) error {
	updates := map[string]interface{}{
		"revoked_at":    time.Now(),
		"revoke_reason": reason,
	}
	if replacedBy != nil {
		updates["replaced_by_token"] = *replacedBy
	}

	result := r.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *refreshTokenRepository) RevokeFamily(familyID, reason string) (int64, error) {
	if familyID == "" {
		return 0, nil
	}
	result := r.db.Model(&models.RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", familyID).
		Updates(map[string]interface{}{
			"revoked_at":    time.Now(),
			"revoke_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *refreshTokenRepository) RevokeFamilyForUser(userID uint, familyID, reason string) (int64, error) {
	result := r.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND family_id = ? AND revoked_at IS NULL", userID, familyID).
		Updates(map[string]interface{}{
			"revoked_at":    time.Now(),
			"revoke_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *refreshTokenRepository) RevokeAllForUser(userID uint, reason string) (int64, error) {
	result := r.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]interface{}{
			"revoked_at":    time.Now(),
			"revoke_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *refreshTokenRepository) ListByUser(userID uint) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	err := r.db.Where("user_id = ?", userID).
		Preload("DeviceSession").
		Order("issued_at DESC").
		Find(&tokens).Error
	return tokens, err
}

func (r *refreshTokenRepository) DeleteExpired() (int64, error) {
	result := r.db.Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

// isUniqueViolation recognizes a uniqueness-constraint failure from
// postgres (code 23505) or sqlite (used in tests).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Repository errors
var (
	ErrTokenNotFound  = errors.New("token not found")
	ErrDuplicateToken = errors.New("token already exists")
)
