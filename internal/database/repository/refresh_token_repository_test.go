package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campuscore/backend-go/internal/database/models"
	"github.com/campuscore/backend-go/internal/database/repository"
)

// setupTestDB creates a new in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.DeviceSession{}, &models.RefreshToken{}, &models.LoginEvent{})
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	user := &models.User{
		Email:    "test@example.com",
		FullName: "Test User",
		Role:     "student",
		Status:   models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newTokenRecord(userID uint, hash, jti, familyID string) *models.RefreshToken {
	now := time.Now()
	return &models.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		JTI:       jti,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestRefreshTokenRepository_CreateAndFindByHash(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	record := newTokenRecord(user.ID, "hash-1", "jti-1", "family-1")
	require.NoError(t, repo.Create(record))
	assert.NotZero(t, record.ID)

	found, err := repo.FindByHash("hash-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, "family-1", found.FamilyID)

	_, err = repo.FindByHash("missing")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestRefreshTokenRepository_UniqueConstraints(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	require.NoError(t, repo.Create(newTokenRecord(user.ID, "hash-1", "jti-1", "family-1")))

	tests := []struct {
		name   string
		record *models.RefreshToken
	}{
		{name: "duplicate token hash", record: newTokenRecord(user.ID, "hash-1", "jti-2", "family-1")},
		{name: "duplicate jti", record: newTokenRecord(user.ID, "hash-2", "jti-1", "family-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(tt.record)
			assert.ErrorIs(t, err, repository.ErrDuplicateToken)
		})
	}
}

// FindByHash must return revoked records: the rotation engine relies on
// seeing them to detect reuse.
func TestRefreshTokenRepository_FindByHashReturnsRevoked(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	record := newTokenRecord(user.ID, "hash-1", "jti-1", "family-1")
	require.NoError(t, repo.Create(record))
	require.NoError(t, repo.Revoke(record.ID, models.RevokeReasonLogout, nil))

	found, err := repo.FindByHash("hash-1")
	require.NoError(t, err)
	assert.True(t, found.IsRevoked())
	assert.Equal(t, models.RevokeReasonLogout, *found.RevokeReason)
}

func TestRefreshTokenRepository_RevokeIsMonotonic(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	record := newTokenRecord(user.ID, "hash-1", "jti-1", "family-1")
	require.NoError(t, repo.Create(record))

	require.NoError(t, repo.Revoke(record.ID, models.RevokeReasonRotated, nil))

	first, err := repo.FindByHash("hash-1")
	require.NoError(t, err)
	require.NotNil(t, first.RevokedAt)

	// A second revocation must not clear or overwrite the first.
	err = repo.Revoke(record.ID, models.RevokeReasonReuseDetected, nil)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	second, err := repo.FindByHash("hash-1")
	require.NoError(t, err)
	assert.Equal(t, models.RevokeReasonRotated, *second.RevokeReason)
	assert.WithinDuration(t, *first.RevokedAt, *second.RevokedAt, time.Millisecond)
}

func TestRefreshTokenRepository_RevokeFamily(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	require.NoError(t, repo.Create(newTokenRecord(user.ID, "hash-1", "jti-1", "family-a")))
	require.NoError(t, repo.Create(newTokenRecord(user.ID, "hash-2", "jti-2", "family-a")))
	require.NoError(t, repo.Create(newTokenRecord(user.ID, "hash-3", "jti-3", "family-b")))

	revoked, err := repo.RevokeFamily("family-a", models.RevokeReasonReuseDetected)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	// family-b untouched
	other, err := repo.FindByHash("hash-3")
	require.NoError(t, err)
	assert.False(t, other.IsRevoked())

	// Revoking again changes nothing.
	revoked, err = repo.RevokeFamily("family-a", models.RevokeReasonLogout)
	require.NoError(t, err)
	assert.Zero(t, revoked)

	kept, err := repo.FindByHash("hash-1")
	require.NoError(t, err)
	assert.Equal(t, models.RevokeReasonReuseDetected, *kept.RevokeReason)
}

func TestRefreshTokenRepository_RevokeFamilyEmptyID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)

	revoked, err := repo.RevokeFamily("", models.RevokeReasonLogout)
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestRefreshTokenRepository_TouchUsage(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	record := newTokenRecord(user.ID, "hash-1", "jti-1", "family-1")
	require.NoError(t, repo.Create(record))

	require.NoError(t, repo.TouchUsage(record.ID, "10.0.0.1", "test-agent"))

	found, err := repo.FindByHash("hash-1")
	require.NoError(t, err)
	require.NotNil(t, found.LastUsedAt)
	assert.Equal(t, "10.0.0.1", found.LastUsedIP)
	assert.Equal(t, "test-agent", found.LastUsedUserAgent)
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	expired := newTokenRecord(user.ID, "hash-old", "jti-old", "family-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(expired))
	require.NoError(t, repo.Create(newTokenRecord(user.ID, "hash-new", "jti-new", "family-1")))

	deleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByHash("hash-old")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	_, err = repo.FindByHash("hash-new")
	assert.NoError(t, err)
}

func TestRefreshTokenRepository_ListByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRefreshTokenRepository(db)
	user := createTestUser(t, db)

	older := newTokenRecord(user.ID, "hash-1", "jti-1", "family-1")
	older.IssuedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(older))
	require.NoError(t, repo.Create(newTokenRecord(user.ID, "hash-2", "jti-2", "family-1")))

	tokens, err := repo.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "hash-2", tokens[0].TokenHash)

	tokens, err = repo.ListByUser(user.ID + 1)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
