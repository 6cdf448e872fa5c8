package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuscore/backend-go/internal/database/models"
	"github.com/campuscore/backend-go/internal/database/repository"
	"github.com/campuscore/backend-go/internal/identity"
	"github.com/campuscore/backend-go/internal/token"
)

// RequestContext carries the connection metadata recorded on every
// token and audit row
type RequestContext struct {
	IP        string
	UserAgent string
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginResult is returned by login and refresh operations
type LoginResult struct {
	User     *models.User
	Tokens   *TokenPair
	FamilyID string
}

// SessionSummary is one token family collapsed into a session view
type SessionSummary struct {
	FamilyID     string     `json:"family_id"`
	TokenCount   int        `json:"token_count"`
	IssuedAt     time.Time  `json:"issued_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
	IsActive     bool       `json:"is_active"`
	IsCurrent    bool       `json:"is_current"`
	IPAddress    string     `json:"ip_address,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
}

// AuthService is the rotation engine: it issues token pairs bound to a
// family, verifies and rotates presented refresh tokens, detects reuse
// and revokes compromised families.
type AuthService interface {
	LoginWithPassword(rc RequestContext, email, password string) (*LoginResult, error)
	LoginWithGoogle(ctx context.Context, rc RequestContext, idToken string) (*LoginResult, error)
	Refresh(rc RequestContext, refreshToken string) (*LoginResult, error)
	Logout(rc RequestContext, refreshToken string) error
	LogoutAll(rc RequestContext, userID uint) (int64, error)
	RevokeSession(rc RequestContext, userID uint, familyID string) (int64, error)
	ListSessions(userID uint, currentFamilyID string) ([]SessionSummary, error)
	LoginHistory(userID uint, limit int) ([]models.LoginEvent, error)
	GetUser(userID uint) (*models.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	eventRepo repository.LoginEventRepository
	sessions  SessionManager
	audit     AuditRecorder
	codec     *token.Codec
	verifier  identity.Verifier
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service instance
func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	eventRepo repository.LoginEventRepository,
	sessions SessionManager,
	audit AuditRecorder,
	codec *token.Codec,
	verifier identity.Verifier,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		eventRepo: eventRepo,
		sessions:  sessions,
		audit:     audit,
		codec:     codec,
		verifier:  verifier,
		logger:    logger,
	}
}

// Used for the dummy compare when an account has no password, so the
// response time does not reveal whether the email exists.
var dummyPasswordHash, _ = bcrypt.GenerateFromPassword([]byte("invalid-password-placeholder"), bcrypt.DefaultCost)

func (s *authService) LoginWithPassword(rc RequestContext, email, password string) (*LoginResult, error) {
	s.logger.Info("🔐 [AuthService] Login attempt", "email", email)

	user, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		s.logger.Error("❌ [AuthService] Database error", "error", err)
		return nil, err
	}

	if !verifyPassword(password, user) {
		s.recordFailure(userIDOf(user), "", "", rc, models.EventTypeLogin, "invalid-credentials")
		s.logger.Warn("⚠️ [AuthService] Invalid credentials", "email", email)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		s.recordFailure(&user.ID, "", "", rc, models.EventTypeLogin, "user-inactive")
		s.logger.Warn("⚠️ [AuthService] Inactive user login attempt", "user_id", user.ID)
		return nil, ErrUserInactive
	}

	return s.issueInitial(user, rc)
}

func (s *authService) LoginWithGoogle(ctx context.Context, rc RequestContext, idToken string) (*LoginResult, error) {
	s.logger.Info("🔐 [AuthService] Google login attempt")

	profile, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.recordFailure(nil, "", "", rc, models.EventTypeLogin, "invalid-assertion")
		s.logger.Warn("⚠️ [AuthService] Identity assertion rejected", "error", err)
		return nil, err
	}

	if !profile.EmailVerified {
		s.recordFailure(nil, "", "", rc, models.EventTypeLogin, "email-not-verified")
		return nil, ErrEmailNotVerified
	}

	user, err := s.upsertGoogleUser(profile)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to upsert user", "error", err)
		return nil, err
	}

	if !user.IsActive() {
		s.recordFailure(&user.ID, "", "", rc, models.EventTypeLogin, "user-inactive")
		return nil, ErrUserInactive
	}

	return s.issueInitial(user, rc)
}

// issueInitial opens a session, starts a fresh token family and
// persists the refresh record before any token leaves this function.
func (s *authService) issueInitial(user *models.User, rc RequestContext) (*LoginResult, error) {
	session, err := s.sessions.Open(user.ID, rc.IP, rc.UserAgent)
	if err != nil {
		return nil, err
	}

	familyID := token.NewFamilyID()
	pair, accessJTI, refreshJTI, err := s.mintPair(user, familyID)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to sign tokens", "error", err)
		return nil, err
	}

	if _, err := s.persistRefreshToken(user.ID, pair.RefreshToken, refreshJTI, familyID, &session.ID, rc); err != nil {
		s.logger.Error("❌ [AuthService] Failed to persist refresh token", "error", err)
		return nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(user); err != nil {
		s.logger.Warn("⚠️ [AuthService] Failed to update last login", "user_id", user.ID, "error", err)
	}

	s.audit.Record(AuditEntry{
		UserID:          &user.ID,
		DeviceSessionID: &session.ID,
		FamilyID:        familyID,
		AccessTokenJTI:  accessJTI,
		RefreshTokenJTI: refreshJTI,
		EventType:       models.EventTypeLogin,
		Success:         true,
		IP:              rc.IP,
		UserAgent:       rc.UserAgent,
	})

	s.logger.Info("✅ [AuthService] User logged in", "user_id", user.ID, "family_id", familyID)

	return &LoginResult{User: user, Tokens: pair, FamilyID: familyID}, nil
}

func (s *authService) Refresh(rc RequestContext, refreshToken string) (*LoginResult, error) {
	s.logger.Info("🔄 [AuthService] Token refresh attempt")

	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		// The signature or expiry check failed, so nothing in this
		// token can be trusted. Still widen the blast radius: an
		// expired-but-parseable token that leaked names a family worth
		// killing. The decoded claims are never used to authorize.
		if decoded := s.codec.DecodeUnverified(refreshToken); decoded != nil && decoded.FamilyID != "" {
			if _, revokeErr := s.tokenRepo.RevokeFamily(decoded.FamilyID, models.RevokeReasonTokenInvalid); revokeErr != nil {
				s.logger.Error("❌ [AuthService] Best-effort family revocation failed", "error", revokeErr)
			}
			s.recordFailure(parseSubject(decoded.Subject), decoded.FamilyID, decoded.ID, rc, models.EventTypeRefresh, "refresh-token-invalid")
		} else {
			s.recordFailure(nil, "", "", rc, models.EventTypeRefresh, "refresh-token-invalid")
		}
		s.logger.Warn("⚠️ [AuthService] Refresh token rejected", "error", err)
		return nil, err
	}

	tokenHash := token.HashToken(refreshToken)
	record, err := s.tokenRepo.FindByHash(tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			// A token that verifies but has no record means the signing
			// secret leaked or a record vanished. Treat as compromise.
			if _, revokeErr := s.tokenRepo.RevokeFamily(claims.FamilyID, models.RevokeReasonTokenMissing); revokeErr != nil {
				s.logger.Error("❌ [AuthService] Best-effort family revocation failed", "error", revokeErr)
			}
			s.recordFailure(parseSubject(claims.Subject), claims.FamilyID, claims.ID, rc, models.EventTypeRefresh, "refresh-token-not-found")
			s.logger.Warn("⚠️ [AuthService] Verified refresh token has no record", "family_id", claims.FamilyID)
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	if record.IsRevoked() {
		// Reuse detection. A legitimate rotation revokes the old record
		// in the same call that issued its successor, so a revoked
		// token arriving again is either an attacker replaying a stolen
		// token or a client that lost the rotation response. The server
		// cannot tell them apart; both kill the family.
		if _, revokeErr := s.tokenRepo.RevokeFamily(record.FamilyID, models.RevokeReasonReuseDetected); revokeErr != nil {
			s.logger.Error("❌ [AuthService] Family revocation failed", "family_id", record.FamilyID, "error", revokeErr)
		}
		if record.DeviceSessionID != nil {
			if closeErr := s.sessions.Close(*record.DeviceSessionID); closeErr != nil {
				s.logger.Warn("⚠️ [AuthService] Failed to close session after reuse", "error", closeErr)
			}
		}
		s.audit.Record(AuditEntry{
			UserID:          &record.UserID,
			DeviceSessionID: record.DeviceSessionID,
			FamilyID:        record.FamilyID,
			RefreshTokenJTI: record.JTI,
			EventType:       models.EventTypeRefresh,
			Success:         false,
			FailureReason:   "refresh-token-reuse",
			IP:              rc.IP,
			UserAgent:       rc.UserAgent,
		})
		s.logger.Warn("🚨 [AuthService] Refresh token reuse detected, family revoked", "family_id", record.FamilyID)
		return nil, ErrReplayDetected
	}

	// Leave a usage trace before any state transition, so even an
	// aborted rotation is visible afterwards.
	if err := s.tokenRepo.TouchUsage(record.ID, rc.IP, rc.UserAgent); err != nil {
		s.logger.Warn("⚠️ [AuthService] Failed to touch token usage", "error", err)
	}

	user, err := s.userRepo.FindByID(record.UserID)
	if err != nil || !user.IsActive() {
		if _, revokeErr := s.tokenRepo.RevokeFamily(record.FamilyID, models.RevokeReasonUserInactive); revokeErr != nil {
			s.logger.Error("❌ [AuthService] Family revocation failed", "error", revokeErr)
		}
		s.recordFailure(&record.UserID, record.FamilyID, record.JTI, rc, models.EventTypeRefresh, "user-inactive")
		s.logger.Warn("⚠️ [AuthService] Refresh for inactive user, family revoked", "user_id", record.UserID)
		return nil, ErrUserInactive
	}

	pair, accessJTI, refreshJTI, err := s.mintPair(user, record.FamilyID)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to sign tokens", "error", err)
		return nil, err
	}

	// Persist the successor before revoking the predecessor. A crash in
	// between leaves two usable-looking records, which is the safer
	// failure direction; the reverse would leave the user with none.
	newRecord, err := s.persistRefreshToken(user.ID, pair.RefreshToken, refreshJTI, record.FamilyID, record.DeviceSessionID, rc)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateToken) {
			s.logger.Warn("⚠️ [AuthService] Lost rotation race on insert", "family_id", record.FamilyID)
		}
		return nil, err
	}

	if err := s.tokenRepo.Revoke(record.ID, models.RevokeReasonRotated, &newRecord.ID); err != nil {
		// A concurrent revocation won; the monotonic guard keeps the
		// earlier write. The new pair stays valid.
		if !errors.Is(err, repository.ErrTokenNotFound) {
			s.logger.Error("❌ [AuthService] Failed to mark token rotated", "error", err)
		}
	}

	s.audit.Record(AuditEntry{
		UserID:          &user.ID,
		DeviceSessionID: record.DeviceSessionID,
		FamilyID:        record.FamilyID,
		AccessTokenJTI:  accessJTI,
		RefreshTokenJTI: refreshJTI,
		EventType:       models.EventTypeRefresh,
		Success:         true,
		IP:              rc.IP,
		UserAgent:       rc.UserAgent,
	})

	s.logger.Info("✅ [AuthService] Token refreshed", "user_id", user.ID, "family_id", record.FamilyID)

	return &LoginResult{User: user, Tokens: pair, FamilyID: record.FamilyID}, nil
}

// Logout revokes the presented token's family and ends its session.
// It never fails the caller: a missing, malformed or already-revoked
// token still results in cleared cookies client-side.
func (s *authService) Logout(rc RequestContext, refreshToken string) error {
	s.logger.Info("👋 [AuthService] Logout attempt")

	if refreshToken == "" {
		return nil
	}

	decoded := s.codec.DecodeUnverified(refreshToken)
	record, err := s.tokenRepo.FindByHash(token.HashToken(refreshToken))
	if err != nil && !errors.Is(err, repository.ErrTokenNotFound) {
		s.logger.Warn("⚠️ [AuthService] Logout lookup failed", "error", err)
	}

	var userID *uint
	var sessionID *uint
	var familyID, refreshJTI string

	switch {
	case record != nil:
		familyID = record.FamilyID
		refreshJTI = record.JTI
		userID = &record.UserID
		sessionID = record.DeviceSessionID
		if _, err := s.tokenRepo.RevokeFamily(record.FamilyID, models.RevokeReasonLogout); err != nil {
			s.logger.Warn("⚠️ [AuthService] Logout family revocation failed", "error", err)
		}
		if record.DeviceSessionID != nil {
			if err := s.sessions.Close(*record.DeviceSessionID); err != nil {
				s.logger.Warn("⚠️ [AuthService] Logout session close failed", "error", err)
			}
		}
	case decoded != nil && decoded.FamilyID != "":
		familyID = decoded.FamilyID
		refreshJTI = decoded.ID
		userID = parseSubject(decoded.Subject)
		if _, err := s.tokenRepo.RevokeFamily(decoded.FamilyID, models.RevokeReasonLogoutDecodeOnly); err != nil {
			s.logger.Warn("⚠️ [AuthService] Logout family revocation failed", "error", err)
		}
	}

	s.audit.Record(AuditEntry{
		UserID:          userID,
		DeviceSessionID: sessionID,
		FamilyID:        familyID,
		RefreshTokenJTI: refreshJTI,
		EventType:       models.EventTypeLogout,
		Success:         true,
		IP:              rc.IP,
		UserAgent:       rc.UserAgent,
	})

	s.logger.Info("✅ [AuthService] User logged out", "family_id", familyID)
	return nil
}

func (s *authService) LogoutAll(rc RequestContext, userID uint) (int64, error) {
	revoked, err := s.tokenRepo.RevokeAllForUser(userID, models.RevokeReasonLogoutAll)
	if err != nil {
		s.logger.Error("❌ [AuthService] Logout-all revocation failed", "user_id", userID, "error", err)
		return 0, err
	}

	if _, err := s.sessions.CloseAllForUser(userID); err != nil {
		s.logger.Warn("⚠️ [AuthService] Failed to end sessions on logout-all", "error", err)
	}

	s.audit.Record(AuditEntry{
		UserID:        &userID,
		EventType:     models.EventTypeLogout,
		Success:       true,
		FailureReason: "logout-all",
		IP:            rc.IP,
		UserAgent:     rc.UserAgent,
	})

	s.logger.Info("✅ [AuthService] All sessions revoked", "user_id", userID, "tokens_revoked", revoked)
	return revoked, nil
}

func (s *authService) RevokeSession(rc RequestContext, userID uint, familyID string) (int64, error) {
	if familyID == "" {
		return 0, ErrSessionNotFound
	}

	tokens, err := s.tokenRepo.ListByUser(userID)
	if err != nil {
		return 0, err
	}

	var sessionIDs []uint
	found := false
	for _, t := range tokens {
		if t.FamilyID != familyID {
			continue
		}
		found = true
		if t.DeviceSessionID != nil {
			sessionIDs = append(sessionIDs, *t.DeviceSessionID)
		}
	}
	if !found {
		return 0, ErrSessionNotFound
	}

	revoked, err := s.tokenRepo.RevokeFamilyForUser(userID, familyID, models.RevokeReasonSessionRevoked)
	if err != nil {
		return 0, err
	}

	for _, id := range sessionIDs {
		if err := s.sessions.Close(id); err != nil {
			s.logger.Warn("⚠️ [AuthService] Failed to close session", "session_id", id, "error", err)
		}
	}

	s.audit.Record(AuditEntry{
		UserID:        &userID,
		FamilyID:      familyID,
		EventType:     models.EventTypeLogout,
		Success:       true,
		FailureReason: "session-revoked",
		IP:            rc.IP,
		UserAgent:     rc.UserAgent,
	})

	s.logger.Info("✅ [AuthService] Session revoked", "user_id", userID, "family_id", familyID)
	return revoked, nil
}

// ListSessions collapses the user's refresh tokens into per-family
// session summaries. The newest token in a family represents it.
func (s *authService) ListSessions(userID uint, currentFamilyID string) ([]SessionSummary, error) {
	tokens, err := s.tokenRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	latestByFamily := make(map[string]*models.RefreshToken)
	countByFamily := make(map[string]int)
	for i := range tokens {
		t := &tokens[i]
		countByFamily[t.FamilyID]++
		if cur, ok := latestByFamily[t.FamilyID]; !ok || t.IssuedAt.After(cur.IssuedAt) {
			latestByFamily[t.FamilyID] = t
		}
	}

	sessions := make([]SessionSummary, 0, len(latestByFamily))
	for familyID, latest := range latestByFamily {
		summary := SessionSummary{
			FamilyID:     familyID,
			TokenCount:   countByFamily[familyID],
			IssuedAt:     latest.IssuedAt,
			LastUsedAt:   latest.LastUsedAt,
			ExpiresAt:    latest.ExpiresAt,
			RevokedAt:    latest.RevokedAt,
			RevokeReason: latest.RevokeReason,
			IsActive:     !latest.IsRevoked() && !latest.IsExpired(),
			IsCurrent:    familyID == currentFamilyID,
			IPAddress:    firstNonEmpty(latest.LastUsedIP, latest.IssuedIP),
			UserAgent:    firstNonEmpty(latest.LastUsedUserAgent, latest.IssuedUserAgent),
		}
		sessions = append(sessions, summary)
	}

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.IsCurrent != b.IsCurrent {
			return a.IsCurrent
		}
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		return a.IssuedAt.After(b.IssuedAt)
	})

	return sessions, nil
}

func (s *authService) LoginHistory(userID uint, limit int) ([]models.LoginEvent, error) {
	return s.eventRepo.ListByUser(userID, limit)
}

func (s *authService) GetUser(userID uint) (*models.User, error) {
	return s.userRepo.FindByID(userID)
}

// ==================== helpers ====================

func (s *authService) mintPair(user *models.User, familyID string) (*TokenPair, string, string, error) {
	accessJTI := token.NewJTI()
	refreshJTI := token.NewJTI()
	subject := strconv.FormatUint(uint64(user.ID), 10)

	accessToken, err := s.codec.SignAccess(subject, user.Role, familyID, accessJTI)
	if err != nil {
		return nil, "", "", err
	}

	refreshToken, err := s.codec.SignRefresh(subject, familyID, refreshJTI)
	if err != nil {
		return nil, "", "", err
	}

	pair := &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}
	return pair, accessJTI, refreshJTI, nil
}

func (s *authService) persistRefreshToken(userID uint, rawToken, jti, familyID string, sessionID *uint, rc RequestContext) (*models.RefreshToken, error) {
	now := time.Now()
	record := &models.RefreshToken{
		UserID:            userID,
		TokenHash:         token.HashToken(rawToken),
		JTI:               jti,
		FamilyID:          familyID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.codec.RefreshTTL()),
		LastUsedAt:        &now,
		DeviceSessionID:   sessionID,
		IssuedIP:          rc.IP,
		IssuedUserAgent:   rc.UserAgent,
		LastUsedIP:        rc.IP,
		LastUsedUserAgent: rc.UserAgent,
	}

	if err := s.tokenRepo.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *authService) recordFailure(userID *uint, familyID, refreshJTI string, rc RequestContext, eventType, reason string) {
	s.audit.Record(AuditEntry{
		UserID:          userID,
		FamilyID:        familyID,
		RefreshTokenJTI: refreshJTI,
		EventType:       eventType,
		Success:         false,
		FailureReason:   reason,
		IP:              rc.IP,
		UserAgent:       rc.UserAgent,
	})
}

func (s *authService) upsertGoogleUser(profile *identity.Profile) (*models.User, error) {
	user, err := s.userRepo.FindByGoogleID(profile.SubjectID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if user == nil && profile.Email != "" {
		user, err = s.userRepo.FindByEmail(profile.Email)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
	}

	googleID := profile.SubjectID

	if user == nil {
		user = &models.User{
			Email:        profile.Email,
			FullName:     firstNonEmpty(profile.DisplayName, profile.Email),
			Role:         "student",
			Status:       models.UserStatusActive,
			AuthProvider: "google",
			GoogleID:     &googleID,
			AvatarURL:    profile.AvatarURL,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, err
		}
		return user, nil
	}

	user.AuthProvider = "google"
	user.GoogleID = &googleID
	user.FullName = firstNonEmpty(profile.DisplayName, user.FullName)
	user.AvatarURL = firstNonEmpty(profile.AvatarURL, user.AvatarURL)
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func verifyPassword(password string, user *models.User) bool {
	if user == nil || user.Password == "" {
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

func userIDOf(user *models.User) *uint {
	if user == nil {
		return nil
	}
	return &user.ID
}

func parseSubject(subject string) *uint {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return nil
	}
	uid := uint(id)
	return &uid
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Service errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrUserInactive       = errors.New("user is inactive")
	ErrMissingToken       = errors.New("missing refresh token")
	ErrTokenNotFound      = errors.New("refresh token not found")
	ErrReplayDetected     = errors.New("refresh token reuse detected")
	ErrSessionNotFound    = errors.New("session not found")
)
