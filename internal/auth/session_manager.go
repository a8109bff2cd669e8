package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// CredentialStore is the persistence the token service needs: identity lookup and
// the single refresh-token slot of each identity. Implementations must make
// SwapRefreshToken atomic (a conditional update), since several service instances
// may rotate the same slot concurrently.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, tokenHash string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	SwapRefreshToken(ctx context.Context, userID, currentHash, nextHash string) (bool, error)
}

// Config carries the signing material and lifetimes for issued tokens. It is built
// once at startup and handed to NewManager.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager issues, verifies, rotates and revokes session tokens. Access tokens are
// stateless; refresh tokens are only honoured while their digest occupies the
// identity's session slot.
type Manager struct {
	access  signer
	refresh signer
	store   CredentialStore
	now     func() time.Time
}

// NewManager constructs a Manager. It panics when the store is nil or a secret is
// empty, since the process cannot serve sessions in either case.
func NewManager(cfg Config, store CredentialStore, opts ...Option) *Manager {
	if store == nil {
		panic("auth: credential store must not be nil")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		panic("auth: token secrets must not be empty")
	}

	m := &Manager{
		access:  signer{class: ClassAccess, secret: cfg.AccessSecret, ttl: cfg.AccessTTL, issuer: cfg.Issuer},
		refresh: signer{class: ClassRefresh, secret: cfg.RefreshSecret, ttl: cfg.RefreshTTL, issuer: cfg.Issuer},
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue mints a new token pair for the user and stores the refresh token in the
// user's session slot, displacing whatever session held it before.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.issue")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return models.SessionTokens{}, ErrInvalidUserID
	}

	tokens, err := m.mint(userID)
	if err != nil {
		span.RecordError(err)
		return models.SessionTokens{}, err
	}

	if err := m.store.SetRefreshToken(ctx, userID, digest(tokens.RefreshToken)); err != nil {
		span.RecordError(err)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return models.SessionTokens{}, ErrIdentityMissing
		}
		return models.SessionTokens{}, fmt.Errorf("store refresh token: %w", err)
	}

	return tokens, nil
}

// VerifyAccess resolves an access token to the identity it was issued for.
func (m *Manager) VerifyAccess(ctx context.Context, token string) (models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, ErrTokenMissing
	}

	claims, err := m.access.parse(token, m.now)
	if err != nil {
		return models.User{}, err
	}

	user, err := m.lookup(ctx, claims.Subject)
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// Rotate exchanges a refresh token for a new pair. The presented token must still
// occupy its identity's session slot; the slot is swapped atomically so a refresh
// token can be used at most once, even by concurrent requests.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.rotate")
	defer span.End()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return models.SessionTokens{}, ErrTokenMissing
	}

	claims, err := m.refresh.parse(refreshToken, m.now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	user, err := m.lookup(ctx, claims.Subject)
	if err != nil {
		return models.SessionTokens{}, err
	}

	presented := digest(refreshToken)
	if subtle.ConstantTimeCompare([]byte(user.RefreshTokenHash), []byte(presented)) != 1 {
		return models.SessionTokens{}, ErrTokenStale
	}

	tokens, err := m.mint(user.ID)
	if err != nil {
		span.RecordError(err)
		return models.SessionTokens{}, err
	}

	swapped, err := m.store.SwapRefreshToken(ctx, user.ID, presented, digest(tokens.RefreshToken))
	if err != nil {
		span.RecordError(err)
		return models.SessionTokens{}, fmt.Errorf("swap refresh token: %w", err)
	}
	if !swapped {
		logging.FromContext(ctx).Warn("refresh token rotated concurrently", "userId", user.ID)
		return models.SessionTokens{}, ErrTokenStale
	}

	return tokens, nil
}

// Revoke clears the user's session slot. Revoking an empty slot succeeds.
// Access tokens already issued stay valid until they expire.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	if err := m.store.ClearRefreshToken(ctx, userID); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// AccessTTL is the lifetime of issued access tokens.
func (m *Manager) AccessTTL() time.Duration { return m.access.ttl }

// RefreshTTL is the lifetime of issued refresh tokens.
func (m *Manager) RefreshTTL() time.Duration { return m.refresh.ttl }

func (m *Manager) mint(userID string) (models.SessionTokens, error) {
	now := m.now()

	accessToken, accessExpires, err := m.access.sign(userID, now)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refreshToken, refreshExpires, err := m.refresh.sign(userID, now)
	if err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (m *Manager) lookup(ctx context.Context, userID string) (models.User, error) {
	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return models.User{}, ErrIdentityMissing
		}
		return models.User{}, fmt.Errorf("lookup identity: %w", err)
	}
	return user, nil
}
