package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

func acquire(ctx context.Context, pool db.Pool) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("acquire connection: %w", err))
	}
	return conn, nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token_hash, created_at, updated_at`

func scanUser(row scanner) (models.User, error) {
	var (
		user        models.User
		refreshHash *string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.AvatarURL, &user.CoverImageURL,
		&user.Password, &refreshHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, err
	}
	if refreshHash != nil {
		user.RefreshTokenHash = *refreshHash
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record. Duplicate usernames or emails yield ErrConflict.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.Password,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return pgError("insert user", err)
	}

	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return queryOne(ctx, r.pool, "select user by id", scanUser, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsernameOrEmail fetches the user whose username or email equals key.
func (r *PostgresUserRepository) FindByUsernameOrEmail(ctx context.Context, key string) (models.User, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	return queryOne(ctx, r.pool, "select user by login key", scanUser, `SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 LIMIT 1`, key)
}

// Exists reports whether a user with id exists.
func (r *PostgresUserRepository) Exists(ctx context.Context, id string) (bool, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, pgError("check user exists", err)
	}
	return exists, nil
}

// SetRefreshToken overwrites the session slot of the user.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, userID, tokenHash string) error {
	return r.exec(ctx, "set refresh token", `
        UPDATE users SET refresh_token_hash = $2 WHERE id = $1
    `, userID, tokenHash)
}

// ClearRefreshToken empties the session slot of the user.
func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	return r.exec(ctx, "clear refresh token", `
        UPDATE users SET refresh_token_hash = NULL WHERE id = $1
    `, userID)
}

// SwapRefreshToken replaces the session slot only while it still holds currentHash.
func (r *PostgresUserRepository) SwapRefreshToken(ctx context.Context, userID, currentHash, nextHash string) (bool, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token_hash = $3
        WHERE id = $1 AND refresh_token_hash = $2
    `, userID, currentHash, nextHash)
	if err != nil {
		return false, pgError("swap refresh token", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdatePassword stores a new password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, "update password", `
        UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
    `, id, passwordHash, time.Now().UTC())
}

// UpdateAccount changes the display name and email of a user.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	return queryOne(ctx, r.pool, "update account", scanUser, `
        UPDATE users SET full_name = $2, email = $3, updated_at = $4 WHERE id = $1
        RETURNING `+userColumns, id, fullName, strings.ToLower(email), time.Now().UTC())
}

// UpdateAvatar records a new avatar location.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, url string) (models.User, error) {
	return queryOne(ctx, r.pool, "update avatar", scanUser, `
        UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1
        RETURNING `+userColumns, id, url, time.Now().UTC())
}

// UpdateCoverImage records a new cover image location.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id, url string) (models.User, error) {
	return queryOne(ctx, r.pool, "update cover image", scanUser, `
        UPDATE users SET cover_image_url = $2, updated_at = $3 WHERE id = $1
        RETURNING `+userColumns, id, url, time.Now().UTC())
}

// ChannelProfile loads a channel by username together with its subscription
// counters and whether viewerID is subscribed to it.
func (r *PostgresUserRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.ChannelProfile{}, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.username, u.email, u.full_name, u.avatar_url, u.cover_image_url, u.created_at, u.updated_at,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
               (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
               EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2)
        FROM users u
        WHERE u.username = $1
    `, strings.ToLower(strings.TrimSpace(username)), nullableID(viewerID))

	var p models.ChannelProfile
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.AvatarURL, &p.CoverImageURL, &p.CreatedAt, &p.UpdatedAt,
		&p.SubscribersCount, &p.SubscribedToCount, &p.IsSubscribed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, pgError("select channel profile", err)
	}
	return p, nil
}

func (r *PostgresUserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return pgError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
