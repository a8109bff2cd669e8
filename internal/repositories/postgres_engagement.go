package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresEngagementRepository stores likes and subscriptions in PostgreSQL. The
// unique constraints on both tables are what collapse racing toggles.
type PostgresEngagementRepository struct {
	pool db.Pool
}

// NewPostgresEngagementRepository constructs an engagement repository backed by PostgreSQL.
func NewPostgresEngagementRepository(pool db.Pool) *PostgresEngagementRepository {
	return &PostgresEngagementRepository{pool: pool}
}

// edgeQueries returns the statements that operate on the table holding kind.
// Each statement takes the actor as $1 and the target as $2.
func edgeQueries(kind models.EdgeKind) (exists, insert, remove string, args func(models.Edge) []any, err error) {
	switch {
	case kind == models.EdgeSubscription:
		return `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)`,
			`INSERT INTO subscriptions (subscriber_id, channel_id, id, created_at) VALUES ($1, $2, $3, $4)
             ON CONFLICT (subscriber_id, channel_id) DO NOTHING`,
			`DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
			func(e models.Edge) []any { return []any{e.ActorID, e.TargetID} },
			nil
	case kind.IsLike():
		return `SELECT EXISTS (SELECT 1 FROM likes WHERE actor_id = $1 AND target_id = $2 AND kind = $3)`,
			`INSERT INTO likes (actor_id, target_id, kind, id, created_at) VALUES ($1, $2, $3, $4, $5)
             ON CONFLICT (actor_id, target_id, kind) DO NOTHING`,
			`DELETE FROM likes WHERE actor_id = $1 AND target_id = $2 AND kind = $3`,
			func(e models.Edge) []any { return []any{e.ActorID, e.TargetID, string(e.Kind)} },
			nil
	}
	return "", "", "", nil, fmt.Errorf("unknown edge kind %q", kind)
}

// Exists reports whether edge is stored.
func (r *PostgresEngagementRepository) Exists(ctx context.Context, edge models.Edge) (bool, error) {
	query, _, _, args, err := edgeQueries(edge.Kind)
	if err != nil {
		return false, err
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, query, args(edge)...).Scan(&exists); err != nil {
		return false, pgError("check "+string(edge.Kind)+" edge", err)
	}
	return exists, nil
}

// Insert stores edge. It reports false when an identical edge was already present.
func (r *PostgresEngagementRepository) Insert(ctx context.Context, edge models.Edge) (bool, error) {
	_, query, _, args, err := edgeQueries(edge.Kind)
	if err != nil {
		return false, err
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	values := append(args(edge), uuid.NewString(), time.Now().UTC())
	tag, err := conn.Exec(ctx, query, values...)
	if err != nil {
		return false, pgError("insert "+string(edge.Kind)+" edge", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes edge. It reports false when there was nothing to remove.
func (r *PostgresEngagementRepository) Delete(ctx context.Context, edge models.Edge) (bool, error) {
	_, _, query, args, err := edgeQueries(edge.Kind)
	if err != nil {
		return false, err
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args(edge)...)
	if err != nil {
		return false, pgError("delete "+string(edge.Kind)+" edge", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LikedVideos returns one page of the published videos userID liked, most recent like first.
func (r *PostgresEngagementRepository) LikedVideos(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error) {
	return queryPage(ctx, r.pool, "liked video", scanVideo, `
        SELECT COUNT(*) FROM likes l JOIN videos v ON v.id = l.target_id
        WHERE l.actor_id = $1 AND l.kind = 'video' AND v.is_published`, `
        SELECT `+prefixed("v", videoColumns)+`
        FROM likes l JOIN videos v ON v.id = l.target_id
        WHERE l.actor_id = $1 AND l.kind = 'video' AND v.is_published
        ORDER BY l.created_at DESC, v.id LIMIT $2 OFFSET $3`,
		userID, page)
}

// Subscribers returns one page of the users subscribed to channelID.
func (r *PostgresEngagementRepository) Subscribers(ctx context.Context, channelID string, page models.Page) ([]models.User, int64, error) {
	return queryPage(ctx, r.pool, "subscriber", scanPublicUser,
		`SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, `
        SELECT `+prefixed("u", userColumns)+`
        FROM subscriptions s JOIN users u ON u.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC, u.id LIMIT $2 OFFSET $3`,
		channelID, page)
}

// SubscribedChannels returns one page of the channels subscriberID follows.
func (r *PostgresEngagementRepository) SubscribedChannels(ctx context.Context, subscriberID string, page models.Page) ([]models.User, int64, error) {
	return queryPage(ctx, r.pool, "subscribed channel", scanPublicUser,
		`SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, `
        SELECT `+prefixed("u", userColumns)+`
        FROM subscriptions s JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC, u.id LIMIT $2 OFFSET $3`,
		subscriberID, page)
}

// CountLikes returns the number of likes of kind on targetID.
func (r *PostgresEngagementRepository) CountLikes(ctx context.Context, targetID string, kind models.EdgeKind) (int64, error) {
	if !kind.IsLike() {
		return 0, fmt.Errorf("unknown like kind %q", kind)
	}

	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var n int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE target_id = $1 AND kind = $2`, targetID, string(kind)).Scan(&n); err != nil {
		return 0, pgError("count "+string(kind)+" likes", err)
	}
	return n, nil
}

func scanPublicUser(row scanner) (models.User, error) {
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// prefixed qualifies every column of a column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

var _ EngagementRepository = (*PostgresEngagementRepository)(nil)
