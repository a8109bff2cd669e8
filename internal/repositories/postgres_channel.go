package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// RecordWatch adds videoID to the watch history of userID. Watching a video again
// moves it to the front of the history.
func (r *PostgresVideoRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at) VALUES ($1, $2, $3)
        ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = EXCLUDED.watched_at
    `, userID, videoID, time.Now().UTC())
	if err != nil {
		return pgError("record watch", err)
	}
	return nil
}

// WatchHistory returns one page of the videos userID watched, most recent first.
// Videos unpublished since are kept only for their owner.
func (r *PostgresVideoRepository) WatchHistory(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error) {
	return queryPage(ctx, r.pool, "watched video", scanVideo, `
        SELECT COUNT(*) FROM watch_history h JOIN videos v ON v.id = h.video_id
        WHERE h.user_id = $1 AND (v.is_published OR v.owner_id = $1)`, `
        SELECT `+prefixed("v", videoColumns)+`
        FROM watch_history h JOIN videos v ON v.id = h.video_id
        WHERE h.user_id = $1 AND (v.is_published OR v.owner_id = $1)
        ORDER BY h.watched_at DESC, v.id LIMIT $2 OFFSET $3`,
		userID, page)
}

// ChannelStats totals the videos, views, likes and subscribers of ownerID.
// Drafts count towards every total.
func (r *PostgresVideoRepository) ChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.ChannelStats{}, err
	}
	defer conn.Release()

	var stats models.ChannelStats
	err = conn.QueryRow(ctx, `
        SELECT (SELECT COUNT(*) FROM videos WHERE owner_id = $1),
               (SELECT COALESCE(SUM(views), 0)::BIGINT FROM videos WHERE owner_id = $1),
               (SELECT COUNT(*) FROM likes l JOIN videos v ON v.id = l.target_id
                WHERE l.kind = 'video' AND v.owner_id = $1),
               (SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1)
    `, ownerID).Scan(&stats.TotalVideos, &stats.TotalViews, &stats.TotalLikes, &stats.TotalSubscribers)
	if err != nil {
		return models.ChannelStats{}, pgError("select channel stats", err)
	}
	return stats, nil
}

// ChannelVideos returns one page of every video ownerID uploaded, drafts included,
// newest first and with their like counts.
func (r *PostgresVideoRepository) ChannelVideos(ctx context.Context, ownerID string, page models.Page) ([]models.ChannelVideo, int64, error) {
	return queryPage(ctx, r.pool, "channel video", scanChannelVideo,
		`SELECT COUNT(*) FROM videos WHERE owner_id = $1`, `
        SELECT `+prefixed("v", videoColumns)+`,
               (SELECT COUNT(*) FROM likes l WHERE l.target_id = v.id AND l.kind = 'video')
        FROM videos v
        WHERE v.owner_id = $1
        ORDER BY v.created_at DESC, v.id LIMIT $2 OFFSET $3`,
		ownerID, page)
}

func scanChannelVideo(row scanner) (models.ChannelVideo, error) {
	var cv models.ChannelVideo
	v := &cv.Video
	if err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL, &v.Duration,
		&v.Views, &v.Published, &v.CreatedAt, &v.UpdatedAt, &cv.TotalLikes); err != nil {
		return models.ChannelVideo{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return cv, nil
}
