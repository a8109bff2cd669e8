package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, is_published, created_at, updated_at`

func scanVideo(row scanner) (models.Video, error) {
	var v models.Video
	if err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL, &v.Duration,
		&v.Views, &v.Published, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return models.Video{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

var videoSortColumns = map[VideoSort]string{
	SortCreatedAt: "created_at",
	SortViews:     "views",
	SortTitle:     "title",
	SortDuration:  "duration_seconds",
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, v models.Video) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, v.ID, v.OwnerID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.Duration, v.Views, v.Published, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return pgError("insert video", err)
	}
	return nil
}

// FindByID fetches a video by id.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	return queryOne(ctx, r.pool, "select video", scanVideo, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
}

// List returns one page of videos matching query and the total number of matches.
func (r *PostgresVideoRepository) List(ctx context.Context, q VideoQuery) ([]models.Video, int64, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	var (
		where []string
		args  []any
	)
	if !q.IncludeUnpublished {
		where = append(where, "is_published")
	}
	if q.OwnerID != "" {
		args = append(args, q.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos`+filter, args...).Scan(&total); err != nil {
		return nil, 0, pgError("count videos", err)
	}

	column, ok := videoSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}

	args = append(args, q.Page.Limit, q.Page.Offset())
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM videos%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		videoColumns, filter, column, direction, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, pgError("query videos", err)
	}
	defer rows.Close()

	videos, err := collect(rows, scanVideo, "video")
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

// Update applies changes to a video owned by ownerID.
func (r *PostgresVideoRepository) Update(ctx context.Context, id, ownerID string, changes VideoChanges) (models.Video, error) {
	return queryOne(ctx, r.pool, "update video", scanVideo, `
        UPDATE videos
        SET title = COALESCE($3, title),
            description = COALESCE($4, description),
            thumbnail_url = COALESCE($5, thumbnail_url),
            updated_at = $6
        WHERE id = $1 AND owner_id = $2
        RETURNING `+videoColumns, id, ownerID, changes.Title, changes.Description, changes.ThumbnailURL, time.Now().UTC())
}

// TogglePublished flips the publish flag of a video owned by ownerID.
func (r *PostgresVideoRepository) TogglePublished(ctx context.Context, id, ownerID string) (models.Video, error) {
	return queryOne(ctx, r.pool, "toggle video publish status", scanVideo, `
        UPDATE videos
        SET is_published = NOT is_published, updated_at = $3
        WHERE id = $1 AND owner_id = $2
        RETURNING `+videoColumns, id, ownerID, time.Now().UTC())
}

// Delete removes a video owned by ownerID.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id, ownerID string) error {
	return execAffecting(ctx, r.pool, "delete video", `DELETE FROM videos WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

// IncrementViews counts one view of a video.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "increment video views", `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
}

const commentColumns = `id, video_id, owner_id, content, created_at, updated_at`

func scanComment(row scanner) (models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return models.Comment{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a comment. A missing video yields ErrNotFound.
func (r *PostgresCommentRepository) Create(ctx context.Context, c models.Comment) error {
	return execAffecting(ctx, r.pool, "insert comment", `
        INSERT INTO comments (id, video_id, owner_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, c.ID, c.VideoID, c.OwnerID, c.Content, c.CreatedAt, c.UpdatedAt)
}

// FindByID fetches a comment by id.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	return queryOne(ctx, r.pool, "select comment", scanComment, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
}

// ListForVideo returns one page of a video's comments, newest first.
func (r *PostgresCommentRepository) ListForVideo(ctx context.Context, videoID string, page models.Page) ([]models.Comment, int64, error) {
	return queryPage(ctx, r.pool, "comment", scanComment,
		`SELECT COUNT(*) FROM comments WHERE video_id = $1`,
		`SELECT `+commentColumns+` FROM comments WHERE video_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		videoID, page)
}

// Update replaces the content of a comment owned by ownerID.
func (r *PostgresCommentRepository) Update(ctx context.Context, id, ownerID, content string) (models.Comment, error) {
	return queryOne(ctx, r.pool, "update comment", scanComment, `
        UPDATE comments SET content = $3, updated_at = $4
        WHERE id = $1 AND owner_id = $2
        RETURNING `+commentColumns, id, ownerID, content, time.Now().UTC())
}

// Delete removes a comment owned by ownerID.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id, ownerID string) error {
	return execAffecting(ctx, r.pool, "delete comment", `DELETE FROM comments WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

const tweetColumns = `id, owner_id, content, created_at, updated_at`

func scanTweet(row scanner) (models.Tweet, error) {
	var t models.Tweet
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Content, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Tweet{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// PostgresTweetRepository provides PostgreSQL-backed persistence for tweets.
type PostgresTweetRepository struct {
	pool db.Pool
}

// NewPostgresTweetRepository constructs a tweet repository backed by PostgreSQL.
func NewPostgresTweetRepository(pool db.Pool) *PostgresTweetRepository {
	return &PostgresTweetRepository{pool: pool}
}

// Create stores a tweet.
func (r *PostgresTweetRepository) Create(ctx context.Context, t models.Tweet) error {
	return execAffecting(ctx, r.pool, "insert tweet", `
        INSERT INTO tweets (id, owner_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, t.ID, t.OwnerID, t.Content, t.CreatedAt, t.UpdatedAt)
}

// FindByID fetches a tweet by id.
func (r *PostgresTweetRepository) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	return queryOne(ctx, r.pool, "select tweet", scanTweet, `SELECT `+tweetColumns+` FROM tweets WHERE id = $1`, id)
}

// ListForOwner returns one page of a channel's tweets, newest first.
func (r *PostgresTweetRepository) ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Tweet, int64, error) {
	return queryPage(ctx, r.pool, "tweet", scanTweet,
		`SELECT COUNT(*) FROM tweets WHERE owner_id = $1`,
		`SELECT `+tweetColumns+` FROM tweets WHERE owner_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		ownerID, page)
}

// Update replaces the content of a tweet owned by ownerID.
func (r *PostgresTweetRepository) Update(ctx context.Context, id, ownerID, content string) (models.Tweet, error) {
	return queryOne(ctx, r.pool, "update tweet", scanTweet, `
        UPDATE tweets SET content = $3, updated_at = $4
        WHERE id = $1 AND owner_id = $2
        RETURNING `+tweetColumns, id, ownerID, content, time.Now().UTC())
}

// Delete removes a tweet owned by ownerID.
func (r *PostgresTweetRepository) Delete(ctx context.Context, id, ownerID string) error {
	return execAffecting(ctx, r.pool, "delete tweet", `DELETE FROM tweets WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

const playlistColumns = `p.id, p.owner_id, p.name, p.description, p.created_at, p.updated_at,
        COALESCE((SELECT array_agg(pv.video_id::TEXT ORDER BY pv.added_at) FROM playlist_videos pv WHERE pv.playlist_id = p.id), ARRAY[]::TEXT[])`

func scanPlaylist(row scanner) (models.Playlist, error) {
	var p models.Playlist
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.VideoIDs); err != nil {
		return models.Playlist{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for playlists.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

// Create stores an empty playlist.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, p models.Playlist) error {
	return execAffecting(ctx, r.pool, "insert playlist", `
        INSERT INTO playlists (id, owner_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, p.ID, p.OwnerID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
}

// FindByID fetches a playlist and its video ids.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	return queryOne(ctx, r.pool, "select playlist", scanPlaylist, `SELECT `+playlistColumns+` FROM playlists p WHERE p.id = $1`, id)
}

// ListForOwner returns one page of a user's playlists, newest first.
func (r *PostgresPlaylistRepository) ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Playlist, int64, error) {
	return queryPage(ctx, r.pool, "playlist", scanPlaylist,
		`SELECT COUNT(*) FROM playlists WHERE owner_id = $1`,
		`SELECT `+playlistColumns+` FROM playlists p WHERE p.owner_id = $1 ORDER BY p.created_at DESC, p.id LIMIT $2 OFFSET $3`,
		ownerID, page)
}

// Update applies changes to a playlist owned by ownerID.
func (r *PostgresPlaylistRepository) Update(ctx context.Context, id, ownerID string, changes PlaylistChanges) (models.Playlist, error) {
	if err := execAffecting(ctx, r.pool, "update playlist", `
        UPDATE playlists
        SET name = COALESCE($3, name), description = COALESCE($4, description), updated_at = $5
        WHERE id = $1 AND owner_id = $2
    `, id, ownerID, changes.Name, changes.Description, time.Now().UTC()); err != nil {
		return models.Playlist{}, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes a playlist owned by ownerID.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id, ownerID string) error {
	return execAffecting(ctx, r.pool, "delete playlist", `DELETE FROM playlists WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

// AddVideo appends a video to a playlist. Adding a listed video again is a no-op;
// a missing playlist or video yields ErrNotFound.
func (r *PostgresPlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO playlist_videos (playlist_id, video_id, added_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (playlist_id, video_id) DO NOTHING
    `, playlistID, videoID, time.Now().UTC())
	if err != nil {
		return pgError("add playlist video", err)
	}
	return nil
}

// RemoveVideo drops a video from a playlist.
func (r *PostgresPlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string) error {
	return execAffecting(ctx, r.pool, "remove playlist video",
		`DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2`, playlistID, videoID)
}

func execAffecting(ctx context.Context, pool db.Pool, op, query string, args ...any) error {
	conn, err := acquire(ctx, pool)
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

func queryOne[T any](ctx context.Context, pool db.Pool, op string, scan func(scanner) (T, error), query string, args ...any) (T, error) {
	var zero T
	conn, err := acquire(ctx, pool)
	if err != nil {
		return zero, err
	}
	defer conn.Release()

	item, err := scan(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, pgError(op, err)
	}
	return item, nil
}

// queryPage runs a count query and a page query that share the single filter
// argument key; the page query takes LIMIT and OFFSET as $2 and $3.
func queryPage[T any](ctx context.Context, pool db.Pool, noun string, scan func(scanner) (T, error), countQuery, pageQuery, key string, page models.Page) ([]T, int64, error) {
	conn, err := acquire(ctx, pool)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(ctx, countQuery, key).Scan(&total); err != nil {
		return nil, 0, pgError("count "+noun+"s", err)
	}

	rows, err := conn.Query(ctx, pageQuery, key, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, pgError("query "+noun+"s", err)
	}
	defer rows.Close()

	items, err := collect(rows, scan, noun)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collect[T any](rows pgx.Rows, scan func(scanner) (T, error), noun string) ([]T, error) {
	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", noun, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("iterate "+noun+"s", err)
	}
	return items, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ CommentRepository = (*PostgresCommentRepository)(nil)
var _ TweetRepository = (*PostgresTweetRepository)(nil)
var _ PlaylistRepository = (*PostgresPlaylistRepository)(nil)
