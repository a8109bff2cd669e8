package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// CommentRepository exposes data access for video comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID string, page models.Page) ([]models.Comment, int64, error)
	Update(ctx context.Context, id, ownerID, content string) (models.Comment, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// TweetRepository exposes data access for channel tweets.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Tweet, int64, error)
	Update(ctx context.Context, id, ownerID, content string) (models.Tweet, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// PlaylistChanges holds the optional fields of a playlist update.
type PlaylistChanges struct {
	Name        *string
	Description *string
}

// PlaylistRepository exposes data access for playlists and their videos. Adding a
// video twice is a no-op; removing a video that is not listed is ErrNotFound.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Playlist, int64, error)
	Update(ctx context.Context, id, ownerID string, changes PlaylistChanges) (models.Playlist, error)
	Delete(ctx context.Context, id, ownerID string) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
}
