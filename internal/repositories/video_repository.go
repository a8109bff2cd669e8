package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// VideoSort names the columns a listing may be ordered by.
type VideoSort string

const (
	SortCreatedAt VideoSort = "createdAt"
	SortViews     VideoSort = "views"
	SortTitle     VideoSort = "title"
	SortDuration  VideoSort = "duration"
)

// VideoQuery filters a video listing. Unpublished videos are only included when
// IncludeUnpublished is set, which callers do for an owner browsing their own channel.
type VideoQuery struct {
	OwnerID            string
	Search             string
	IncludeUnpublished bool
	SortBy             VideoSort
	Ascending          bool
	Page               models.Page
}

// VideoChanges holds the optional fields of a video update.
type VideoChanges struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
}

// VideoRepository exposes data access for uploaded videos. Mutations filter on the
// owner as well as the id.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, query VideoQuery) ([]models.Video, int64, error)
	Update(ctx context.Context, id, ownerID string, changes VideoChanges) (models.Video, error)
	Delete(ctx context.Context, id, ownerID string) error
	TogglePublished(ctx context.Context, id, ownerID string) (models.Video, error)
	IncrementViews(ctx context.Context, id string) error

	// RecordWatch adds videoID to the watch history of userID, moving it to the
	// front when it is already there.
	RecordWatch(ctx context.Context, userID, videoID string) error
	WatchHistory(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error)

	ChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error)
	ChannelVideos(ctx context.Context, ownerID string, page models.Page) ([]models.ChannelVideo, int64, error)
}
