package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/engagement"
	"github.com/vidtube/backend/internal/models"
)

// EngagementRepository stores like and subscription edges and answers the
// listings built on them.
type EngagementRepository interface {
	engagement.EdgeStore

	LikedVideos(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error)
	Subscribers(ctx context.Context, channelID string, page models.Page) ([]models.User, int64, error)
	SubscribedChannels(ctx context.Context, subscriberID string, page models.Page) ([]models.User, int64, error)
	CountLikes(ctx context.Context, targetID string, kind models.EdgeKind) (int64, error)
}
