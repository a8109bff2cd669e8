package handlers

import (
	"context"
	"io"
	"time"

	"github.com/vidtube/backend/internal/engagement"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, key string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (models.User, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}

// SessionManager issues, verifies, rotates and revokes session tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	VerifyAccess(ctx context.Context, token string) (models.User, error)
	Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// VideoStore captures persistence for uploaded videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, query repositories.VideoQuery) ([]models.Video, int64, error)
	Update(ctx context.Context, id, ownerID string, changes repositories.VideoChanges) (models.Video, error)
	Delete(ctx context.Context, id, ownerID string) error
	TogglePublished(ctx context.Context, id, ownerID string) (models.Video, error)
	IncrementViews(ctx context.Context, id string) error
	RecordWatch(ctx context.Context, userID, videoID string) error
	WatchHistory(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error)
	ChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error)
	ChannelVideos(ctx context.Context, ownerID string, page models.Page) ([]models.ChannelVideo, int64, error)
}

// CommentStore captures persistence for video comments.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID string, page models.Page) ([]models.Comment, int64, error)
	Update(ctx context.Context, id, ownerID, content string) (models.Comment, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// TweetStore captures persistence for channel tweets.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Tweet, int64, error)
	Update(ctx context.Context, id, ownerID, content string) (models.Tweet, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// PlaylistStore captures persistence for playlists.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Playlist, int64, error)
	Update(ctx context.Context, id, ownerID string, changes repositories.PlaylistChanges) (models.Playlist, error)
	Delete(ctx context.Context, id, ownerID string) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
}

// EngagementToggler flips like and subscription edges.
type EngagementToggler interface {
	Toggle(ctx context.Context, actorID, targetID string, kind models.EdgeKind) (engagement.State, error)
}

// EngagementLister answers the listings built on engagement edges.
type EngagementLister interface {
	LikedVideos(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error)
	Subscribers(ctx context.Context, channelID string, page models.Page) ([]models.User, int64, error)
	SubscribedChannels(ctx context.Context, subscriberID string, page models.Page) ([]models.User, int64, error)
	CountLikes(ctx context.Context, targetID string, kind models.EdgeKind) (int64, error)
}

// MediaStore persists uploaded files and returns their public location.
type MediaStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}
