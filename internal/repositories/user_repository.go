package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for users. It embeds the
// credential slot operations the token service relies on.
type UserRepository interface {
	auth.CredentialStore

	Create(ctx context.Context, user models.User) error
	FindByUsernameOrEmail(ctx context.Context, key string) (models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (models.User, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}
