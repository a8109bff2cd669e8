package repositories

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vidtube/backend/internal/models"
)

const (
	usersCollection         = "users"
	videosCollection        = "videos"
	commentsCollection      = "comments"
	tweetsCollection        = "tweets"
	playlistsCollection     = "playlists"
	likesCollection         = "likes"
	subscriptionsCollection = "subscriptions"
	historyCollection       = "watch_history"
)

// EnsureMongoIndexes creates the unique and lookup indexes the document store
// relies on. It is idempotent.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		videosCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		tweetsCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		playlistsCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		likesCollection: {
			{
				Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "target_id", Value: 1}, {Key: "kind", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		subscriptionsCollection: {
			{
				Keys:    bson.D{{Key: "subscriber_id", Value: 1}, {Key: "channel_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "channel_id", Value: 1}}},
		},
		historyCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "video_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for collection, specs := range indexes {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, specs); err != nil {
			return mongoError("create "+collection+" indexes", err)
		}
	}
	return nil
}

type userDocument struct {
	ID               string    `bson:"_id"`
	Username         string    `bson:"username"`
	Email            string    `bson:"email"`
	FullName         string    `bson:"full_name"`
	AvatarURL        string    `bson:"avatar_url"`
	CoverImageURL    string    `bson:"cover_image_url"`
	PasswordHash     string    `bson:"password_hash"`
	RefreshTokenHash string    `bson:"refresh_token_hash,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (d userDocument) model() models.User {
	return models.User{
		ID:               d.ID,
		Username:         d.Username,
		Email:            d.Email,
		FullName:         d.FullName,
		AvatarURL:        d.AvatarURL,
		CoverImageURL:    d.CoverImageURL,
		Password:         d.PasswordHash,
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

// MongoUserRepository provides MongoDB-backed persistence for users.
type MongoUserRepository struct {
	users         *mongo.Collection
	subscriptions *mongo.Collection
}

// NewMongoUserRepository constructs a user repository backed by MongoDB.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		users:         database.Collection(usersCollection),
		subscriptions: database.Collection(subscriptionsCollection),
	}
}

// Create persists a new user record. Duplicate usernames or emails yield ErrConflict.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	_, err := r.users.InsertOne(ctx, userDocument{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		PasswordHash:  user.Password,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	})
	if err != nil {
		return mongoError("insert user", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", bson.D{{Key: "_id", Value: id}})
}

// FindByUsernameOrEmail fetches the user whose username or email equals key.
func (r *MongoUserRepository) FindByUsernameOrEmail(ctx context.Context, key string) (models.User, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	return r.findOne(ctx, "select user by login key", bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: key}},
		bson.D{{Key: "email", Value: key}},
	}}})
}

// Exists reports whether a user with id exists.
func (r *MongoUserRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, mongoError("check user exists", err)
	}
	return n > 0, nil
}

// SetRefreshToken overwrites the session slot of the user.
func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, userID, tokenHash string) error {
	return r.updateMatched(ctx, "set refresh token", bson.D{{Key: "_id", Value: userID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "refresh_token_hash", Value: tokenHash}}}})
}

// ClearRefreshToken empties the session slot of the user.
func (r *MongoUserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	return r.updateMatched(ctx, "clear refresh token", bson.D{{Key: "_id", Value: userID}},
		bson.D{{Key: "$unset", Value: bson.D{{Key: "refresh_token_hash", Value: ""}}}})
}

// SwapRefreshToken replaces the session slot only while it still holds currentHash.
func (r *MongoUserRepository) SwapRefreshToken(ctx context.Context, userID, currentHash, nextHash string) (bool, error) {
	result, err := r.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}, {Key: "refresh_token_hash", Value: currentHash}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "refresh_token_hash", Value: nextHash}}}},
	)
	if err != nil {
		return false, mongoError("swap refresh token", err)
	}
	return result.MatchedCount == 1, nil
}

// UpdatePassword stores a new password hash.
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateMatched(ctx, "update password", bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}})
}

// UpdateAccount changes the display name and email of a user.
func (r *MongoUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	return r.updateReturning(ctx, "update account", id, bson.D{
		{Key: "full_name", Value: fullName},
		{Key: "email", Value: strings.ToLower(email)},
	})
}

// UpdateAvatar records a new avatar location.
func (r *MongoUserRepository) UpdateAvatar(ctx context.Context, id, url string) (models.User, error) {
	return r.updateReturning(ctx, "update avatar", id, bson.D{{Key: "avatar_url", Value: url}})
}

// UpdateCoverImage records a new cover image location.
func (r *MongoUserRepository) UpdateCoverImage(ctx context.Context, id, url string) (models.User, error) {
	return r.updateReturning(ctx, "update cover image", id, bson.D{{Key: "cover_image_url", Value: url}})
}

// ChannelProfile loads a channel by username together with its subscription
// counters and whether viewerID is subscribed to it.
func (r *MongoUserRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	user, err := r.findOne(ctx, "select channel", bson.D{{Key: "username", Value: strings.ToLower(strings.TrimSpace(username))}})
	if err != nil {
		return models.ChannelProfile{}, err
	}

	profile := models.ChannelProfile{User: user.Sanitized()}
	if profile.SubscribersCount, err = r.subscriptions.CountDocuments(ctx, bson.D{{Key: "channel_id", Value: user.ID}}); err != nil {
		return models.ChannelProfile{}, mongoError("count subscribers", err)
	}
	if profile.SubscribedToCount, err = r.subscriptions.CountDocuments(ctx, bson.D{{Key: "subscriber_id", Value: user.ID}}); err != nil {
		return models.ChannelProfile{}, mongoError("count subscriptions", err)
	}
	if viewerID != "" {
		n, err := r.subscriptions.CountDocuments(ctx,
			bson.D{{Key: "subscriber_id", Value: viewerID}, {Key: "channel_id", Value: user.ID}},
			options.Count().SetLimit(1))
		if err != nil {
			return models.ChannelProfile{}, mongoError("check subscription", err)
		}
		profile.IsSubscribed = n > 0
	}
	return profile, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, op string, filter bson.D) (models.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return models.User{}, mongoError(op, err)
	}
	return doc.model(), nil
}

func (r *MongoUserRepository) updateMatched(ctx context.Context, op string, filter, update bson.D) error {
	result, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongoError(op, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) updateReturning(ctx context.Context, op, id string, fields bson.D) (models.User, error) {
	fields = append(fields, bson.E{Key: "updated_at", Value: time.Now().UTC()})
	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: fields}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.User{}, mongoError(op, err)
	}
	return doc.model(), nil
}

var _ UserRepository = (*MongoUserRepository)(nil)
