package repositories

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vidtube/backend/internal/models"
)

type videoDocument struct {
	ID           string    `bson:"_id"`
	OwnerID      string    `bson:"owner_id"`
	Title        string    `bson:"title"`
	Description  string    `bson:"description"`
	VideoURL     string    `bson:"video_url"`
	ThumbnailURL string    `bson:"thumbnail_url"`
	Duration     float64   `bson:"duration_seconds"`
	Views        int64     `bson:"views"`
	Published    bool      `bson:"is_published"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d videoDocument) model() models.Video {
	return models.Video{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Title:        d.Title,
		Description:  d.Description,
		VideoURL:     d.VideoURL,
		ThumbnailURL: d.ThumbnailURL,
		Duration:     d.Duration,
		Views:        d.Views,
		Published:    d.Published,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

var videoSortFields = map[VideoSort]string{
	SortCreatedAt: "created_at",
	SortViews:     "views",
	SortTitle:     "title",
	SortDuration:  "duration_seconds",
}

// MongoVideoRepository provides MongoDB-backed persistence for videos.
type MongoVideoRepository struct {
	videos        *mongo.Collection
	history       *mongo.Collection
	likes         *mongo.Collection
	subscriptions *mongo.Collection
}

// NewMongoVideoRepository constructs a video repository backed by MongoDB.
func NewMongoVideoRepository(database *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{
		videos:        database.Collection(videosCollection),
		history:       database.Collection(historyCollection),
		likes:         database.Collection(likesCollection),
		subscriptions: database.Collection(subscriptionsCollection),
	}
}

// Create stores a new video record.
func (r *MongoVideoRepository) Create(ctx context.Context, v models.Video) error {
	_, err := r.videos.InsertOne(ctx, videoDocument{
		ID:           v.ID,
		OwnerID:      v.OwnerID,
		Title:        v.Title,
		Description:  v.Description,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
		Duration:     v.Duration,
		Views:        v.Views,
		Published:    v.Published,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	})
	if err != nil {
		return mongoError("insert video", err)
	}
	return nil
}

// FindByID fetches a video by id.
func (r *MongoVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	return findDocument(ctx, r.videos, "select video", bson.D{{Key: "_id", Value: id}}, videoDocument.model)
}

// List returns one page of videos matching query and the total number of matches.
func (r *MongoVideoRepository) List(ctx context.Context, q VideoQuery) ([]models.Video, int64, error) {
	filter := bson.D{}
	if !q.IncludeUnpublished {
		filter = append(filter, bson.E{Key: "is_published", Value: true})
	}
	if q.OwnerID != "" {
		filter = append(filter, bson.E{Key: "owner_id", Value: q.OwnerID})
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "description", Value: pattern}},
		}})
	}

	field, ok := videoSortFields[q.SortBy]
	if !ok {
		field = "created_at"
	}
	direction := -1
	if q.Ascending {
		direction = 1
	}
	sort := bson.D{{Key: field, Value: direction}, {Key: "_id", Value: 1}}

	return findPage(ctx, r.videos, "video", filter, sort, q.Page, videoDocument.model)
}

// Update applies changes to a video owned by ownerID.
func (r *MongoVideoRepository) Update(ctx context.Context, id, ownerID string, changes VideoChanges) (models.Video, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	set = appendIfSet(set, "title", changes.Title)
	set = appendIfSet(set, "description", changes.Description)
	set = appendIfSet(set, "thumbnail_url", changes.ThumbnailURL)
	return updateDocument(ctx, r.videos, "update video", ownedFilter(id, ownerID),
		bson.D{{Key: "$set", Value: set}}, videoDocument.model)
}

// TogglePublished flips the publish flag of a video owned by ownerID.
func (r *MongoVideoRepository) TogglePublished(ctx context.Context, id, ownerID string) (models.Video, error) {
	flip := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "is_published", Value: bson.D{{Key: "$not", Value: bson.A{"$is_published"}}}},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}}
	return updateDocument(ctx, r.videos, "toggle video publish status", ownedFilter(id, ownerID), flip, videoDocument.model)
}

// Delete removes a video owned by ownerID.
func (r *MongoVideoRepository) Delete(ctx context.Context, id, ownerID string) error {
	return deleteDocument(ctx, r.videos, "delete video", ownedFilter(id, ownerID))
}

// IncrementViews counts one view of a video.
func (r *MongoVideoRepository) IncrementViews(ctx context.Context, id string) error {
	result, err := r.videos.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}})
	if err != nil {
		return mongoError("increment video views", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type commentDocument struct {
	ID        string    `bson:"_id"`
	VideoID   string    `bson:"video_id"`
	OwnerID   string    `bson:"owner_id"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d commentDocument) model() models.Comment {
	return models.Comment{
		ID:        d.ID,
		VideoID:   d.VideoID,
		OwnerID:   d.OwnerID,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// MongoCommentRepository provides MongoDB-backed persistence for comments.
type MongoCommentRepository struct {
	comments *mongo.Collection
	videos   *mongo.Collection
}

// NewMongoCommentRepository constructs a comment repository backed by MongoDB.
func NewMongoCommentRepository(database *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{
		comments: database.Collection(commentsCollection),
		videos:   database.Collection(videosCollection),
	}
}

// Create stores a comment. A missing video yields ErrNotFound.
func (r *MongoCommentRepository) Create(ctx context.Context, c models.Comment) error {
	if err := requireDocument(ctx, r.videos, "check comment video", c.VideoID); err != nil {
		return err
	}
	_, err := r.comments.InsertOne(ctx, commentDocument{
		ID:        c.ID,
		VideoID:   c.VideoID,
		OwnerID:   c.OwnerID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
	if err != nil {
		return mongoError("insert comment", err)
	}
	return nil
}

// FindByID fetches a comment by id.
func (r *MongoCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	return findDocument(ctx, r.comments, "select comment", bson.D{{Key: "_id", Value: id}}, commentDocument.model)
}

// ListForVideo returns one page of a video's comments, newest first.
func (r *MongoCommentRepository) ListForVideo(ctx context.Context, videoID string, page models.Page) ([]models.Comment, int64, error) {
	return findPage(ctx, r.comments, "comment", bson.D{{Key: "video_id", Value: videoID}}, newestFirst, page, commentDocument.model)
}

// Update replaces the content of a comment owned by ownerID.
func (r *MongoCommentRepository) Update(ctx context.Context, id, ownerID, content string) (models.Comment, error) {
	return updateDocument(ctx, r.comments, "update comment", ownedFilter(id, ownerID),
		setContent(content), commentDocument.model)
}

// Delete removes a comment owned by ownerID.
func (r *MongoCommentRepository) Delete(ctx context.Context, id, ownerID string) error {
	return deleteDocument(ctx, r.comments, "delete comment", ownedFilter(id, ownerID))
}

type tweetDocument struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d tweetDocument) model() models.Tweet {
	return models.Tweet{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// MongoTweetRepository provides MongoDB-backed persistence for tweets.
type MongoTweetRepository struct {
	tweets *mongo.Collection
}

// NewMongoTweetRepository constructs a tweet repository backed by MongoDB.
func NewMongoTweetRepository(database *mongo.Database) *MongoTweetRepository {
	return &MongoTweetRepository{tweets: database.Collection(tweetsCollection)}
}

// Create stores a tweet.
func (r *MongoTweetRepository) Create(ctx context.Context, t models.Tweet) error {
	_, err := r.tweets.InsertOne(ctx, tweetDocument{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	})
	if err != nil {
		return mongoError("insert tweet", err)
	}
	return nil
}

// FindByID fetches a tweet by id.
func (r *MongoTweetRepository) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	return findDocument(ctx, r.tweets, "select tweet", bson.D{{Key: "_id", Value: id}}, tweetDocument.model)
}

// ListForOwner returns one page of a channel's tweets, newest first.
func (r *MongoTweetRepository) ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Tweet, int64, error) {
	return findPage(ctx, r.tweets, "tweet", bson.D{{Key: "owner_id", Value: ownerID}}, newestFirst, page, tweetDocument.model)
}

// Update replaces the content of a tweet owned by ownerID.
func (r *MongoTweetRepository) Update(ctx context.Context, id, ownerID, content string) (models.Tweet, error) {
	return updateDocument(ctx, r.tweets, "update tweet", ownedFilter(id, ownerID), setContent(content), tweetDocument.model)
}

// Delete removes a tweet owned by ownerID.
func (r *MongoTweetRepository) Delete(ctx context.Context, id, ownerID string) error {
	return deleteDocument(ctx, r.tweets, "delete tweet", ownedFilter(id, ownerID))
}

type playlistDocument struct {
	ID          string    `bson:"_id"`
	OwnerID     string    `bson:"owner_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	VideoIDs    []string  `bson:"video_ids"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d playlistDocument) model() models.Playlist {
	ids := d.VideoIDs
	if ids == nil {
		ids = []string{}
	}
	return models.Playlist{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Description: d.Description,
		VideoIDs:    ids,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// MongoPlaylistRepository provides MongoDB-backed persistence for playlists.
// Video ids are embedded in the playlist document in insertion order.
type MongoPlaylistRepository struct {
	playlists *mongo.Collection
	videos    *mongo.Collection
}

// NewMongoPlaylistRepository constructs a playlist repository backed by MongoDB.
func NewMongoPlaylistRepository(database *mongo.Database) *MongoPlaylistRepository {
	return &MongoPlaylistRepository{
		playlists: database.Collection(playlistsCollection),
		videos:    database.Collection(videosCollection),
	}
}

// Create stores an empty playlist.
func (r *MongoPlaylistRepository) Create(ctx context.Context, p models.Playlist) error {
	_, err := r.playlists.InsertOne(ctx, playlistDocument{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		VideoIDs:    []string{},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
	if err != nil {
		return mongoError("insert playlist", err)
	}
	return nil
}

// FindByID fetches a playlist and its video ids.
func (r *MongoPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	return findDocument(ctx, r.playlists, "select playlist", bson.D{{Key: "_id", Value: id}}, playlistDocument.model)
}

// ListForOwner returns one page of a user's playlists, newest first.
func (r *MongoPlaylistRepository) ListForOwner(ctx context.Context, ownerID string, page models.Page) ([]models.Playlist, int64, error) {
	return findPage(ctx, r.playlists, "playlist", bson.D{{Key: "owner_id", Value: ownerID}}, newestFirst, page, playlistDocument.model)
}

// Update applies changes to a playlist owned by ownerID.
func (r *MongoPlaylistRepository) Update(ctx context.Context, id, ownerID string, changes PlaylistChanges) (models.Playlist, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	set = appendIfSet(set, "name", changes.Name)
	set = appendIfSet(set, "description", changes.Description)
	return updateDocument(ctx, r.playlists, "update playlist", ownedFilter(id, ownerID),
		bson.D{{Key: "$set", Value: set}}, playlistDocument.model)
}

// Delete removes a playlist owned by ownerID.
func (r *MongoPlaylistRepository) Delete(ctx context.Context, id, ownerID string) error {
	return deleteDocument(ctx, r.playlists, "delete playlist", ownedFilter(id, ownerID))
}

// AddVideo appends a video to a playlist. Adding a listed video again is a no-op;
// a missing playlist or video yields ErrNotFound.
func (r *MongoPlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string) error {
	if err := requireDocument(ctx, r.videos, "check playlist video", videoID); err != nil {
		return err
	}
	result, err := r.playlists.UpdateOne(ctx, bson.D{{Key: "_id", Value: playlistID}}, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "video_ids", Value: videoID}}},
	})
	if err != nil {
		return mongoError("add playlist video", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveVideo drops a video from a playlist.
func (r *MongoPlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string) error {
	result, err := r.playlists.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: playlistID}, {Key: "video_ids", Value: videoID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "video_ids", Value: videoID}}}},
	)
	if err != nil {
		return mongoError("remove playlist video", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}

func ownedFilter(id, ownerID string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "owner_id", Value: ownerID}}
}

func setContent(content string) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: content},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
}

func appendIfSet(set bson.D, key string, value *string) bson.D {
	if value == nil {
		return set
	}
	return append(set, bson.E{Key: key, Value: *value})
}

func requireDocument(ctx context.Context, coll *mongo.Collection, op, id string) error {
	n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return mongoError(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func findDocument[D, T any](ctx context.Context, coll *mongo.Collection, op string, filter bson.D, convert func(D) T) (T, error) {
	var doc D
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		var zero T
		return zero, mongoError(op, err)
	}
	return convert(doc), nil
}

func updateDocument[D, T any](ctx context.Context, coll *mongo.Collection, op string, filter bson.D, update any, convert func(D) T) (T, error) {
	var doc D
	err := coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		var zero T
		return zero, mongoError(op, err)
	}
	return convert(doc), nil
}

func deleteDocument(ctx context.Context, coll *mongo.Collection, op string, filter bson.D) error {
	result, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return mongoError(op, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func findPage[D, T any](ctx context.Context, coll *mongo.Collection, noun string, filter, sort bson.D, page models.Page, convert func(D) T) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongoError("count "+noun+"s", err)
	}

	cursor, err := coll.Find(ctx, filter, options.Find().
		SetSort(sort).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit)))
	if err != nil {
		return nil, 0, mongoError("query "+noun+"s", err)
	}

	var docs []D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, mongoError("decode "+noun+"s", err)
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		items = append(items, convert(doc))
	}
	return items, total, nil
}

var _ VideoRepository = (*MongoVideoRepository)(nil)
var _ CommentRepository = (*MongoCommentRepository)(nil)
var _ TweetRepository = (*MongoTweetRepository)(nil)
var _ PlaylistRepository = (*MongoPlaylistRepository)(nil)
