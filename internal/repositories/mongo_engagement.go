package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vidtube/backend/internal/models"
)

// MongoEngagementRepository stores likes and subscriptions in MongoDB. The unique
// indexes created by EnsureMongoIndexes collapse racing toggles.
type MongoEngagementRepository struct {
	likes         *mongo.Collection
	subscriptions *mongo.Collection
}

// NewMongoEngagementRepository constructs an engagement repository backed by MongoDB.
func NewMongoEngagementRepository(database *mongo.Database) *MongoEngagementRepository {
	return &MongoEngagementRepository{
		likes:         database.Collection(likesCollection),
		subscriptions: database.Collection(subscriptionsCollection),
	}
}

// edgeFilter locates edge in the collection that holds its kind.
func (r *MongoEngagementRepository) edgeFilter(edge models.Edge) (*mongo.Collection, bson.D, error) {
	switch {
	case edge.Kind == models.EdgeSubscription:
		return r.subscriptions, bson.D{
			{Key: "subscriber_id", Value: edge.ActorID},
			{Key: "channel_id", Value: edge.TargetID},
		}, nil
	case edge.Kind.IsLike():
		return r.likes, bson.D{
			{Key: "actor_id", Value: edge.ActorID},
			{Key: "target_id", Value: edge.TargetID},
			{Key: "kind", Value: string(edge.Kind)},
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown edge kind %q", edge.Kind)
}

// Exists reports whether edge is stored.
func (r *MongoEngagementRepository) Exists(ctx context.Context, edge models.Edge) (bool, error) {
	coll, filter, err := r.edgeFilter(edge)
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, mongoError("check "+string(edge.Kind)+" edge", err)
	}
	return n > 0, nil
}

// Insert stores edge. It reports false when an identical edge was already present.
func (r *MongoEngagementRepository) Insert(ctx context.Context, edge models.Edge) (bool, error) {
	coll, doc, err := r.edgeFilter(edge)
	if err != nil {
		return false, err
	}
	doc = append(doc,
		bson.E{Key: "_id", Value: uuid.NewString()},
		bson.E{Key: "created_at", Value: time.Now().UTC()},
	)
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, mongoError("insert "+string(edge.Kind)+" edge", err)
	}
	return true, nil
}

// Delete removes edge. It reports false when there was nothing to remove.
func (r *MongoEngagementRepository) Delete(ctx context.Context, edge models.Edge) (bool, error) {
	coll, filter, err := r.edgeFilter(edge)
	if err != nil {
		return false, err
	}
	result, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, mongoError("delete "+string(edge.Kind)+" edge", err)
	}
	return result.DeletedCount > 0, nil
}

// LikedVideos returns one page of the published videos userID liked, most recent like first.
func (r *MongoEngagementRepository) LikedVideos(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error) {
	return joinedPage(ctx, r.likes, "liked video",
		bson.D{{Key: "actor_id", Value: userID}, {Key: "kind", Value: string(models.EdgeVideoLike)}},
		"target_id", videosCollection,
		bson.D{{Key: "target.is_published", Value: true}},
		page, videoDocument.model)
}

// Subscribers returns one page of the users subscribed to channelID.
func (r *MongoEngagementRepository) Subscribers(ctx context.Context, channelID string, page models.Page) ([]models.User, int64, error) {
	return joinedPage(ctx, r.subscriptions, "subscriber",
		bson.D{{Key: "channel_id", Value: channelID}},
		"subscriber_id", usersCollection, nil,
		page, publicUser)
}

// SubscribedChannels returns one page of the channels subscriberID follows.
func (r *MongoEngagementRepository) SubscribedChannels(ctx context.Context, subscriberID string, page models.Page) ([]models.User, int64, error) {
	return joinedPage(ctx, r.subscriptions, "subscribed channel",
		bson.D{{Key: "subscriber_id", Value: subscriberID}},
		"channel_id", usersCollection, nil,
		page, publicUser)
}

// CountLikes returns the number of likes of kind on targetID.
func (r *MongoEngagementRepository) CountLikes(ctx context.Context, targetID string, kind models.EdgeKind) (int64, error) {
	if !kind.IsLike() {
		return 0, fmt.Errorf("unknown like kind %q", kind)
	}
	n, err := r.likes.CountDocuments(ctx, bson.D{{Key: "target_id", Value: targetID}, {Key: "kind", Value: string(kind)}})
	if err != nil {
		return 0, mongoError("count "+string(kind)+" likes", err)
	}
	return n, nil
}

func publicUser(d userDocument) models.User {
	return d.model().Sanitized()
}

type facetPage[D any] struct {
	Total []struct {
		N int64 `bson:"n"`
	} `bson:"total"`
	Items []D `bson:"items"`
}

// joinedPage pages through the edges matching match, newest first, and returns the
// documents of from they point at through localField. Edges whose target no
// longer exists, or fails targetMatch, are skipped and not counted.
func joinedPage[D, T any](ctx context.Context, edges *mongo.Collection, noun string, match bson.D, localField, from string, targetMatch bson.D, page models.Page, convert func(D) T) ([]T, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: from},
			{Key: "localField", Value: localField},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "target"},
		}}},
		{{Key: "$unwind", Value: "$target"}},
	}
	if len(targetMatch) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: targetMatch}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: newestFirst}},
		bson.D{{Key: "$facet", Value: bson.D{
			{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "n"}}}},
			{Key: "items", Value: bson.A{
				bson.D{{Key: "$skip", Value: int64(page.Offset())}},
				bson.D{{Key: "$limit", Value: int64(max(page.Limit, 1))}},
				bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$target"}}}},
			}},
		}}},
	)

	cursor, err := edges.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, mongoError("query "+noun+"s", err)
	}

	var result []facetPage[D]
	if err := cursor.All(ctx, &result); err != nil {
		return nil, 0, mongoError("decode "+noun+"s", err)
	}

	items := []T{}
	var total int64
	if len(result) == 1 {
		if len(result[0].Total) == 1 {
			total = result[0].Total[0].N
		}
		for _, doc := range result[0].Items {
			items = append(items, convert(doc))
		}
	}
	return items, total, nil
}

var _ EngagementRepository = (*MongoEngagementRepository)(nil)
