package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vidtube/backend/internal/models"
)

// RecordWatch adds videoID to the watch history of userID. Watching a video again
// moves it to the front of the history.
func (r *MongoVideoRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	if err := requireDocument(ctx, r.videos, "select watched video", videoID); err != nil {
		return err
	}

	_, err := r.history.UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}, {Key: "video_id", Value: videoID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "created_at", Value: time.Now().UTC()}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: uuid.NewString()}}},
		},
		options.UpdateOne().SetUpsert(true),
	)
	// Two concurrent first views race on the upsert; the loser's entry already exists.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return mongoError("record watch", err)
	}
	return nil
}

// WatchHistory returns one page of the videos userID watched, most recent first.
// Videos unpublished since are kept only for their owner.
func (r *MongoVideoRepository) WatchHistory(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error) {
	return joinedPage(ctx, r.history, "watched video",
		bson.D{{Key: "user_id", Value: userID}},
		"video_id", videosCollection,
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "target.is_published", Value: true}},
			bson.D{{Key: "target.owner_id", Value: userID}},
		}}},
		page, videoDocument.model)
}

type channelTotals struct {
	Videos int64    `bson:"videos"`
	Views  int64    `bson:"views"`
	IDs    []string `bson:"ids"`
}

// ChannelStats totals the videos, views, likes and subscribers of ownerID.
// Drafts count towards every total.
func (r *MongoVideoRepository) ChannelStats(ctx context.Context, ownerID string) (models.ChannelStats, error) {
	cursor, err := r.videos.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "owner_id", Value: ownerID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "videos", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "views", Value: bson.D{{Key: "$sum", Value: "$views"}}},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
		}}},
	})
	if err != nil {
		return models.ChannelStats{}, mongoError("aggregate channel videos", err)
	}
	var totals []channelTotals
	if err := cursor.All(ctx, &totals); err != nil {
		return models.ChannelStats{}, mongoError("decode channel totals", err)
	}

	var stats models.ChannelStats
	if len(totals) == 1 {
		stats.TotalVideos = totals[0].Videos
		stats.TotalViews = totals[0].Views

		stats.TotalLikes, err = r.likes.CountDocuments(ctx, bson.D{
			{Key: "kind", Value: string(models.EdgeVideoLike)},
			{Key: "target_id", Value: bson.D{{Key: "$in", Value: totals[0].IDs}}},
		})
		if err != nil {
			return models.ChannelStats{}, mongoError("count channel likes", err)
		}
	}

	stats.TotalSubscribers, err = r.subscriptions.CountDocuments(ctx, bson.D{{Key: "channel_id", Value: ownerID}})
	if err != nil {
		return models.ChannelStats{}, mongoError("count channel subscribers", err)
	}
	return stats, nil
}

type channelVideoDocument struct {
	Video      videoDocument `bson:",inline"`
	TotalLikes int64         `bson:"total_likes"`
}

func (d channelVideoDocument) model() models.ChannelVideo {
	return models.ChannelVideo{Video: d.Video.model(), TotalLikes: d.TotalLikes}
}

// ChannelVideos returns one page of every video ownerID uploaded, drafts included,
// newest first and with their like counts.
func (r *MongoVideoRepository) ChannelVideos(ctx context.Context, ownerID string, page models.Page) ([]models.ChannelVideo, int64, error) {
	filter := bson.D{{Key: "owner_id", Value: ownerID}}
	total, err := r.videos.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongoError("count channel videos", err)
	}

	cursor, err := r.videos.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$skip", Value: int64(page.Offset())}},
		{{Key: "$limit", Value: int64(max(page.Limit, 1))}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: likesCollection},
			{Key: "let", Value: bson.D{{Key: "videoId", Value: "$_id"}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$target_id", "$$videoId"}}},
					bson.D{{Key: "$eq", Value: bson.A{"$kind", string(models.EdgeVideoLike)}}},
				}}}}}}},
				bson.D{{Key: "$count", Value: "n"}},
			}},
			{Key: "as", Value: "likes"},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "total_likes", Value: bson.D{{Key: "$sum", Value: "$likes.n"}}}}}},
		{{Key: "$project", Value: bson.D{{Key: "likes", Value: 0}}}},
	})
	if err != nil {
		return nil, 0, mongoError("query channel videos", err)
	}

	var docs []channelVideoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, mongoError("decode channel videos", err)
	}
	items := make([]models.ChannelVideo, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.model())
	}
	return items, total, nil
}
