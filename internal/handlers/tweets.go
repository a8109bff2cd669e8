package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

// TweetHandler implements the channel tweet endpoints.
type TweetHandler struct {
	Tweets  TweetStore
	NowFunc func() time.Time
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	now := time.Now().UTC()
	if h.NowFunc != nil {
		now = h.NowFunc()
	}
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		response.Error(ctx, w, fmt.Errorf("create tweet: %w", err))
		return
	}
	response.Created(ctx, w, tweet, "tweet created")
}

// ListForUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, err := pathID(r, "userId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	tweets, total, err := h.Tweets.ListForOwner(ctx, ownerID, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list tweets: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(tweets, page, total), "tweets fetched")
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "tweetId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Tweets.FindByID, id, "tweet", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	updated, err := h.Tweets.Update(ctx, grant.Resource.ID, grant.ActorID, req.Content)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "tweet"))
		return
	}
	response.OK(ctx, w, updated, "tweet updated")
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "tweetId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Tweets.FindByID, id, "tweet", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := h.Tweets.Delete(ctx, grant.Resource.ID, grant.ActorID); err != nil {
		response.Error(ctx, w, notFoundAs(err, "tweet"))
		return
	}
	response.OK(ctx, w, struct{}{}, "tweet deleted")
}
