package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

// EngagementHandler implements likes and subscriptions.
type EngagementHandler struct {
	Toggler EngagementToggler
	Lister  EngagementLister
}

var likeKinds = map[string]models.EdgeKind{
	"v":       models.EdgeVideoLike,
	"video":   models.EdgeVideoLike,
	"c":       models.EdgeCommentLike,
	"comment": models.EdgeCommentLike,
	"t":       models.EdgeTweetLike,
	"tweet":   models.EdgeTweetLike,
}

// ToggleLike handles POST /api/v1/likes/toggle/{kind}/{targetId}.
func (h EngagementHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	kind, ok := likeKinds[strings.ToLower(chi.URLParam(r, "kind"))]
	if !ok {
		response.Error(ctx, w, apperr.Validation("kind must be one of video, comment, tweet"))
		return
	}

	state, err := h.Toggler.Toggle(ctx, user.ID, strings.TrimSpace(chi.URLParam(r, "targetId")), kind)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	message := "like removed"
	if state.Present {
		message = "like added"
	}
	response.OK(ctx, w, map[string]bool{"liked": state.Present}, message)
}

// ToggleSubscription handles POST /api/v1/subscriptions/c/{channelId}.
func (h EngagementHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	channelID := strings.TrimSpace(chi.URLParam(r, "channelId"))
	state, err := h.Toggler.Toggle(ctx, user.ID, channelID, models.EdgeSubscription)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	message := "unsubscribed"
	if state.Present {
		message = "subscribed"
	}
	response.OK(ctx, w, map[string]bool{"subscribed": state.Present}, message)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h EngagementHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	videos, total, err := h.Lister.LikedVideos(ctx, user.ID, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list liked videos: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(videos, page, total), "liked videos fetched")
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h EngagementHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, "channelId", "subscribers fetched", h.Lister.Subscribers)
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h EngagementHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, "subscriberId", "subscribed channels fetched", h.Lister.SubscribedChannels)
}

type userPager func(ctx context.Context, id string, page models.Page) ([]models.User, int64, error)

func (h EngagementHandler) listUsers(w http.ResponseWriter, r *http.Request, param, message string, list userPager) {
	ctx := r.Context()

	id, err := pathID(r, param)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	users, total, err := list(ctx, id, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list %s: %w", param, err))
		return
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	response.OK(ctx, w, newListPayload(users, page, total), message)
}
