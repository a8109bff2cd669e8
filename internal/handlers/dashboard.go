package handlers

import (
	"fmt"
	"net/http"

	"github.com/vidtube/backend/internal/response"
)

// DashboardHandler reports on the caller's own channel.
type DashboardHandler struct {
	Videos VideoStore
}

// Stats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	stats, err := h.Videos.ChannelStats(ctx, user.ID)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("load channel stats: %w", err))
		return
	}
	response.OK(ctx, w, stats, "channel stats fetched")
}

// ChannelVideos handles GET /api/v1/dashboard/videos. Drafts are listed alongside
// published videos.
func (h DashboardHandler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
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

	videos, total, err := h.Videos.ChannelVideos(ctx, user.ID, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list channel videos: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(videos, page, total), "channel videos fetched")
}
