package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

// PlaylistHandler implements the playlist endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	NowFunc   func() time.Time
}

type createPlaylistRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (r *createPlaylistRequest) clean() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

type updatePlaylistRequest struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
}

func (r *updatePlaylistRequest) clean() {
	r.Name = trimmed(r.Name)
	r.Description = trimmed(r.Description)
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		Name:        req.Name,
		Description: req.Description,
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		response.Error(ctx, w, fmt.Errorf("create playlist: %w", err))
		return
	}
	response.Created(ctx, w, playlist, "playlist created")
}

// ListForUser handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
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

	playlists, total, err := h.Playlists.ListForOwner(ctx, ownerID, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list playlists: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(playlists, page, total), "playlists fetched")
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "playlistId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	playlist, err := h.Playlists.FindByID(ctx, id)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "playlist"))
		return
	}
	response.OK(ctx, w, playlist, "playlist fetched")
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "playlistId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req updatePlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}
	if req.Name == nil && req.Description == nil {
		response.Error(ctx, w, apperr.Validation("name or description is required"))
		return
	}

	grant, err := authorizeOwned(ctx, h.Playlists.FindByID, id, "playlist", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	updated, err := h.Playlists.Update(ctx, grant.Resource.ID, grant.ActorID, repositories.PlaylistChanges{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "playlist"))
		return
	}
	response.OK(ctx, w, updated, "playlist updated")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "playlistId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Playlists.FindByID, id, "playlist", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := h.Playlists.Delete(ctx, grant.Resource.ID, grant.ActorID); err != nil {
		response.Error(ctx, w, notFoundAs(err, "playlist"))
		return
	}
	response.OK(ctx, w, struct{}{}, "playlist deleted")
}

// AddVideo handles PATCH /api/v1/playlists/{playlistId}/videos/{videoId}.
// Adding a video that is already listed leaves the playlist unchanged.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	h.changeVideos(w, r, true)
}

// RemoveVideo handles DELETE /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	h.changeVideos(w, r, false)
}

func (h PlaylistHandler) changeVideos(w http.ResponseWriter, r *http.Request, add bool) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	playlistID, err := pathID(r, "playlistId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	videoID, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Playlists.FindByID, playlistID, "playlist", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	message := "video added to playlist"
	if add {
		err = h.Playlists.AddVideo(ctx, grant.Resource.ID, videoID)
	} else {
		message = "video removed from playlist"
		err = h.Playlists.RemoveVideo(ctx, grant.Resource.ID, videoID)
	}
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}

	playlist, err := h.Playlists.FindByID(ctx, grant.Resource.ID)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "playlist"))
		return
	}
	response.OK(ctx, w, playlist, message)
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
