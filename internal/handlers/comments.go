package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

// CommentHandler implements the comment endpoints.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	NowFunc  func() time.Time
}

type contentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

func (r *contentRequest) clean() {
	r.Content = strings.TrimSpace(r.Content)
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	comments, total, err := h.Comments.ListForVideo(ctx, videoID, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list comments: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(comments, page, total), "comments fetched")
}

// Add handles POST /api/v1/comments/{videoId}. Comments can only be left on
// published videos.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	videoID, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	if !video.Published && video.OwnerID != user.ID {
		response.Error(ctx, w, apperr.NotFound("video not found"))
		return
	}

	now := h.now()
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   user.ID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	response.Created(ctx, w, comment, "comment added")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "commentId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Comments.FindByID, id, "comment", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	updated, err := h.Comments.Update(ctx, grant.Resource.ID, grant.ActorID, req.Content)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "comment"))
		return
	}
	response.OK(ctx, w, updated, "comment updated")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "commentId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Comments.FindByID, id, "comment", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := h.Comments.Delete(ctx, grant.Resource.ID, grant.ActorID); err != nil {
		response.Error(ctx, w, notFoundAs(err, "comment"))
		return
	}
	response.OK(ctx, w, struct{}{}, "comment deleted")
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
