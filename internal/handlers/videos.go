package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

// VideoHandler implements the video endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Likes   EngagementLister
	Media   MediaStore
	NowFunc func() time.Time
}

type publishVideoRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Duration    float64 `json:"duration" validate:"gte=0"`
}

type updateVideoRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description" validate:"omitnil,max=5000"`
}

func (r *updateVideoRequest) clean() {
	r.Title = trimmed(r.Title)
	r.Description = trimmed(r.Description)
}

var videoSorts = map[string]repositories.VideoSort{
	"createdAt": repositories.SortCreatedAt,
	"views":     repositories.SortViews,
	"title":     repositories.SortTitle,
	"duration":  repositories.SortDuration,
}

// List handles GET /api/v1/videos. Owners listing their own channel also see
// their unpublished videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := h.videoQuery(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	videos, total, err := h.Videos.List(ctx, query)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list videos: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(videos, query.Page, total), "videos fetched")
}

func (h VideoHandler) videoQuery(r *http.Request) (repositories.VideoQuery, error) {
	page, err := pageFromQuery(r)
	if err != nil {
		return repositories.VideoQuery{}, err
	}

	params := r.URL.Query()
	query := repositories.VideoQuery{
		Search: strings.TrimSpace(params.Get("query")),
		SortBy: repositories.SortCreatedAt,
		Page:   page,
	}

	if raw := strings.TrimSpace(params.Get("owner")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return repositories.VideoQuery{}, apperr.Validation("invalid owner")
		}
		query.OwnerID = id.String()
		if viewer, ok := auth.UserFromContext(r.Context()); ok && viewer.ID == query.OwnerID {
			query.IncludeUnpublished = true
		}
	}

	if raw := strings.TrimSpace(params.Get("sortBy")); raw != "" {
		sort, ok := videoSorts[raw]
		if !ok {
			return repositories.VideoQuery{}, apperr.Validation("sortBy must be one of createdAt, views, title, duration")
		}
		query.SortBy = sort
	}

	switch strings.ToLower(strings.TrimSpace(params.Get("sortType"))) {
	case "", "desc":
	case "asc":
		query.Ascending = true
	default:
		return repositories.VideoQuery{}, apperr.Validation("sortType must be asc or desc")
	}
	return query, nil
}

// Publish handles POST /api/v1/videos with a multipart form carrying videoFile,
// thumbnail, title, description and duration (seconds).
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := parseMultipart(w, r, maxVideoUpload); err != nil {
		response.Error(ctx, w, err)
		return
	}

	req, err := publishRequestFrom(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	now := h.now()
	videoFile, err := saveFormFile(ctx, h.Media, r, "videoFile", "videos", "video/", now)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	thumbnail, err := saveFormFile(ctx, h.Media, r, "thumbnail", "thumbnails", "image/", now)
	if err != nil {
		discardUploads(ctx, h.Media, videoFile)
		response.Error(ctx, w, err)
		return
	}

	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      user.ID,
		Title:        req.Title,
		Description:  req.Description,
		VideoURL:     videoFile.URL,
		ThumbnailURL: thumbnail.URL,
		Duration:     req.Duration,
		Published:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		discardUploads(ctx, h.Media, videoFile, thumbnail)
		response.Error(ctx, w, fmt.Errorf("create video: %w", err))
		return
	}

	logger.Info("video published", "videoId", video.ID)
	response.Created(ctx, w, video, "video published")
}

func publishRequestFrom(r *http.Request) (publishVideoRequest, error) {
	req := publishVideoRequest{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) {
			return publishVideoRequest{}, apperr.Validation("duration must be a number of seconds")
		}
		req.Duration = duration
	}
	if err := validateStruct(&req); err != nil {
		return publishVideoRequest{}, err
	}
	return req, nil
}

// Get handles GET /api/v1/videos/{videoId} and counts the view. Unpublished videos
// are only visible to their owner.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	if !video.Published && video.OwnerID != viewer.ID {
		response.Error(ctx, w, apperr.NotFound("video not found"))
		return
	}

	if err := h.Videos.IncrementViews(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("failed to count view", "videoId", id, "error", err)
	} else {
		video.Views++
	}
	if err := h.Videos.RecordWatch(ctx, viewer.ID, id); err != nil {
		logging.FromContext(ctx).Warn("failed to record watch history", "videoId", id, "error", err)
	}
	response.OK(ctx, w, video, "video fetched")
}

// LikeCount handles GET /api/v1/videos/{videoId}/likes. Drafts answer only to their owner.
func (h VideoHandler) LikeCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	if viewer, err := currentUser(r); !video.Published && (err != nil || viewer.ID != video.OwnerID) {
		response.Error(ctx, w, apperr.NotFound("video not found"))
		return
	}

	total, err := h.Likes.CountLikes(ctx, id, models.EdgeVideoLike)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("count video likes: %w", err))
		return
	}
	response.OK(ctx, w, map[string]int64{"totalLikes": total}, "video likes fetched")
}

// Update handles PATCH /api/v1/videos/{videoId}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req updateVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}
	if req.Title == nil && req.Description == nil {
		response.Error(ctx, w, apperr.Validation("title or description is required"))
		return
	}

	grant, err := authorizeOwned(ctx, h.Videos.FindByID, id, "video", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	updated, err := h.Videos.Update(ctx, grant.Resource.ID, grant.ActorID, repositories.VideoChanges{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	response.OK(ctx, w, updated, "video updated")
}

// Delete handles DELETE /api/v1/videos/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Videos.FindByID, id, "video", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := h.Videos.Delete(ctx, grant.Resource.ID, grant.ActorID); err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	response.OK(ctx, w, struct{}{}, "video deleted")
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	id, err := pathID(r, "videoId")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	grant, err := authorizeOwned(ctx, h.Videos.FindByID, id, "video", user)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	video, err := h.Videos.TogglePublished(ctx, grant.Resource.ID, grant.ActorID)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "video"))
		return
	}
	response.OK(ctx, w, video, "publish status toggled")
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
