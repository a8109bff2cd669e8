package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

var errWrongOldPassword = apperr.Validation("old password is incorrect")

// UserHandler implements the account endpoints of an authenticated user.
type UserHandler struct {
	Users   UserStore
	Videos  VideoStore
	Media   MediaStore
	NowFunc func() time.Time
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

func (r *updateAccountRequest) clean() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = normalize(r.Email)
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.Error(r.Context(), w, err)
		return
	}
	response.OK(r.Context(), w, user, "current user fetched")
}

// IsLoggedIn handles GET /api/v1/users/is-logged-in. It never fails with a
// credential error: an anonymous caller gets a 401 envelope reporting false.
func (h UserHandler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.JSON(r.Context(), w, http.StatusUnauthorized, loginStatus{}, "user not authenticated")
		return
	}
	response.OK(r.Context(), w, loginStatus{IsLoggedIn: true, User: &user}, "user is logged in")
}

type loginStatus struct {
	IsLoggedIn bool         `json:"isLoggedIn"`
	User       *models.User `json:"user,omitempty"`
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
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

	videos, total, err := h.Videos.WatchHistory(ctx, user.ID, page)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("list watch history: %w", err))
		return
	}
	response.OK(ctx, w, newListPayload(videos, page, total), "watch history fetched")
}

// ChangePassword handles POST /api/v1/users/change-password. Existing tokens stay valid.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	stored, err := h.Users.FindByID(ctx, user.ID)
	if err != nil {
		response.Error(ctx, w, fmt.Errorf("load account: %w", err))
		return
	}
	if !auth.CheckPassword(stored.Password, req.OldPassword) {
		logging.FromContext(ctx).Warn("change password with wrong old password")
		response.Error(ctx, w, errWrongOldPassword)
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		response.Error(ctx, w, fmt.Errorf("update password: %w", err))
		return
	}

	response.OK(ctx, w, struct{}{}, "password changed")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	updated, err := h.Users.UpdateAccount(ctx, user.ID, req.FullName, req.Email)
	if err != nil {
		response.Error(ctx, w, conflictAs(err, "email is already in use"))
		return
	}
	response.OK(ctx, w, updated.Sanitized(), "account updated")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar with a multipart "avatar" file.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", "avatars", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image with a multipart "coverImage" file.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", "covers", h.Users.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, id, url string) (models.User, error)

func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, field, prefix string, update imageUpdater) {
	ctx := r.Context()

	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := parseMultipart(w, r, maxImageUpload); err != nil {
		response.Error(ctx, w, err)
		return
	}

	stored, err := saveFormFile(ctx, h.Media, r, field, prefix, "image/", h.now())
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	updated, err := update(ctx, user.ID, stored.URL)
	if err != nil {
		discardUploads(ctx, h.Media, stored)
		response.Error(ctx, w, fmt.Errorf("update %s: %w", field, err))
		return
	}
	response.OK(ctx, w, updated.Sanitized(), field+" updated")
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	username := normalize(chi.URLParam(r, "username"))
	if username == "" {
		response.Error(ctx, w, apperr.Validation("username is required"))
		return
	}

	profile, err := h.Users.ChannelProfile(ctx, username, viewer.ID)
	if err != nil {
		response.Error(ctx, w, notFoundAs(err, "channel"))
		return
	}
	profile.User = profile.User.Sanitized()
	response.OK(ctx, w, profile, "channel fetched")
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
