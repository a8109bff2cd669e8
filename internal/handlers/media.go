package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/storage"
)

const (
	maxImageUpload = 10 << 20
	maxVideoUpload = 1 << 30
	formMemory     = 32 << 20
)

// upload is a stored media object. Key is kept so the object can be removed again
// if the database write that references it fails.
type upload struct {
	Key string
	URL string
}

// parseMultipart bounds the request body and parses the multipart form.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		}
		return apperr.Wrap(apperr.KindValidation, "invalid multipart form", err)
	}
	return nil
}

// saveFormFile stores the form file field under prefix. mediaType is the required
// prefix of the part's content type, such as "image/".
func saveFormFile(ctx context.Context, media MediaStore, r *http.Request, field, prefix, mediaType string, now time.Time) (upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return upload{}, apperr.Validation(field + " file is required")
		}
		return upload{}, apperr.Wrap(apperr.KindValidation, "invalid "+field+" file", err)
	}
	defer file.Close()

	contentType := contentTypeOf(header)
	if !strings.HasPrefix(contentType, mediaType) {
		return upload{}, apperr.Validation(fmt.Sprintf("%s must be of type %s*", field, mediaType))
	}

	key := storage.Key(prefix, header.Filename, now)
	url, err := media.Save(ctx, key, contentType, file)
	if err != nil {
		return upload{}, fmt.Errorf("store %s: %w", field, err)
	}
	return upload{Key: key, URL: url}, nil
}

// discardUploads removes objects whose referencing write failed.
func discardUploads(ctx context.Context, media MediaStore, uploads ...upload) {
	logger := logging.FromContext(ctx)
	for _, u := range uploads {
		if u.Key == "" {
			continue
		}
		if err := media.Delete(context.WithoutCancel(ctx), u.Key); err != nil {
			logger.Warn("failed to discard orphaned upload", "key", u.Key, "error", err)
		}
	}
}

func contentTypeOf(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
