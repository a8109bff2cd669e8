package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxJSONBody      = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

var errInvalidBody = apperr.Validation("invalid request body")

// decodeJSON reads a JSON body into dst and validates it against its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(apperr.KindValidation, errInvalidBody.Message, err)
	}
	if c, ok := dst.(cleaner); ok {
		c.clean()
	}
	return validateStruct(dst)
}

// cleaner is implemented by request payloads that trim or lower-case their fields
// before validation.
type cleaner interface {
	clean()
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Wrap(apperr.KindValidation, errInvalidBody.Message, err)
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, describeField(fe))
	}
	return apperr.Invalid("invalid request body", details...)
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_without":
		return fmt.Sprintf("%s or %s is required", fe.Field(), strings.ToLower(fe.Param()))
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "alphanum":
		return fe.Field() + " may only contain letters and digits"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// pathID returns the URL parameter name after checking it is a UUID.
func pathID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Validation("invalid " + name)
	}
	return id.String(), nil
}

// pageFromQuery reads page and limit, defaulting to the first page of ten and
// capping limit at one hundred.
func pageFromQuery(r *http.Request) (models.Page, error) {
	page := models.Page{Number: 1, Limit: defaultPageLimit}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return models.Page{}, apperr.Validation("page must be a positive integer")
		}
		page.Number = n
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return models.Page{}, apperr.Validation("limit must be a positive integer")
		}
		page.Limit = min(n, maxPageLimit)
	}
	return page, nil
}

type listPayload[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func newListPayload[T any](items []T, page models.Page, total int64) listPayload[T] {
	if items == nil {
		items = []T{}
	}
	limit := int64(page.Limit)
	if limit < 1 {
		limit = 1
	}
	return listPayload[T]{
		Items:      items,
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

var errNoSession = auth.ErrTokenMissing

// currentUser returns the user attached by the session middleware.
func currentUser(r *http.Request) (models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return models.User{}, errNoSession
	}
	return user, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
