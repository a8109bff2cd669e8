package handlers

import (
	"context"
	"errors"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/authz"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// authorizeOwned loads the resource and checks the actor owns it. A missing
// resource is reported before ownership, so strangers learn 404 rather than 403.
func authorizeOwned[T authz.Owned](ctx context.Context, find func(context.Context, string) (T, error), id, noun string, actor models.User) (authz.Grant[T], error) {
	resource, err := find(ctx, id)
	if err != nil {
		return authz.Grant[T]{}, notFoundAs(err, noun)
	}
	return authz.Authorize(resource, actor)
}

func notFoundAs(err error, noun string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound(noun + " not found")
	}
	return err
}

func conflictAs(err error, message string) error {
	if errors.Is(err, repositories.ErrConflict) {
		return apperr.New(apperr.KindConflict, message)
	}
	return err
}
