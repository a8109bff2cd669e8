// Package authz decides whether an authenticated user may mutate an owned resource.
package authz

import (
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
)

// ErrForbidden is returned when the requester is authenticated but does not own the resource.
var ErrForbidden = apperr.New(apperr.KindForbidden, "you do not have permission to modify this resource")

// Owned is implemented by every resource that records its creator.
type Owned interface {
	OwnerRef() string
}

// Grant is the proof that Actor may mutate Resource. Handlers obtain it from
// Authorize and pass it on to the mutation.
type Grant[T Owned] struct {
	Resource T
	ActorID  string
}

// AuthorizeMutation compares owner and requester by value. Empty references never match.
func AuthorizeMutation(ownerID, requesterID string) error {
	if ownerID == "" || requesterID == "" || ownerID != requesterID {
		return ErrForbidden
	}
	return nil
}

// Authorize checks that actor owns resource and returns the grant for the mutation.
func Authorize[T Owned](resource T, actor models.User) (Grant[T], error) {
	if err := AuthorizeMutation(resource.OwnerRef(), actor.ID); err != nil {
		return Grant[T]{}, err
	}
	return Grant[T]{Resource: resource, ActorID: actor.ID}, nil
}
