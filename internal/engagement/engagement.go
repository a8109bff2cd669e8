// Package engagement flips like and subscription edges between users and content.
package engagement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrInvalidKind rejects an edge kind the service does not know.
	ErrInvalidKind = apperr.Validation("unknown engagement kind")
	// ErrInvalidReference rejects a target id that is not well formed.
	ErrInvalidReference = apperr.Validation("invalid target id")
	// ErrSelfReference rejects subscribing to one's own channel.
	ErrSelfReference = apperr.New(apperr.KindConflict, "you cannot subscribe to your own channel")
	// ErrTargetNotFound rejects subscribing to a channel that does not exist.
	ErrTargetNotFound = apperr.NotFound("channel not found")
)

// EdgeStore persists engagement edges. The store must enforce uniqueness of
// (actor, target, kind) itself: Insert reports created=false when the edge already
// exists, and Delete reports removed=false when there was nothing to delete.
type EdgeStore interface {
	Exists(ctx context.Context, edge models.Edge) (bool, error)
	Insert(ctx context.Context, edge models.Edge) (bool, error)
	Delete(ctx context.Context, edge models.Edge) (bool, error)
}

// UserLookup answers whether a channel exists.
type UserLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// State is the outcome of a toggle: whether the edge exists afterwards.
type State struct {
	Kind    models.EdgeKind
	Present bool
}

// Service performs toggles. Metrics may be nil.
type Service struct {
	edges   EdgeStore
	users   UserLookup
	metrics *metrics.Metrics
}

// NewService constructs a toggle service.
func NewService(edges EdgeStore, users UserLookup, m *metrics.Metrics) *Service {
	if edges == nil || users == nil {
		panic("engagement: edge store and user lookup must not be nil")
	}
	return &Service{edges: edges, users: users, metrics: m}
}

// Toggle creates the (actor, target, kind) edge when it is absent and removes it
// when present. The read and the write are separate store calls, so two concurrent
// toggles can both take the same branch; the store's uniqueness rule collapses the
// duplicate insert and the second delete is a no-op. Neither case is an error.
func (s *Service) Toggle(ctx context.Context, actorID, targetID string, kind models.EdgeKind) (State, error) {
	ctx, span := logging.StartSpan(ctx, "engagement.toggle")
	defer span.End()

	if !kind.Valid() {
		return State{}, ErrInvalidKind
	}
	target, err := uuid.Parse(targetID)
	if err != nil {
		return State{}, ErrInvalidReference
	}
	// Every spelling of one UUID must map to the same edge.
	targetID = target.String()
	if actor, err := uuid.Parse(actorID); err == nil {
		actorID = actor.String()
	}

	if kind == models.EdgeSubscription {
		if actorID == targetID {
			return State{}, ErrSelfReference
		}
		exists, err := s.users.Exists(ctx, targetID)
		if err != nil {
			span.RecordError(err)
			return State{}, fmt.Errorf("lookup channel: %w", err)
		}
		if !exists {
			return State{}, ErrTargetNotFound
		}
	}

	edge := models.Edge{ActorID: actorID, TargetID: targetID, Kind: kind}
	logger := logging.FromContext(ctx).With(slog.String("kind", string(kind)), slog.String("targetId", targetID))

	present, err := s.edges.Exists(ctx, edge)
	if err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("check edge: %w", err)
	}

	var state State
	if present {
		removed, err := s.edges.Delete(ctx, edge)
		if err != nil {
			span.RecordError(err)
			return State{}, fmt.Errorf("delete edge: %w", err)
		}
		if !removed {
			logger.Info("edge already removed by a concurrent toggle")
		}
		state = State{Kind: kind, Present: false}
	} else {
		created, err := s.edges.Insert(ctx, edge)
		if err != nil {
			span.RecordError(err)
			return State{}, fmt.Errorf("insert edge: %w", err)
		}
		if !created {
			logger.Info("edge already created by a concurrent toggle")
		}
		state = State{Kind: kind, Present: true}
	}

	s.metrics.Toggle(string(kind), state.Present)
	return state, nil
}
