package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/engagement"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

const tokenIssuer = "vidtube"

type userRepository interface {
	handlers.UserStore
	auth.CredentialStore
	engagement.UserLookup
}

type edgeRepository interface {
	engagement.EdgeStore
	handlers.EngagementLister
}

// backend is one of the supported persistence stores with its repositories.
type backend struct {
	users      userRepository
	videos     handlers.VideoStore
	comments   handlers.CommentStore
	tweets     handlers.TweetStore
	playlists  handlers.PlaylistStore
	engagement edgeRepository
	health     func(ctx context.Context) error
	close      func(ctx context.Context) error
}

// openBackend connects to the store selected by cfg.Store.
func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return backend{}, err
		}
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return backend{}, err
		}
		return mongoBackend(client, database), nil
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, err
		}
		return postgresBackend(pool, pool.Ping), nil
	}
}

func postgresBackend(pool db.Pool, ping func(ctx context.Context) error) backend {
	return backend{
		users:      repositories.NewPostgresUserRepository(pool),
		videos:     repositories.NewPostgresVideoRepository(pool),
		comments:   repositories.NewPostgresCommentRepository(pool),
		tweets:     repositories.NewPostgresTweetRepository(pool),
		playlists:  repositories.NewPostgresPlaylistRepository(pool),
		engagement: repositories.NewPostgresEngagementRepository(pool),
		health:     ping,
		close:      func(context.Context) error { pool.Close(); return nil },
	}
}

func mongoBackend(client *mongo.Client, database *mongo.Database) backend {
	return backend{
		users:      repositories.NewMongoUserRepository(database),
		videos:     repositories.NewMongoVideoRepository(database),
		comments:   repositories.NewMongoCommentRepository(database),
		tweets:     repositories.NewMongoTweetRepository(database),
		playlists:  repositories.NewMongoPlaylistRepository(database),
		engagement: repositories.NewMongoEngagementRepository(database),
		health: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: client.Disconnect,
	}
}

// buildDependencies wires the concrete implementations used by the HTTP handlers.
// The returned cleanup releases the clients opened here; the backend is closed by
// its owner.
func buildDependencies(ctx context.Context, cfg config.Config, b backend, logger *slog.Logger, m *metrics.Metrics) (handlers.Dependencies, func(context.Context) error, error) {
	var closers []func() error
	cleanup := func(context.Context) error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	var media handlers.MediaStore = storage.Unconfigured{}
	if cfg.ObjectStore.Enabled() {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure media storage: %w", err)
		}
		media = s3
	} else {
		logger.Warn("no media bucket configured, uploads will be rejected")
	}

	var limiter middleware.RateLimiter
	if cfg.RateLimit.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		closers = append(closers, client.Close)
		limiter = middleware.NewRedisRateLimiter(client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	} else {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 10*cfg.RateLimit.Window)
	}

	sessions := auth.NewManager(auth.Config{
		AccessSecret:  []byte(cfg.Tokens.AccessSecret),
		RefreshSecret: []byte(cfg.Tokens.RefreshSecret),
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		Issuer:        tokenIssuer,
	}, b.users)

	deps := handlers.Dependencies{
		Users:          b.users,
		Sessions:       sessions,
		Videos:         b.videos,
		Comments:       b.comments,
		Tweets:         b.tweets,
		Playlists:      b.playlists,
		Engagement:     engagement.NewService(b.engagement, b.users, m),
		Engagements:    b.engagement,
		Media:          media,
		Limiter:        limiter,
		Metrics:        m,
		Logger:         logger,
		Cookies:        handlers.CookieOptions{Secure: cfg.Cookies.Secure, Domain: cfg.Cookies.Domain},
		Diagnostics:    !cfg.Production(),
		CORSOrigin:     cfg.CORSOrigin,
		RequestTimeout: cfg.RequestTimeout,
		MediaTimeout:   cfg.MediaTimeout,
		Health:         b.health,
	}
	return deps, cleanup, nil
}
