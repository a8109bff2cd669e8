package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/response"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Videos      VideoStore
	Comments    CommentStore
	Tweets      TweetStore
	Playlists   PlaylistStore
	Engagement  EngagementToggler
	Engagements EngagementLister
	Media       MediaStore
	Limiter     middleware.RateLimiter
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Cookies     CookieOptions

	// Diagnostics exposes the diagnostic reason of failures in the envelope.
	Diagnostics    bool
	CORSOrigin     string
	RequestTimeout time.Duration
	MediaTimeout   time.Duration
	Health         func(ctx context.Context) error
}

// NewRouter wires every endpoint behind the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authH := AuthHandler{
		Users:    deps.Users,
		Sessions: deps.Sessions,
		Limiter:  deps.Limiter,
		Metrics:  deps.Metrics,
		Cookies:  deps.Cookies,
	}
	users := UserHandler{Users: deps.Users, Videos: deps.Videos, Media: deps.Media}
	videos := VideoHandler{Videos: deps.Videos, Likes: deps.Engagements, Media: deps.Media}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos}
	tweets := TweetHandler{Tweets: deps.Tweets}
	playlists := PlaylistHandler{Playlists: deps.Playlists}
	engagement := EngagementHandler{Toggler: deps.Engagement, Lister: deps.Engagements}
	dashboard := DashboardHandler{Videos: deps.Videos}
	health := HealthHandler{Check: deps.Health}

	requireSession := middleware.RequireSession(deps.Sessions, deps.Metrics)
	optionalSession := middleware.OptionalSession(deps.Sessions)
	requestDeadline := middleware.Deadline(deps.RequestTimeout)
	mediaDeadline := middleware.Deadline(deps.MediaTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger, deps.Metrics, deps.Diagnostics))
	r.Use(middleware.CORS(deps.CORSOrigin))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(r.Context(), w, apperr.NotFound("route not found"))
	})

	r.With(requestDeadline).Get("/healthz", health.Handle)
	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Uploads get their own deadline; everything else shares the request deadline.
		r.Group(func(r chi.Router) {
			r.Use(mediaDeadline, requireSession)
			r.Patch("/users/avatar", users.UpdateAvatar)
			r.Patch("/users/cover-image", users.UpdateCoverImage)
			r.Post("/videos", videos.Publish)
		})

		r.Group(func(r chi.Router) {
			r.Use(requestDeadline)

			r.Post("/users/register", authH.Register)
			r.Post("/users/login", authH.Login)
			r.Post("/users/refresh-token", authH.Refresh)

			r.With(optionalSession).Get("/users/is-logged-in", users.IsLoggedIn)
			r.With(optionalSession).Get("/videos", videos.List)
			r.With(optionalSession).Get("/videos/{videoId}/likes", videos.LikeCount)
			r.Get("/comments/{videoId}", comments.List)
			r.Get("/tweets/user/{userId}", tweets.ListForUser)
			r.Get("/playlists/user/{userId}", playlists.ListForUser)
			r.Get("/playlists/{playlistId}", playlists.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)

				r.Post("/users/logout", authH.Logout)
				r.Post("/users/change-password", users.ChangePassword)
				r.Get("/users/current-user", users.CurrentUser)
				r.Patch("/users/update-account", users.UpdateAccount)
				r.Get("/users/c/{username}", users.ChannelProfile)
				r.Get("/users/history", users.WatchHistory)

				r.Get("/videos/{videoId}", videos.Get)
				r.Patch("/videos/{videoId}", videos.Update)
				r.Delete("/videos/{videoId}", videos.Delete)
				r.Patch("/videos/{videoId}/publish", videos.TogglePublish)

				r.Post("/comments/{videoId}", comments.Add)
				r.Patch("/comments/c/{commentId}", comments.Update)
				r.Delete("/comments/c/{commentId}", comments.Delete)

				r.Post("/tweets", tweets.Create)
				r.Patch("/tweets/{tweetId}", tweets.Update)
				r.Delete("/tweets/{tweetId}", tweets.Delete)

				r.Post("/playlists", playlists.Create)
				r.Patch("/playlists/{playlistId}", playlists.Update)
				r.Delete("/playlists/{playlistId}", playlists.Delete)
				r.Patch("/playlists/{playlistId}/videos/{videoId}", playlists.AddVideo)
				r.Delete("/playlists/{playlistId}/videos/{videoId}", playlists.RemoveVideo)

				r.Post("/likes/toggle/{kind}/{targetId}", engagement.ToggleLike)
				r.Get("/likes/videos", engagement.LikedVideos)

				r.Post("/subscriptions/c/{channelId}", engagement.ToggleSubscription)
				r.Get("/subscriptions/c/{channelId}", engagement.Subscribers)
				r.Get("/subscriptions/u/{subscriberId}", engagement.SubscribedChannels)

				r.Get("/dashboard/stats", dashboard.Stats)
				r.Get("/dashboard/videos", dashboard.ChannelVideos)
			})
		})
	})

	return r
}
