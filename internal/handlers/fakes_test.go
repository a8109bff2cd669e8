package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/engagement"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
	edges *memoryEdges
}

func (s *memoryUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memoryUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memoryUsers) FindByUsernameOrEmail(_ context.Context, key string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.ToLower(key)
	for _, user := range s.users {
		if user.Username == key || user.Email == key {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memoryUsers) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.FindByID(ctx, id)
	return err == nil, nil
}

func (s *memoryUsers) modify(id string, fn func(*models.User) error) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	if err := fn(&user); err != nil {
		return models.User{}, err
	}
	s.users[id] = user
	return user, nil
}

func (s *memoryUsers) SetRefreshToken(_ context.Context, userID, tokenHash string) error {
	_, err := s.modify(userID, func(u *models.User) error {
		u.RefreshTokenHash = tokenHash
		return nil
	})
	return err
}

func (s *memoryUsers) ClearRefreshToken(ctx context.Context, userID string) error {
	return s.SetRefreshToken(ctx, userID, "")
}

func (s *memoryUsers) SwapRefreshToken(_ context.Context, userID, currentHash, nextHash string) (bool, error) {
	swapped := false
	_, err := s.modify(userID, func(u *models.User) error {
		if u.RefreshTokenHash == currentHash {
			u.RefreshTokenHash = nextHash
			swapped = true
		}
		return nil
	})
	return swapped, err
}

func (s *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := s.modify(id, func(u *models.User) error {
		u.Password = passwordHash
		return nil
	})
	return err
}

func (s *memoryUsers) UpdateAccount(_ context.Context, id, fullName, email string) (models.User, error) {
	s.mu.Lock()
	for otherID, other := range s.users {
		if otherID != id && other.Email == email {
			s.mu.Unlock()
			return models.User{}, repositories.ErrConflict
		}
	}
	s.mu.Unlock()
	return s.modify(id, func(u *models.User) error {
		u.FullName = fullName
		u.Email = email
		return nil
	})
}

func (s *memoryUsers) UpdateAvatar(_ context.Context, id, url string) (models.User, error) {
	return s.modify(id, func(u *models.User) error {
		u.AvatarURL = url
		return nil
	})
}

func (s *memoryUsers) UpdateCoverImage(_ context.Context, id, url string) (models.User, error) {
	return s.modify(id, func(u *models.User) error {
		u.CoverImageURL = url
		return nil
	})
}

func (s *memoryUsers) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	channel, err := s.FindByUsernameOrEmail(ctx, username)
	if err != nil || channel.Username != username {
		return models.ChannelProfile{}, repositories.ErrNotFound
	}

	profile := models.ChannelProfile{User: channel}
	for edge := range s.edges.snapshot() {
		if edge.Kind != models.EdgeSubscription {
			continue
		}
		if edge.TargetID == channel.ID {
			profile.SubscribersCount++
			if edge.ActorID == viewerID {
				profile.IsSubscribed = true
			}
		}
		if edge.ActorID == channel.ID {
			profile.SubscribedToCount++
		}
	}
	return profile, nil
}

type memoryVideos struct {
	mu     sync.Mutex
	videos map[string]models.Video
	// history holds the watched video ids of each user, most recent first.
	history map[string][]string
	edges   *memoryEdges
}

func (s *memoryVideos) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s *memoryVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *memoryVideos) List(_ context.Context, q repositories.VideoQuery) ([]models.Video, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Video
	for _, v := range s.videos {
		if q.OwnerID != "" && v.OwnerID != q.OwnerID {
			continue
		}
		if !v.Published && !q.IncludeUnpublished {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(v.Title), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, v)
	}

	less := func(a, b models.Video) bool {
		switch q.SortBy {
		case repositories.SortViews:
			return a.Views < b.Views
		case repositories.SortTitle:
			return a.Title < b.Title
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if q.Ascending {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})
	return window(matched, q.Page), int64(len(matched)), nil
}

func (s *memoryVideos) modify(id, ownerID string, fn func(*models.Video)) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || video.OwnerID != ownerID {
		return models.Video{}, repositories.ErrNotFound
	}
	fn(&video)
	s.videos[id] = video
	return video, nil
}

func (s *memoryVideos) Update(_ context.Context, id, ownerID string, changes repositories.VideoChanges) (models.Video, error) {
	return s.modify(id, ownerID, func(v *models.Video) {
		if changes.Title != nil {
			v.Title = *changes.Title
		}
		if changes.Description != nil {
			v.Description = *changes.Description
		}
	})
}

func (s *memoryVideos) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || video.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

func (s *memoryVideos) TogglePublished(_ context.Context, id, ownerID string) (models.Video, error) {
	return s.modify(id, ownerID, func(v *models.Video) { v.Published = !v.Published })
}

func (s *memoryVideos) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	return nil
}

func (s *memoryVideos) RecordWatch(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[videoID]; !ok {
		return repositories.ErrNotFound
	}
	watched := slices.DeleteFunc(slices.Clone(s.history[userID]), func(id string) bool { return id == videoID })
	s.history[userID] = append([]string{videoID}, watched...)
	return nil
}

func (s *memoryVideos) WatchHistory(_ context.Context, userID string, page models.Page) ([]models.Video, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var watched []models.Video
	for _, id := range s.history[userID] {
		if v, ok := s.videos[id]; ok && (v.Published || v.OwnerID == userID) {
			watched = append(watched, v)
		}
	}
	return window(watched, page), int64(len(watched)), nil
}

func (s *memoryVideos) owned(ownerID string) []models.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []models.Video
	for _, v := range s.videos {
		if v.OwnerID == ownerID {
			owned = append(owned, v)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })
	return owned
}

func (s *memoryVideos) likesByVideo() map[string]int64 {
	likes := make(map[string]int64)
	for edge := range s.edges.snapshot() {
		if edge.Kind == models.EdgeVideoLike {
			likes[edge.TargetID]++
		}
	}
	return likes
}

func (s *memoryVideos) ChannelStats(_ context.Context, ownerID string) (models.ChannelStats, error) {
	likes := s.likesByVideo()
	var stats models.ChannelStats
	for _, v := range s.owned(ownerID) {
		stats.TotalVideos++
		stats.TotalViews += v.Views
		stats.TotalLikes += likes[v.ID]
	}
	for edge := range s.edges.snapshot() {
		if edge.Kind == models.EdgeSubscription && edge.TargetID == ownerID {
			stats.TotalSubscribers++
		}
	}
	return stats, nil
}

func (s *memoryVideos) ChannelVideos(_ context.Context, ownerID string, page models.Page) ([]models.ChannelVideo, int64, error) {
	likes := s.likesByVideo()
	var rows []models.ChannelVideo
	for _, v := range s.owned(ownerID) {
		rows = append(rows, models.ChannelVideo{Video: v, TotalLikes: likes[v.ID]})
	}
	return window(rows, page), int64(len(rows)), nil
}

type memoryComments struct {
	mu       sync.Mutex
	comments map[string]models.Comment
}

func (s *memoryComments) Create(_ context.Context, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
	return nil
}

func (s *memoryComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return c, nil
}

func (s *memoryComments) ListForVideo(_ context.Context, videoID string, page models.Page) ([]models.Comment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Comment
	for _, c := range s.comments {
		if c.VideoID == videoID {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return window(matched, page), int64(len(matched)), nil
}

func (s *memoryComments) Update(_ context.Context, id, ownerID, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok || c.OwnerID != ownerID {
		return models.Comment{}, repositories.ErrNotFound
	}
	c.Content = content
	s.comments[id] = c
	return c, nil
}

func (s *memoryComments) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok || c.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

type memoryTweets struct {
	mu     sync.Mutex
	tweets map[string]models.Tweet
}

func (s *memoryTweets) Create(_ context.Context, t models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets[t.ID] = t
	return nil
}

func (s *memoryTweets) FindByID(_ context.Context, id string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return t, nil
}

func (s *memoryTweets) ListForOwner(_ context.Context, ownerID string, page models.Page) ([]models.Tweet, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Tweet
	for _, t := range s.tweets {
		if t.OwnerID == ownerID {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return window(matched, page), int64(len(matched)), nil
}

func (s *memoryTweets) Update(_ context.Context, id, ownerID, content string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tweets[id]
	if !ok || t.OwnerID != ownerID {
		return models.Tweet{}, repositories.ErrNotFound
	}
	t.Content = content
	s.tweets[id] = t
	return t, nil
}

func (s *memoryTweets) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tweets[id]
	if !ok || t.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.tweets, id)
	return nil
}

type memoryPlaylists struct {
	mu        sync.Mutex
	playlists map[string]models.Playlist
	videos    *memoryVideos
}

func (s *memoryPlaylists) Create(_ context.Context, p models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[p.ID] = p
	return nil
}

func (s *memoryPlaylists) FindByID(_ context.Context, id string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	p.VideoIDs = slices.Clone(p.VideoIDs)
	return p, nil
}

func (s *memoryPlaylists) ListForOwner(_ context.Context, ownerID string, page models.Page) ([]models.Playlist, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Playlist
	for _, p := range s.playlists {
		if p.OwnerID == ownerID {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return window(matched, page), int64(len(matched)), nil
}

func (s *memoryPlaylists) Update(_ context.Context, id, ownerID string, changes repositories.PlaylistChanges) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok || p.OwnerID != ownerID {
		return models.Playlist{}, repositories.ErrNotFound
	}
	if changes.Name != nil {
		p.Name = *changes.Name
	}
	if changes.Description != nil {
		p.Description = *changes.Description
	}
	s.playlists[id] = p
	return p, nil
}

func (s *memoryPlaylists) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok || p.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.playlists, id)
	return nil
}

func (s *memoryPlaylists) AddVideo(ctx context.Context, playlistID, videoID string) error {
	if _, err := s.videos.FindByID(ctx, videoID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[playlistID]
	if !ok {
		return repositories.ErrNotFound
	}
	if !slices.Contains(p.VideoIDs, videoID) {
		p.VideoIDs = append(slices.Clone(p.VideoIDs), videoID)
	}
	s.playlists[playlistID] = p
	return nil
}

func (s *memoryPlaylists) RemoveVideo(_ context.Context, playlistID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[playlistID]
	if !ok {
		return repositories.ErrNotFound
	}
	idx := slices.Index(p.VideoIDs, videoID)
	if idx < 0 {
		return repositories.ErrNotFound
	}
	p.VideoIDs = slices.Delete(slices.Clone(p.VideoIDs), idx, idx+1)
	s.playlists[playlistID] = p
	return nil
}

type memoryEdges struct {
	mu     sync.Mutex
	edges  map[models.Edge]time.Time
	users  *memoryUsers
	videos *memoryVideos
}

func (s *memoryEdges) snapshot() map[models.Edge]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Edge]time.Time, len(s.edges))
	for edge, at := range s.edges {
		out[edge] = at
	}
	return out
}

func (s *memoryEdges) Exists(_ context.Context, edge models.Edge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[edge]
	return ok, nil
}

func (s *memoryEdges) Insert(_ context.Context, edge models.Edge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[edge]; ok {
		return false, nil
	}
	s.edges[edge] = time.Now()
	return true, nil
}

func (s *memoryEdges) Delete(_ context.Context, edge models.Edge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[edge]; !ok {
		return false, nil
	}
	delete(s.edges, edge)
	return true, nil
}

func (s *memoryEdges) LikedVideos(ctx context.Context, userID string, page models.Page) ([]models.Video, int64, error) {
	var liked []models.Video
	for edge := range s.snapshot() {
		if edge.Kind != models.EdgeVideoLike || edge.ActorID != userID {
			continue
		}
		if video, err := s.videos.FindByID(ctx, edge.TargetID); err == nil && video.Published {
			liked = append(liked, video)
		}
	}
	sort.Slice(liked, func(i, j int) bool { return liked[i].ID < liked[j].ID })
	return window(liked, page), int64(len(liked)), nil
}

func (s *memoryEdges) Subscribers(ctx context.Context, channelID string, page models.Page) ([]models.User, int64, error) {
	return s.subscriptionUsers(ctx, page, func(e models.Edge) (string, bool) {
		return e.ActorID, e.TargetID == channelID
	})
}

func (s *memoryEdges) SubscribedChannels(ctx context.Context, subscriberID string, page models.Page) ([]models.User, int64, error) {
	return s.subscriptionUsers(ctx, page, func(e models.Edge) (string, bool) {
		return e.TargetID, e.ActorID == subscriberID
	})
}

func (s *memoryEdges) subscriptionUsers(ctx context.Context, page models.Page, pick func(models.Edge) (string, bool)) ([]models.User, int64, error) {
	var users []models.User
	for edge := range s.snapshot() {
		if edge.Kind != models.EdgeSubscription {
			continue
		}
		id, ok := pick(edge)
		if !ok {
			continue
		}
		if user, err := s.users.FindByID(ctx, id); err == nil {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return window(users, page), int64(len(users)), nil
}

func (s *memoryEdges) CountLikes(_ context.Context, targetID string, kind models.EdgeKind) (int64, error) {
	var n int64
	for edge := range s.snapshot() {
		if edge.Kind == kind && edge.TargetID == targetID {
			n++
		}
	}
	return n, nil
}

type memoryMedia struct {
	mu      sync.Mutex
	objects map[string]string
	failAt  string
}

func (m *memoryMedia) Save(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if m.failAt != "" && strings.HasPrefix(key, m.failAt) {
		return "", fmt.Errorf("upload %s: simulated outage", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = contentType
	return "https://media.test/" + key, nil
}

func (m *memoryMedia) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryMedia) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func window[T any](items []T, page models.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := min(start+page.Limit, len(items))
	return items[start:end]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	handler   http.Handler
	clock     *testClock
	users     *memoryUsers
	videos    *memoryVideos
	comments  *memoryComments
	tweets    *memoryTweets
	playlists *memoryPlaylists
	edges     *memoryEdges
	media     *memoryMedia
}

func newTestServer(t *testing.T, configure ...func(*Dependencies)) *testServer {
	t.Helper()

	clock := &testClock{now: time.Now().UTC()}
	edges := &memoryEdges{edges: make(map[models.Edge]time.Time)}
	users := &memoryUsers{users: make(map[string]models.User), edges: edges}
	videos := &memoryVideos{videos: make(map[string]models.Video), history: make(map[string][]string), edges: edges}
	edges.users = users
	edges.videos = videos

	srv := &testServer{
		clock:     clock,
		users:     users,
		videos:    videos,
		comments:  &memoryComments{comments: make(map[string]models.Comment)},
		tweets:    &memoryTweets{tweets: make(map[string]models.Tweet)},
		playlists: &memoryPlaylists{playlists: make(map[string]models.Playlist), videos: videos},
		edges:     edges,
		media:     &memoryMedia{objects: make(map[string]string)},
	}

	manager := auth.NewManager(auth.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "vidtube-test",
	}, users, auth.WithClock(clock.Now))

	deps := Dependencies{
		Users:          users,
		Sessions:       manager,
		Videos:         videos,
		Comments:       srv.comments,
		Tweets:         srv.tweets,
		Playlists:      srv.playlists,
		Engagement:     engagement.NewService(edges, users, nil),
		Engagements:    edges,
		Media:          srv.media,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Diagnostics:    true,
		CORSOrigin:     "*",
		RequestTimeout: 5 * time.Second,
		MediaTimeout:   5 * time.Second,
	}
	for _, fn := range configure {
		fn(&deps)
	}
	srv.handler = NewRouter(deps)
	return srv
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
	Detail     string          `json:"detail"`
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookies(cookies ...*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, method, path string, fields map[string]string, files []formFile, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	field       string
	filename    string
	contentType string
	content     string
}

func multipartBody(t *testing.T, fields map[string]string, files []formFile) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		header.Set("Content-Type", f.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.WriteString(part, f.content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v (data %s)", err, env.Data)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type registered struct {
	user    models.User
	tokens  models.SessionTokens
	cookies []*http.Cookie
}

func (s *testServer) register(t *testing.T, username string) registered {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"fullName": strings.ToUpper(username[:1]) + username[1:],
		"password": "correct-horse",
	})
	expectStatus(t, rec, http.StatusCreated)

	var payload sessionPayload
	decodeEnvelope(t, rec, &payload)
	return registered{user: payload.User, tokens: payload.SessionTokens, cookies: rec.Result().Cookies()}
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
