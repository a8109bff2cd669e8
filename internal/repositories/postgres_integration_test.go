//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := models.User{
		ID:        uuid.NewString(),
		Username:  "alice2",
		Email:     user.Email,
		FullName:  "Alice Again",
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	for _, key := range []string{"alice", "ALICE@example.com"} {
		fetched, err := repo.FindByUsernameOrEmail(ctx, key)
		if err != nil {
			t.Fatalf("find by %q: %v", key, err)
		}
		if fetched.ID != user.ID || fetched.Password != user.Password {
			t.Fatalf("unexpected user fetched by %q: %+v", key, fetched)
		}
	}

	updated, err := repo.UpdateAccount(ctx, user.ID, "Alice Liddell", "Liddell@example.com")
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.FullName != "Alice Liddell" || updated.Email != "liddell@example.com" {
		t.Fatalf("expected updated fields to persist, got %+v", updated)
	}

	if _, err := repo.UpdateAvatar(ctx, uuid.NewString(), "https://cdn.example.com/a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}

	exists, err := repo.Exists(ctx, user.ID)
	if err != nil || !exists {
		t.Fatalf("expected user to exist, got %v (err %v)", exists, err)
	}
}

func TestPostgresUserRepository_RefreshTokenSlot(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "slot")

	if err := repo.SetRefreshToken(ctx, user.ID, "digest-1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}

	swapped, err := repo.SwapRefreshToken(ctx, user.ID, "digest-1", "digest-2")
	if err != nil || !swapped {
		t.Fatalf("expected first swap to win, got %v (err %v)", swapped, err)
	}

	swapped, err = repo.SwapRefreshToken(ctx, user.ID, "digest-1", "digest-3")
	if err != nil || swapped {
		t.Fatalf("expected stale swap to lose, got %v (err %v)", swapped, err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if fetched.RefreshTokenHash != "digest-2" {
		t.Fatalf("expected slot to hold digest-2, got %q", fetched.RefreshTokenHash)
	}

	if err := repo.ClearRefreshToken(ctx, user.ID); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user after clear: %v", err)
	}
	if fetched.RefreshTokenHash != "" {
		t.Fatalf("expected empty slot after clear, got %q", fetched.RefreshTokenHash)
	}
}

func TestPostgresVideoRepository_ListAndOwnership(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)

	owner := createTestUser(t, users, "owner")
	other := createTestUser(t, users, "other")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	public := createTestVideo(t, videos, owner.ID, "Go concurrency", true, base)
	draft := createTestVideo(t, videos, owner.ID, "Draft cut", false, base.Add(time.Minute))
	createTestVideo(t, videos, other.ID, "Cooking pasta", true, base.Add(2*time.Minute))

	listed, total, err := videos.List(ctx, VideoQuery{Page: models.Page{Number: 1, Limit: 10}})
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if total != 2 || len(listed) != 2 {
		t.Fatalf("expected 2 published videos, got %d (total %d)", len(listed), total)
	}

	listed, total, err = videos.List(ctx, VideoQuery{
		OwnerID:            owner.ID,
		IncludeUnpublished: true,
		Search:             "cut",
		Page:               models.Page{Number: 1, Limit: 10},
	})
	if err != nil {
		t.Fatalf("search videos: %v", err)
	}
	if total != 1 || listed[0].ID != draft.ID {
		t.Fatalf("expected search to find the draft, got %+v", listed)
	}

	if _, err := videos.TogglePublished(ctx, public.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound toggling another owner's video, got %v", err)
	}

	toggled, err := videos.TogglePublished(ctx, public.ID, owner.ID)
	if err != nil {
		t.Fatalf("toggle publish: %v", err)
	}
	if toggled.Published {
		t.Fatalf("expected video to be unpublished after toggle")
	}

	if err := videos.Delete(ctx, public.ID, owner.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := videos.FindByID(ctx, public.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresPlaylistRepository_Videos(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	playlists := NewPostgresPlaylistRepository(testPool)

	owner := createTestUser(t, users, "curator")
	video := createTestVideo(t, videos, owner.ID, "Clip", true, time.Now().UTC())

	playlist := models.Playlist{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Name:      "Favourites",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := playlists.Create(ctx, playlist); err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := playlists.AddVideo(ctx, playlist.ID, video.ID); err != nil {
			t.Fatalf("add video attempt %d: %v", i+1, err)
		}
	}

	loaded, err := playlists.FindByID(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("find playlist: %v", err)
	}
	if len(loaded.VideoIDs) != 1 || loaded.VideoIDs[0] != video.ID {
		t.Fatalf("expected exactly one listed video, got %v", loaded.VideoIDs)
	}

	if err := playlists.AddVideo(ctx, playlist.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound adding unknown video, got %v", err)
	}

	if err := playlists.RemoveVideo(ctx, playlist.ID, video.ID); err != nil {
		t.Fatalf("remove video: %v", err)
	}
	if err := playlists.RemoveVideo(ctx, playlist.ID, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestPostgresEngagementRepository_EdgesCollapse(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	repo := NewPostgresEngagementRepository(testPool)

	fan := createTestUser(t, users, "fan")
	channel := createTestUser(t, users, "channel")
	video := createTestVideo(t, videos, channel.ID, "Launch", true, time.Now().UTC())

	for _, edge := range []models.Edge{
		{ActorID: fan.ID, TargetID: video.ID, Kind: models.EdgeVideoLike},
		{ActorID: fan.ID, TargetID: channel.ID, Kind: models.EdgeSubscription},
	} {
		created, err := repo.Insert(ctx, edge)
		if err != nil || !created {
			t.Fatalf("insert %s edge: created=%v err=%v", edge.Kind, created, err)
		}
		created, err = repo.Insert(ctx, edge)
		if err != nil || created {
			t.Fatalf("expected duplicate %s edge to collapse, created=%v err=%v", edge.Kind, created, err)
		}
		exists, err := repo.Exists(ctx, edge)
		if err != nil || !exists {
			t.Fatalf("expected %s edge to exist, got %v (err %v)", edge.Kind, exists, err)
		}
	}

	liked, total, err := repo.LikedVideos(ctx, fan.ID, models.Page{Number: 1, Limit: 10})
	if err != nil {
		t.Fatalf("liked videos: %v", err)
	}
	if total != 1 || liked[0].ID != video.ID {
		t.Fatalf("unexpected liked videos: %+v (total %d)", liked, total)
	}

	subscribers, total, err := repo.Subscribers(ctx, channel.ID, models.Page{Number: 1, Limit: 10})
	if err != nil {
		t.Fatalf("subscribers: %v", err)
	}
	if total != 1 || subscribers[0].ID != fan.ID || subscribers[0].Password != "" {
		t.Fatalf("unexpected subscribers: %+v (total %d)", subscribers, total)
	}

	profile, err := users.ChannelProfile(ctx, channel.Username, fan.ID)
	if err != nil {
		t.Fatalf("channel profile: %v", err)
	}
	if profile.SubscribersCount != 1 || !profile.IsSubscribed {
		t.Fatalf("unexpected channel profile: %+v", profile)
	}

	self := models.Edge{ActorID: fan.ID, TargetID: fan.ID, Kind: models.EdgeSubscription}
	if _, err := repo.Insert(ctx, self); err == nil {
		t.Fatalf("expected self subscription to violate the table constraint")
	}

	like := models.Edge{ActorID: fan.ID, TargetID: video.ID, Kind: models.EdgeVideoLike}
	removed, err := repo.Delete(ctx, like)
	if err != nil || !removed {
		t.Fatalf("delete like: removed=%v err=%v", removed, err)
	}
	removed, err = repo.Delete(ctx, like)
	if err != nil || removed {
		t.Fatalf("expected second delete to be a no-op, removed=%v err=%v", removed, err)
	}
}

func TestPostgresVideoRepository_HistoryAndDashboard(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	edges := NewPostgresEngagementRepository(testPool)

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	now := time.Now().UTC()
	older := createTestVideo(t, videos, alice.ID, "older", true, now.Add(-time.Hour))
	draft := createTestVideo(t, videos, alice.ID, "draft", false, now)

	for _, id := range []string{older.ID, draft.ID, older.ID} {
		if err := videos.RecordWatch(ctx, bob.ID, id); err != nil {
			t.Fatalf("record watch: %v", err)
		}
	}
	if err := videos.RecordWatch(ctx, bob.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown video, got %v", err)
	}

	history, total, err := videos.WatchHistory(ctx, bob.ID, models.Page{Number: 1, Limit: 10})
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if total != 1 || len(history) != 1 || history[0].ID != older.ID {
		t.Fatalf("expected only the published video in bob's history, got %d %+v", total, history)
	}

	if err := videos.RecordWatch(ctx, alice.ID, draft.ID); err != nil {
		t.Fatalf("record owner watch: %v", err)
	}
	if _, total, _ := videos.WatchHistory(ctx, alice.ID, models.Page{Number: 1, Limit: 10}); total != 1 {
		t.Fatalf("expected the owner to keep the draft in history, got %d", total)
	}

	if err := videos.IncrementViews(ctx, older.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	for _, edge := range []models.Edge{
		{ActorID: bob.ID, TargetID: older.ID, Kind: models.EdgeVideoLike},
		{ActorID: alice.ID, TargetID: older.ID, Kind: models.EdgeVideoLike},
		{ActorID: bob.ID, TargetID: older.ID, Kind: models.EdgeCommentLike},
		{ActorID: bob.ID, TargetID: alice.ID, Kind: models.EdgeSubscription},
	} {
		if _, err := edges.Insert(ctx, edge); err != nil {
			t.Fatalf("insert %s edge: %v", edge.Kind, err)
		}
	}

	if n, err := edges.CountLikes(ctx, older.ID, models.EdgeVideoLike); err != nil || n != 2 {
		t.Fatalf("expected two video likes, got %d (%v)", n, err)
	}

	stats, err := videos.ChannelStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("channel stats: %v", err)
	}
	want := models.ChannelStats{TotalVideos: 2, TotalSubscribers: 1, TotalViews: 1, TotalLikes: 2}
	if stats != want {
		t.Fatalf("expected %+v got %+v", want, stats)
	}

	rows, total, err := videos.ChannelVideos(ctx, alice.ID, models.Page{Number: 1, Limit: 10})
	if err != nil {
		t.Fatalf("channel videos: %v", err)
	}
	if total != 2 || rows[0].ID != draft.ID || rows[1].ID != older.ID || rows[1].TotalLikes != 2 || rows[0].TotalLikes != 0 {
		t.Fatalf("unexpected channel videos %+v", rows)
	}

	empty, err := videos.ChannelStats(ctx, bob.ID)
	if err != nil || empty != (models.ChannelStats{}) {
		t.Fatalf("expected empty stats for bob, got %+v (%v)", empty, err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, likes, subscriptions, playlist_videos, playlists, comments, tweets, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, repo *PostgresVideoRepository, ownerID, title string, published bool, createdAt time.Time) models.Video {
	t.Helper()
	video := models.Video{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		VideoURL:  "https://cdn.example.com/" + title,
		Duration:  42.5,
		Published: published,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), video); err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return video
}
