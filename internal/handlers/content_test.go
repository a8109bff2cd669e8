package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
)

func TestCommentHandlerLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice")
	bob := srv.register(t, "bob")
	video := srv.seedVideo(t, alice.user.ID, "Discussed", true, time.Now().UTC())

	rec := srv.do(t, http.MethodPost, "/api/v1/comments/"+video.ID, map[string]string{"content": "  great video  "}, withBearer(bob.tokens.AccessToken))
	expectStatus(t, rec, http.StatusCreated)
	var comment models.Comment
	decodeEnvelope(t, rec, &comment)
	if comment.Content != "great video" || comment.OwnerID != bob.user.ID || comment.VideoID != video.ID {
		t.Fatalf("unexpected comment %+v", comment)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/comments/"+video.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var page listPayload[models.Comment]
	decodeEnvelope(t, rec, &page)
	if page.Total != 1 || page.Items[0].ID != comment.ID {
		t.Fatalf("unexpected comments %+v", page)
	}

	path := "/api/v1/comments/c/" + comment.ID
	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{"content": "hijacked"}, withBearer(alice.tokens.AccessToken)), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(alice.tokens.AccessToken)), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{"content": " "}, withBearer(bob.tokens.AccessToken)), http.StatusBadRequest)

	rec = srv.do(t, http.MethodPatch, path, map[string]string{"content": "edited"}, withBearer(bob.tokens.AccessToken))
	expectStatus(t, rec, http.StatusOK)
	decodeEnvelope(t, rec, &comment)
	if comment.Content != "edited" {
		t.Fatalf("expected edited content got %q", comment.Content)
	}

	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(bob.tokens.AccessToken)), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(bob.tokens.AccessToken)), http.StatusNotFound)
}

func TestCommentHandlerRejectsHiddenVideos(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice")
	bob := srv.register(t, "bob")
	draft := srv.seedVideo(t, alice.user.ID, "Draft", false, time.Now().UTC())
	body := map[string]string{"content": "first"}

	expectStatus(t, srv.do(t, http.MethodPost, "/api/v1/comments/"+draft.ID, body, withBearer(bob.tokens.AccessToken)), http.StatusNotFound)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/v1/comments/"+uuid.NewString(), body, withBearer(bob.tokens.AccessToken)), http.StatusNotFound)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/v1/comments/"+draft.ID, body, withBearer(alice.tokens.AccessToken)), http.StatusCreated)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/v1/comments/"+draft.ID, map[string]string{"content": strings.Repeat("x", 1001)}, withBearer(alice.tokens.AccessToken)), http.StatusBadRequest)
}

func TestTweetHandlerLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice")
	bob := srv.register(t, "bob")

	rec := srv.do(t, http.MethodPost, "/api/v1/tweets", map[string]string{"content": "hello subscribers"}, withBearer(alice.tokens.AccessToken))
	expectStatus(t, rec, http.StatusCreated)
	var tweet models.Tweet
	decodeEnvelope(t, rec, &tweet)
	if tweet.OwnerID != alice.user.ID || tweet.Content != "hello subscribers" {
		t.Fatalf("unexpected tweet %+v", tweet)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/tweets/user/"+alice.user.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var page listPayload[models.Tweet]
	decodeEnvelope(t, rec, &page)
	if page.Total != 1 {
		t.Fatalf("expected one tweet got %d", page.Total)
	}

	path := "/api/v1/tweets/" + tweet.ID
	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{"content": "mine now"}, withBearer(bob.tokens.AccessToken)), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(bob.tokens.AccessToken)), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{"content": "updated"}, withBearer(alice.tokens.AccessToken)), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(alice.tokens.AccessToken)), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{"content": "gone"}, withBearer(alice.tokens.AccessToken)), http.StatusNotFound)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/v1/tweets", map[string]string{}, withBearer(alice.tokens.AccessToken)), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodGet, "/api/v1/tweets/user/alice", nil), http.StatusBadRequest)
}

func TestPlaylistHandlerLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "alice")
	bob := srv.register(t, "bob")
	video := srv.seedVideo(t, bob.user.ID, "Somebody else's video", true, time.Now().UTC())

	rec := srv.do(t, http.MethodPost, "/api/v1/playlists", map[string]string{"name": "Favourites", "description": "best of"}, withBearer(alice.tokens.AccessToken))
	expectStatus(t, rec, http.StatusCreated)
	var playlist models.Playlist
	decodeEnvelope(t, rec, &playlist)
	if playlist.OwnerID != alice.user.ID || playlist.VideoIDs == nil || len(playlist.VideoIDs) != 0 {
		t.Fatalf("unexpected playlist %+v", playlist)
	}

	path := "/api/v1/playlists/" + playlist.ID
	videoPath := path + "/videos/" + video.ID

	expectStatus(t, srv.do(t, http.MethodPatch, videoPath, nil, withBearer(bob.tokens.AccessToken)), http.StatusForbidden)

	for range 2 {
		rec = srv.do(t, http.MethodPatch, videoPath, nil, withBearer(alice.tokens.AccessToken))
		expectStatus(t, rec, http.StatusOK)
	}
	decodeEnvelope(t, rec, &playlist)
	if len(playlist.VideoIDs) != 1 || playlist.VideoIDs[0] != video.ID {
		t.Fatalf("expected the video once, got %v", playlist.VideoIDs)
	}
	expectStatus(t, srv.do(t, http.MethodPatch, path+"/videos/"+uuid.NewString(), nil, withBearer(alice.tokens.AccessToken)), http.StatusNotFound)

	rec = srv.do(t, http.MethodGet, path, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = srv.do(t, http.MethodDelete, videoPath, nil, withBearer(alice.tokens.AccessToken))
	expectStatus(t, rec, http.StatusOK)
	decodeEnvelope(t, rec, &playlist)
	if len(playlist.VideoIDs) != 0 {
		t.Fatalf("expected an empty playlist, got %v", playlist.VideoIDs)
	}
	expectStatus(t, srv.do(t, http.MethodDelete, videoPath, nil, withBearer(alice.tokens.AccessToken)), http.StatusNotFound)

	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{"name": "Stolen"}, withBearer(bob.tokens.AccessToken)), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodPatch, path, map[string]string{}, withBearer(alice.tokens.AccessToken)), http.StatusBadRequest)
	rec = srv.do(t, http.MethodPatch, path, map[string]string{"name": "Top picks"}, withBearer(alice.tokens.AccessToken))
	expectStatus(t, rec, http.StatusOK)
	decodeEnvelope(t, rec, &playlist)
	if playlist.Name != "Top picks" || playlist.Description != "best of" {
		t.Fatalf("unexpected update result %+v", playlist)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/playlists/user/"+alice.user.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	var page listPayload[models.Playlist]
	decodeEnvelope(t, rec, &page)
	if page.Total != 1 {
		t.Fatalf("expected one playlist got %d", page.Total)
	}

	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(bob.tokens.AccessToken)), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, path, nil, withBearer(alice.tokens.AccessToken)), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodGet, path, nil), http.StatusNotFound)
}

func TestRouterEnvelopes(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/nowhere", nil)
	expectStatus(t, rec, http.StatusNotFound)
	env := decodeEnvelope(t, rec, nil)
	if env.Success || env.StatusCode != http.StatusNotFound || env.Message != "route not found" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/users/current-user", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	env = decodeEnvelope(t, rec, nil)
	if env.Success || env.Detail != "token missing" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/users/current-user", nil, withBearer("garbage"))
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = srv.do(t, http.MethodOptions, "/api/v1/videos", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://app.example")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on preflight, got %v", rec.Header())
	}
}
