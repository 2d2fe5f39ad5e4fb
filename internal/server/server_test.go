package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"lumen/internal/auth"
	"lumen/internal/config"
	"lumen/internal/media"
	"lumen/internal/models"
	"lumen/internal/service"
	"lumen/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*Server
	app      *fiber.App
	users    *testutil.MemoryUserRepository
	posts    *testutil.MemoryPostRepository
	uploader *testutil.FakeUploader
	tempDir  string
}

type serverOption func(*Deps)

func withRedis(t *testing.T) (serverOption, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return func(d *Deps) {
		d.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}, mr
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	tempDir := t.TempDir()
	cfg := &config.Config{
		JWTSecret:       "test-secret-that-is-long-enough-for-hs256",
		TokenTTLHours:   1,
		UploadTempDir:   tempDir,
		UploadMaxFiles:  service.DefaultMaxMedia,
		UploadMaxSizeMB: 1,
	}

	deps := Deps{
		UserRepo: testutil.NewMemoryUserRepository(),
		PostRepo: testutil.NewMemoryPostRepository(),
		Uploader: testutil.NewFakeUploader(),
		Hasher:   &auth.BcryptHasher{Cost: bcrypt.MinCost},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	s := NewServerWithDeps(cfg, nil, deps)
	return &testServer{
		Server:   s,
		app:      s.NewApp(),
		users:    deps.UserRepo.(*testutil.MemoryUserRepository),
		posts:    deps.PostRepo.(*testutil.MemoryPostRepository),
		uploader: deps.Uploader.(*testutil.FakeUploader),
		tempDir:  tempDir,
	}
}

func (ts *testServer) do(t *testing.T, req *http.Request, token string) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return ts.do(t, req, token)
}

type upload struct {
	field, name, body string
}

func (ts *testServer) doMultipart(t *testing.T, method, path, token string, values map[string]string, files ...upload) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return ts.do(t, req, token)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ts *testServer) signup(t *testing.T, username string) service.AuthResult {
	t.Helper()
	resp := ts.doJSON(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     strings.ToUpper(username[:1]) + username[1:],
		"username": username,
		"email":    username + "@example.com",
		"password": "sunshine42",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[service.AuthResult](t, resp)
	require.NotEmpty(t, res.Token)
	return res
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp uploads left behind")
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	assert.Equal(t, "alice", alice.User.Username)
	assert.Equal(t, "alice@example.com", alice.User.Email)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"by username", map[string]string{"identifier": "alice", "password": "sunshine42"}, http.StatusOK, ""},
		{"by email field", map[string]string{"email": "alice@example.com", "password": "sunshine42"}, http.StatusOK, ""},
		{"wrong password", map[string]string{"identifier": "alice", "password": "wrong-pass1"}, http.StatusUnauthorized, models.CodeUnauthorized},
		{"unknown user", map[string]string{"identifier": "nobody", "password": "sunshine42"}, http.StatusNotFound, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.doJSON(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				assert.Equal(t, tt.code, decode[models.ErrorResponse](t, resp).Code)
				return
			}
			res := decode[service.AuthResult](t, resp)
			assert.Equal(t, alice.User.ID, res.User.ID)
			assert.NotEmpty(t, res.Token)
		})
	}
}

func TestSignup_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice")

	resp := ts.doJSON(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Alice Again", "username": "alice", "email": "other@example.com", "password": "sunshine42",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, decode[models.ErrorResponse](t, resp).Code)

	resp = ts.doJSON(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Bob", "username": "bob", "email": "bob@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, resp).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp = ts.do(t, req, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + alice.Token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + alice.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp := ts.do(t, req, "")
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	opt, _ := withRedis(t)
	ts := newTestServer(t, opt)
	alice := ts.signup(t, "alice")

	resp := ts.doJSON(t, http.MethodPost, "/api/auth/logout", alice.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.doJSON(t, http.MethodGet, "/api/users/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", decode[models.ErrorResponse](t, resp).Error)
}

func TestLogout_WithoutRedisKeepsTokenValid(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	resp := ts.doJSON(t, http.MethodPost, "/api/auth/logout", alice.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.doJSON(t, http.MethodGet, "/api/users/me", alice.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout_TokenStoreDown(t *testing.T) {
	opt, mr := withRedis(t)
	ts := newTestServer(t, opt)
	alice := ts.signup(t, "alice")
	mr.Close()

	resp := ts.doJSON(t, http.MethodPost, "/api/auth/logout", alice.Token, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, models.CodeUpstream, decode[models.ErrorResponse](t, resp).Code)
}

func TestInvalidIDParams(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	tests := []struct {
		method, path, message string
	}{
		{http.MethodGet, "/api/users/42", "Invalid ID"},
		{http.MethodPost, "/api/users/nope/follow", "Invalid ID"},
		{http.MethodGet, "/api/posts/xyz", "Invalid ID"},
		{http.MethodPost, "/api/bookmarks/xyz", "Invalid post ID"},
		{http.MethodDelete, "/api/posts/" + alice.User.ID + "/comments/abc", "Invalid comment ID"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := ts.doJSON(t, tt.method, tt.path, alice.Token, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, models.CodeValidation, body.Code)
		})
	}
}

func TestProfileEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	bob := ts.signup(t, "bob")

	resp := ts.doJSON(t, http.MethodPut, "/api/users/me", alice.Token, map[string]string{"bio": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[models.ProfileView](t, resp)
	assert.Equal(t, "hello", profile.Bio)
	assert.Equal(t, "Alice", profile.Name)

	resp = ts.doJSON(t, http.MethodPut, "/api/users/me", alice.Token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.doJSON(t, http.MethodGet, "/api/users/"+alice.User.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", decode[models.ProfileView](t, resp).Bio)

	own := decode[map[string]any](t, ts.doJSON(t, http.MethodGet, "/api/users/"+alice.User.ID, alice.Token, nil))
	assert.Equal(t, "alice@example.com", own["email"])
	assert.Contains(t, own, "bookmarks")

	// Other users see the public shape only.
	other := decode[map[string]any](t, ts.doJSON(t, http.MethodGet, "/api/users/"+alice.User.ID, bob.Token, nil))
	assert.Equal(t, "hello", other["bio"])
	assert.NotContains(t, other, "email")
	assert.NotContains(t, other, "bookmarks")

	resp = ts.doJSON(t, http.MethodGet, "/api/users?limit=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[[]map[string]any](t, resp)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0]["username"])
	assert.NotContains(t, users[0], "email")
	assert.NotContains(t, users[0], "bookmarks")
}

func TestUploadAvatar(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	resp := ts.doMultipart(t, http.MethodPost, "/api/users/me/avatar", alice.Token, nil,
		upload{"image", "me.png", "png-bytes"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[models.ProfileView](t, resp)
	require.NotNil(t, profile.Avatar)
	assert.True(t, ts.uploader.Stored(profile.Avatar.ObjectID))
	assertTempDirEmpty(t, ts.tempDir)

	resp = ts.doMultipart(t, http.MethodPost, "/api/users/me/avatar", alice.Token, nil,
		upload{"image", "a.png", "a"}, upload{"image", "b.png", "b"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assertTempDirEmpty(t, ts.tempDir)
}

func TestFollowFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	bob := ts.signup(t, "bob")

	resp := ts.doJSON(t, http.MethodPost, "/api/users/"+bob.User.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[service.FollowResult](t, resp)
	require.Len(t, res.Actor.Following, 1)
	assert.Equal(t, bob.User.ID, res.Actor.Following[0].ID)
	require.Len(t, res.Target.Followers, 1)
	assert.Equal(t, alice.User.ID, res.Target.Followers[0].ID)

	// Following twice changes nothing.
	resp = ts.doJSON(t, http.MethodPost, "/api/users/"+bob.User.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[service.FollowResult](t, resp).Target.Followers, 1)

	resp = ts.doJSON(t, http.MethodPost, "/api/users/"+alice.User.ID+"/follow", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.doJSON(t, http.MethodDelete, "/api/users/"+bob.User.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[service.FollowResult](t, resp)
	assert.Empty(t, res.Actor.Following)
	assert.Empty(t, res.Target.Followers)
}

func TestPostLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	bob := ts.signup(t, "bob")

	resp := ts.doMultipart(t, http.MethodPost, "/api/posts", bob.Token,
		map[string]string{"caption": "sunset"},
		upload{"media", "one.jpg", "first"}, upload{"media", "two.jpg", "second"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[models.PostView](t, resp)
	assert.Equal(t, "sunset", post.Caption)
	assert.Equal(t, bob.User.ID, post.Author.ID)
	require.Len(t, post.Media, 2)
	assert.Contains(t, post.Media[0].ObjectID, "one.jpg")
	assert.Contains(t, post.Media[1].ObjectID, "two.jpg")
	assertTempDirEmpty(t, ts.tempDir)

	postPath := "/api/posts/" + post.ID

	resp = ts.doJSON(t, http.MethodPost, postPath+"/like", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	liked := decode[models.PostView](t, resp)
	require.Len(t, liked.Likes, 1)
	assert.Equal(t, "alice", liked.Likes[0].Username)

	resp = ts.doJSON(t, http.MethodPost, postPath+"/comments", alice.Token, map[string]string{"text": "  nice  "})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CommentResponse](t, resp)
	assert.Equal(t, "nice", created.Comment.Text)
	require.Len(t, created.Post.Comments, 1)

	resp = ts.doJSON(t, http.MethodDelete, postPath+"/comments/"+created.Comment.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.doJSON(t, http.MethodDelete, postPath+"/comments/"+created.Comment.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[models.PostView](t, resp).Comments)

	resp = ts.doJSON(t, http.MethodPut, postPath, bob.Token, map[string]string{"caption": "dusk"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dusk", decode[models.PostView](t, resp).Caption)

	resp = ts.doJSON(t, http.MethodDelete, postPath, alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 1, ts.posts.Count())

	resp = ts.doJSON(t, http.MethodDelete, postPath, bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, ts.posts.Count())
	for _, m := range post.Media {
		assert.False(t, ts.uploader.Stored(m.ObjectID))
	}

	resp = ts.doJSON(t, http.MethodGet, postPath, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePost_Rejections(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	resp := ts.doMultipart(t, http.MethodPost, "/api/posts", alice.Token, map[string]string{"caption": "empty"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := strings.Repeat("x", bytesPerMB+1)
	resp = ts.doMultipart(t, http.MethodPost, "/api/posts", alice.Token, map[string]string{"caption": "big"},
		upload{"media", "small.jpg", "ok"}, upload{"media", "big.jpg", big})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assertTempDirEmpty(t, ts.tempDir)

	resp = ts.doJSON(t, http.MethodPost, "/api/posts", alice.Token, map[string]string{"caption": "json"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, ts.posts.Count())
}

func TestCreatePost_UploadFailure(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	ts.uploader.FailOn = func(f media.LocalFile) error {
		if f.Filename == "bad.jpg" {
			return testutil.ErrUploadFailed
		}
		return nil
	}

	resp := ts.doMultipart(t, http.MethodPost, "/api/posts", alice.Token, map[string]string{"caption": "oops"},
		upload{"media", "good.jpg", "a"}, upload{"media", "bad.jpg", "b"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, models.CodeUpstream, decode[models.ErrorResponse](t, resp).Code)
	assert.Equal(t, 0, ts.posts.Count())
	assertTempDirEmpty(t, ts.tempDir)
}

func TestBookmarks(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	var ids []string
	for i := 0; i < 2; i++ {
		resp := ts.doMultipart(t, http.MethodPost, "/api/posts", alice.Token,
			map[string]string{"caption": fmt.Sprintf("post %d", i)}, upload{"media", "p.jpg", "x"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		ids = append(ids, decode[models.PostView](t, resp).ID)
	}

	for _, id := range []string{ids[1], ids[0], ids[1]} {
		resp := ts.doJSON(t, http.MethodPost, "/api/bookmarks/"+id, alice.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := ts.doJSON(t, http.MethodGet, "/api/bookmarks", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[[]models.PostView](t, resp)
	require.Len(t, saved, 2)
	assert.Equal(t, ids[1], saved[0].ID)
	assert.Equal(t, ids[0], saved[1].ID)

	resp = ts.doJSON(t, http.MethodDelete, "/api/bookmarks/"+ids[1], alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refs := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{ids[0]}, refs["bookmarks"])

	missing := "00000000-0000-4000-8000-000000000000"
	resp = ts.doJSON(t, http.MethodPost, "/api/bookmarks/"+missing, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReadinessCheck(t *testing.T) {
	t.Run("store only", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.doJSON(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]any](t, resp)
		assert.Equal(t, "unavailable", body["checks"].(map[string]any)["redis"])
	})

	t.Run("store down", func(t *testing.T) {
		ts := newTestServer(t, func(d *Deps) {
			d.StorePing = func(context.Context) error { return errors.New("connection refused") }
		})
		resp := ts.doJSON(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("redis down", func(t *testing.T) {
		opt, mr := withRedis(t)
		ts := newTestServer(t, opt)
		mr.Close()
		resp := ts.doJSON(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("liveness", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.doJSON(t, http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.doJSON(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, resp).Code)

	// Everything else under /api sits behind authentication.
	resp = ts.doJSON(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
