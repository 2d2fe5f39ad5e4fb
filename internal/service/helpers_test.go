package service

import (
	"context"
	"testing"

	"lumen/internal/auth"
	"lumen/internal/media"
	"lumen/internal/models"
	"lumen/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeTokens struct{}

func (fakeTokens) Issue(userID string) (string, error) { return "token-" + userID, nil }

type testEnv struct {
	users     *testutil.MemoryUserRepository
	posts     *testutil.MemoryPostRepository
	uploader  *testutil.FakeUploader
	resolver  *Resolver
	userSvc   *UserService
	followSvc *FollowService
	postSvc   *PostService
	comments  *CommentService
	bookmarks *BookmarkService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := testutil.NewMemoryUserRepository()
	posts := testutil.NewMemoryPostRepository()
	uploader := testutil.NewFakeUploader()
	resolver := NewResolver(users, posts)
	hasher := &auth.BcryptHasher{Cost: bcrypt.MinCost}

	return &testEnv{
		users:     users,
		posts:     posts,
		uploader:  uploader,
		resolver:  resolver,
		userSvc:   NewUserService(users, resolver, hasher, fakeTokens{}, uploader, nil),
		followSvc: NewFollowService(users, resolver, nil),
		postSvc:   NewPostService(posts, users, resolver, uploader, DefaultMaxMedia, nil),
		comments:  NewCommentService(posts, users, resolver),
		bookmarks: NewBookmarkService(users, posts, resolver),
	}
}

func (e *testEnv) register(t *testing.T, username string) *models.ProfileView {
	t.Helper()
	res, err := e.userSvc.Register(context.Background(), RegisterInput{
		Name:     username,
		Username: username,
		Email:    username + "@example.com",
		Password: "sunshine42",
	})
	require.NoError(t, err)
	return res.User
}

func (e *testEnv) createPost(t *testing.T, authorID, caption string, files ...string) *models.PostView {
	t.Helper()
	if len(files) == 0 {
		files = []string{"photo.jpg"}
	}
	var uploads []media.LocalFile
	for _, f := range files {
		uploads = append(uploads, testutil.TempUpload(t, f, "bytes-"+f))
	}
	post, err := e.postSvc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: authorID,
		Caption:  caption,
		Files:    uploads,
	})
	require.NoError(t, err)
	return post
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}

func ptr[T any](v T) *T { return &v }
