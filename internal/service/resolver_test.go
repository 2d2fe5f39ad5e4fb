package service

import (
	"context"
	"testing"
	"time"

	"lumen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_DropsDanglingReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bob := env.register(t, "bob")

	user, err := env.users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	user.Followers = models.RefSet{"ghost-user"}
	user.Posts = models.RefSet{"ghost-post"}
	user.Bookmarks = models.RefSet{"ghost-post"}

	view, err := env.resolver.Profile(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, view.Followers)
	assert.Empty(t, view.Posts)
	assert.Equal(t, models.RefSet{"ghost-post"}, view.Bookmarks, "bookmarks stay as ids")
}

func TestResolver_PostWithMissingCommentAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bob := env.register(t, "bob")

	post := &models.Post{
		ID:       "p1",
		AuthorID: bob.ID,
		Caption:  "hello",
		Likes:    models.RefSet{bob.ID, "ghost"},
		Comments: []models.Comment{
			{ID: "c1", Text: "hi", AuthorID: "ghost", CreatedAt: time.Now()},
			{ID: "c2", Text: "hey", AuthorID: bob.ID, CreatedAt: time.Now()},
		},
	}

	view, err := env.resolver.Post(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, "bob", view.Author.Username)
	require.Len(t, view.Likes, 1)
	assert.Equal(t, bob.ID, view.Likes[0].ID)
	require.Len(t, view.Comments, 2)
	assert.Equal(t, models.UserSummary{ID: "ghost"}, view.Comments[0].Author)
	assert.Equal(t, "bob", view.Comments[1].Author.Username)
	assert.NotNil(t, view.Media)
}

func TestResolver_EmptyInputs(t *testing.T) {
	env := newTestEnv(t)

	posts, err := env.resolver.Posts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, posts)

	profiles, err := env.resolver.Profiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
