package repository

import (
	"context"
	"testing"
	"time"

	"lumen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runUserRepositoryContract exercises behavior every UserRepository backend must share.
func runUserRepositoryContract(t *testing.T, repo UserRepository) {
	ctx := context.Background()

	alice := &models.User{Name: "Alice", Username: "alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, alice))
	require.NotEmpty(t, alice.ID)
	assert.Equal(t, int64(1), alice.Version)

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.NotNil(t, got.Followers)
		assert.Empty(t, got.Followers)

		_, err = repo.GetByID(ctx, "missing")
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("lookups return nil when absent", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, alice.ID, got.ID)

		got, err = repo.GetByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		dup := &models.User{Name: "Other", Username: "alice2", Email: "alice@example.com", Password: "hash"}
		err := repo.Create(ctx, dup)
		assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		dup := &models.User{Name: "Other", Username: "alice", Email: "other@example.com", Password: "hash"}
		err := repo.Create(ctx, dup)
		assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	})

	t.Run("update persists sets and bumps version", func(t *testing.T) {
		u, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		u.Following.Add("bob-id")
		u.Bio = "hello"
		u.Avatar = &models.MediaRef{ObjectID: "social_media/avatars/a.png", URL: "http://cdn/a.png"}
		require.NoError(t, repo.Update(ctx, u))
		assert.Equal(t, int64(2), u.Version)

		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RefSet{"bob-id"}, got.Following)
		assert.Equal(t, "hello", got.Bio)
		require.NotNil(t, got.Avatar)
		assert.Equal(t, "http://cdn/a.png", got.Avatar.URL)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("stale update is a conflict", func(t *testing.T) {
		first, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)

		first.Bio = "first"
		require.NoError(t, repo.Update(ctx, first))

		second.Bio = "second"
		err = repo.Update(ctx, second)
		assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
		assert.Equal(t, first.Version-1, second.Version)

		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Bio)
	})

	t.Run("update of missing user is not found", func(t *testing.T) {
		err := repo.Update(ctx, &models.User{ID: "ghost", Username: "ghost", Email: "ghost@example.com", Version: 1})
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("GetMany and List", func(t *testing.T) {
		bob := &models.User{Name: "Bob", Username: "bob", Email: "bob@example.com", Password: "hash"}
		require.NoError(t, repo.Create(ctx, bob))

		users, err := repo.GetMany(ctx, []string{alice.ID, bob.ID, "missing"})
		require.NoError(t, err)
		assert.Len(t, users, 2)

		users, err = repo.GetMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, users)

		users, err = repo.List(ctx, 1, 0)
		require.NoError(t, err)
		assert.Len(t, users, 1)

		users, err = repo.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

// runPostRepositoryContract exercises behavior every PostRepository backend must share.
func runPostRepositoryContract(t *testing.T, repo PostRepository) {
	ctx := context.Background()

	older := &models.Post{
		AuthorID: "author-1",
		Caption:  "first",
		Media: []models.MediaRef{
			{ObjectID: "social_media/posts/images/1.jpg", URL: "http://cdn/1.jpg"},
			{ObjectID: "social_media/posts/videos/2.mp4", URL: "http://cdn/2.mp4"},
		},
	}
	require.NoError(t, repo.Create(ctx, older))
	time.Sleep(5 * time.Millisecond)
	newer := &models.Post{AuthorID: "author-1", Caption: "second", Media: []models.MediaRef{{ObjectID: "o3", URL: "u3"}}}
	require.NoError(t, repo.Create(ctx, newer))

	t.Run("GetByID keeps media order", func(t *testing.T) {
		got, err := repo.GetByID(ctx, older.ID)
		require.NoError(t, err)
		require.Len(t, got.Media, 2)
		assert.Equal(t, "http://cdn/1.jpg", got.Media[0].URL)
		assert.Equal(t, "http://cdn/2.mp4", got.Media[1].URL)
		assert.NotNil(t, got.Likes)
		assert.NotNil(t, got.Comments)

		_, err = repo.GetByID(ctx, "missing")
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("List is newest first", func(t *testing.T) {
		posts, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, newer.ID, posts[0].ID)
		assert.Equal(t, older.ID, posts[1].ID)
	})

	t.Run("update embeds likes and comments", func(t *testing.T) {
		p, err := repo.GetByID(ctx, older.ID)
		require.NoError(t, err)
		p.Likes.Add("user-1")
		p.Comments = append(p.Comments, models.Comment{ID: "c1", Text: "nice", AuthorID: "user-1", CreatedAt: time.Now().UTC()})
		require.NoError(t, repo.Update(ctx, p))

		got, err := repo.GetByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RefSet{"user-1"}, got.Likes)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, "nice", got.Comments[0].Text)
	})

	t.Run("stale update is a conflict", func(t *testing.T) {
		a, err := repo.GetByID(ctx, newer.ID)
		require.NoError(t, err)
		b, err := repo.GetByID(ctx, newer.ID)
		require.NoError(t, err)

		a.Caption = "edited"
		require.NoError(t, repo.Update(ctx, a))
		b.Likes.Add("user-2")
		assert.Equal(t, models.CodeConflict, models.ErrorCode(repo.Update(ctx, b)))
	})

	t.Run("GetMany", func(t *testing.T) {
		posts, err := repo.GetMany(ctx, []string{older.ID, "gone"})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, older.ID, posts[0].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, newer.ID))
		_, err := repo.GetByID(ctx, newer.ID)
		assert.True(t, models.IsNotFound(err))
		assert.True(t, models.IsNotFound(repo.Delete(ctx, newer.ID)))
	})
}
