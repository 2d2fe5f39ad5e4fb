// Package testutil provides in-memory stand-ins for the stores and the media
// service so service and handler tests run without external dependencies.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"lumen/internal/models"

	"github.com/google/uuid"
)

// MemoryUserRepository is a repository.UserRepository held in memory. It
// enforces unique usernames and emails and the version check on Update.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User

	// UpdateErr, when set, runs before every Update; a non-nil result is returned as-is.
	UpdateErr func(user *models.User) error
	Updates   int
}

// NewMemoryUserRepository returns an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]*models.User{}}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return models.NewConflictError("Username is already taken")
		}
		if u.Email == user.Email {
			return models.NewConflictError("Email is already registered")
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Version = 1
	user.EnsureSets()
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	return u.Clone(), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username }), nil
}

func (r *MemoryUserRepository) find(match func(*models.User) bool) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return u.Clone()
		}
	}
	return nil
}

func (r *MemoryUserRepository) GetMany(_ context.Context, ids []string) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (r *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u.Clone())
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Username < all[j].Username
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	if r.UpdateErr != nil {
		if err := r.UpdateErr(user); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return models.NewNotFoundError("User", user.ID)
	}
	if stored.Version != user.Version {
		return models.NewConflictError("User was modified concurrently, retry the request")
	}
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username {
			return models.NewConflictError("Username is already taken")
		}
		if u.Email == user.Email {
			return models.NewConflictError("Email is already registered")
		}
	}
	user.Version++
	user.UpdatedAt = time.Now().UTC()
	user.EnsureSets()
	r.users[user.ID] = user.Clone()
	r.Updates++
	return nil
}

// MemoryPostRepository is a repository.PostRepository held in memory.
type MemoryPostRepository struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	seq   int

	UpdateErr func(post *models.Post) error
	DeleteErr error
	Updates   int
}

// NewMemoryPostRepository returns an empty repository.
func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: map[string]*models.Post{}}
}

func (r *MemoryPostRepository) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	// Strictly increasing timestamps keep newest-first listing deterministic.
	r.seq++
	now := time.Now().UTC().Add(time.Duration(r.seq) * time.Microsecond)
	post.CreatedAt, post.UpdatedAt = now, now
	post.Version = 1
	post.EnsureSets()
	r.posts[post.ID] = post.Clone()
	return nil
}

func (r *MemoryPostRepository) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	return p.Clone(), nil
}

func (r *MemoryPostRepository) GetMany(_ context.Context, ids []string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Post{}
	for _, id := range ids {
		if p, ok := r.posts[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *MemoryPostRepository) List(_ context.Context, limit, offset int) ([]*models.Post, error) {
	r.mu.Lock()
	all := make([]*models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		all = append(all, p.Clone())
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *MemoryPostRepository) Update(_ context.Context, post *models.Post) error {
	if r.UpdateErr != nil {
		if err := r.UpdateErr(post); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[post.ID]
	if !ok {
		return models.NewNotFoundError("Post", post.ID)
	}
	if stored.Version != post.Version {
		return models.NewConflictError("Post was modified concurrently, retry the request")
	}
	post.Version++
	post.UpdatedAt = time.Now().UTC()
	post.EnsureSets()
	r.posts[post.ID] = post.Clone()
	r.Updates++
	return nil
}

func (r *MemoryPostRepository) Delete(_ context.Context, id string) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return models.NewNotFoundError("Post", id)
	}
	delete(r.posts, id)
	return nil
}

// Count returns the number of stored posts.
func (r *MemoryPostRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts)
}

func page[T any](all []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
