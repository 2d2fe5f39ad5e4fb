package repository

import (
	"context"
	"errors"

	"lumen/internal/database"
	"lumen/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts. Likes and
// comments live inside the post record and change through Update.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetMany(ctx context.Context, ids []string) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a PostRepository backed by a relational database.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.Version = 1
	post.EnsureSets()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return storeError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, storeError(err)
	}
	post.EnsureSets()
	return &post, nil
}

func (r *postRepository) GetMany(ctx context.Context, ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	var posts []*models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, storeError(err)
	}
	for _, p := range posts {
		p.EnsureSets()
	}
	return posts, nil
}

// List returns posts newest first.
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, storeError(err)
	}
	for _, p := range posts {
		p.EnsureSets()
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	prev := post.Version
	post.Version = prev + 1
	post.EnsureSets()

	res := r.db.WithContext(ctx).Model(post).
		Where("version = ?", prev).
		Select("*").Omit("created_at", "author_id").
		Updates(post)
	if res.Error != nil {
		post.Version = prev
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		post.Version = prev
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Count(&count).Error; err != nil {
			return storeError(err)
		}
		if count == 0 {
			return models.NewNotFoundError("Post", post.ID)
		}
		return versionConflict(database.PostsCollection, "Post")
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
