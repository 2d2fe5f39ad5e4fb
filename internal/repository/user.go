package repository

import (
	"context"
	"errors"

	"lumen/internal/database"
	"lumen/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
// Update is conditional on the Version the caller read; a lost race returns CONFLICT.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetMany(ctx context.Context, ids []string) ([]*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a UserRepository backed by a relational database.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Version = 1
	user.EnsureSets()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return duplicateUserError(err)
		}
		return storeError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, storeError(err)
	}
	user.EnsureSets()
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

// GetByUsername returns nil, nil when no user has the name.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError(err)
	}
	user.EnsureSets()
	return &user, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, storeError(err)
	}
	for _, u := range users {
		u.EnsureSets()
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	limit, offset = clampPage(limit, offset)
	var users []*models.User
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, storeError(err)
	}
	for _, u := range users {
		u.EnsureSets()
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	prev := user.Version
	user.Version = prev + 1
	user.EnsureSets()

	res := r.db.WithContext(ctx).Model(user).
		Where("version = ?", prev).
		Select("*").Omit("created_at").
		Updates(user)
	if res.Error != nil {
		user.Version = prev
		if isUniqueConstraintError(res.Error) {
			return duplicateUserError(res.Error)
		}
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		user.Version = prev
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error; err != nil {
			return storeError(err)
		}
		if count == 0 {
			return models.NewNotFoundError("User", user.ID)
		}
		return versionConflict(database.UsersCollection, "User")
	}
	return nil
}
