package repository

import (
	"context"
	"errors"
	"time"

	"lumen/internal/database"
	"lumen/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository returns a UserRepository backed by the users collection.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(database.UsersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Version = 1
	user.EnsureSets()

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if isUniqueConstraintError(err) {
			return duplicateUserError(err)
		}
		return storeError(err)
	}
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return user, nil
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, storeError(err)
	}
	user.EnsureSets()
	return &user, nil
}

func (r *mongoUserRepository) GetMany(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *mongoUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	limit, offset = clampPage(limit, offset)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.User, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	users := []*models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, storeError(err)
	}
	for _, u := range users {
		u.EnsureSets()
	}
	return users, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *models.User) error {
	prev, prevUpdated := user.Version, user.UpdatedAt
	user.Version = prev + 1
	user.UpdatedAt = time.Now().UTC()
	user.EnsureSets()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": prev}, user)
	if err != nil {
		user.Version, user.UpdatedAt = prev, prevUpdated
		if isUniqueConstraintError(err) {
			return duplicateUserError(err)
		}
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		user.Version, user.UpdatedAt = prev, prevUpdated
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": user.ID})
		if err != nil {
			return storeError(err)
		}
		if n == 0 {
			return models.NewNotFoundError("User", user.ID)
		}
		return versionConflict(database.UsersCollection, "User")
	}
	return nil
}
