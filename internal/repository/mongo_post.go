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

type mongoPostRepository struct {
	coll *mongo.Collection
}

// NewMongoPostRepository returns a PostRepository backed by the posts collection.
func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{coll: db.Collection(database.PostsCollection)}
}

func (r *mongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now
	post.Version = 1
	post.EnsureSets()

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, storeError(err)
	}
	post.EnsureSets()
	return &post, nil
}

func (r *mongoPostRepository) GetMany(ctx context.Context, ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *mongoPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoPostRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Post, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	posts := []*models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, storeError(err)
	}
	for _, p := range posts {
		p.EnsureSets()
	}
	return posts, nil
}

func (r *mongoPostRepository) Update(ctx context.Context, post *models.Post) error {
	prev, prevUpdated := post.Version, post.UpdatedAt
	post.Version = prev + 1
	post.UpdatedAt = time.Now().UTC()
	post.EnsureSets()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": post.ID, "version": prev}, post)
	if err != nil {
		post.Version, post.UpdatedAt = prev, prevUpdated
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		post.Version, post.UpdatedAt = prev, prevUpdated
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": post.ID})
		if err != nil {
			return storeError(err)
		}
		if n == 0 {
			return models.NewNotFoundError("Post", post.ID)
		}
		return versionConflict(database.PostsCollection, "Post")
	}
	return nil
}

func (r *mongoPostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError(err)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
