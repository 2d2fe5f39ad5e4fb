package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"lumen/internal/media"
	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultMaxMedia = 5
	maxCaptionLen   = 2200
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	resolver *Resolver
	uploader media.Uploader
	maxMedia int
	logger   *zap.Logger
}

type CreatePostInput struct {
	AuthorID string
	Caption  string
	Files    []media.LocalFile
}

// UpdatePostInput replaces the caption when Caption is set and the whole
// media list when Files is non-empty.
type UpdatePostInput struct {
	PostID   string
	AuthorID string
	Caption  *string
	Files    []media.LocalFile
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	resolver *Resolver,
	uploader media.Uploader,
	maxMedia int,
	logger *zap.Logger,
) *PostService {
	if maxMedia <= 0 {
		maxMedia = DefaultMaxMedia
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		resolver: resolver,
		uploader: uploader,
		maxMedia: maxMedia,
		logger:   logger,
	}
}

func (s *PostService) validateCaption(caption string) (string, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", models.NewValidationError("Caption is required")
	}
	if utf8.RuneCountInString(caption) > maxCaptionLen {
		return "", models.NewValidationError(fmt.Sprintf("Caption too long (max %d characters)", maxCaptionLen))
	}
	return caption, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (_ *models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.CreatePost",
		attribute.String("author_id", in.AuthorID),
		attribute.Int("media_count", len(in.Files)))
	defer func() { observability.EndSpan(span, err) }()

	logger := observability.LoggerFromContext(ctx, s.logger)
	defer media.RemoveLocal(logger, in.Files...)

	caption, err := s.validateCaption(in.Caption)
	if err != nil {
		return nil, err
	}
	if len(in.Files) == 0 {
		return nil, models.NewValidationError("At least one media file is required")
	}
	if len(in.Files) > s.maxMedia {
		return nil, models.NewValidationError(fmt.Sprintf("Too many media files (max %d)", s.maxMedia))
	}

	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	refs, err := media.UploadAll(ctx, s.uploader, logger, in.Files, media.KindPost)
	if err != nil {
		return nil, models.NewUpstreamError("media", err)
	}
	cleanup := context.WithoutCancel(ctx)

	post := &models.Post{
		AuthorID: author.ID,
		Caption:  caption,
		Media:    refs,
	}
	post.EnsureSets()
	if err := s.postRepo.Create(ctx, post); err != nil {
		media.DeleteAll(cleanup, s.uploader, logger, post.ObjectIDs()...)
		return nil, err
	}

	author.EnsureSets()
	author.Posts.Add(post.ID)
	if err := s.userRepo.Update(ctx, author); err != nil {
		if delErr := s.postRepo.Delete(cleanup, post.ID); delErr != nil {
			logger.Warn("failed to remove orphaned post", zap.String("post_id", post.ID), zap.Error(delErr))
		}
		media.DeleteAll(cleanup, s.uploader, logger, post.ObjectIDs()...)
		return nil, err
	}

	logger.Info("post created", zap.String("post_id", post.ID), zap.Int("media", len(refs)))
	return s.resolver.Post(ctx, post)
}

func (s *PostService) GetPost(ctx context.Context, postID string) (*models.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Post(ctx, post)
}

func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]*models.PostView, error) {
	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.resolver.Posts(ctx, posts)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.PostView, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	defer media.RemoveLocal(logger, in.Files...)

	if in.Caption == nil && len(in.Files) == 0 {
		return nil, models.NewValidationError("Nothing to update")
	}
	if len(in.Files) > s.maxMedia {
		return nil, models.NewValidationError(fmt.Sprintf("Too many media files (max %d)", s.maxMedia))
	}

	post, err := s.ownedPost(ctx, in.PostID, in.AuthorID, "edit")
	if err != nil {
		return nil, err
	}
	if in.Caption != nil {
		caption, err := s.validateCaption(*in.Caption)
		if err != nil {
			return nil, err
		}
		post.Caption = caption
	}

	var replaced []string
	if len(in.Files) > 0 {
		refs, err := media.UploadAll(ctx, s.uploader, logger, in.Files, media.KindPost)
		if err != nil {
			return nil, models.NewUpstreamError("media", err)
		}
		replaced = post.ObjectIDs()
		post.Media = refs
	}

	cleanup := context.WithoutCancel(ctx)
	if err := s.postRepo.Update(ctx, post); err != nil {
		if replaced != nil {
			media.DeleteAll(cleanup, s.uploader, logger, post.ObjectIDs()...)
		}
		return nil, err
	}
	media.DeleteAll(cleanup, s.uploader, logger, replaced...)

	return s.resolver.Post(ctx, post)
}

// DeletePost removes an owned post, detaches it from its author, and then
// deletes its media objects.
func (s *PostService) DeletePost(ctx context.Context, postID, authorID string) error {
	logger := observability.LoggerFromContext(ctx, s.logger)

	post, err := s.ownedPost(ctx, postID, authorID, "delete")
	if err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return err
	}

	cleanup := context.WithoutCancel(ctx)
	author, err := s.userRepo.GetByID(cleanup, authorID)
	if err == nil && author.Posts.Remove(post.ID) {
		err = s.userRepo.Update(cleanup, author)
	}
	if err != nil {
		// A stale post id in the author's list is dropped on resolve.
		logger.Warn("failed to detach deleted post from author",
			zap.String("post_id", post.ID), zap.String("author_id", authorID), zap.Error(err))
	}

	media.DeleteAll(cleanup, s.uploader, logger, post.ObjectIDs()...)
	logger.Info("post deleted", zap.String("post_id", post.ID))
	return nil
}

func (s *PostService) ownedPost(ctx context.Context, postID, authorID, action string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != authorID {
		return nil, models.NewForbiddenError("You can only " + action + " your own posts")
	}
	return post, nil
}

func (s *PostService) Like(ctx context.Context, userID, postID string) (*models.PostView, error) {
	return s.toggleLike(ctx, userID, postID, "like", (*models.RefSet).Add)
}

func (s *PostService) Unlike(ctx context.Context, userID, postID string) (*models.PostView, error) {
	return s.toggleLike(ctx, userID, postID, "unlike", (*models.RefSet).Remove)
}

func (s *PostService) toggleLike(
	ctx context.Context,
	userID, postID, op string,
	change func(*models.RefSet, string) bool,
) (*models.PostView, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	post.EnsureSets()

	if change(&post.Likes, userID) {
		if err := s.postRepo.Update(ctx, post); err != nil {
			return nil, err
		}
		observability.RelationshipOps.WithLabelValues(op).Inc()
	}
	return s.resolver.Post(ctx, post)
}
