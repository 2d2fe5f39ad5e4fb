package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"lumen/internal/models"
	"lumen/internal/repository"

	"github.com/google/uuid"
)

const maxCommentLen = 10000

type CommentService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	resolver *Resolver
}

type AddCommentInput struct {
	UserID string
	PostID string
	Text   string
}

type RemoveCommentInput struct {
	UserID    string
	PostID    string
	CommentID string
}

func NewCommentService(postRepo repository.PostRepository, userRepo repository.UserRepository, resolver *Resolver) *CommentService {
	return &CommentService{postRepo: postRepo, userRepo: userRepo, resolver: resolver}
}

// AddComment appends a comment to a post and returns it with the updated post.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, *models.PostView, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	if _, err := s.userRepo.GetByID(ctx, in.UserID); err != nil {
		return nil, nil, err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, nil, err
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		AuthorID:  in.UserID,
		CreatedAt: time.Now().UTC(),
	}
	post.EnsureSets()
	post.Comments = append(post.Comments, comment)
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, nil, err
	}

	view, err := s.resolver.Post(ctx, post)
	if err != nil {
		return nil, nil, err
	}
	return &comment, view, nil
}

// RemoveComment deletes a comment written by the caller.
func (s *CommentService) RemoveComment(ctx context.Context, in RemoveCommentInput) (*models.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	i := post.FindComment(in.CommentID)
	if i < 0 {
		return nil, models.NewNotFoundError("Comment", in.CommentID)
	}
	if post.Comments[i].AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only delete your own comments")
	}

	post.RemoveComment(i)
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.resolver.Post(ctx, post)
}
