package service

import (
	"context"

	"lumen/internal/models"
	"lumen/internal/repository"
)

// BookmarkService manages a user's saved posts. Bookmarks are ids on the
// user record; entries for deleted posts are skipped when listing.
type BookmarkService struct {
	userRepo repository.UserRepository
	postRepo repository.PostRepository
	resolver *Resolver
}

func NewBookmarkService(userRepo repository.UserRepository, postRepo repository.PostRepository, resolver *Resolver) *BookmarkService {
	return &BookmarkService{userRepo: userRepo, postRepo: postRepo, resolver: resolver}
}

func (s *BookmarkService) Add(ctx context.Context, userID, postID string) (models.RefSet, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	user.EnsureSets()
	if user.Bookmarks.Add(postID) {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user.Bookmarks.Clone(), nil
}

// Remove drops a bookmark. The post does not have to exist any more.
func (s *BookmarkService) Remove(ctx context.Context, userID, postID string) (models.RefSet, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.EnsureSets()
	if user.Bookmarks.Remove(postID) {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user.Bookmarks.Clone(), nil
}

func (s *BookmarkService) List(ctx context.Context, userID string) ([]*models.PostView, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Bookmarks) == 0 {
		return []*models.PostView{}, nil
	}

	found, err := s.postRepo.GetMany(ctx, user.Bookmarks)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	ordered := make([]*models.Post, 0, len(found))
	for _, id := range user.Bookmarks {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return s.resolver.Posts(ctx, ordered)
}
