package service

import (
	"lumen/internal/auth"
	"lumen/internal/media"
	"lumen/internal/repository"

	"go.uber.org/zap"
)

// Services bundles the application services built over one store.
type Services struct {
	Users     *UserService
	Follows   *FollowService
	Posts     *PostService
	Comments  *CommentService
	Bookmarks *BookmarkService
}

type Deps struct {
	UserRepo repository.UserRepository
	PostRepo repository.PostRepository
	Uploader media.Uploader
	Hasher   auth.PasswordHasher
	Tokens   TokenIssuer
	MaxMedia int
	Logger   *zap.Logger
}

// NewServices wires every service to a shared resolver.
func NewServices(d Deps) *Services {
	resolver := NewResolver(d.UserRepo, d.PostRepo)
	return &Services{
		Users:     NewUserService(d.UserRepo, resolver, d.Hasher, d.Tokens, d.Uploader, d.Logger),
		Follows:   NewFollowService(d.UserRepo, resolver, d.Logger),
		Posts:     NewPostService(d.PostRepo, d.UserRepo, resolver, d.Uploader, d.MaxMedia, d.Logger),
		Comments:  NewCommentService(d.PostRepo, d.UserRepo, resolver),
		Bookmarks: NewBookmarkService(d.UserRepo, d.PostRepo, resolver),
	}
}
