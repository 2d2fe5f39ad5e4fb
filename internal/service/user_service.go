package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"lumen/internal/auth"
	"lumen/internal/media"
	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"
	"lumen/internal/validation"

	"go.uber.org/zap"
)

// TokenIssuer issues access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type UserService struct {
	userRepo repository.UserRepository
	resolver *Resolver
	hasher   auth.PasswordHasher
	tokens   TokenIssuer
	uploader media.Uploader
	logger   *zap.Logger
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

type AuthenticateInput struct {
	Identifier string
	Password   string
}

// UpdateProfileInput carries a partial update; nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID   string
	Name     *string
	Username *string
	Email    *string
	Bio      *string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User  *models.ProfileView `json:"user"`
	Token string              `json:"token"`
}

func NewUserService(
	userRepo repository.UserRepository,
	resolver *Resolver,
	hasher auth.PasswordHasher,
	tokens TokenIssuer,
	uploader media.Uploader,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		userRepo: userRepo,
		resolver: resolver,
		hasher:   hasher,
		tokens:   tokens,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = models.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}
	existing, err = s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
	}
	user.EnsureSets()
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx, s.logger).Info("user registered",
		zap.String("user_id", user.ID), zap.String("username", user.Username))
	return s.authResult(ctx, user)
}

func (s *UserService) Authenticate(ctx context.Context, in AuthenticateInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, models.NewValidationError("Username or email and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, models.NormalizeEmail(identifier))
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", identifier)
	}

	if err := s.hasher.Compare(user.Password, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, models.NewInternalError(err)
	}
	return s.authResult(ctx, user)
}

func (s *UserService) authResult(ctx context.Context, user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	view, err := s.resolver.Profile(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: view, Token: token}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.ProfileView, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Profile(ctx, user)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.ProfileView, error) {
	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.resolver.Profiles(ctx, users)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.ProfileView, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, models.NewValidationError("Name cannot be empty")
		}
		if utf8.RuneCountInString(name) > 50 {
			return nil, models.NewValidationError("Name too long (max 50 characters)")
		}
		user.Name = name
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			if err := s.ensureFree(ctx, user.ID, s.userRepo.GetByUsername, username, "Username is already taken"); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if email != user.Email {
			if err := s.ensureFree(ctx, user.ID, s.userRepo.GetByEmail, email, "Email is already registered"); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > models.MaxBioLength {
			return nil, models.NewValidationError("Bio too long (max 150 characters)")
		}
		user.Bio = bio
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.resolver.Profile(ctx, user)
}

func (s *UserService) ensureFree(
	ctx context.Context,
	selfID string,
	lookup func(context.Context, string) (*models.User, error),
	value, conflictMsg string,
) error {
	other, err := lookup(ctx, value)
	if err != nil {
		return err
	}
	if other != nil && other.ID != selfID {
		return models.NewConflictError(conflictMsg)
	}
	return nil
}

// SetAvatar uploads a new avatar, stores its reference, and then removes the
// previous object. The temp file is removed on every path.
func (s *UserService) SetAvatar(ctx context.Context, userID string, file media.LocalFile) (*models.ProfileView, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	defer media.RemoveLocal(logger, file)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ref, err := s.uploader.Upload(ctx, file, media.KindAvatar)
	if err != nil {
		return nil, models.NewUpstreamError("media", err)
	}

	var previous string
	if user.Avatar != nil {
		previous = user.Avatar.ObjectID
	}
	user.Avatar = &ref
	if err := s.userRepo.Update(ctx, user); err != nil {
		media.DeleteAll(context.WithoutCancel(ctx), s.uploader, logger, ref.ObjectID)
		return nil, err
	}
	if previous != "" && previous != ref.ObjectID {
		media.DeleteAll(context.WithoutCancel(ctx), s.uploader, logger, previous)
	}

	return s.resolver.Profile(ctx, user)
}
