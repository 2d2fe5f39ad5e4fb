// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "lumen/docs" // swagger docs
	"lumen/internal/auth"
	"lumen/internal/config"
	"lumen/internal/database"
	"lumen/internal/media"
	"lumen/internal/middleware"
	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"
	"lumen/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const bytesPerMB = 1024 * 1024

// Deps are the already-initialized collaborators a Server is built from.
type Deps struct {
	UserRepo repository.UserRepository
	PostRepo repository.PostRepository
	Uploader media.Uploader
	Redis    *redis.Client
	Hasher   auth.PasswordHasher
	// StorePing reports store health for the readiness probe; nil means always healthy.
	StorePing func(ctx context.Context) error
	// Close releases store connections on shutdown.
	Close func(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	logger         *zap.Logger
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	storePing      func(ctx context.Context) error
	closeStore     func(ctx context.Context) error

	tokens          *auth.TokenService
	uploader        media.Uploader
	userService     *service.UserService
	followService   *service.FollowService
	postService     *service.PostService
	commentService  *service.CommentService
	bookmarkService *service.BookmarkService
}

// NewServer connects the store selected by STORE_DRIVER, Redis, and object
// storage, and builds a Server on top of them.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	deps, err := ConnectDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, logger, deps), nil
}

// ConnectDeps opens every external collaborator named by cfg. Redis is
// optional and left nil when unreachable.
func ConnectDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Deps, error) {
	deps, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return Deps{}, err
	}

	deps.Redis = database.ConnectRedis(cfg.RedisURL, logger)

	client, err := media.NewS3Client(cfg)
	if err != nil {
		_ = deps.Close(ctx)
		return Deps{}, fmt.Errorf("object storage client failed: %w", err)
	}
	s3 := media.NewS3Uploader(client, cfg, logger)
	if err := s3.EnsureBucket(ctx); err != nil {
		// Retried on first upload.
		logger.Warn("media bucket not ready", zap.String("bucket", cfg.S3Bucket), zap.Error(err))
	}
	deps.Uploader = media.NewBreakerUploader(s3, media.DefaultBreakerSettings(), logger)
	return deps, nil
}

func connectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Deps, error) {
	if cfg.StoreDriver == config.StoreMongo {
		client, db, err := database.ConnectMongo(ctx, cfg, logger)
		if err != nil {
			return Deps{}, fmt.Errorf("database connection failed: %w", err)
		}
		return Deps{
			UserRepo:  repository.NewMongoUserRepository(db),
			PostRepo:  repository.NewMongoPostRepository(db),
			StorePing: func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
			Close:     mongoCloser(client),
		}, nil
	}

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return Deps{}, fmt.Errorf("database connection failed: %w", err)
	}
	return Deps{
		UserRepo:  repository.NewUserRepository(db),
		PostRepo:  repository.NewPostRepository(db),
		StorePing: gormPinger(db),
		Close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}

func mongoCloser(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error { return client.Disconnect(ctx) }
}

func gormPinger(db *gorm.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes the store itself.
func NewServerWithDeps(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher()
	}

	var revoked auth.RevocationStore
	if deps.Redis != nil {
		revoked = auth.NewRedisRevocationStore(deps.Redis)
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL(), revoked, logger)

	svc := service.NewServices(service.Deps{
		UserRepo: deps.UserRepo,
		PostRepo: deps.PostRepo,
		Uploader: deps.Uploader,
		Hasher:   hasher,
		Tokens:   tokens,
		MaxMedia: cfg.UploadMaxFiles,
		Logger:   logger,
	})

	return &Server{
		config:          cfg,
		logger:          logger,
		redis:           deps.Redis,
		promMiddleware:  middleware.InitMetrics("lumen-api"),
		storePing:       deps.StorePing,
		closeStore:      deps.Close,
		tokens:          tokens,
		uploader:        deps.Uploader,
		userService:     svc.Users,
		followService:   svc.Follows,
		postService:     svc.Posts,
		commentService:  svc.Comments,
		bookmarkService: svc.Bookmarks,
	}
}

// NewApp returns a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	maxFiles := s.config.UploadMaxFiles
	if maxFiles <= 0 {
		maxFiles = service.DefaultMaxMedia
	}
	maxSize := s.config.UploadMaxSizeMB
	if maxSize <= 0 {
		maxSize = 25
	}

	app := fiber.New(fiber.Config{
		AppName:   "Lumen API",
		BodyLimit: maxFiles*maxSize*bytesPerMB + bytesPerMB,
		// Params and form values outlive the request once stored.
		Immutable: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message})
			}
			return s.respondError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger(s.logger))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", s.Signup)
	authGroup.Post("/login", s.Login)
	authGroup.Post("/logout", s.AuthRequired(), s.Logout)

	api.Get("/users", s.GetAllUsers)

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/me/avatar", s.UploadAvatar)
	users.Post("/:id/follow", s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Get("/:id", s.GetUserProfile)

	posts := protected.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id routes.
	posts.Post("/:id/like", s.LikePost)
	posts.Delete("/:id/like", s.UnlikePost)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	bookmarks := protected.Group("/bookmarks")
	bookmarks.Get("/", s.GetBookmarks)
	bookmarks.Post("/:postId", s.AddBookmark)
	bookmarks.Delete("/:postId", s.RemoveBookmark)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// an unavailable Redis degrades the report without failing it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if s.storePing != nil {
		if err := s.storePing(ctx); err != nil {
			storeStatus = "unhealthy"
		}
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if storeStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired verifies the bearer token and stores the caller's id in
// locals under "userID" and the verified claims under "claims".
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.tokens.Verify(c.UserContext(), tokenString)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, auth.ErrTokenRevoked) {
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		c.SetUserContext(observability.WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	s.logger.Info("Server starting", zap.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.closeStore != nil {
		if err := s.closeStore(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	s.logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
