// Command main runs the demo data seeder for Lumen.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"lumen/internal/auth"
	"lumen/internal/config"
	"lumen/internal/observability"
	"lumen/internal/seed"
	"lumen/internal/server"
	"lumen/internal/service"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	maxMedia := flag.Int("media", 3, "Maximum images per post")
	avatars := flag.Float64("avatars", 0.5, "Share of users given an avatar (0-1)")
	password := flag.String("password", seed.DefaultPassword, "Password for every seeded account")
	randSeed := flag.Int64("seed", 0, "Random seed for generated content (0 = time-based)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Seeding",
		zap.String("store", cfg.StoreDriver),
		zap.Int("users", *numUsers),
		zap.Int("posts", *numPosts))

	ctx := context.Background()
	deps, err := server.ConnectDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
		if deps.Redis != nil {
			_ = deps.Redis.Close()
		}
	}()

	svc := service.NewServices(service.Deps{
		UserRepo: deps.UserRepo,
		PostRepo: deps.PostRepo,
		Uploader: deps.Uploader,
		Hasher:   auth.NewBcryptHasher(),
		Tokens:   auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL(), nil, logger),
		MaxMedia: cfg.UploadMaxFiles,
		Logger:   logger,
	})

	maxPerPost := *maxMedia
	if maxPerPost > cfg.UploadMaxFiles {
		maxPerPost = cfg.UploadMaxFiles
	}

	res, err := seed.NewSeeder(svc, seed.Options{
		Users:           *numUsers,
		Posts:           *numPosts,
		MaxMediaPerPost: maxPerPost,
		AvatarRatio:     *avatars,
		Password:        *password,
		TempDir:         cfg.UploadTempDir,
		RandSeed:        *randSeed,
	}, logger).Run(ctx)
	if err != nil {
		// Data created before the failure stays in place.
		return fmt.Errorf("seed failed after %d users and %d posts: %w", len(res.Users), len(res.Posts), err)
	}

	logger.Info("All done", zap.String("password", *password))
	return nil
}
