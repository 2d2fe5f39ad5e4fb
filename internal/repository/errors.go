// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"lumen/internal/models"
	"lumen/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isUniqueConstraintError recognises unique-index violations from every backend.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || mongo.IsDuplicateKeyError(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// duplicateUserError names the field that collided when the driver tells us.
func duplicateUserError(err error) *models.AppError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "email"):
		return models.NewConflictError("Email is already registered")
	case strings.Contains(msg, "username"):
		return models.NewConflictError("Username is already taken")
	default:
		return models.NewConflictError("User already exists")
	}
}

// storeError reports a driver failure as the database being unavailable.
func storeError(err error) *models.AppError {
	return models.NewUpstreamError("database", err)
}

func versionConflict(collection, resource string) *models.AppError {
	observability.StoreConflicts.WithLabelValues(collection).Inc()
	return models.NewConflictError(resource + " was modified concurrently, retry the request")
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
