// Package media uploads user files to object storage and removes them again.
package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"lumen/internal/models"
	"lumen/internal/observability"

	"go.uber.org/zap"
)

// Kind selects the storage folder for an upload.
type Kind string

const (
	KindPost   Kind = "post"
	KindAvatar Kind = "avatar"
)

const rootFolder = "social_media"

// LocalFile is a client upload already written to local disk.
type LocalFile struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// IsVideo reports whether the file should be stored as a video resource.
func (f LocalFile) IsVideo() bool {
	if strings.HasPrefix(strings.ToLower(f.ContentType), "video/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Filename)) {
	case ".mp4", ".mov", ".webm", ".mkv", ".avi", ".m4v":
		return true
	}
	return false
}

// Uploader is the media upload service contract. Upload removes the local
// file whatever the outcome. Delete is best-effort; callers log its errors.
type Uploader interface {
	Upload(ctx context.Context, file LocalFile, kind Kind) (models.MediaRef, error)
	Delete(ctx context.Context, objectID string) error
}

// folderFor maps an upload to its folder under the storage root.
func folderFor(file LocalFile, kind Kind) string {
	if kind == KindAvatar {
		return rootFolder + "/avatars"
	}
	if file.IsVideo() {
		return rootFolder + "/posts/videos"
	}
	return rootFolder + "/posts/images"
}

// RemoveLocal deletes temp files, ignoring ones that are already gone.
func RemoveLocal(logger *zap.Logger, files ...LocalFile) {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			observability.MediaCleanupFailures.WithLabelValues("temp_file").Inc()
			if logger != nil {
				logger.Warn("failed to remove temp upload", zap.String("path", f.Path), zap.Error(err))
			}
		}
	}
}

// DeleteAll removes stored objects best-effort and logs failures.
func DeleteAll(ctx context.Context, u Uploader, logger *zap.Logger, objectIDs ...string) {
	for _, id := range objectIDs {
		if id == "" {
			continue
		}
		if err := u.Delete(ctx, id); err != nil {
			observability.MediaCleanupFailures.WithLabelValues("object").Inc()
			observability.LoggerFromContext(ctx, logger).Warn("failed to delete media object",
				zap.String("object_id", id), zap.Error(err))
		}
	}
}
