package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"lumen/internal/media"
	"lumen/internal/models"
)

// FakeUploader is a media.Uploader that keeps objects in memory and honours
// the temp-file removal contract.
type FakeUploader struct {
	mu      sync.Mutex
	seq     int
	Objects map[string]string
	Deleted []string

	// FailOn, when set, decides per file whether the upload fails.
	FailOn    func(file media.LocalFile) error
	DeleteErr error
}

// NewFakeUploader returns an empty FakeUploader.
func NewFakeUploader() *FakeUploader {
	return &FakeUploader{Objects: map[string]string{}}
}

func (u *FakeUploader) Upload(_ context.Context, file media.LocalFile, kind media.Kind) (models.MediaRef, error) {
	defer media.RemoveLocal(nil, file)

	if u.FailOn != nil {
		if err := u.FailOn(file); err != nil {
			return models.MediaRef{}, err
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.seq++
	id := fmt.Sprintf("fake/%s/%d-%s", kind, u.seq, file.Filename)
	u.Objects[id] = file.Filename
	return models.MediaRef{ObjectID: id, URL: "https://cdn.test/" + id}, nil
}

func (u *FakeUploader) Delete(_ context.Context, objectID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Deleted = append(u.Deleted, objectID)
	if u.DeleteErr != nil {
		return u.DeleteErr
	}
	delete(u.Objects, objectID)
	return nil
}

// Stored reports whether objectID is currently held.
func (u *FakeUploader) Stored(objectID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.Objects[objectID]
	return ok
}

// ErrUploadFailed is a convenience error for FailOn hooks.
var ErrUploadFailed = errors.New("object storage rejected the upload")

// TempUpload writes body to a temp file and describes it as an upload.
func TempUpload(t testing.TB, name, body string) media.LocalFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp upload: %v", err)
	}
	return media.LocalFile{Path: path, Filename: name, Size: int64(len(body))}
}

// AssertRemoved fails the test if any of the files still exist.
func AssertRemoved(t testing.TB, files ...media.LocalFile) {
	t.Helper()
	for _, f := range files {
		if _, err := os.Stat(f.Path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected temp file %s to be removed", f.Path)
		}
	}
}
