package media

import (
	"context"

	"lumen/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UploadAll uploads files concurrently and returns their references in input
// order. On any failure the objects that did upload are deleted best-effort
// and the first error is returned. Every local file is removed either way.
func UploadAll(ctx context.Context, u Uploader, logger *zap.Logger, files []LocalFile, kind Kind) ([]models.MediaRef, error) {
	defer RemoveLocal(logger, files...)

	refs := make([]models.MediaRef, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			ref, err := u.Upload(gctx, f, kind)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		uploaded := make([]string, 0, len(refs))
		for _, r := range refs {
			if r.ObjectID != "" {
				uploaded = append(uploaded, r.ObjectID)
			}
		}
		// The request context may already be cancelled; cleanup must still run.
		DeleteAll(context.WithoutCancel(ctx), u, logger, uploaded...)
		return nil, err
	}
	return refs, nil
}
