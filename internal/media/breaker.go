package media

import (
	"context"
	"errors"
	"time"

	"lumen/internal/models"
	"lumen/internal/observability"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrStorageUnavailable is returned while the breaker is open.
var ErrStorageUnavailable = errors.New("media storage unavailable")

// BreakerSettings tunes when the breaker opens and how long it stays open.
type BreakerSettings struct {
	Name        string
	MinRequests uint32
	FailureRate float64
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultBreakerSettings opens after 60% failures over at least 10 calls and
// probes again after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "media-storage",
		MinRequests: 10,
		FailureRate: 0.6,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

// BreakerUploader fails fast while object storage keeps failing.
type BreakerUploader struct {
	next   Uploader
	cb     *gobreaker.CircuitBreaker[models.MediaRef]
	logger *zap.Logger
}

// NewBreakerUploader wraps next with a circuit breaker.
func NewBreakerUploader(next Uploader, settings BreakerSettings, logger *zap.Logger) *BreakerUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	observability.MediaBreakerState.WithLabelValues(settings.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.MediaRef](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 3,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("media circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			observability.MediaBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			// Cancelled requests say nothing about storage health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerUploader{next: next, cb: cb, logger: logger}
}

func (b *BreakerUploader) Upload(ctx context.Context, file LocalFile, kind Kind) (models.MediaRef, error) {
	ref, err := b.cb.Execute(func() (models.MediaRef, error) {
		return b.next.Upload(ctx, file, kind)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// The wrapped uploader never ran, so the temp file is still ours to remove.
		RemoveLocal(b.logger, file)
		return models.MediaRef{}, errors.Join(ErrStorageUnavailable, err)
	}
	return ref, err
}

func (b *BreakerUploader) Delete(ctx context.Context, objectID string) error {
	_, err := b.cb.Execute(func() (models.MediaRef, error) {
		return models.MediaRef{}, b.next.Delete(ctx, objectID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrStorageUnavailable, err)
	}
	return err
}

// State returns the breaker's current state.
func (b *BreakerUploader) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
