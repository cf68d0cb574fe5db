package embedder

import (
	"context"
	"log/slog"

	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

// FallbackRuntime tries the primary runtime and falls back on any failure
// other than cancellation. The fallback is logged, never returned.
type FallbackRuntime struct {
	primary  Runtime
	fallback Runtime
	logger   *slog.Logger
}

// NewFallbackRuntime wraps primary with fallback
func NewFallbackRuntime(primary, fallback Runtime, logger *slog.Logger) *FallbackRuntime {
	return &FallbackRuntime{
		primary:  primary,
		fallback: fallback,
		logger:   logging.OrDefault(logger),
	}
}

// Embed returns the primary result, or the fallback result marked Degraded
func (f *FallbackRuntime) Embed(ctx context.Context, texts []string, input InputType) (*Result, error) {
	res, err := f.primary.Embed(ctx, texts, input)
	if err == nil {
		return res, nil
	}
	if types.IsCancellation(err) {
		return res, err
	}

	f.logger.Warn("embedding runtime failed, using fallback",
		slog.String("primary", f.primary.Model().ID),
		slog.String("fallback", f.fallback.Model().ID),
		slog.String("kind", string(types.KindOf(err))),
		slog.String("error", err.Error()))

	fb, fbErr := f.fallback.Embed(ctx, texts, input)
	if fb != nil {
		fb.Degraded = true
	}
	return fb, fbErr
}

// Model returns the primary model identity
func (f *FallbackRuntime) Model() types.ModelInfo {
	return f.primary.Model()
}

// Close closes both runtimes
func (f *FallbackRuntime) Close() error {
	err := f.primary.Close()
	if fbErr := f.fallback.Close(); err == nil {
		err = fbErr
	}
	return err
}
