package tts

import (
	"context"
	"log/slog"
)

// Fallback tries providers in order until one succeeds. The gateway
// uses it to keep speaking when the primary voice service is down.
type Fallback struct {
	providers []Provider
	logger    *slog.Logger
}

// NewFallback creates a provider chain. At least one provider is
// required.
func NewFallback(logger *slog.Logger, providers ...Provider) (*Fallback, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		providers: providers,
		logger:    logger.With("component", "tts.fallback"),
	}, nil
}

// Synthesize tries each provider in order, returning the first
// successful result.
func (f *Fallback) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var lastErr error
	for i, p := range f.providers {
		result, err := p.Synthesize(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err
		f.logger.Warn("provider failed, trying next",
			"provider_index", i,
			"error", err,
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrAllProvidersFailed
}

// Health reports healthy if any provider is healthy.
func (f *Fallback) Health(ctx context.Context) error {
	var lastErr error
	for _, p := range f.providers {
		if err := p.Health(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// Close closes all providers, returning the first error.
func (f *Fallback) Close() error {
	var first error
	for _, p := range f.providers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Provider = (*Fallback)(nil)
