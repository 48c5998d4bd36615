package cache

import (
	"context"
	"errors"
	"time"
)

// Provider stores encoded habit scores keyed by model, habit and input digest.
// Entries are immutable once written, so a provider only needs read and write.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// ErrCacheMiss is returned by Get when key holds no score.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider disables score caching: every lookup misses.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) Close() error { return nil }
