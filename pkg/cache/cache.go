// Package cache stores encoded models so repeated commands skip the kernel.
//
// Entries are keyed by the parsed shape and the mesh resolution, so two
// phrasings of the same command share one entry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a byte store with expiry. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Key returns the cache key for spec meshed at meshCells.
func Key(spec command.Spec, meshCells int) string {
	params := spec.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(spec.Kind().String())
	for i, name := range names {
		if i == 0 {
			b.WriteByte(':')
		} else {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%g", name, params[name])
	}
	fmt.Fprintf(&b, ":cells=%d", meshCells)
	return b.String()
}

// New creates the cache selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "cache"))

	switch cfg.Backend {
	case "memory", "":
		return NewMemory(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, cfg.Redis, cfg.TTL, logger)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte) error   { return nil }
func (Nop) Close() error                                { return nil }
