package historical

import (
	"context"
	"sync"
	"time"

	"github.com/sabarim/txbars/internal/bars"
)

// LazySource defers building its TickSource until the first fetch, so callers
// that are usually served from the raw tick cache never authenticate.
type LazySource struct {
	build func(ctx context.Context) (TickSource, error)

	once   sync.Once
	source TickSource
	err    error
}

// NewLazySource creates a source that calls build at most once.
func NewLazySource(build func(ctx context.Context) (TickSource, error)) *LazySource {
	return &LazySource{build: build}
}

// FetchTicks implements TickSource.
func (l *LazySource) FetchTicks(ctx context.Context, symbol string, date time.Time) ([]bars.Tick, error) {
	l.once.Do(func() {
		l.source, l.err = l.build(ctx)
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.source.FetchTicks(ctx, symbol, date)
}
