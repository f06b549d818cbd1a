package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/ratelimit"
)

// DefaultTimeout bounds one lookup when no other value is configured.
const DefaultTimeout = 5 * time.Second

type timeoutResolver struct {
	next    Resolver
	timeout time.Duration
}

// WithTimeout bounds every lookup of r to d. The bound holds even for a
// resolver that ignores its context; its late answer is discarded.
func WithTimeout(r Resolver, d time.Duration) Resolver {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutResolver{next: r, timeout: d}
}

type lookupResult struct {
	md  *Metadata
	err error
}

func (t *timeoutResolver) Lookup(ctx context.Context, kind domain.Kind, value string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		md, err := t.next.Lookup(ctx, kind, value)
		done <- lookupResult{md: md, err: err}
	}()

	select {
	case res := <-done:
		return res.md, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup %s:%s: %w", kind, value, ctx.Err())
	}
}

type throttledResolver struct {
	next    Resolver
	limiter *ratelimit.KeyedRateLimiter
}

// Throttled makes r wait for a token from limiter before each lookup. The
// limiter is keyed by identifier kind.
func Throttled(r Resolver, limiter *ratelimit.KeyedRateLimiter) Resolver {
	return &throttledResolver{next: r, limiter: limiter}
}

func (t *throttledResolver) Lookup(ctx context.Context, kind domain.Kind, value string) (*Metadata, error) {
	if err := t.limiter.Wait(ctx, kind.String()); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", kind, err)
	}
	return t.next.Lookup(ctx, kind, value)
}
