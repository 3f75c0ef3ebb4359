package arcgis

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// tokenCache holds a portal token and refreshes it through fetch once it is
// within margin of expiry. Tokens are portal-wide, so one cache serves all
// requests from a client.
type tokenCache struct {
	fetch  func(ctx context.Context) (string, time.Time, error)
	clock  clockwork.Clock
	margin time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenCache(fetch func(ctx context.Context) (string, time.Time, error), clock clockwork.Clock, margin time.Duration) *tokenCache {
	return &tokenCache{fetch: fetch, clock: clock, margin: margin}
}

func (t *tokenCache) get(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.clock.Now().Before(t.expires.Add(-t.margin)) {
		return t.token, nil
	}

	token, expires, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expires = expires
	return token, nil
}
