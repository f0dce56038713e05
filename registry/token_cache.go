package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TokenState is where a courier's auth token is in its lifecycle.
type TokenState int

const (
	Unauthenticated TokenState = iota
	Authenticating
	Authenticated
	Expired
)

func (s TokenState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Token is a bearer credential and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenFetcher performs the provider's login call.
type TokenFetcher func(ctx context.Context) (Token, error)

// DefaultRefreshSkew renews tokens this long before they expire.
const DefaultRefreshSkew = time.Minute

type tokenEntry struct {
	token      Token
	state      TokenState
	generation uint64
}

// TokenCache holds one token per courier. Concurrent callers that find no
// valid token share a single in-flight fetch.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]*tokenEntry
	group   singleflight.Group
	skew    time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewTokenCache(log *zap.Logger) *TokenCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenCache{
		entries: make(map[string]*tokenEntry),
		skew:    DefaultRefreshSkew,
		now:     time.Now,
		log:     log,
	}
}

func (c *TokenCache) entry(courier string) *tokenEntry {
	e, ok := c.entries[courier]
	if !ok {
		e = &tokenEntry{}
		c.entries[courier] = e
	}
	return e
}

// Token returns a valid token for courier, fetching one when needed.
func (c *TokenCache) Token(ctx context.Context, courier string, fetch TokenFetcher) (string, error) {
	c.mu.Lock()
	e := c.entry(courier)
	if e.state == Authenticated {
		if c.now().Add(c.skew).Before(e.token.ExpiresAt) {
			v := e.token.Value
			c.mu.Unlock()
			return v, nil
		}
		e.state = Expired
	}
	e.state = Authenticating
	gen := e.generation
	c.mu.Unlock()

	ch := c.group.DoChan(courier, func() (interface{}, error) {
		// the fetch outlives any single caller's cancellation
		tok, err := fetch(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		cur := c.entry(courier)
		if cur.generation != gen {
			// invalidated while fetching: hand the token to waiters but keep no state
			return tok, err
		}
		if err != nil {
			cur.state = Unauthenticated
			cur.token = Token{}
			return Token{}, err
		}
		cur.token = tok
		cur.state = Authenticated
		c.log.Info("courier token refreshed", zap.String("courier", courier), zap.Time("expires_at", tok.ExpiresAt))
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Token).Value, nil
	}
}

// State reports the lifecycle state of courier's token.
func (c *TokenCache) State(courier string) TokenState {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[courier]
	if !ok {
		return Unauthenticated
	}
	if e.state == Authenticated && !c.now().Before(e.token.ExpiresAt) {
		return Expired
	}
	return e.state
}

// MarkExpired forces the next Token call to re-authenticate, typically after
// the provider rejected a cached token.
func (c *TokenCache) MarkExpired(courier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[courier]; ok && e.state == Authenticated {
		e.state = Expired
	}
}

// Invalidate drops courier's token, and any "courier:<purpose>" tokens the
// adapter keeps beside it, and detaches in-flight fetches.
func (c *TokenCache) Invalidate(courier string) {
	c.mu.Lock()
	keys := []string{courier}
	for k := range c.entries {
		if strings.HasPrefix(k, courier+":") {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		e := c.entry(k)
		e.generation++
		e.token = Token{}
		e.state = Unauthenticated
	}
	c.mu.Unlock()
	for _, k := range keys {
		c.group.Forget(k)
	}
}
