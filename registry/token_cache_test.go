package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_SingleFlight(t *testing.T) {
	c := NewTokenCache(nil)
	var calls int32
	release := make(chan struct{})

	fetch := func(ctx context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Token{Value: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Token(context.Background(), "bluedart", fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return c.State("bluedart") == Authenticating }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "tok-1", v)
	}
	assert.Equal(t, Authenticated, c.State("bluedart"))
}

func TestTokenCache_RefreshesNearExpiry(t *testing.T) {
	c := NewTokenCache(nil)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	n := 0
	fetch := func(ctx context.Context) (Token, error) {
		n++
		return Token{Value: []string{"a", "b", "c"}[n-1], ExpiresAt: now.Add(10 * time.Minute)}, nil
	}

	v, err := c.Token(context.Background(), "xpressbees", fetch)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	now = now.Add(5 * time.Minute)
	v, _ = c.Token(context.Background(), "xpressbees", fetch)
	assert.Equal(t, "a", v)

	// inside the refresh skew
	now = now.Add(4*time.Minute + 30*time.Second)
	v, _ = c.Token(context.Background(), "xpressbees", fetch)
	assert.Equal(t, "b", v)

	now = now.Add(11 * time.Minute)
	assert.Equal(t, Expired, c.State("xpressbees"))
	v, _ = c.Token(context.Background(), "xpressbees", fetch)
	assert.Equal(t, "c", v)
	assert.Equal(t, Authenticated, c.State("xpressbees"))
}

func TestTokenCache_FailureResetsState(t *testing.T) {
	c := NewTokenCache(nil)
	boom := errors.New("login rejected")

	_, err := c.Token(context.Background(), "dtdc", func(context.Context) (Token, error) { return Token{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Unauthenticated, c.State("dtdc"))

	v, err := c.Token(context.Background(), "dtdc", func(context.Context) (Token, error) {
		return Token{Value: "ok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestTokenCache_MarkExpiredAndInvalidate(t *testing.T) {
	c := NewTokenCache(nil)
	n := 0
	fetch := func(context.Context) (Token, error) {
		n++
		return Token{Value: "t", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	_, _ = c.Token(context.Background(), "bluedart", fetch)
	_, _ = c.Token(context.Background(), "bluedart", fetch)
	assert.Equal(t, 1, n)

	c.MarkExpired("bluedart")
	assert.Equal(t, Expired, c.State("bluedart"))
	_, _ = c.Token(context.Background(), "bluedart", fetch)
	assert.Equal(t, 2, n)

	_, _ = c.Token(context.Background(), "xpressbees", fetch)
	c.Invalidate("bluedart")
	assert.Equal(t, Unauthenticated, c.State("bluedart"))
	assert.Equal(t, Authenticated, c.State("xpressbees"))
}

func TestTokenCache_InvalidateDuringFetchDropsResult(t *testing.T) {
	c := NewTokenCache(nil)
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = c.Token(context.Background(), "bluedart", func(context.Context) (Token, error) {
			close(started)
			<-release
			return Token{Value: "stale", ExpiresAt: time.Now().Add(time.Hour)}, nil
		})
	}()
	<-started
	c.Invalidate("bluedart")
	close(release)

	v, err := c.Token(context.Background(), "bluedart", func(context.Context) (Token, error) {
		return Token{Value: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestTokenCache_CallerCancellation(t *testing.T) {
	c := NewTokenCache(nil)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Token(ctx, "shadowfax", func(context.Context) (Token, error) {
		<-release
		return Token{Value: "late"}, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenCache_InvalidateClearsPurposeTokens(t *testing.T) {
	c := NewTokenCache(nil)
	fetch := func(context.Context) (Token, error) {
		return Token{Value: "t", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	_, _ = c.Token(context.Background(), "dtdc", fetch)
	_, _ = c.Token(context.Background(), "dtdc:tracking", fetch)
	_, _ = c.Token(context.Background(), "dtdcx", fetch)

	c.Invalidate("dtdc")

	assert.Equal(t, Unauthenticated, c.State("dtdc"))
	assert.Equal(t, Unauthenticated, c.State("dtdc:tracking"))
	assert.Equal(t, Authenticated, c.State("dtdcx"))
}
