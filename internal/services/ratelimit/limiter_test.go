package ratelimit

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, int, time.Duration, time.Time) (models.RateLimitState, bool, error) {
	return models.RateLimitState{}, false, errors.New("store down")
}
func (failingStore) Reset(context.Context, string) error { return nil }
func (failingStore) Close() error                        { return nil }

func TestCheckFixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(NewMemoryStore(time.Minute), WithClock(clock))
	ctx := context.Background()
	window := time.Minute
	wantReset := clock.Now().Add(window)

	for i, wantRemaining := range []int{2, 1, 0} {
		res := l.Check(ctx, "user-1", 3, window)
		if !res.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
		if res.Remaining != wantRemaining {
			t.Errorf("request %d remaining = %d, want %d", i+1, res.Remaining, wantRemaining)
		}
		if !res.ResetTime.Equal(wantReset) {
			t.Errorf("request %d reset = %v, want %v", i+1, res.ResetTime, wantReset)
		}
	}

	clock.Advance(30 * time.Second)
	res := l.Check(ctx, "user-1", 3, window)
	if res.Allowed {
		t.Fatal("4th request allowed, want denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	if !res.ResetTime.Equal(wantReset) {
		t.Errorf("denial moved reset to %v, want %v", res.ResetTime, wantReset)
	}
}

func TestCheckWindowExpiry(t *testing.T) {
	clock := newFakeClock()
	l := New(NewMemoryStore(time.Minute), WithClock(clock))
	ctx := context.Background()

	for range 2 {
		l.Check(ctx, "k", 2, time.Minute)
	}
	if l.Check(ctx, "k", 2, time.Minute).Allowed {
		t.Fatal("expected denial in full window")
	}

	// Exactly at reset time the window restarts
	clock.Advance(time.Minute)
	res := l.Check(ctx, "k", 2, time.Minute)
	if !res.Allowed || res.Count != 1 || res.Remaining != 1 {
		t.Fatalf("after reset got %+v, want allowed count 1 remaining 1", res)
	}
	if want := clock.Now().Add(time.Minute); !res.ResetTime.Equal(want) {
		t.Errorf("reset = %v, want %v", res.ResetTime, want)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	l := New(NewMemoryStore(time.Minute), WithClock(newFakeClock()))
	ctx := context.Background()

	l.Check(ctx, "a", 1, time.Minute)
	if l.Check(ctx, "a", 1, time.Minute).Allowed {
		t.Fatal("key a should be exhausted")
	}
	if !l.Check(ctx, "b", 1, time.Minute).Allowed {
		t.Fatal("key b should be unaffected by key a")
	}
}

func TestCheckDisabledLimit(t *testing.T) {
	l := New(NewMemoryStore(time.Minute), WithClock(newFakeClock()))
	for range 10 {
		if !l.Check(context.Background(), "k", 0, time.Minute).Allowed {
			t.Fatal("limit 0 should never deny")
		}
	}
}

func TestCheckFailsOpen(t *testing.T) {
	l := New(failingStore{}, WithClock(newFakeClock()))
	res := l.Check(context.Background(), "k", 5, time.Minute)
	if !res.Allowed {
		t.Fatal("store errors should allow the request")
	}
}

func TestCheckOperation(t *testing.T) {
	l := New(NewMemoryStore(time.Minute),
		WithClock(newFakeClock()),
		WithRules(map[string]models.RateLimitRule{"Chat": {Limit: 1, WindowMs: 60000}}),
	)
	ctx := context.Background()

	if _, limited := l.CheckOperation(ctx, "vitals", "ip"); limited {
		t.Error("operation without rule reported as limited")
	}

	res, limited := l.CheckOperation(ctx, "chat", "ip")
	if !limited || !res.Allowed {
		t.Fatalf("first chat = %+v limited=%v", res, limited)
	}
	if res, _ := l.CheckOperation(ctx, "chat", "ip"); res.Allowed {
		t.Fatal("second chat allowed, want denied")
	}
	if res, _ := l.CheckOperation(ctx, "chat", "other-ip"); !res.Allowed {
		t.Fatal("other client denied")
	}

	if err := l.Reset(ctx, "chat", "ip"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if res, _ := l.CheckOperation(ctx, "chat", "ip"); !res.Allowed {
		t.Fatal("chat denied after reset")
	}
}

func TestCheckConcurrentNeverExceedsLimit(t *testing.T) {
	l := New(NewMemoryStore(time.Minute), WithClock(newFakeClock()))
	const limit = 25

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(context.Background(), "shared", limit, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("allowed = %d, want %d", allowed, limit)
	}
}

func TestMemoryStoreEvictsExpiredKeys(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	l := New(store)

	l.Check(context.Background(), "short-lived", 5, 20*time.Millisecond)
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.Len() != 0 {
		t.Fatalf("expired key was not swept, len = %d", store.Len())
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opt)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	key := "test:" + time.Now().Format(time.RFC3339Nano)
	defer store.Reset(ctx, key)

	clock := newFakeClock()
	clock.now = time.Now()
	l := New(store, WithClock(clock))

	for i := range 2 {
		if !l.Check(ctx, key, 2, time.Minute).Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	res := l.Check(ctx, key, 2, time.Minute)
	if res.Allowed || res.Count != 2 {
		t.Fatalf("third request = %+v, want denied with count 2", res)
	}

	clock.Advance(time.Minute)
	if res := l.Check(ctx, key, 2, time.Minute); !res.Allowed || res.Count != 1 {
		t.Fatalf("after window = %+v, want allowed count 1", res)
	}
}

func TestKey(t *testing.T) {
	if got := Key("Chat", ""); got != "chat:anonymous" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("symptoms", "user-9"); got != "symptoms:user-9" {
		t.Errorf("Key = %q", got)
	}
}
