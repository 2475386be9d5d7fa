package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/metrics"
	"github.com/doctor-direct/ai-orchestrator/internal/services/providers"
	"github.com/doctor-direct/ai-orchestrator/internal/services/ratelimit"
	"github.com/doctor-direct/ai-orchestrator/internal/services/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// instantTimer fires immediately so retries do not sleep
type instantTimer struct {
	c chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 64)}
}

func (t *instantTimer) Start(time.Duration) { t.c <- time.Now() }
func (t *instantTimer) Stop()                {}
func (t *instantTimer) C() <-chan time.Time  { return t.c }

type fakeVendor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int) (models.Completion, error)
}

func (f *fakeVendor) Generate(ctx context.Context, _ models.ProviderConfig, _ models.AIRequest) (models.Completion, error) {
	n := int(f.calls.Add(1))
	return f.fn(ctx, n)
}

func replying(content string) *fakeVendor {
	return &fakeVendor{fn: func(context.Context, int) (models.Completion, error) {
		return models.Completion{Content: content, Model: "test-model", TokensUsed: 10}, nil
	}}
}

func failing(provider, msg string, retryable bool) *fakeVendor {
	return &fakeVendor{fn: func(context.Context, int) (models.Completion, error) {
		err := models.NewVendorError(provider, msg, nil)
		err.Retryable = retryable
		return models.Completion{}, err
	}}
}

func hanging() *fakeVendor {
	return &fakeVendor{fn: func(ctx context.Context, _ int) (models.Completion, error) {
		<-ctx.Done()
		return models.Completion{}, ctx.Err()
	}}
}

func provider(retries int) models.ProviderConfig {
	return models.ProviderConfig{APIKey: "key", Model: "m", RetryCount: retries, TimeoutMs: 1000}
}

func testRegistry(extra map[string]models.ProviderConfig) *registry.Registry {
	cfg := models.AIConfig{
		DefaultProvider:  "gemini",
		FallbackProvider: "grok",
		Providers: map[string]models.ProviderConfig{
			"gemini": provider(2),
			"grok":   provider(2),
		},
	}
	for name, pc := range extra {
		cfg.Providers[name] = pc
	}
	return registry.New(cfg)
}

func clients(vendors map[string]*fakeVendor) *providers.Set {
	s := providers.NewEmptySet()
	for name, v := range vendors {
		s.Register(name, v)
	}
	return s
}

func newTestOrchestrator(reg *registry.Registry, vendors map[string]*fakeVendor, opts ...Option) *Orchestrator {
	opts = append([]Option{WithRetryTimer(newInstantTimer())}, opts...)
	return New(reg, clients(vendors), opts...)
}

func chatRequest() models.AIRequest {
	return models.AIRequest{Prompt: "I have a headache", Operation: models.OperationChat, ClientKey: "10.0.0.1", RequestID: "req-1"}
}

func TestCallPrimarySucceeds(t *testing.T) {
	gemini, grok := replying("from gemini"), replying("from grok")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini, "grok": grok})

	resp := o.Call(context.Background(), chatRequest())
	if !resp.Success || resp.Provider != "gemini" || resp.Content != "from gemini" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.TokensUsed != 10 || resp.Model != "test-model" {
		t.Errorf("tokens/model = %d/%q", resp.TokensUsed, resp.Model)
	}
	if len(resp.Attempts) != 1 || resp.Attempts[0].Tries != 1 {
		t.Errorf("attempts = %+v", resp.Attempts)
	}
	if grok.calls.Load() != 0 {
		t.Error("fallback called although primary succeeded")
	}
}

func TestCallFailsOverAfterRetries(t *testing.T) {
	gemini := failing("gemini", "overloaded", true)
	grok := replying("from grok")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini, "grok": grok})

	resp := o.Call(context.Background(), chatRequest())
	if !resp.Success || resp.Provider != "grok" || resp.Content != "from grok" {
		t.Fatalf("resp = %+v", resp)
	}
	if got := gemini.calls.Load(); got != 3 {
		t.Errorf("primary called %d times, want 3 (1 + 2 retries)", got)
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("attempts = %+v", resp.Attempts)
	}
	first := resp.Attempts[0]
	if first.Outcome != models.AttemptFailed || first.ErrorKind != models.ErrorKindVendor || first.Tries != 3 {
		t.Errorf("first attempt = %+v", first)
	}
	if resp.Attempts[1].Outcome != models.AttemptSucceeded {
		t.Errorf("second attempt = %+v", resp.Attempts[1])
	}
}

func TestCallRecoversWithinRetries(t *testing.T) {
	gemini := &fakeVendor{fn: func(_ context.Context, call int) (models.Completion, error) {
		if call < 2 {
			return models.Completion{}, models.NewVendorError("gemini", "blip", nil)
		}
		return models.Completion{Content: "second time lucky"}, nil
	}}
	grok := replying("from grok")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini, "grok": grok})

	resp := o.Call(context.Background(), chatRequest())
	if resp.Provider != "gemini" || resp.Attempts[0].Tries != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if grok.calls.Load() != 0 {
		t.Error("fallback should not run")
	}
}

func TestCallNonRetryableSkipsRetries(t *testing.T) {
	gemini := failing("gemini", "status 401", false)
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini, "grok": replying("ok")})

	resp := o.Call(context.Background(), chatRequest())
	if !resp.Success || resp.Provider != "grok" {
		t.Fatalf("resp = %+v", resp)
	}
	if gemini.calls.Load() != 1 {
		t.Errorf("primary called %d times, want 1", gemini.calls.Load())
	}
}

func TestCallAllProvidersExhausted(t *testing.T) {
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{
		"gemini": failing("gemini", "primary down", true),
		"grok":   failing("grok", "secondary down", true),
	})

	resp := o.Call(context.Background(), chatRequest())
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.ErrorKind != models.ErrorKindExhausted || resp.Provider != models.ProviderNone {
		t.Errorf("kind/provider = %q/%q", resp.ErrorKind, resp.Provider)
	}
	if resp.Error != "provider grok error: secondary down" {
		t.Errorf("error = %q, want the last raw error", resp.Error)
	}
	if len(resp.Attempts) != 2 {
		t.Errorf("attempts = %+v", resp.Attempts)
	}
}

func TestCallTimeoutFailsOver(t *testing.T) {
	slow := provider(0)
	slow.TimeoutMs = 20
	reg := testRegistry(map[string]models.ProviderConfig{"gemini": slow})
	o := newTestOrchestrator(reg, map[string]*fakeVendor{"gemini": hanging(), "grok": replying("from grok")})

	start := time.Now()
	resp := o.Call(context.Background(), chatRequest())
	if !resp.Success || resp.Provider != "grok" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Attempts[0].ErrorKind != models.ErrorKindTimeout {
		t.Errorf("first attempt kind = %q, want timeout", resp.Attempts[0].ErrorKind)
	}
	if !strings.HasPrefix(resp.Attempts[0].Error, "gemini request timed out after 20ms") {
		t.Errorf("timeout message = %q", resp.Attempts[0].Error)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v", elapsed)
	}
}

func TestCallSkipsUnusableProvider(t *testing.T) {
	broken := provider(0)
	broken.APIKey = ""
	reg := testRegistry(map[string]models.ProviderConfig{"gemini": broken})
	gemini := replying("never")
	o := newTestOrchestrator(reg, map[string]*fakeVendor{"gemini": gemini, "grok": replying("from grok")})

	resp := o.Call(context.Background(), chatRequest())
	if !resp.Success || resp.Provider != "grok" {
		t.Fatalf("resp = %+v", resp)
	}
	if gemini.calls.Load() != 0 {
		t.Error("unusable provider was called")
	}
	skipped := resp.Attempts[0]
	if skipped.Outcome != models.AttemptSkipped || skipped.ErrorKind != models.ErrorKindConfiguration {
		t.Errorf("skipped attempt = %+v", skipped)
	}
}

func TestCallNoProviders(t *testing.T) {
	reg := registry.New(models.AIConfig{DefaultProvider: "gemini"})
	o := newTestOrchestrator(reg, nil)

	resp := o.Call(context.Background(), chatRequest())
	if resp.Success || resp.ErrorKind != models.ErrorKindConfiguration || resp.Provider != models.ProviderNone {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCallPreferredProvider(t *testing.T) {
	reg := testRegistry(map[string]models.ProviderConfig{"anthropic": provider(0)})
	o := newTestOrchestrator(reg, map[string]*fakeVendor{
		"gemini":    replying("from gemini"),
		"grok":      replying("from grok"),
		"anthropic": replying("from anthropic"),
	})

	req := chatRequest()
	req.Provider = "Anthropic"
	if resp := o.Call(context.Background(), req); resp.Provider != "anthropic" {
		t.Fatalf("provider = %q, want anthropic", resp.Provider)
	}
}

func TestCallValidation(t *testing.T) {
	gemini := replying("x")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini})

	resp := o.Call(context.Background(), models.AIRequest{Operation: models.OperationChat})
	if resp.Success || resp.ErrorKind != models.ErrorKindValidation {
		t.Fatalf("resp = %+v", resp)
	}
	if gemini.calls.Load() != 0 {
		t.Error("vendor called for an invalid request")
	}
}

func TestCallRateLimitedBeforeVendor(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(time.Minute),
		ratelimit.WithRules(map[string]models.RateLimitRule{models.OperationChat: {Limit: 1, WindowMs: 60000}}))
	defer limiter.Close()

	gemini := replying("ok")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini}, WithLimiter(limiter))

	if resp := o.Call(context.Background(), chatRequest()); !resp.Success {
		t.Fatalf("first call = %+v", resp)
	}
	resp := o.Call(context.Background(), chatRequest())
	if resp.Success || resp.ErrorKind != models.ErrorKindRateLimit {
		t.Fatalf("second call = %+v", resp)
	}
	if resp.ResetAt.IsZero() {
		t.Error("reset time missing")
	}
	if gemini.calls.Load() != 1 {
		t.Errorf("vendor called %d times, want 1", gemini.calls.Load())
	}

	// Other clients keep their own window
	other := chatRequest()
	other.ClientKey = "10.0.0.2"
	if resp := o.Call(context.Background(), other); !resp.Success {
		t.Fatalf("other client = %+v", resp)
	}
}

func TestCallCancelledStopsFailover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gemini := &fakeVendor{fn: func(context.Context, int) (models.Completion, error) {
		cancel()
		return models.Completion{}, context.Canceled
	}}
	grok := replying("from grok")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini, "grok": grok})

	resp := o.Call(ctx, chatRequest())
	if resp.Success {
		t.Fatal("expected failure")
	}
	if grok.calls.Load() != 0 {
		t.Error("failover continued after cancellation")
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]models.CachedResponse
	err     error
}

func (c *memoryCache) Get(_ context.Context, req models.AIRequest) (models.CachedResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return models.CachedResponse{}, false, c.err
	}
	v, ok := c.entries[req.CacheKey()]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, req models.AIRequest, resp models.CachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[req.CacheKey()] = resp
}

func TestCallUsesResponseCache(t *testing.T) {
	cache := &memoryCache{entries: map[string]models.CachedResponse{}}
	gemini := replying("fresh")
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": gemini}, WithCache(cache))

	first := o.Call(context.Background(), chatRequest())
	if first.Cached {
		t.Fatal("first call reported as cached")
	}
	second := o.Call(context.Background(), chatRequest())
	if !second.Cached || second.Content != "fresh" || second.Provider != "gemini" {
		t.Fatalf("second = %+v", second)
	}
	if gemini.calls.Load() != 1 {
		t.Errorf("vendor called %d times, want 1", gemini.calls.Load())
	}
}

func TestCallCacheErrorFallsThrough(t *testing.T) {
	cache := &memoryCache{entries: map[string]models.CachedResponse{}, err: errors.New("redis down")}
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{"gemini": replying("fresh")}, WithCache(cache))

	if resp := o.Call(context.Background(), chatRequest()); !resp.Success || resp.Cached {
		t.Fatalf("resp = %+v", resp)
	}
}

type recorded struct {
	req  models.AIRequest
	resp models.AIResponse
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recorded
}

func (r *fakeRecorder) Record(req models.AIRequest, resp models.AIResponse, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recorded{req, resp})
}

func TestCallRecordsAndMeasures(t *testing.T) {
	rec := &fakeRecorder{}
	m := metrics.New(prometheus.NewRegistry())
	o := newTestOrchestrator(testRegistry(nil), map[string]*fakeVendor{
		"gemini": failing("gemini", "down", true),
		"grok":   replying("ok"),
	}, WithRecorder(rec), WithMetrics(m))

	o.Call(context.Background(), chatRequest())

	if len(rec.records) != 1 || rec.records[0].resp.Provider != "grok" {
		t.Fatalf("records = %+v", rec.records)
	}
	if got := testutil.ToFloat64(m.ProviderRetries.WithLabelValues("gemini")); got != 2 {
		t.Errorf("gemini retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ProviderRequests.WithLabelValues("gemini", "failed")); got != 1 {
		t.Errorf("gemini failed attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CallOutcomes.WithLabelValues("chat", "success")); got != 1 {
		t.Errorf("chat successes = %v, want 1", got)
	}
}
