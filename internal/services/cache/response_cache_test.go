package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/botirk38/semanticcache"
	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/triage"
)

type fakeBackend struct {
	mu      sync.Mutex
	entries map[string]models.CachedResponse
	texts   map[string]string
	similar *semanticcache.Match[models.CachedResponse]
	lookups int
	getErr  error
	stored  chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		entries: map[string]models.CachedResponse{},
		texts:   map[string]string{},
		stored:  make(chan string, 8),
	}
}

func (f *fakeBackend) Get(_ context.Context, key string) (models.CachedResponse, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.CachedResponse{}, false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeBackend) Lookup(context.Context, string, float32) (*semanticcache.Match[models.CachedResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.similar, nil
}

func (f *fakeBackend) SetAsync(_ context.Context, key, text string, value models.CachedResponse) <-chan error {
	f.mu.Lock()
	f.entries[key] = value
	f.texts[key] = text
	f.mu.Unlock()

	f.stored <- key
	errCh := make(chan error, 1)
	errCh <- nil
	close(errCh)
	return errCh
}

func (f *fakeBackend) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = map[string]models.CachedResponse{}
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func request(prompt string) models.AIRequest {
	return models.AIRequest{Prompt: prompt, SystemInstruction: "Be brief.", RequestID: "r"}
}

func waitStored(t *testing.T, b *fakeBackend) string {
	t.Helper()
	select {
	case k := <-b.stored:
		return k
	case <-time.After(time.Second):
		t.Fatal("response was not stored")
		return ""
	}
}

func TestResponseCacheExactHit(t *testing.T) {
	b := newFakeBackend()
	rc := newResponseCache(b, 0)
	ctx := context.Background()
	req := request("What helps a sore throat?")

	if _, ok, err := rc.Get(ctx, req); ok || err != nil {
		t.Fatalf("empty cache returned ok=%v err=%v", ok, err)
	}

	rc.Set(ctx, req, models.CachedResponse{Content: "Warm fluids.", Provider: "gemini"})
	waitStored(t, b)

	hit, ok, err := rc.Get(ctx, req)
	if err != nil || !ok || hit.Content != "Warm fluids." {
		t.Fatalf("hit=%+v ok=%v err=%v", hit, ok, err)
	}
	if b.lookups != 0 {
		t.Errorf("similarity lookups = %d with threshold 0, want 0", b.lookups)
	}
}

func TestResponseCacheScopesByProvider(t *testing.T) {
	b := newFakeBackend()
	rc := newResponseCache(b, 0)
	ctx := context.Background()

	req := request("What helps a sore throat?")
	rc.Set(ctx, req, models.CachedResponse{Content: "any", Provider: "gemini"})
	waitStored(t, b)

	req.Provider = "grok"
	if _, ok, _ := rc.Get(ctx, req); ok {
		t.Fatal("entry cached without a provider preference served a grok request")
	}
}

func TestResponseCacheSimilarHit(t *testing.T) {
	b := newFakeBackend()
	b.similar = &semanticcache.Match[models.CachedResponse]{
		Value: models.CachedResponse{Content: "Rest.", Provider: "gemini"},
	}
	rc := newResponseCache(b, 0.9)
	ctx := context.Background()

	hit, ok, err := rc.Get(ctx, request("how do I treat a cold"))
	if err != nil || !ok || hit.Content != "Rest." {
		t.Fatalf("hit=%+v ok=%v err=%v", hit, ok, err)
	}

	req := request("how do I treat a cold")
	req.Provider = "anthropic"
	if _, ok, _ := rc.Get(ctx, req); ok {
		t.Fatal("similar match from another provider served a pinned request")
	}
}

func symptomsRequest(report triage.SymptomReport) models.AIRequest {
	return models.AIRequest{
		Prompt:            triage.BuildPrompt(report),
		SystemInstruction: triage.SystemInstruction,
		Operation:         models.OperationSymptoms,
		ClientKey:         "user:patient-2",
		RequestID:         "r",
	}
}

func TestResponseCacheNeverServesSymptomReports(t *testing.T) {
	b := newFakeBackend()
	b.similar = &semanticcache.Match[models.CachedResponse]{
		Value: models.CachedResponse{
			Content:   "For a 34-year-old male with chest tightness, seek care now.",
			Provider:  "gemini",
			Operation: models.OperationSymptoms,
		},
	}
	rc := newResponseCache(b, 0.5)
	ctx := context.Background()

	earlier := symptomsRequest(triage.SymptomReport{Symptoms: []string{"chest tightness"}, Age: 34, Gender: "male"})
	rc.Set(ctx, earlier, models.CachedResponse{Content: "stored", Provider: "gemini"})
	if len(b.entries) != 0 {
		t.Fatalf("symptom analysis was stored: %v", b.entries)
	}

	for _, req := range []models.AIRequest{
		earlier,
		symptomsRequest(triage.SymptomReport{Symptoms: []string{"chest tightness"}, Age: 78, Gender: "female"}),
	} {
		if hit, ok, err := rc.Get(ctx, req); ok || err != nil {
			t.Fatalf("symptoms request served hit=%+v ok=%v err=%v", hit, ok, err)
		}
	}
	if b.lookups != 0 {
		t.Errorf("similarity lookups = %d for symptom reports, want 0", b.lookups)
	}
}

func TestResponseCacheScopesByOperation(t *testing.T) {
	b := newFakeBackend()
	b.similar = &semanticcache.Match[models.CachedResponse]{
		Value: models.CachedResponse{Content: "Rest.", Provider: "gemini", Operation: models.OperationCompare},
	}
	rc := newResponseCache(b, 0.9)
	ctx := context.Background()

	req := request("how do I treat a cold")
	req.Operation = models.OperationChat
	if _, ok, _ := rc.Get(ctx, req); ok {
		t.Fatal("similar match from compare served a chat request")
	}

	rc.Set(ctx, req, models.CachedResponse{Content: "Fluids.", Provider: "grok"})
	stored := waitStored(t, b)
	if b.entries[stored].Operation != models.OperationChat {
		t.Errorf("stored operation = %q, want chat", b.entries[stored].Operation)
	}

	other := req
	other.Operation = models.OperationCompare
	b.similar = nil
	if _, ok, _ := rc.Get(ctx, other); ok {
		t.Fatal("exact entry from chat served a compare request")
	}
}

func TestResponseCacheGetError(t *testing.T) {
	b := newFakeBackend()
	b.getErr = errors.New("redis down")
	rc := newResponseCache(b, 0.9)

	if _, ok, err := rc.Get(context.Background(), request("x")); ok || err == nil {
		t.Fatalf("ok=%v err=%v, want error", ok, err)
	}
}

func TestLookupTextUsesLatestUserTurn(t *testing.T) {
	req := models.AIRequest{
		SystemInstruction: "Be brief.",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "first"},
			{Role: models.RoleAssistant, Content: "reply"},
			{Role: models.RoleUser, Content: "second"},
		},
	}
	if got := lookupText(req); got != "Be brief.\n\nsecond" {
		t.Errorf("lookupText = %q", got)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.CacheConfig
	}{
		{"threshold above one", models.CacheConfig{SemanticThreshold: 1.5, OpenAIAPIKey: "k"}},
		{"missing api key", models.CacheConfig{SemanticThreshold: 0.9}},
		{"redis without url", models.CacheConfig{Backend: models.CacheBackendRedis, OpenAIAPIKey: "k"}},
		{"unknown backend", models.CacheConfig{Backend: "memcached", OpenAIAPIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
