package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	defaultCapacity       = 1000
	defaultEmbeddingModel = "text-embedding-3-small"
)

// backend is the subset of the semantic cache used here
type backend interface {
	Get(ctx context.Context, key string) (models.CachedResponse, bool, error)
	Lookup(ctx context.Context, text string, threshold float32) (*semanticcache.Match[models.CachedResponse], error)
	SetAsync(ctx context.Context, key, text string, value models.CachedResponse) <-chan error
	Flush(ctx context.Context) error
	Close() error
}

// personalOperations carry patient details in the prompt. Their answers are
// never stored or served from the cache.
var personalOperations = map[string]bool{
	models.OperationSymptoms: true,
}

// ResponseCache serves repeated questions from earlier completions. Exact
// repeats hit by key; similar wording hits by embedding similarity when a
// threshold is configured. Entries are scoped to the operation that
// produced them.
type ResponseCache struct {
	cache     backend
	threshold float32
}

// New creates the response cache described by cfg
func New(cfg models.CacheConfig) (*ResponseCache, error) {
	fiberlog.Info("ResponseCache: Initializing semantic cache")

	threshold := cfg.SemanticThreshold
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("invalid semantic threshold %.2f; must be in [0.0, 1.0]", threshold)
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set in cache configuration")
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = defaultEmbeddingModel
	}

	backendType := cfg.Backend
	if backendType == "" {
		backendType = models.CacheBackendMemory
	}

	var (
		sc  *semanticcache.SemanticCache[string, models.CachedResponse]
		err error
	)
	switch backendType {
	case models.CacheBackendMemory:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = defaultCapacity
		}
		fiberlog.Debugf("ResponseCache: Using in-memory LRU backend with capacity=%d", capacity)
		sc, err = semanticcache.New(
			options.WithOpenAIProvider[string, models.CachedResponse](cfg.OpenAIAPIKey, embedModel),
			options.WithLRUBackend[string, models.CachedResponse](capacity),
		)

	case models.CacheBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL not set for redis backend")
		}
		fiberlog.Debug("ResponseCache: Using Redis backend")
		sc, err = semanticcache.New(
			options.WithOpenAIProvider[string, models.CachedResponse](cfg.OpenAIAPIKey, embedModel),
			options.WithRedisBackend[string, models.CachedResponse](cfg.RedisURL, 0),
		)

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: redis, memory)", backendType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create semantic cache: %w", err)
	}

	fiberlog.Infof("ResponseCache: Ready (backend=%s, threshold=%.2f)", backendType, threshold)
	return newResponseCache(sc, float32(threshold)), nil
}

func newResponseCache(b backend, threshold float32) *ResponseCache {
	return &ResponseCache{cache: b, threshold: threshold}
}

// Get returns a cached response for req. A similar match produced by a
// different provider than the one requested, or for another operation, is
// ignored.
func (rc *ResponseCache) Get(ctx context.Context, req models.AIRequest) (models.CachedResponse, bool, error) {
	if personalOperations[req.Operation] {
		return models.CachedResponse{}, false, nil
	}

	if hit, found, err := rc.cache.Get(ctx, key(req)); err != nil {
		return models.CachedResponse{}, false, err
	} else if found {
		fiberlog.Debugf("[%s] ResponseCache: Exact hit", req.RequestID)
		return hit, true, nil
	}

	if rc.threshold <= 0 {
		return models.CachedResponse{}, false, nil
	}

	text := lookupText(req)
	if text == "" {
		return models.CachedResponse{}, false, nil
	}

	match, err := rc.cache.Lookup(ctx, text, rc.threshold)
	if err != nil {
		return models.CachedResponse{}, false, err
	}
	if match == nil || match.Value.Operation != req.Operation {
		return models.CachedResponse{}, false, nil
	}
	if req.Provider != "" && !strings.EqualFold(match.Value.Provider, req.Provider) {
		return models.CachedResponse{}, false, nil
	}

	fiberlog.Debugf("[%s] ResponseCache: Similar hit", req.RequestID)
	return match.Value, true, nil
}

// Set stores resp in the background
func (rc *ResponseCache) Set(ctx context.Context, req models.AIRequest, resp models.CachedResponse) {
	if personalOperations[req.Operation] {
		return
	}
	resp.Operation = req.Operation

	errCh := rc.cache.SetAsync(context.WithoutCancel(ctx), key(req), lookupText(req), resp)
	go func() {
		if err := <-errCh; err != nil {
			fiberlog.Warnf("[%s] ResponseCache: Failed to store response: %v", req.RequestID, err)
		}
	}()
}

// Flush drops every cached response
func (rc *ResponseCache) Flush(ctx context.Context) error {
	if err := rc.cache.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush semantic cache: %w", err)
	}
	return nil
}

// Close releases the backend
func (rc *ResponseCache) Close() error {
	return rc.cache.Close()
}

// key scopes the exact-match key to the operation and to an explicitly
// requested provider
func key(req models.AIRequest) string {
	return req.Operation + "|" + strings.ToLower(req.Provider) + "|" + req.CacheKey()
}

// lookupText is the text embedded for similarity search: the system
// instruction and the latest user turn
func lookupText(req models.AIRequest) string {
	conv := req.Conversation()
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == models.RoleUser {
			if sys := req.System(); sys != "" {
				return sys + "\n\n" + conv[i].Content
			}
			return conv[i].Content
		}
	}
	return ""
}
