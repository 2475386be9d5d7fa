package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/metrics"
	"github.com/doctor-direct/ai-orchestrator/internal/services/providers"
	"github.com/doctor-direct/ai-orchestrator/internal/services/ratelimit"
	"github.com/doctor-direct/ai-orchestrator/internal/services/registry"
	"github.com/doctor-direct/ai-orchestrator/internal/services/resilience"

	"github.com/cenkalti/backoff/v4"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ClientResolver returns the vendor client for a provider
type ClientResolver interface {
	ClientFor(cfg models.ProviderConfig) (providers.Client, error)
}

// ResponseCache stores successful completions by request content
type ResponseCache interface {
	Get(ctx context.Context, req models.AIRequest) (models.CachedResponse, bool, error)
	Set(ctx context.Context, req models.AIRequest, resp models.CachedResponse)
}

// Recorder receives one record per finished call
type Recorder interface {
	Record(req models.AIRequest, resp models.AIResponse, duration time.Duration)
}

// Orchestrator routes AI requests through rate limiting, provider
// resolution and per-provider timeout and retry, failing over in order.
type Orchestrator struct {
	registry *registry.Registry
	clients  ClientResolver
	limiter  *ratelimit.Limiter
	cache    ResponseCache
	recorder Recorder
	metrics  *metrics.Metrics
	retry    models.RetryConfig
	timer    backoff.Timer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLimiter enables caller-side rate limiting per operation
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithCache enables the response cache for Call
func WithCache(c ResponseCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRecorder sets the audit recorder
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRetryConfig sets the backoff shared by all providers
func WithRetryConfig(cfg models.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

// WithRetryTimer replaces the timer used between retries
func WithRetryTimer(t backoff.Timer) Option {
	return func(o *Orchestrator) { o.timer = t }
}

// New creates an orchestrator
func New(reg *registry.Registry, clients ClientResolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		clients:  clients,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.retry = o.retry.WithDefaults()
	return o
}

// Registry exposes the provider registry
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Call sends req to the first provider that succeeds, in candidate order.
// It never returns an error; failures are described by the response.
func (o *Orchestrator) Call(ctx context.Context, req models.AIRequest) models.AIResponse {
	start := time.Now()
	resp := o.call(ctx, req)
	o.finish(req, resp, time.Since(start))
	return resp
}

func (o *Orchestrator) call(ctx context.Context, req models.AIRequest) models.AIResponse {
	if err := req.Validate(); err != nil {
		return failure(err, models.ErrorKindValidation, nil)
	}

	if resp, limited := o.checkRateLimit(ctx, req); limited {
		return resp
	}

	if cached, ok := o.lookupCache(ctx, req); ok {
		return cached
	}

	candidates, resolutions := o.registry.Candidates(req.Provider)
	attempts := skippedAttempts(resolutions)

	if len(candidates) == 0 {
		fiberlog.Errorf("[%s] No usable AI provider configured", req.RequestID)
		err := models.NewConfigurationError("no AI provider is configured", nil)
		return failure(err, models.ErrorKindConfiguration, attempts)
	}

	var lastErr error
	for _, cfg := range candidates {
		completion, attempt := o.attempt(ctx, cfg, req)
		attempts = append(attempts, attempt)

		if attempt.Outcome == models.AttemptSucceeded {
			if len(attempts) > 1 {
				fiberlog.Infof("[%s] Served by %s after %d earlier attempt(s)", req.RequestID, cfg.Name, len(attempts)-1)
			}
			resp := models.AIResponse{
				Success:    true,
				Content:    completion.Content,
				Provider:   cfg.Name,
				Model:      completion.Model,
				TokensUsed: completion.TokensUsed,
				Attempts:   attempts,
			}
			o.storeCache(ctx, req, resp)
			return resp
		}

		lastErr = errors.New(attempt.Error)
		fiberlog.Warnf("[%s] Provider %s failed (%s): %s", req.RequestID, cfg.Name, attempt.ErrorKind, attempt.Error)

		if ctx.Err() != nil {
			break
		}
	}

	return failure(lastErr, models.ErrorKindExhausted, attempts)
}

// attempt runs one provider under its timeout and retry policy
func (o *Orchestrator) attempt(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, models.Attempt) {
	start := time.Now()
	attempt := models.Attempt{Provider: cfg.Name}

	client, err := o.clients.ClientFor(cfg)
	if err != nil {
		attempt.Outcome = models.AttemptFailed
		attempt.ErrorKind = kindOf(err)
		attempt.Error = err.Error()
		o.metrics.ObserveAttempt(cfg.Name, string(attempt.Outcome), time.Since(start))
		return models.Completion{}, attempt
	}

	policy := resilience.PolicyFrom(o.retry, cfg.RetryCount)
	policy.Timer = o.timer
	policy.OnRetry = func(n int, err error, delay time.Duration) {
		fiberlog.Warnf("[%s] %s attempt %d failed, retrying in %v: %v", req.RequestID, cfg.Name, n, delay, err)
		o.metrics.ObserveRetry(cfg.Name)
	}

	timeoutMsg := fmt.Sprintf("%s request timed out after %dms", cfg.Name, cfg.TimeoutMs)
	completion, tries, err := resilience.RetryN(ctx, policy, func(ctx context.Context) (models.Completion, error) {
		return resilience.WithTimeout(ctx, cfg.Timeout(), timeoutMsg, func(ctx context.Context) (models.Completion, error) {
			return client.Generate(ctx, cfg, req)
		})
	})

	attempt.Tries = tries
	attempt.Duration = time.Since(start)
	if err != nil {
		attempt.Outcome = models.AttemptFailed
		attempt.ErrorKind = kindOf(err)
		attempt.Error = err.Error()
	} else {
		attempt.Outcome = models.AttemptSucceeded
	}

	o.metrics.ObserveAttempt(cfg.Name, string(attempt.Outcome), attempt.Duration)
	return completion, attempt
}

func (o *Orchestrator) checkRateLimit(ctx context.Context, req models.AIRequest) (models.AIResponse, bool) {
	if o.limiter == nil || req.Operation == "" {
		return models.AIResponse{}, false
	}

	res, ruled := o.limiter.CheckOperation(ctx, req.Operation, req.ClientKey)
	if !ruled || res.Allowed {
		return models.AIResponse{}, false
	}

	fiberlog.Warnf("[%s] Rate limit exceeded for %s on %s, resets at %s",
		req.RequestID, req.ClientKey, req.Operation, res.ResetTime.Format(time.RFC3339))
	o.metrics.ObserveRateLimited(req.Operation)

	resp := failure(models.NewRateLimitError(req.Operation), models.ErrorKindRateLimit, nil)
	resp.ResetAt = res.ResetTime
	return resp, true
}

func (o *Orchestrator) lookupCache(ctx context.Context, req models.AIRequest) (models.AIResponse, bool) {
	if o.cache == nil {
		return models.AIResponse{}, false
	}

	hit, ok, err := o.cache.Get(ctx, req)
	switch {
	case err != nil:
		fiberlog.Warnf("[%s] Response cache lookup failed: %v", req.RequestID, err)
		o.metrics.ObserveCache("error")
		return models.AIResponse{}, false
	case !ok:
		o.metrics.ObserveCache("miss")
		return models.AIResponse{}, false
	}

	o.metrics.ObserveCache("hit")
	fiberlog.Debugf("[%s] Response cache hit (provider %s)", req.RequestID, hit.Provider)
	return models.AIResponse{
		Success:    true,
		Content:    hit.Content,
		Provider:   hit.Provider,
		Model:      hit.Model,
		TokensUsed: hit.TokensUsed,
		Cached:     true,
	}, true
}

func (o *Orchestrator) storeCache(ctx context.Context, req models.AIRequest, resp models.AIResponse) {
	if o.cache == nil {
		return
	}
	o.cache.Set(ctx, req, models.CachedResponse{
		Content:    resp.Content,
		Provider:   resp.Provider,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
		Operation:  req.Operation,
		CreatedAt:  time.Now(),
	})
}

func (o *Orchestrator) finish(req models.AIRequest, resp models.AIResponse, d time.Duration) {
	result := "success"
	if !resp.Success {
		result = string(resp.ErrorKind)
	}
	o.metrics.ObserveCall(req.Operation, result)

	if o.recorder != nil {
		o.recorder.Record(req, resp, d)
	}
}

func skippedAttempts(resolutions []models.Resolution) []models.Attempt {
	var attempts []models.Attempt
	for _, res := range resolutions {
		if res.Status == models.ResolutionResolved {
			continue
		}
		attempts = append(attempts, models.Attempt{
			Provider:  res.Provider,
			Outcome:   models.AttemptSkipped,
			ErrorKind: models.ErrorKindConfiguration,
			Error:     res.Reason,
		})
	}
	return attempts
}

func failure(err error, kind models.ErrorKind, attempts []models.Attempt) models.AIResponse {
	msg := models.UserMessage(kind)
	if err != nil {
		msg = err.Error()
	}
	return models.AIResponse{
		Success:   false,
		Error:     msg,
		ErrorKind: kind,
		Provider:  models.ProviderNone,
		Attempts:  attempts,
	}
}

// kindOf classifies an attempt error, treating bare deadline errors as timeouts
func kindOf(err error) models.ErrorKind {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	return models.ErrorKindInternal
}
