package orchestrator

import (
	"context"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
)

// Compare asks several providers the same question concurrently. With no
// names it uses every usable provider. Successful results keep the order in
// which the providers were configured or requested.
func (o *Orchestrator) Compare(ctx context.Context, req models.AIRequest, names ...string) models.CompareResponse {
	start := time.Now()
	resp := o.compare(ctx, req, names)

	summary := models.AIResponse{
		Success:   resp.Success,
		ErrorKind: resp.ErrorKind,
		Error:     resp.Error,
		Provider:  models.ProviderNone,
		Attempts:  resp.Attempts,
	}
	for _, r := range resp.Results {
		summary.TokensUsed += r.TokensUsed
	}
	if len(resp.Results) > 0 {
		summary.Provider = resp.Results[0].Provider
		summary.Model = resp.Results[0].Model
	}
	o.finish(req, summary, time.Since(start))

	return resp
}

func (o *Orchestrator) compare(ctx context.Context, req models.AIRequest, names []string) models.CompareResponse {
	if err := req.Validate(); err != nil {
		return compareFailure(err.Error(), models.ErrorKindValidation, nil)
	}

	if limited, ok := o.checkRateLimit(ctx, req); ok {
		resp := compareFailure(limited.Error, models.ErrorKindRateLimit, nil)
		resp.ResetAt = limited.ResetAt
		return resp
	}

	targets, attempts := o.compareTargets(names)
	if len(targets) == 0 {
		return compareFailure("no AI provider is configured", models.ErrorKindConfiguration, attempts)
	}

	type outcome struct {
		completion models.Completion
		attempt    models.Attempt
	}
	outcomes := make([]outcome, len(targets))

	var g errgroup.Group
	for i, cfg := range targets {
		g.Go(func() error {
			c, a := o.attempt(ctx, cfg, req)
			outcomes[i] = outcome{completion: c, attempt: a}
			return nil
		})
	}
	_ = g.Wait()

	resp := models.CompareResponse{Attempts: attempts}
	var lastErr string
	for i, out := range outcomes {
		resp.Attempts = append(resp.Attempts, out.attempt)
		if out.attempt.Outcome != models.AttemptSucceeded {
			lastErr = out.attempt.Error
			fiberlog.Warnf("[%s] Compare: provider %s failed (%s): %s",
				req.RequestID, targets[i].Name, out.attempt.ErrorKind, out.attempt.Error)
			continue
		}
		resp.Results = append(resp.Results, models.AIResponse{
			Success:    true,
			Content:    out.completion.Content,
			Provider:   targets[i].Name,
			Model:      out.completion.Model,
			TokensUsed: out.completion.TokensUsed,
			Attempts:   []models.Attempt{out.attempt},
		})
	}

	if len(resp.Results) == 0 {
		return compareFailure(lastErr, models.ErrorKindExhausted, resp.Attempts)
	}

	resp.Success = true
	return resp
}

// compareTargets resolves requested names, or every usable provider
func (o *Orchestrator) compareTargets(names []string) ([]models.ProviderConfig, []models.Attempt) {
	if len(names) == 0 {
		return o.registry.Usable(), nil
	}

	var (
		targets     []models.ProviderConfig
		resolutions []models.Resolution
		seen        = make(map[string]bool, len(names))
	)
	for _, name := range names {
		pc, res := o.registry.Resolve(name, models.RolePreferred)
		if seen[res.Provider] {
			continue
		}
		seen[res.Provider] = true

		if res.Status != models.ResolutionResolved {
			resolutions = append(resolutions, res)
			continue
		}
		targets = append(targets, pc)
	}
	return targets, skippedAttempts(resolutions)
}

func compareFailure(msg string, kind models.ErrorKind, attempts []models.Attempt) models.CompareResponse {
	if msg == "" {
		msg = models.UserMessage(kind)
	}
	return models.CompareResponse{
		Success:   false,
		Error:     msg,
		ErrorKind: kind,
		Attempts:  attempts,
	}
}
