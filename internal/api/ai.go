package api

import (
	"context"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/request"
	"github.com/doctor-direct/ai-orchestrator/internal/services/response"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Orchestrator runs failover and comparison calls
type Orchestrator interface {
	Call(ctx context.Context, req models.AIRequest) models.AIResponse
	Compare(ctx context.Context, req models.AIRequest, names ...string) models.CompareResponse
}

// AttemptView is the client-facing trace of one provider attempt. Vendor
// error text is never included.
type AttemptView struct {
	Provider   string                `json:"provider"`
	Outcome    models.AttemptOutcome `json:"outcome"`
	ErrorKind  models.ErrorKind      `json:"error_kind,omitzero"`
	Tries      int                   `json:"tries"`
	DurationMs int64                 `json:"duration_ms"`
}

// ResultView is the client-facing shape of a successful call
type ResultView struct {
	Content    string        `json:"content"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model,omitzero"`
	TokensUsed int           `json:"tokens_used,omitzero"`
	Cached     bool          `json:"cached,omitzero"`
	Attempts   []AttemptView `json:"attempts,omitzero"`
}

// CompareResultView is one provider's entry in a comparison
type CompareResultView struct {
	Provider   string           `json:"provider"`
	Success    bool             `json:"success"`
	Content    string           `json:"content,omitzero"`
	Model      string           `json:"model,omitzero"`
	TokensUsed int              `json:"tokens_used,omitzero"`
	ErrorKind  models.ErrorKind `json:"error_kind,omitzero"`
	Message    string           `json:"message,omitzero"`
	DurationMs int64            `json:"duration_ms"`
}

type compareBody struct {
	models.AIRequest
	Providers []string `json:"providers,omitempty"`
}

// AIHandler serves the chat and compare endpoints
type AIHandler struct {
	orchestrator Orchestrator
	reqSvc       *request.BaseService
	respSvc      *response.BaseService
}

// NewAIHandler wires up the AI handler
func NewAIHandler(o Orchestrator, reqSvc *request.BaseService, respSvc *response.BaseService) *AIHandler {
	return &AIHandler{orchestrator: o, reqSvc: reqSvc, respSvc: respSvc}
}

// Chat handles POST /api/ai/chat
func (h *AIHandler) Chat(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)

	var body models.AIRequest
	if err := c.BodyParser(&body); err != nil {
		return h.respSvc.Error(c, models.NewValidationError("invalid request body", err), reqID)
	}

	req := h.stamp(c, body, models.OperationChat)
	fiberlog.Infof("[%s] chat request from %s (preferred provider %q)", reqID, req.ClientKey, req.Provider)

	resp := h.orchestrator.Call(c.UserContext(), req)
	if !resp.Success {
		fiberlog.Warnf("[%s] chat failed: %s: %s", reqID, resp.ErrorKind, resp.Error)
		return h.respSvc.AIError(c, resp.ErrorKind, resp.ResetAt, reqID)
	}
	return h.respSvc.Success(c, resultView(resp))
}

// Compare handles POST /api/ai/compare
func (h *AIHandler) Compare(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)

	var body compareBody
	if err := c.BodyParser(&body); err != nil {
		return h.respSvc.Error(c, models.NewValidationError("invalid request body", err), reqID)
	}

	req := h.stamp(c, body.AIRequest, models.OperationCompare)
	fiberlog.Infof("[%s] compare request from %s across %v", reqID, req.ClientKey, body.Providers)

	resp := h.orchestrator.Compare(c.UserContext(), req, body.Providers...)
	if !resp.Success {
		fiberlog.Warnf("[%s] compare failed: %s: %s", reqID, resp.ErrorKind, resp.Error)
		return h.respSvc.AIError(c, resp.ErrorKind, resp.ResetAt, reqID)
	}

	results := make([]CompareResultView, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, compareResultView(r))
	}
	return h.respSvc.Success(c, fiber.Map{
		"results":  results,
		"attempts": attemptViews(resp.Attempts),
	})
}

// stamp copies the client-controlled fields of body onto a request
// carrying the caller's identity
func (h *AIHandler) stamp(c *fiber.Ctx, body models.AIRequest, operation string) models.AIRequest {
	req := h.reqSvc.AIRequest(c, operation)
	req.Prompt = body.Prompt
	req.Messages = body.Messages
	req.SystemInstruction = body.SystemInstruction
	req.Provider = body.Provider
	return req
}

func resultView(resp models.AIResponse) ResultView {
	return ResultView{
		Content:    resp.Content,
		Provider:   resp.Provider,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
		Cached:     resp.Cached,
		Attempts:   attemptViews(resp.Attempts),
	}
}

func compareResultView(resp models.AIResponse) CompareResultView {
	v := CompareResultView{
		Provider:   resp.Provider,
		Success:    resp.Success,
		Content:    resp.Content,
		Model:      resp.Model,
		TokensUsed: resp.TokensUsed,
		ErrorKind:  resp.ErrorKind,
	}
	if !resp.Success {
		v.Message = models.UserMessage(resp.ErrorKind)
	}
	for _, a := range resp.Attempts {
		v.DurationMs += a.Duration.Milliseconds()
	}
	return v
}

func attemptViews(attempts []models.Attempt) []AttemptView {
	if len(attempts) == 0 {
		return nil
	}
	views := make([]AttemptView, len(attempts))
	for i, a := range attempts {
		views[i] = AttemptView{
			Provider:   a.Provider,
			Outcome:    a.Outcome,
			ErrorKind:  a.ErrorKind,
			Tries:      a.Tries,
			DurationMs: a.Duration.Round(time.Millisecond).Milliseconds(),
		}
	}
	return views
}
