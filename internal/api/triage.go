package api

import (
	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/request"
	"github.com/doctor-direct/ai-orchestrator/internal/services/response"
	"github.com/doctor-direct/ai-orchestrator/internal/services/triage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type symptomsBody struct {
	triage.SymptomReport
	Provider string `json:"provider,omitempty"`
}

// SymptomsView is the body of a symptom analysis response
type SymptomsView struct {
	Analysis      string         `json:"analysis,omitzero"`
	Urgency       triage.Urgency `json:"urgency"`
	RuleUrgency   triage.Urgency `json:"rule_urgency"`
	StatedUrgency triage.Urgency `json:"stated_urgency,omitzero"`
	RedFlags      []string       `json:"red_flags,omitzero"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model,omitzero"`
	Cached        bool           `json:"cached,omitzero"`
	// AnalysisError explains a missing analysis; the urgency is still valid
	AnalysisError string        `json:"analysis_error,omitzero"`
	Attempts      []AttemptView `json:"attempts,omitzero"`
}

// VitalsView is the body of a vitals evaluation response
type VitalsView struct {
	Alerts  []triage.Alert `json:"alerts"`
	Urgency triage.Urgency `json:"urgency"`
}

// TriageHandler serves symptom analysis and vitals evaluation
type TriageHandler struct {
	triage  *triage.Service
	reqSvc  *request.BaseService
	respSvc *response.BaseService
}

// NewTriageHandler wires up the triage handler
func NewTriageHandler(svc *triage.Service, reqSvc *request.BaseService, respSvc *response.BaseService) *TriageHandler {
	return &TriageHandler{triage: svc, reqSvc: reqSvc, respSvc: respSvc}
}

// Symptoms handles POST /api/ai/symptoms. A failed model call still
// returns the rule-based urgency unless the caller was rate limited.
func (h *TriageHandler) Symptoms(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)

	var body symptomsBody
	if err := c.BodyParser(&body); err != nil {
		return h.respSvc.Error(c, models.NewValidationError("invalid request body", err), reqID)
	}

	meta := h.reqSvc.AIRequest(c, models.OperationSymptoms)
	meta.Provider = body.Provider

	res, err := h.triage.Analyze(c.UserContext(), body.SymptomReport, meta)
	if err != nil {
		return h.respSvc.Error(c, err, reqID)
	}

	resp := res.Response
	if !resp.Success && resp.ErrorKind == models.ErrorKindRateLimit {
		return h.respSvc.AIError(c, resp.ErrorKind, resp.ResetAt, reqID)
	}

	view := SymptomsView{
		Analysis:      res.Analysis,
		Urgency:       res.Urgency,
		RuleUrgency:   res.RuleUrgency,
		StatedUrgency: res.StatedUrgency,
		RedFlags:      res.RedFlags,
		Provider:      resp.Provider,
		Model:         resp.Model,
		Cached:        resp.Cached,
		Attempts:      attemptViews(resp.Attempts),
	}
	if !resp.Success {
		fiberlog.Warnf("[%s] symptom analysis unavailable: %s: %s", reqID, resp.ErrorKind, resp.Error)
		view.AnalysisError = models.UserMessage(resp.ErrorKind)
	}
	return h.respSvc.Success(c, view)
}

// Vitals handles POST /api/health/vitals
func (h *TriageHandler) Vitals(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)

	var v triage.Vitals
	if err := c.BodyParser(&v); err != nil {
		return h.respSvc.Error(c, models.NewValidationError("invalid request body", err), reqID)
	}
	if v == (triage.Vitals{}) {
		return h.respSvc.Error(c, models.NewValidationError("at least one measurement is required", nil), reqID)
	}

	alerts := triage.EvaluateVitals(v)
	if alerts == nil {
		alerts = []triage.Alert{}
	}
	urgency := triage.VitalsUrgency(alerts)
	if urgency == triage.UrgencyEmergency {
		fiberlog.Warnf("[%s] critical vitals reported by %s", reqID, h.reqSvc.ClientKey(c))
	}
	return h.respSvc.Success(c, VitalsView{Alerts: alerts, Urgency: urgency})
}
