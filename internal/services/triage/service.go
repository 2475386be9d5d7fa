package triage

import (
	"context"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Caller runs an orchestrated AI request
type Caller interface {
	Call(ctx context.Context, req models.AIRequest) models.AIResponse
}

// Result combines the model's analysis with the rule-based urgency
type Result struct {
	Analysis      string            `json:"analysis,omitempty"`
	Urgency       Urgency           `json:"urgency"`
	RuleUrgency   Urgency           `json:"rule_urgency"`
	StatedUrgency Urgency           `json:"stated_urgency,omitempty"`
	RedFlags      []string          `json:"red_flags,omitempty"`
	Response      models.AIResponse `json:"-"`
}

// Service analyzes symptom reports
type Service struct {
	caller Caller
}

// NewService creates a triage service
func NewService(caller Caller) *Service {
	return &Service{caller: caller}
}

// Analyze asks the model about report. meta carries the request identity
// (operation, client key, request ID and provider preference). The
// urgency is never lower than the red-flag rules imply, even when the
// model call fails.
func (s *Service) Analyze(ctx context.Context, report SymptomReport, meta models.AIRequest) (Result, error) {
	if err := report.Validate(); err != nil {
		return Result{}, err
	}

	assessment := AssessUrgency(report)
	if len(assessment.RedFlags) > 0 {
		fiberlog.Infof("[%s] Red flags %v, rule urgency %s", meta.RequestID, assessment.RedFlags, assessment.Urgency)
	}

	req := meta
	req.Prompt = BuildPrompt(report)
	req.SystemInstruction = SystemInstruction
	if req.Operation == "" {
		req.Operation = models.OperationSymptoms
	}

	resp := s.caller.Call(ctx, req)
	result := Result{
		Urgency:     assessment.Urgency,
		RuleUrgency: assessment.Urgency,
		RedFlags:    assessment.RedFlags,
		Response:    resp,
	}
	if !resp.Success {
		return result, nil
	}

	result.Analysis = resp.Content
	if stated, ok := StatedUrgency(resp.Content); ok {
		result.StatedUrgency = stated
		result.Urgency = MaxUrgency(result.Urgency, stated)
	}
	return result, nil
}
