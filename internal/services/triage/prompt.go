package triage

import (
	"strconv"
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/utils"
	"github.com/valyala/bytebufferpool"
)

const maxSymptoms = 20

// SystemInstruction frames every symptom analysis
const SystemInstruction = `You are a medical triage assistant for a telemedicine service.
Give general health information, never a diagnosis. Structure the answer as:
1. Possible causes (most likely first)
2. Recommended next steps and self-care
3. Warning signs that need immediate care
4. Urgency: one of low, medium, high or emergency
Always recommend consulting a licensed healthcare professional.`

// SymptomReport is what a patient submits for analysis
type SymptomReport struct {
	Symptoms       []string `json:"symptoms"`
	Age            int      `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
}

// Validate checks the report is usable
func (r SymptomReport) Validate() error {
	n := 0
	for _, s := range r.Symptoms {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	switch {
	case n == 0:
		return models.NewValidationError("at least one symptom is required", nil)
	case n > maxSymptoms:
		return models.NewValidationError("at most "+strconv.Itoa(maxSymptoms)+" symptoms are accepted", nil)
	case r.Age < 0 || r.Age > 130:
		return models.NewValidationError("age must be between 0 and 130", nil)
	}
	return nil
}

// BuildPrompt renders the report as the user turn of an analysis request
func BuildPrompt(r SymptomReport) string {
	return utils.BuildString(func(buf *bytebufferpool.ByteBuffer) {
		buf.WriteString("Please analyze the following symptoms.\n\nSymptoms:\n")
		for _, s := range r.Symptoms {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			buf.WriteString("- ")
			buf.WriteString(s)
			buf.WriteByte('\n')
		}

		if r.Age > 0 {
			buf.WriteString("Age: ")
			buf.WriteString(strconv.Itoa(r.Age))
			buf.WriteByte('\n')
		}
		writeField(buf, "Gender", r.Gender)
		writeField(buf, "Duration", r.Duration)
		writeField(buf, "Additional information", r.AdditionalInfo)
	})
}

func writeField(buf *bytebufferpool.ByteBuffer, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	buf.WriteString(label)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteByte('\n')
}
