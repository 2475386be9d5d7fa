package triage

import (
	"fmt"
)

// Vitals is one wearable reading. Nil fields were not measured.
type Vitals struct {
	HeartRate       *float64 `json:"heart_rate,omitempty"`       // bpm
	SpO2            *float64 `json:"spo2,omitempty"`             // percent
	Temperature     *float64 `json:"temperature,omitempty"`      // celsius
	Systolic        *float64 `json:"systolic,omitempty"`         // mmHg
	Diastolic       *float64 `json:"diastolic,omitempty"`        // mmHg
	RespiratoryRate *float64 `json:"respiratory_rate,omitempty"` // breaths per minute
}

// Severity of a vitals alert
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert flags one out-of-range measurement
type Alert struct {
	Metric   string   `json:"metric"`
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// band is a closed normal range with wider critical limits
type band struct {
	metric       string
	label        string
	unit         string
	criticalLow  float64
	warnLow      float64
	warnHigh     float64
	criticalHigh float64
	value        func(Vitals) *float64
}

var vitalBands = []band{
	{"heart_rate", "Heart rate", "bpm", 40, 50, 100, 130, func(v Vitals) *float64 { return v.HeartRate }},
	{"spo2", "Blood oxygen", "%", 90, 95, 100, 101, func(v Vitals) *float64 { return v.SpO2 }},
	{"temperature", "Temperature", "°C", 35, 36, 37.8, 39.5, func(v Vitals) *float64 { return v.Temperature }},
	{"systolic", "Systolic pressure", "mmHg", 80, 90, 140, 180, func(v Vitals) *float64 { return v.Systolic }},
	{"diastolic", "Diastolic pressure", "mmHg", 50, 60, 90, 120, func(v Vitals) *float64 { return v.Diastolic }},
	{"respiratory_rate", "Respiratory rate", "breaths/min", 8, 12, 20, 30, func(v Vitals) *float64 { return v.RespiratoryRate }},
}

// EvaluateVitals returns an alert for every measurement outside its normal
// range, critical when beyond the critical limit
func EvaluateVitals(v Vitals) []Alert {
	var alerts []Alert
	for _, b := range vitalBands {
		p := b.value(v)
		if p == nil {
			continue
		}
		x := *p

		var (
			sev       Severity
			direction string
		)
		switch {
		case x < b.criticalLow:
			sev, direction = SeverityCritical, "critically low"
		case x > b.criticalHigh:
			sev, direction = SeverityCritical, "critically high"
		case x < b.warnLow:
			sev, direction = SeverityWarning, "low"
		case x > b.warnHigh:
			sev, direction = SeverityWarning, "high"
		default:
			continue
		}

		alerts = append(alerts, Alert{
			Metric:   b.metric,
			Value:    x,
			Severity: sev,
			Message:  fmt.Sprintf("%s is %s (%g %s)", b.label, direction, x, b.unit),
		})
	}
	return alerts
}

// VitalsUrgency maps alerts to the urgency they warrant
func VitalsUrgency(alerts []Alert) Urgency {
	u := UrgencyLow
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			return UrgencyEmergency
		case SeverityWarning:
			u = UrgencyMedium
		}
	}
	return u
}
