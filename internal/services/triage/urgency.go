package triage

import (
	"regexp"
	"slices"
	"strings"
)

// Urgency ranks how soon a patient should seek care
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

var urgencyRank = map[Urgency]int{
	UrgencyLow:       1,
	UrgencyMedium:    2,
	UrgencyHigh:      3,
	UrgencyEmergency: 4,
}

// Rank orders urgencies; unknown values rank 0
func (u Urgency) Rank() int {
	return urgencyRank[u]
}

// MaxUrgency returns the more urgent of a and b
func MaxUrgency(a, b Urgency) Urgency {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseUrgency reads an urgency name, case-insensitively
func ParseUrgency(s string) (Urgency, bool) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	_, ok := urgencyRank[u]
	return u, ok
}

// redFlags maps symptom phrases to the minimum urgency they imply
var redFlags = map[string]Urgency{
	"chest pain":              UrgencyEmergency,
	"difficulty breathing":    UrgencyEmergency,
	"shortness of breath":     UrgencyEmergency,
	"can't breathe":           UrgencyEmergency,
	"unconscious":             UrgencyEmergency,
	"loss of consciousness":   UrgencyEmergency,
	"seizure":                 UrgencyEmergency,
	"stroke":                  UrgencyEmergency,
	"face drooping":           UrgencyEmergency,
	"slurred speech":          UrgencyEmergency,
	"severe bleeding":         UrgencyEmergency,
	"suicidal":                UrgencyEmergency,
	"anaphylaxis":             UrgencyEmergency,
	"coughing blood":          UrgencyHigh,
	"vomiting blood":          UrgencyHigh,
	"severe headache":         UrgencyHigh,
	"stiff neck":              UrgencyHigh,
	"high fever":              UrgencyHigh,
	"severe abdominal pain":   UrgencyHigh,
	"confusion":               UrgencyHigh,
	"blurred vision":          UrgencyHigh,
	"fainting":                UrgencyHigh,
	"fever":                   UrgencyMedium,
	"vomiting":                UrgencyMedium,
	"diarrhea":                UrgencyMedium,
	"dizziness":               UrgencyMedium,
	"rash":                    UrgencyMedium,
	"persistent cough":        UrgencyMedium,
	"painful urination":       UrgencyMedium,
	"ear pain":                UrgencyMedium,
	"abdominal pain":          UrgencyMedium,
	"swelling":                UrgencyMedium,
	"numbness":                UrgencyMedium,
	"palpitations":            UrgencyMedium,
	"dehydration":             UrgencyMedium,
	"migraine":                UrgencyMedium,
	"wheezing":                UrgencyMedium,
	"unexplained weight loss": UrgencyMedium,
}

// redFlagPatterns matches each phrase as whole words, so "heatstroke"
// does not raise "stroke"
var redFlagPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(redFlags))
	for phrase := range redFlags {
		patterns[phrase] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return patterns
}()

// Assessment is the rule-based urgency of a report
type Assessment struct {
	Urgency  Urgency  `json:"urgency"`
	RedFlags []string `json:"red_flags,omitempty"`
}

// AssessUrgency scans the report's symptoms and notes for red-flag phrases.
// Reports with no match are low urgency. Negation is not understood:
// "no chest pain" still counts as chest pain.
func AssessUrgency(r SymptomReport) Assessment {
	text := strings.ToLower(strings.Join(r.Symptoms, " \n ") + " \n " + r.AdditionalInfo)

	a := Assessment{Urgency: UrgencyLow}
	for phrase, u := range redFlags {
		if !redFlagPatterns[phrase].MatchString(text) {
			continue
		}
		a.RedFlags = append(a.RedFlags, phrase)
		a.Urgency = MaxUrgency(a.Urgency, u)
	}
	slices.Sort(a.RedFlags)

	// Infants and the elderly are seen sooner
	if (r.Age > 0 && r.Age < 2) || r.Age >= 75 {
		a.Urgency = MaxUrgency(a.Urgency, UrgencyMedium)
	}
	return a
}

var statedUrgency = regexp.MustCompile(`(?i)urgency(?:\s+level)?\s*[:\-]?\s*\**\s*(low|medium|moderate|high|emergency)`)

// StatedUrgency extracts an urgency the model wrote in its answer
func StatedUrgency(text string) (Urgency, bool) {
	m := statedUrgency.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if strings.EqualFold(m[1], "moderate") {
		return UrgencyMedium, true
	}
	return ParseUrgency(m[1])
}
