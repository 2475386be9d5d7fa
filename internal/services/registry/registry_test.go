package registry

import (
	"testing"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

func testConfig() models.AIConfig {
	return models.AIConfig{
		DefaultProvider:  "gemini",
		FallbackProvider: "grok",
		Providers: map[string]models.ProviderConfig{
			"Gemini":    {APIKey: "g-key", Model: "gemini-2.5-flash"},
			"grok":      {APIKey: "x-key", Model: "grok-2-latest"},
			"openai":    {APIKey: "", Model: "gpt-4o"},
			"anthropic": {APIKey: "a-key", Model: "claude-3-5-sonnet-20241022"},
		},
	}
}

func TestGetProviderConfig(t *testing.T) {
	r := New(testConfig())

	tests := []struct {
		name string
		want bool
	}{
		{"gemini", true},
		{"GEMINI", true},
		{"grok", true},
		{"openai", false},
		{"mistral", false},
		{"", false},
	}
	for _, tt := range tests {
		got := r.GetProviderConfig(tt.name) != nil
		if got != tt.want {
			t.Errorf("GetProviderConfig(%q) usable = %v, want %v", tt.name, got, tt.want)
		}
	}

	pc := r.GetProviderConfig("gemini")
	if pc.Name != "gemini" {
		t.Errorf("name = %q, want normalized gemini", pc.Name)
	}
	if pc.MaxTokens != models.DefaultMaxTokens || pc.TimeoutMs != models.DefaultTimeoutMs {
		t.Errorf("defaults not applied: %+v", pc)
	}
}

func TestDefaultAndFallback(t *testing.T) {
	cfg := testConfig()
	r := New(cfg)
	if got := r.GetDefaultProvider(); got == nil || got.Name != "gemini" {
		t.Fatalf("default = %+v, want gemini", got)
	}
	if got := r.GetFallbackProvider(); got == nil || got.Name != "grok" {
		t.Fatalf("fallback = %+v, want grok", got)
	}

	// Unusable default resolves to the fallback
	cfg.Providers["Gemini"] = models.ProviderConfig{Model: "gemini-2.5-flash"}
	r = New(cfg)
	if got := r.GetDefaultProvider(); got == nil || got.Name != "grok" {
		t.Fatalf("default = %+v, want fallback grok", got)
	}

	// Neither usable
	cfg.Providers["grok"] = models.ProviderConfig{APIKey: "x-key"}
	r = New(cfg)
	if got := r.GetDefaultProvider(); got != nil {
		t.Fatalf("default = %+v, want nil", got)
	}
	if got := r.GetFallbackProvider(); got != nil {
		t.Fatalf("fallback = %+v, want nil", got)
	}
}

func TestValidateProviderConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *models.ProviderConfig
		want bool
	}{
		{"nil", nil, false},
		{"complete", &models.ProviderConfig{APIKey: "k", Model: "m"}, true},
		{"missing key", &models.ProviderConfig{Model: "m"}, false},
		{"missing model", &models.ProviderConfig{APIKey: "k"}, false},
		{"blank key", &models.ProviderConfig{APIKey: "  ", Model: "m"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateProviderConfig(tt.cfg); got != tt.want {
				t.Errorf("ValidateProviderConfig = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidates(t *testing.T) {
	r := New(testConfig())

	tests := []struct {
		name       string
		preferred  string
		want       []string
		wantStatus map[string]models.ResolutionStatus
	}{
		{
			name: "default then fallback",
			want: []string{"gemini", "grok"},
		},
		{
			name:      "preferred first",
			preferred: "Anthropic",
			want:      []string{"anthropic", "gemini", "grok"},
		},
		{
			name:      "preferred duplicate of fallback",
			preferred: "grok",
			want:      []string{"grok", "gemini"},
		},
		{
			name:       "unusable preferred is dropped",
			preferred:  "openai",
			want:       []string{"gemini", "grok"},
			wantStatus: map[string]models.ResolutionStatus{"openai": models.ResolutionDisabled},
		},
		{
			name:       "unknown preferred is dropped",
			preferred:  "mistral",
			want:       []string{"gemini", "grok"},
			wantStatus: map[string]models.ResolutionStatus{"mistral": models.ResolutionUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, resolutions := r.Candidates(tt.preferred)
			if len(got) != len(tt.want) {
				t.Fatalf("candidates = %v, want %v", names(got), tt.want)
			}
			for i := range tt.want {
				if got[i].Name != tt.want[i] {
					t.Fatalf("candidates = %v, want %v", names(got), tt.want)
				}
			}
			for provider, status := range tt.wantStatus {
				found := false
				for _, res := range resolutions {
					if res.Provider == provider {
						found = true
						if res.Status != status {
							t.Errorf("%s status = %s, want %s", provider, res.Status, status)
						}
						if res.Reason == "" {
							t.Errorf("%s has no reason", provider)
						}
					}
				}
				if !found {
					t.Errorf("no resolution recorded for %s", provider)
				}
			}
		})
	}
}

func TestCandidatesNoneUsable(t *testing.T) {
	r := New(models.AIConfig{
		DefaultProvider:  "gemini",
		FallbackProvider: "grok",
		Providers: map[string]models.ProviderConfig{
			"gemini": {Model: "gemini-2.5-flash"},
		},
	})
	got, resolutions := r.Candidates("")
	if len(got) != 0 {
		t.Fatalf("candidates = %v, want none", names(got))
	}
	if len(resolutions) != 2 {
		t.Fatalf("resolutions = %+v, want 2 entries", resolutions)
	}
	if resolutions[0].Status != models.ResolutionDisabled || resolutions[1].Status != models.ResolutionUnknown {
		t.Errorf("statuses = %s/%s, want disabled/unknown", resolutions[0].Status, resolutions[1].Status)
	}
}

func TestNamesAndUsable(t *testing.T) {
	r := New(testConfig())

	wantNames := []string{"gemini", "grok", "anthropic", "openai"}
	gotNames := r.Names()
	if len(gotNames) != len(wantNames) {
		t.Fatalf("names = %v, want %v", gotNames, wantNames)
	}
	for i := range wantNames {
		if gotNames[i] != wantNames[i] {
			t.Fatalf("names = %v, want %v", gotNames, wantNames)
		}
	}

	usable := names(r.Usable())
	if len(usable) != 3 || usable[0] != "gemini" || usable[1] != "grok" || usable[2] != "anthropic" {
		t.Errorf("usable = %v", usable)
	}

	for _, st := range r.Statuses() {
		if st.Name == "openai" && (st.Usable || st.Reason == "") {
			t.Errorf("openai status = %+v, want unusable with reason", st)
		}
		if st.Name == "gemini" && !st.Default {
			t.Errorf("gemini not flagged as default")
		}
	}
}

func names(pcs []models.ProviderConfig) []string {
	out := make([]string, len(pcs))
	for i, pc := range pcs {
		out[i] = pc.Name
	}
	return out
}
