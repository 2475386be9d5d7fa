package registry

import (
	"slices"
	"strings"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

// Registry owns provider configurations for the process lifetime. It is
// read-only after New and safe for concurrent use.
type Registry struct {
	providers    map[string]models.ProviderConfig
	names        []string
	defaultName  string
	fallbackName string
}

// ProviderStatus describes one configured provider without secrets
type ProviderStatus struct {
	Name     string `json:"name"`
	Model    string `json:"model,omitzero"`
	Usable   bool   `json:"usable"`
	Reason   string `json:"reason,omitzero"`
	Default  bool   `json:"default"`
	Fallback bool   `json:"fallback"`
}

// New builds a registry from configuration. Provider names are case-insensitive.
func New(cfg models.AIConfig) *Registry {
	r := &Registry{
		providers:    make(map[string]models.ProviderConfig, len(cfg.Providers)),
		defaultName:  normalize(cfg.DefaultProvider),
		fallbackName: normalize(cfg.FallbackProvider),
	}

	for name, pc := range cfg.Providers {
		key := normalize(name)
		pc.Name = key
		r.providers[key] = pc.WithDefaults()
		r.names = append(r.names, key)
	}

	// Default first, fallback second, the rest alphabetically
	slices.SortFunc(r.names, func(a, b string) int {
		if ra, rb := r.rank(a), r.rank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})

	return r
}

func (r *Registry) rank(name string) int {
	switch name {
	case r.defaultName:
		return 0
	case r.fallbackName:
		return 1
	default:
		return 2
	}
}

// ValidateProviderConfig reports whether cfg has both an API key and a model
func ValidateProviderConfig(cfg *models.ProviderConfig) bool {
	return cfg != nil && cfg.Usable()
}

// GetProviderConfig returns the named provider when it is configured and usable
func (r *Registry) GetProviderConfig(name string) *models.ProviderConfig {
	pc, ok := r.providers[normalize(name)]
	if !ok || !pc.Usable() {
		return nil
	}
	return &pc
}

// GetDefaultProvider returns the default provider, or the fallback when the
// default is unusable.
func (r *Registry) GetDefaultProvider() *models.ProviderConfig {
	if pc := r.GetProviderConfig(r.defaultName); pc != nil {
		return pc
	}
	return r.GetFallbackProvider()
}

// GetFallbackProvider returns the fallback provider, or nil
func (r *Registry) GetFallbackProvider() *models.ProviderConfig {
	return r.GetProviderConfig(r.fallbackName)
}

// DefaultName returns the configured default provider name
func (r *Registry) DefaultName() string { return r.defaultName }

// FallbackName returns the configured fallback provider name
func (r *Registry) FallbackName() string { return r.fallbackName }

// Resolve looks up one provider and explains the outcome
func (r *Registry) Resolve(name string, role models.ResolutionRole) (models.ProviderConfig, models.Resolution) {
	key := normalize(name)
	res := models.Resolution{Provider: key, Role: role}

	pc, ok := r.providers[key]
	if !ok {
		res.Status = models.ResolutionUnknown
		res.Reason = "provider is not configured"
		return models.ProviderConfig{}, res
	}
	if err := pc.Validate(); err != nil {
		res.Status = models.ResolutionDisabled
		res.Reason = err.Error()
		return models.ProviderConfig{}, res
	}

	res.Status = models.ResolutionResolved
	return pc, res
}

// Candidates returns the ordered providers to try for a call: the preferred
// provider when given, then the default, then the fallback. Duplicates are
// removed and every unusable entry is reported in the resolutions.
func (r *Registry) Candidates(preferred string) ([]models.ProviderConfig, []models.Resolution) {
	type want struct {
		name string
		role models.ResolutionRole
	}

	wants := make([]want, 0, 3)
	if p := normalize(preferred); p != "" {
		wants = append(wants, want{p, models.RolePreferred})
	}
	if r.defaultName != "" {
		wants = append(wants, want{r.defaultName, models.RoleDefault})
	}
	if r.fallbackName != "" {
		wants = append(wants, want{r.fallbackName, models.RoleFallback})
	}

	var (
		candidates  []models.ProviderConfig
		resolutions []models.Resolution
		seen        = make(map[string]bool, len(wants))
	)
	for _, w := range wants {
		if seen[w.name] {
			continue
		}
		seen[w.name] = true

		pc, res := r.Resolve(w.name, w.role)
		resolutions = append(resolutions, res)
		if res.Status == models.ResolutionResolved {
			candidates = append(candidates, pc)
		}
	}

	return candidates, resolutions
}

// Names returns every configured provider name in registry order
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Usable returns every usable provider in registry order
func (r *Registry) Usable() []models.ProviderConfig {
	out := make([]models.ProviderConfig, 0, len(r.names))
	for _, name := range r.names {
		if pc := r.providers[name]; pc.Usable() {
			out = append(out, pc)
		}
	}
	return out
}

// Statuses describes every configured provider
func (r *Registry) Statuses() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(r.names))
	for _, name := range r.names {
		pc := r.providers[name]
		st := ProviderStatus{
			Name:     name,
			Model:    pc.Model,
			Usable:   true,
			Default:  name == r.defaultName,
			Fallback: name == r.fallbackName,
		}
		if err := pc.Validate(); err != nil {
			st.Usable = false
			st.Reason = err.Error()
		}
		out = append(out, st)
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
