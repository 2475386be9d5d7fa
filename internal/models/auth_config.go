package models

// AuthConfig configures bearer-token verification of session JWTs
type AuthConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Secret   string `json:"-" yaml:"secret"`                             // HS256 signing secret shared with the session layer
	Issuer   string `json:"issuer,omitzero" yaml:"issuer,omitempty"`     // Checked when set
	Required bool   `json:"required,omitzero" yaml:"required,omitempty"` // Reject anonymous requests
}

// Principal is the authenticated caller extracted from a token
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitzero"`
	Role   string `json:"role,omitzero"`
}
