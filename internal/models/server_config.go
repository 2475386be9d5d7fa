package models

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port             string `json:"port,omitzero" yaml:"port"`
	AllowedOrigins   string `json:"allowed_origins,omitzero" yaml:"allowed_origins"`
	Environment      string `json:"environment,omitzero" yaml:"environment"`
	LogLevel         string `json:"log_level,omitzero" yaml:"log_level"`
	RequestTimeoutMs int    `json:"request_timeout_ms,omitzero" yaml:"request_timeout_ms,omitempty"` // Whole-request budget applied by middleware
	MetricsPath      string `json:"metrics_path,omitzero" yaml:"metrics_path,omitempty"`             // Empty disables /metrics
}
