package models

import "time"

// AuditConfig controls asynchronous recording of orchestrated calls
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	Workers    int  `yaml:"workers,omitempty" json:"workers,omitzero"`
	BufferSize int  `yaml:"buffer_size,omitempty" json:"buffer_size,omitzero"`

	// Records older than RetentionDays are pruned every PruneIntervalMinutes; 0 keeps them forever
	RetentionDays        int `yaml:"retention_days,omitempty" json:"retention_days,omitzero"`
	PruneIntervalMinutes int `yaml:"prune_interval_minutes,omitempty" json:"prune_interval_minutes,omitzero"`
}

// AIRequestLog is the persisted audit record of one orchestrated call.
// Prompt content is never stored.
type AIRequestLog struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	RequestID  string    `gorm:"size:64;index" json:"request_id"`
	Operation  string    `gorm:"size:32;index" json:"operation"`
	ClientKey  string    `gorm:"size:255;index" json:"client_key"`
	Provider   string    `gorm:"size:32;index" json:"provider"`
	Model      string    `gorm:"size:128" json:"model,omitzero"`
	Success    bool      `gorm:"not null;index" json:"success"`
	ErrorKind  string    `gorm:"size:32" json:"error_kind,omitzero"`
	Attempts   int       `gorm:"not null;default:0" json:"attempts"`
	TokensUsed int       `gorm:"not null;default:0" json:"tokens_used"`
	Cached     bool      `gorm:"not null;default:false" json:"cached"`
	DurationMs int64     `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// TableName pins the table name across drivers
func (AIRequestLog) TableName() string {
	return "ai_request_logs"
}
