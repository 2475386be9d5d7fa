package builder

import (
	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

// WithAudit records every orchestrated call to the configured database
func (b *Builder) WithAudit(cfg models.AuditConfig) *Builder {
	cfg.Enabled = true
	b.cfg.Audit = cfg
	return b
}
