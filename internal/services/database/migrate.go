package database

import (
	"fmt"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"gorm.io/gorm"
)

// Migrate creates the audit tables. ClickHouse gets hand-written DDL
// because AutoMigrate cannot introspect it reliably.
func Migrate(db *DB) error {
	if db.DriverName() == "clickhouse" {
		return runClickHouseMigrations(db.DB)
	}
	if err := db.AutoMigrate(&models.AIRequestLog{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", models.AIRequestLog{}.TableName(), err)
	}
	return nil
}

func runClickHouseMigrations(db *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ai_request_logs (
			id String,
			request_id String,
			operation LowCardinality(String),
			client_key String,
			provider LowCardinality(String),
			model String,
			success UInt8,
			error_kind LowCardinality(String),
			attempts Int32,
			tokens_used Int32,
			cached UInt8,
			duration_ms Int64,
			created_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (created_at, id)`,

		`ALTER TABLE ai_request_logs ADD INDEX IF NOT EXISTS idx_ai_request_logs_request_id request_id TYPE bloom_filter GRANULARITY 3`,
	}

	for _, q := range queries {
		if err := db.Exec(q).Error; err != nil {
			return fmt.Errorf("clickhouse migration failed: %w", err)
		}
	}
	return nil
}
