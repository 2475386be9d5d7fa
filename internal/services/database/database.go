package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool sizing for the audit workload: a handful of writer goroutines doing
// single-row inserts plus an occasional retention delete.
const (
	defaultMaxOpenConns    = 8
	defaultMaxIdleConns    = 4
	defaultConnMaxLifetime = 30 * time.Minute

	sqliteBusyTimeoutMs = 5000
)

// DB wraps a gorm connection to the audit database
type DB struct {
	*gorm.DB
	driverName string
}

// driver knows how to reach one database type
type driver struct {
	name string
	open func(config models.DatabaseConfig) (gorm.Dialector, error)
}

var drivers = map[models.DatabaseType]driver{
	models.PostgreSQL: {name: "postgres", open: func(c models.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(postgresDSN(c)), nil
	}},
	models.MySQL: {name: "mysql", open: func(c models.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(mysqlDSN(c)), nil
	}},
	models.SQLite: {name: "sqlite3", open: func(c models.DatabaseConfig) (gorm.Dialector, error) {
		if c.FilePath == "" {
			return nil, fmt.Errorf("file_path is required for SQLite")
		}
		return sqlite.Open(sqliteDSN(c.FilePath)), nil
	}},
	models.ClickHouse: {name: "clickhouse", open: func(c models.DatabaseConfig) (gorm.Dialector, error) {
		return clickhouse.New(clickhouse.Config{
			DSN:                    clickhouseDSN(c),
			DefaultCompression:     "LZ4",
			DefaultTableEngineOpts: "ENGINE=MergeTree() ORDER BY (created_at, id)",
		}), nil
	}},
}

// New opens the audit database selected by config.Type
func New(config models.DatabaseConfig) (*DB, error) {
	d, ok := drivers[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	dialector, err := d.open(config)
	if err != nil {
		return nil, err
	}

	gormDB, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d.name, err)
	}

	db := &DB{DB: gormDB, driverName: d.name}
	if err := db.configurePool(config); err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.name, err)
	}
	return db, nil
}

// gormConfig silences gorm's own logger; failures surface as returned
// errors. Audit rows are written one at a time, so the implicit
// per-insert transaction is skipped.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	}
}

func (db *DB) configurePool(config models.DatabaseConfig) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access %s pool: %w", db.driverName, err)
	}

	maxOpen, maxIdle, lifetime := poolLimits(config)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

// poolLimits applies configured pool sizes over the audit defaults
func poolLimits(config models.DatabaseConfig) (maxOpen, maxIdle int, lifetime time.Duration) {
	maxOpen, maxIdle, lifetime = defaultMaxOpenConns, defaultMaxIdleConns, defaultConnMaxLifetime
	if config.MaxOpenConns > 0 {
		maxOpen = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		maxIdle = config.MaxIdleConns
	}
	if config.ConnMaxLifetime > 0 {
		lifetime = time.Duration(config.ConnMaxLifetime) * time.Second
	}
	return maxOpen, min(maxIdle, maxOpen), lifetime
}

func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) Ping() error {
	if db.DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (db *DB) DriverName() string {
	return db.driverName
}

func postgresDSN(c models.DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=doctor-direct-audit",
		c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
}

func mysqlDSN(c models.DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func clickhouseDSN(c models.DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// sqliteDSN enables WAL and a busy timeout so concurrent audit writers
// wait for the lock instead of failing. Paths that already carry
// parameters are left alone.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, sqliteBusyTimeoutMs)
}
