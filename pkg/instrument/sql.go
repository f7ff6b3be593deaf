package instrument

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// traceEventRow is the SQLSink's persisted row shape, grounded on
// internal/repository's HotmethodTask: a flat table with a TableName
// method, no ORM associations.
type traceEventRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID     uint64    `gorm:"column:task_id;index"`
	ParentID   uint64    `gorm:"column:parent_id;index"`
	Kind       string    `gorm:"column:kind;type:varchar(32)"`
	Label      string    `gorm:"column:label;type:varchar(256)"`
	WorkerID   int       `gorm:"column:worker_id"`
	Timestamp  time.Time `gorm:"column:timestamp;index"`
	DurationNS int64     `gorm:"column:duration_ns"`
	Err        string    `gorm:"column:err;type:text"`
}

// TableName returns the table name for traceEventRow.
func (traceEventRow) TableName() string {
	return "trace_events"
}

// SQLSink persists TraceEvents through GORM, selecting a dialector the
// same way repository.NewGormDB does (driver name picked by config, not
// sniffed from the DSN).
type SQLSink struct {
	db *gorm.DB
}

// NewSQLSink opens a database connection per driver/dsn and migrates the
// trace_events table. driver is one of "mysql", "postgres" or "sqlite".
func NewSQLSink(driver, dsn string, maxConns int) (*SQLSink, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, apperrors.New(apperrors.CodeConfigError, fmt.Sprintf("unsupported sql sink driver: %s", driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open trace sink database", err)
	}

	if maxConns > 0 {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(maxConns)
			sqlDB.SetMaxIdleConns(maxConns / 2)
		}
	}

	if err := db.AutoMigrate(&traceEventRow{}); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate trace_events table", err)
	}

	return newSQLSink(db)
}

// NewSQLSinkFromDB wraps an already-open *sql.DB (e.g. one backed by
// sqlmock in tests) in a SQLSink, picking the dialector by driver name the
// same way NewSQLSink does for a DSN. Unlike NewSQLSink it does not
// AutoMigrate: a test double has no schema to introspect, and a real
// pre-provisioned connection is assumed already migrated.
func NewSQLSinkFromDB(driver string, conn *sql.DB) (*SQLSink, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true})
	case "postgres", "postgresql":
		dialector = postgres.New(postgres.Config{Conn: conn})
	default:
		return nil, apperrors.New(apperrors.CodeConfigError, fmt.Sprintf("unsupported sql sink driver: %s", driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open trace sink database", err)
	}
	return newSQLSink(db)
}

// newSQLSink installs the OpenTelemetry tracing plugin the same way
// repository.NewGormDB did and wraps db.
func newSQLSink(db *gorm.DB) (*SQLSink, error) {
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to install gorm tracing plugin", err)
	}

	return &SQLSink{db: db}, nil
}

// Record inserts ev as a row.
func (s *SQLSink) Record(ctx context.Context, ev TraceEvent) error {
	row := traceEventRow{
		TaskID:     ev.TaskID,
		ParentID:   ev.ParentID,
		Kind:       string(ev.Kind),
		Label:      ev.Label,
		WorkerID:   ev.WorkerID,
		Timestamp:  ev.Timestamp,
		DurationNS: ev.Duration.Nanoseconds(),
		Err:        ev.Err,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to insert trace event", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get underlying sql.DB", err)
	}
	return sqlDB.Close()
}
