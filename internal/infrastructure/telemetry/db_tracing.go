// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database span creation.
type DBTracingConfig struct {
	Enabled         bool          // Enable database tracing
	LogFullSQL      bool          // Include query parameters in span SQL, keep off outside development
	SlowQueryThresh time.Duration // Queries above this get a slow_query_warning event
	DBSystem        string        // Database system name reported on spans
}

// DefaultDBTracingConfig returns the defaults for database tracing.
// Parameters are stripped from recorded SQL unless LogFullSQL is set.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wraps otelgorm so every repository call inside a compute
// pass shows up as a child span, annotated with rows affected, the table
// touched, and a slow query event when the threshold is crossed.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm installs otelgorm on the GORM instance together with the
// timing and span annotation callbacks. A no-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	// The before callbacks stamp a start time into the statement context,
	// the after callbacks read it back to detect slow queries. otelgorm
	// opens the span, these callbacks only decorate it. They must register
	// ahead of otelgorm so the after callbacks run while its span is still
	// recording.
	registrations := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
		fn       func(*gorm.DB)
	}{
		{"otel_timing:before_create", db.Callback().Create().Before("gorm:create").Register, p.stampStart},
		{"otel_timing:before_query", db.Callback().Query().Before("gorm:query").Register, p.stampStart},
		{"otel_timing:before_update", db.Callback().Update().Before("gorm:update").Register, p.stampStart},
		{"otel_timing:before_delete", db.Callback().Delete().Before("gorm:delete").Register, p.stampStart},
		{"otel_timing:before_row", db.Callback().Row().Before("gorm:row").Register, p.stampStart},
		{"otel_timing:before_raw", db.Callback().Raw().Before("gorm:raw").Register, p.stampStart},
		{"otel_span:after_create", db.Callback().Create().After("gorm:create").Register, p.annotateSpan},
		{"otel_span:after_query", db.Callback().Query().After("gorm:query").Register, p.annotateSpan},
		{"otel_span:after_update", db.Callback().Update().After("gorm:update").Register, p.annotateSpan},
		{"otel_span:after_delete", db.Callback().Delete().After("gorm:delete").Register, p.annotateSpan},
		{"otel_span:after_row", db.Callback().Row().After("gorm:row").Register, p.annotateSpan},
		{"otel_span:after_raw", db.Callback().Raw().After("gorm:raw").Register, p.annotateSpan},
	}
	for _, r := range registrations {
		if err := r.register(r.name, r.fn); err != nil {
			return err
		}
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// stampStart records the query start time in the statement context.
func (p *DBTracingPlugin) stampStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotateSpan decorates the active span after each database operation.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// A lookup miss is an answer, not a failure. Everything else marks
	// the span as errored.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

// queryStartTimeKey carries the query start time between the before and
// after callbacks of a single statement.
const queryStartTimeKey contextKey = "otel_query_start_time"
