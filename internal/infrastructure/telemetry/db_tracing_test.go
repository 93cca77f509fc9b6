package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// lotRow is a minimal cost lot shape for exercising the GORM callbacks.
type lotRow struct {
	ID        uint `gorm:"primaryKey"`
	LotNumber int
	Rate      float64
	CreatedAt time.Time
}

func openLotDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&lotRow{}))
	return db
}

func newSpanRecorder() (*trace.TracerProvider, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	return tp, recorder
}

func findSpanAttr(span trace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL, "query parameters must stay out of spans unless opted in")
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestNewDBTracingPlugin(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	require.NotNil(t, plugin)
	assert.Equal(t, cfg, plugin.config)
}

func TestRegisterOtelGorm_Disabled(t *testing.T) {
	db := openLotDB(t)

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	assert.NoError(t, plugin.RegisterOtelGorm(db))
}

func TestRegisterOtelGorm_Enabled(t *testing.T) {
	db := openLotDB(t)

	plugin := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}, zap.NewNop())

	assert.NoError(t, plugin.RegisterOtelGorm(db))
}

func TestRegisterOtelGorm_FullSQL(t *testing.T) {
	db := openLotDB(t)

	plugin := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         true,
		LogFullSQL:      true,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}, zap.NewNop())

	assert.NoError(t, plugin.RegisterOtelGorm(db))
}

func TestRegisterOtelGorm_DoubleRegistration(t *testing.T) {
	db := openLotDB(t)

	plugin := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}, zap.NewNop())

	require.NoError(t, plugin.RegisterOtelGorm(db))

	// Callback names are fixed, so registering twice on the same handle
	// must fail instead of silently stacking callbacks.
	assert.Error(t, plugin.RegisterOtelGorm(db))
}

func TestStampStart(t *testing.T) {
	db := openLotDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	tx := db.WithContext(context.Background())
	plugin.stampStart(tx)

	start, ok := tx.Statement.Context.Value(queryStartTimeKey).(time.Time)
	require.True(t, ok, "start time should be stamped into the statement context")
	assert.WithinDuration(t, time.Now(), start, time.Second)
}

func TestAnnotateSpan_RowsAffectedAndTable(t *testing.T) {
	db := openLotDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "record-lots")

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	lots := []lotRow{{LotNumber: 1, Rate: 10}, {LotNumber: 2, Rate: 12}, {LotNumber: 3, Rate: 11}}
	result := db.WithContext(ctx).Create(&lots)
	require.NoError(t, result.Error)

	plugin.annotateSpan(result.Statement.DB)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	rows, ok := findSpanAttr(spans[0], "db.rows_affected")
	require.True(t, ok, "db.rows_affected should be set")
	assert.Equal(t, int64(3), rows.AsInt64())

	table, ok := findSpanAttr(spans[0], "db.sql.table")
	require.True(t, ok, "db.sql.table should be set")
	assert.Equal(t, "lot_rows", table.AsString())
}

func TestAnnotateSpan_MissIsNotAnError(t *testing.T) {
	db := openLotDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "lookup-miss")

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	var row lotRow
	tx := db.WithContext(ctx).First(&row, 99999)
	require.ErrorIs(t, tx.Error, gorm.ErrRecordNotFound)

	plugin.annotateSpan(tx)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code,
		"a lookup miss must not mark the span as failed")
}

func TestAnnotateSpan_ErrorMarksSpan(t *testing.T) {
	db := openLotDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "failing-statement")

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	tx := db.WithContext(ctx).Session(&gorm.Session{})
	_ = tx.AddError(assert.AnError)

	plugin.annotateSpan(tx)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	foundException := false
	for _, event := range spans[0].Events() {
		if event.Name == "exception" {
			foundException = true
		}
	}
	assert.True(t, foundException, "the error should be recorded on the span")
}

func TestAnnotateSpan_SlowQuery(t *testing.T) {
	db := openLotDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "slow-statement")

	cfg := DefaultDBTracingConfig()
	cfg.SlowQueryThresh = time.Nanosecond
	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	// Drive both callbacks by hand so the elapsed time is under test
	// control instead of the database's.
	tx := db.WithContext(ctx)
	plugin.stampStart(tx)
	time.Sleep(2 * time.Millisecond)
	plugin.annotateSpan(tx)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	slow, ok := findSpanAttr(spans[0], "db.slow_query")
	require.True(t, ok, "db.slow_query should be set")
	assert.True(t, slow.AsBool())

	foundWarning := false
	for _, event := range spans[0].Events() {
		if event.Name != "slow_query_warning" {
			continue
		}
		foundWarning = true
		for _, attr := range event.Attributes {
			switch attr.Key {
			case "duration_ms":
				assert.Greater(t, attr.Value.AsInt64(), int64(0))
			case "threshold_ms":
				assert.Equal(t, int64(0), attr.Value.AsInt64(), "a nanosecond threshold rounds to zero ms")
			}
		}
	}
	assert.True(t, foundWarning, "slow_query_warning event should be recorded")
}

func TestAnnotateSpan_NoRecordingSpan(t *testing.T) {
	db := openLotDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	// Without a span in context the callback must be a harmless no-op.
	plugin.annotateSpan(db.WithContext(context.Background()))

	// Same for a handle that never saw WithContext.
	plugin.annotateSpan(db)
}

func TestRegisterOtelGorm_TracesOperations(t *testing.T) {
	db := openLotDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// otelgorm resolves its tracer from the global provider, the same way
	// the worker wires it in production.
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	plugin := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "compute-pass")

	session := db.WithContext(ctx)
	require.NoError(t, session.Create(&lotRow{LotNumber: 7, Rate: 10.5}).Error)

	var found lotRow
	require.NoError(t, session.First(&found, "lot_number = ?", 7).Error)
	assert.Equal(t, 10.5, found.Rate)

	span.End()

	// otelgorm opens a child span per statement, the after callback
	// annotates it before it ends.
	spans := recorder.Ended()
	require.GreaterOrEqual(t, len(spans), 2)

	foundTable := false
	for _, s := range spans {
		if table, ok := findSpanAttr(s, "db.sql.table"); ok && table.AsString() == "lot_rows" {
			foundTable = true
		}
	}
	assert.True(t, foundTable, "statement spans should carry the table name")
}

func BenchmarkAnnotateSpan(b *testing.B) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := db.AutoMigrate(&lotRow{}); err != nil {
		b.Fatal(err)
	}

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	tx := db.WithContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		plugin.annotateSpan(tx)
	}
}
