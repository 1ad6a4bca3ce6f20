package database

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	// 数据库相关指标
	dbQueriesTotal  metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
)

// 请假原因、备注属于员工隐私，写入 span 前脱敏
var sensitiveColumns = regexp.MustCompile(`(?i)(leave_reason|leave_notes|notes|absent_reason)\s*=\s*'[^']*'`)

// InitDatabaseMetrics 初始化数据库指标
func InitDatabaseMetrics(meter metric.Meter) error {
	var err error

	dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	return err
}

const maxStatementLength = 500

// OTELPlugin 每条 SQL 一个 client span；指标在 InitDatabaseMetrics 之后才记录
type OTELPlugin struct {
	tracer trace.Tracer
}

func NewOTELPlugin(serviceName string) *OTELPlugin {
	if serviceName == "" {
		serviceName = "staffops"
	}
	return &OTELPlugin{tracer: otel.Tracer(serviceName + "/gorm")}
}

func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

const (
	spanKey  = "otel:span"
	startKey = "otel:start_time"
)

// Initialize 注册回调，操作名在注册时确定，before 阶段 SQL 尚未生成
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"db.select", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"db.insert", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"db.update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"db.delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"db.row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"db.raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		if err := h.before("otel:before_"+h.op, p.before(h.op)); err != nil {
			return err
		}
		if err := h.after("otel:after_"+h.op, p.after(h.op)); err != nil {
			return err
		}
	}
	return nil
}

func (p *OTELPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("db.system", db.Dialector.Name())),
		)
		db.InstanceSet(startKey, time.Now())
		db.InstanceSet(spanKey, span)
		db.Statement.Context = ctx
	}
}

func (p *OTELPlugin) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(spanKey)
		if !ok {
			return
		}
		span, ok := v.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		var elapsed float64
		if s, ok := db.InstanceGet(startKey); ok {
			if start, ok := s.(time.Time); ok {
				elapsed = time.Since(start).Seconds()
			}
		}

		if table := db.Statement.Table; table != "" {
			span.SetAttributes(attribute.String("db.table", table))
		}
		span.SetAttributes(
			semconv.DBStatement(p.statement(db)),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)

		switch {
		case db.Error == nil, errors.Is(db.Error, gorm.ErrRecordNotFound):
			span.SetStatus(codes.Ok, "")
		default:
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}

		p.record(db.Statement.Context, db, op, elapsed)
	}
}

func (p *OTELPlugin) statement(db *gorm.DB) string {
	sql := db.Statement.SQL.String()
	sql = sensitiveColumns.ReplaceAllString(sql, "$1='***'")
	if len(sql) > maxStatementLength {
		sql = sql[:maxStatementLength] + "..."
	}
	return sql
}

func (p *OTELPlugin) record(ctx context.Context, db *gorm.DB, op string, elapsed float64) {
	// 指标未初始化时（测试、OTEL_ENABLED=false）只保留 trace
	if dbQueriesTotal == nil || dbQueryDuration == nil {
		return
	}

	status := "success"
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.status", status),
		attribute.String("db.table", db.Statement.Table),
	)
	dbQueriesTotal.Add(ctx, 1, attrs)
	dbQueryDuration.Record(ctx, elapsed, attrs)
}

// Instrument 为连接注册追踪插件
func Instrument(db *gorm.DB, serviceName string) error {
	return db.Use(NewOTELPlugin(serviceName))
}
