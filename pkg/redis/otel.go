package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type instruments struct {
	commands metric.Int64Counter
	duration metric.Float64Histogram
}

var redisMetrics *instruments

// InitRedisMetrics 未调用时 hook 只产出 span
func InitRedisMetrics(meter metric.Meter) error {
	commands, err := meter.Int64Counter("redis.commands.total",
		metric.WithDescription("Redis commands by name and outcome"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}
	duration, err := meter.Float64Histogram("redis.command.duration",
		metric.WithDescription("Redis command latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5),
	)
	if err != nil {
		return err
	}
	redisMetrics = &instruments{commands: commands, duration: duration}
	return nil
}

func (m *instruments) observe(ctx context.Context, command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("redis.command", command),
		attribute.String("redis.outcome", outcome),
	)
	m.commands.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// commandHook 实现 redis.Hook
type commandHook struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func newCommandHook(serviceName string, db int) *commandHook {
	return &commandHook{
		tracer: otel.Tracer(serviceName + "/redis"),
		attrs:  []attribute.KeyValue{semconv.DBSystemRedis, semconv.DBRedisDBIndex(db)},
	}
}

func (h *commandHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, span := h.tracer.Start(ctx, "redis.dial",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(attribute.String("net.peer.name", addr)),
		)
		defer span.End()

		c, err := next(ctx, network, addr)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dial failed")
		}
		return c, err
	}
}

func (h *commandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.Name()
		ctx, span := h.tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(semconv.DBOperation(name)),
		)
		if key := keyPattern(cmd.Args()); key != "" {
			span.SetAttributes(attribute.String("redis.key_pattern", key))
		}

		begin := time.Now()
		err := next(ctx, cmd)
		outcome := outcomeOf(err)
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		redisMetrics.observe(ctx, name, outcome, time.Since(begin))
		return err
	}
}

func (h *commandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Name())
		}

		ctx, span := h.tracer.Start(ctx, "pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(attribute.StringSlice("redis.pipeline.commands", names)),
		)

		begin := time.Now()
		err := next(ctx, cmds)
		outcome := outcomeOf(err)
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		redisMetrics.observe(ctx, "pipeline", outcome, time.Since(begin))
		return err
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

// keyPattern 只保留 前缀:类别，worker_id 与消息 ID 不进入链路属性
func keyPattern(args []interface{}) string {
	if len(args) < 2 {
		return ""
	}
	key, ok := args[1].(string)
	if !ok {
		return ""
	}
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return key
	}
	return parts[0] + ":" + parts[1] + ":*"
}

// InstrumentClient 挂载追踪 Hook
func InstrumentClient(client *redis.Client, serviceName string, db int) {
	client.AddHook(newCommandHook(serviceName, db))
}
