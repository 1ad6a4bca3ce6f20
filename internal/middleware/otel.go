package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	respSize metric.Int64Histogram
	inflight metric.Int64UpDownCounter
}

// InitMetrics 之前为 nil，中间件只做链路追踪
var httpMetrics *httpInstruments

// InitMetrics 注册 HTTP 指标，route 维度使用注册的路由模板而不是原始路径
func InitMetrics(meter metric.Meter) error {
	m := &httpInstruments{}
	var err error

	if m.requests, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if m.duration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	); err != nil {
		return err
	}
	if m.respSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}
	if m.inflight, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("In-flight HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	httpMetrics = m
	return nil
}

// headerCarrier 让 otel propagator 读取 hertz 请求头
type headerCarrier struct {
	h *protocol.RequestHeader
}

func (hc headerCarrier) Get(key string) string {
	return string(hc.h.Peek(key))
}

func (hc headerCarrier) Set(key, value string) {
	hc.h.Set(key, value)
}

func (hc headerCarrier) Keys() []string {
	var keys []string
	hc.h.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

// routeOf 未命中路由时返回 unmatched，防止扫描请求撑爆指标基数
func routeOf(c *app.RequestContext) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// OpenTelemetryMiddleware 不使用 hertz tracer 时的替代实现
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer("staffops-http")

	return func(ctx context.Context, c *app.RequestContext) {
		begin := time.Now()
		m := httpMetrics
		if m != nil {
			m.inflight.Add(ctx, 1)
			defer m.inflight.Add(ctx, -1)
		}

		ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{h: &c.Request.Header})

		method := string(c.Method())
		route := routeOf(c)
		spanCtx, span := tracer.Start(ctx, method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(method),
				semconv.HTTPRoute(route),
				attribute.String("http.user_agent", strings.ToValidUTF8(string(c.UserAgent()), "")),
			),
		)
		defer span.End()

		if rid := c.Response.Header.Get(RequestIDHeader); rid != "" {
			span.SetAttributes(attribute.String("http.request_id", rid))
		}

		c.Next(spanCtx)

		// 鉴权在下游，结束后才拿得到身份
		if workerID, ok := GetUserID(spanCtx, c); ok {
			span.SetAttributes(
				attribute.String("enduser.id", workerID),
				attribute.Bool("enduser.admin", IsAdmin(spanCtx, c)),
			)
		}

		status := c.Response.StatusCode()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
			if last := c.Errors.Last(); last != nil {
				span.RecordError(last)
			}
		}

		if m == nil {
			return
		}
		attrs := metric.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(status),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(begin).Seconds(), attrs)
		m.respSize.Record(ctx, int64(len(c.Response.Body())), attrs)
	}
}

// NewServerTracerConfig 使用 hertz obs-opentelemetry：返回 server.WithTracer 选项与配套中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
