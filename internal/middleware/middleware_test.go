package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func ok(ctx context.Context, c *app.RequestContext) {
	c.String(http.StatusOK, "ok")
}

func TestCORSMiddleware(t *testing.T) {
	h := server.New()
	h.Use(CORSMiddleware([]string{"https://admin.example.com"}))
	h.GET("/ping", ok)

	w := ut.PerformRequest(h.Engine, http.MethodOptions, "/ping", nil,
		ut.Header{Key: "Origin", Value: "https://admin.example.com"})
	resp := w.Result()
	require.Equal(t, http.StatusNoContent, resp.StatusCode())
	require.Equal(t, "https://admin.example.com", string(resp.Header.Peek("Access-Control-Allow-Origin")))
	require.Contains(t, string(resp.Header.Peek("Access-Control-Allow-Methods")), "PATCH")

	w = ut.PerformRequest(h.Engine, http.MethodOptions, "/ping", nil,
		ut.Header{Key: "Origin", Value: "https://evil.example.com"})
	require.Equal(t, http.StatusForbidden, w.Result().StatusCode())

	// 非浏览器请求不带 Origin，直接放行
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	require.Empty(t, w.Result().Header.Peek("Access-Control-Allow-Origin"))
}

func TestRequestIDMiddleware(t *testing.T) {
	h := server.New()
	h.Use(RequestIDMiddleware())
	h.GET("/ping", ok)

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil)
	require.Len(t, string(w.Result().Header.Peek(RequestIDHeader)), 36)

	w = ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil, ut.Header{Key: RequestIDHeader, Value: "req-42"})
	require.Equal(t, "req-42", string(w.Result().Header.Peek(RequestIDHeader)))
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	h := server.New()
	h.Use(RateLimitMiddleware(rdb, RateLimitConfig{
		Window:        time.Minute,
		MaxRequests:   2,
		KeyPrefix:     "test:rate",
		BlockDuration: time.Minute,
	}))
	h.GET("/ping", ok)

	for i := 0; i < 2; i++ {
		w := ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil)
		require.Equal(t, http.StatusOK, w.Result().StatusCode())
	}

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode())
	require.Equal(t, "0", string(w.Result().Header.Peek("X-RateLimit-Remaining")))

	// 被封禁期间窗口过期也继续拒绝
	mr.FastForward(30 * time.Second)
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode())

	// Redis 故障时放行
	mr.Close()
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
}

func TestOpenTelemetryMiddlewareUsesRouteTemplate(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	h := server.New()
	h.Use(OpenTelemetryMiddleware())
	h.GET("/v1/tasks/:task_id", ok)

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/v1/tasks/42", nil,
		ut.Header{Key: "traceparent", Value: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"})
	require.Equal(t, http.StatusOK, w.Result().StatusCode())

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /v1/tasks/:task_id", spans[0].Name())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].Parent().TraceID().String())
}

func TestRecoverMiddleware(t *testing.T) {
	var hooked interface{}
	h := server.New()
	h.Use(RecoverMiddlewareWithConfig(RecoverConfig{
		HideDetails: true,
		OnPanic: func(_ context.Context, _ *app.RequestContext, r interface{}, _ []byte) {
			hooked = r
		},
	}))
	h.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		var m map[string]int
		m["x"]++
	})

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/boom", nil)
	resp := w.Result()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	require.Contains(t, string(resp.Body()), "INTERNAL_SERVER_ERROR")
	require.NotContains(t, string(resp.Body()), "nil map")
	require.NotNil(t, hooked)
}
