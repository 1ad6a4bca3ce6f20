package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestKeyPattern(t *testing.T) {
	assert.Equal(t, "staffops:lock:*", keyPattern([]interface{}{"set", "staffops:lock:sweep"}))
	assert.Equal(t, "plain", keyPattern([]interface{}{"get", "plain"}))
	assert.Equal(t, "", keyPattern([]interface{}{"ping"}))
	assert.Equal(t, "", keyPattern([]interface{}{"get", 42}))
}

func TestInstrumentClientRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	InstrumentClient(client, "staffops-test", 0)

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "staffops:msg:123", "1", time.Minute).Err())
	assert.ErrorIs(t, client.Get(ctx, "staffops:msg:missing").Err(), redis.Nil)

	var set, get sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		switch s.Name() {
		case "set":
			set = s
		case "get":
			get = s
		}
	}
	require.NotNil(t, set)
	require.NotNil(t, get)

	assert.Contains(t, set.Attributes(), attribute.String("redis.key_pattern", "staffops:msg:*"))
	// 未命中不算错误
	assert.NotEqual(t, codes.Error, get.Status().Code)
}
