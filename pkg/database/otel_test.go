package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestInstrumentRedactsPrivateColumns(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Instrument(db, "staffops-test"))

	require.NoError(t, db.Exec("CREATE TABLE shift_notes (id integer, notes text)").Error)
	require.NoError(t, db.Exec("INSERT INTO shift_notes (id, notes) VALUES (1, 'x')").Error)
	require.NoError(t, db.Exec("UPDATE shift_notes SET notes = 'sick child' WHERE id = 1").Error)

	var statement string
	for _, s := range recorder.Ended() {
		if s.Name() != "db.raw" {
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == semconv.DBStatementKey && kv.Value.AsString() != "" {
				statement = kv.Value.AsString()
			}
		}
	}
	require.NotEmpty(t, statement)
	assert.Contains(t, statement, "notes='***'")
	assert.NotContains(t, statement, "sick child")
}
