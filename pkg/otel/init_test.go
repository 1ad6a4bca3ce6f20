package otel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"StaffOps/config"
)

func TestNormalizeEndpoint(t *testing.T) {
	require.Equal(t, "collector:4317", normalizeEndpoint("http://collector:4317/"))
	require.Equal(t, "collector:4317", normalizeEndpoint("https://collector:4317"))
	require.Equal(t, "localhost:4317", normalizeEndpoint("localhost:4317"))
}

func TestFromConfig(t *testing.T) {
	s := FromConfig(&config.Config{
		ServiceName:     "staffops",
		Environment:     "production",
		OTelEndpoint:    "otel:4317",
		OTelSampleRatio: 0.25,
	}, "scheduler")

	require.Equal(t, "staffops-scheduler", s.ServiceName)
	require.Equal(t, 0.25, s.SampleRatio)
	require.Contains(t, sampler(s).Description(), "TraceIDRatioBased{0.25}")
	require.Equal(t, "AlwaysOnSampler", sampler(Settings{Environment: "development"}).Description())
}
