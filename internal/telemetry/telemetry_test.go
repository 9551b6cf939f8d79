package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	shutdown, err := Init(context.Background(), logger.Sugar(), Config{ServiceName: "chat-api"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	// the exporter connects lazily so no collector is needed
	shutdown, err := Init(context.Background(), logger.Sugar(), Config{
		Endpoint:    "localhost:4318",
		ServiceName: "chat-api",
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	require.Len(t, exporterOptions("collector:4318"), 2)
	require.Len(t, exporterOptions("https://collector:4318"), 1)
}

func TestSampleRatio(t *testing.T) {
	require.Equal(t, 0.25, sampleRatio(0.25))
	require.Equal(t, 1.0, sampleRatio(-1))
	require.Equal(t, 1.0, sampleRatio(3))
	require.Equal(t, 0.0, sampleRatio(0))
}
