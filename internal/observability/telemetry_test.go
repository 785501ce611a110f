package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/launchkitlabs/launchkit/internal/config"
)

func TestNewTelemetry_NoEndpoint(t *testing.T) {
	tel, err := NewTelemetry(config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer)
	require.NotNil(t, tel.Meter)
	require.NotNil(t, tel.TracerProvider())

	// Exporter-less pipeline: spans are dropped locally without error.
	_, span := tel.Tracer.Start(context.Background(), "noop")
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewTelemetry_ExporterProtocols(t *testing.T) {
	for _, protocol := range []string{"grpc", "http"} {
		cfg := config.Config{
			Telemetry: config.TelemetryConfig{
				OTLPEndpoint: "localhost:4317",
				OTLPProtocol: protocol,
				ServiceName:  "launchkit-test",
			},
		}
		tel, err := NewTelemetry(cfg, zap.NewNop())
		require.NoError(t, err, protocol)

		// Nothing listens on the endpoint; the final flush may fail but the
		// shutdown itself must return promptly.
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		_ = tel.Shutdown(ctx)
		cancel()
	}
}
