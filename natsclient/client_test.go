package natsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/pkg/retry"
)

func TestNewClient_DefaultsConnectRetry(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Equal(t, retry.DefaultConfig(), client.connectRetry)
}

func TestWithConnectRetry_Overrides(t *testing.T) {
	cfg := retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	client, err := NewClient("nats://localhost:4222", WithConnectRetry(cfg))
	require.NoError(t, err)
	assert.Equal(t, cfg, client.connectRetry)
}

func TestWithMetrics_RecordsCircuitBreakerTransitions(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient("nats://invalid:4222", WithMetrics(registry.CoreMetrics()))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.NotEqual(t, StatusCircuitOpen, client.Status())
}

func TestWithMetrics_NilIsNoop(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			client.recordFailure()
		}
		client.resetCircuit()
		client.testCircuit()
	})
}
