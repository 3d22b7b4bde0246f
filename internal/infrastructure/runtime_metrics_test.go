package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestRuntimeCollector_Snapshot(t *testing.T) {
	collector, err := NewRuntimeCollector(noop.NewMeterProvider().Meter("test"), 0)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, collector.interval)

	snapshot := collector.Snapshot(context.Background())
	assert.Greater(t, snapshot["goroutines"], int64(0))
	assert.Greater(t, snapshot["cpu_count"], 0)
	assert.Contains(t, snapshot, "heap_in_use_mb")
	assert.Contains(t, snapshot, "uptime_seconds")
}

func TestRuntimeCollector_StartStop(t *testing.T) {
	collector, err := NewRuntimeCollector(noop.NewMeterProvider().Meter("test"), 10*time.Millisecond)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		collector.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	collector.Stop()
	collector.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
