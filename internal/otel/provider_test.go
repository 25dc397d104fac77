package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, p.Meter("simcore/test"))
}

func TestNew_EnabledWithoutDestination(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, ServiceName: "simcore"})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_WritesLogsOnFlush(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "simcore-test",
		RunID:        "run-42",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	logger := otelslog.NewLogger("simcore", otelslog.WithLoggerProvider(p.LoggerProvider()))
	logger.Info("trailer attached", "mode", "attachedLocal")

	require.NoError(t, p.Flush(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "trailer attached")
	assert.Contains(t, out, "simcore-test")
	assert.Contains(t, out, "run-42")
}
