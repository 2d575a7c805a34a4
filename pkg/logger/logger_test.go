package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestContextFieldsAccumulate(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: "debug", Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "order-1")
	log.Info(log.WithField(ctx, "attempt", 2), "charge.retry")

	entry := lastEntry(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "order-1", entry["order_id"])
	assert.EqualValues(t, 2, entry["attempt"])

	log.Info(ctx, "charge.ok")
	assert.NotContains(t, lastEntry(t, buf), "attempt", "derived contexts must not leak into their parent")
}

func TestErrorIncludesDomainCodeAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	log.Error(context.Background(), "transfer failed", pkgerrors.New(pkgerrors.CodeGateway, "declined"))

	entry := lastEntry(t, buf)
	assert.Equal(t, "GATEWAY_ERROR", entry["error_code"])
	assert.Contains(t, entry, "stack")
	assert.Contains(t, entry["error"], "declined")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf}).Warn(context.Background(), "plain")
	assert.NotContains(t, lastEntry(t, buf), "stack")

	buf.Reset()
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "stacked")
	assert.Contains(t, lastEntry(t, buf), "stack")
}

func TestDebugSuppressedByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf}).Debug(context.Background(), "noisy")
	assert.Zero(t, buf.Len())
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, Format: "Console"}).Error(context.Background(), "boom", errors.New("bad"))
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	assert.Contains(t, buf.String(), "boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
