package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому не используют t.Parallel().

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrom_ReturnsDefault_WhenNoLoggerInContext(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)

	require.Equal(t, def, From(context.Background()))
}

func TestIntoAndFrom_RoundTrip(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)

	require.Equal(t, l, From(ctx))
}

func TestFrom_ReturnsDefault_WhenStoredValueIsWrongTypeOrNil(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	def := newSilent()
	slog.SetDefault(def)

	ctxWrong := context.WithValue(context.Background(), ctxKey{}, "not-a-logger")
	require.Equal(t, def, From(ctxWrong))

	var nilLogger *slog.Logger
	ctxNil := context.WithValue(context.Background(), ctxKey{}, nilLogger)
	require.Equal(t, def, From(ctxNil))
}

func TestInto_ShadowParentLogger(t *testing.T) {
	parentL := newSilent()
	childL := newSilent()

	parent := Into(context.Background(), parentL)
	child := Into(parent, childL)

	require.Equal(t, childL, From(child))
	require.Equal(t, parentL, From(parent))
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := With(Into(context.Background(), base), "request_id", "rid-1")
	From(ctx).Info("event")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "rid-1", rec["request_id"])
	require.Equal(t, "event", rec["msg"])
}

func TestNew_ByEnv(t *testing.T) {
	tests := []struct {
		env       string
		json      bool
		debugSeen bool
	}{
		{env: EnvLocal, json: false, debugSeen: true},
		{env: EnvDev, json: true, debugSeen: true},
		{env: EnvProd, json: true, debugSeen: false},
		{env: "unknown", json: false, debugSeen: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.env, &buf)

			l.Debug("dbg")
			require.Equal(t, tt.debugSeen, strings.Contains(buf.String(), "dbg"))

			buf.Reset()
			l.Info("inf")
			require.Equal(t, tt.json, strings.HasPrefix(buf.String(), "{"))
		})
	}
}
