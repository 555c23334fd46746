package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantTyp any
		json    bool
	}{
		{"slog text", Options{Backend: "slog"}, &SlogLogger{}, false},
		{"slog json", Options{Backend: "slog", Format: "json"}, &SlogLogger{}, true},
		{"zap", Options{Backend: "zap"}, &ZapLogger{}, true},
		{"zerolog", Options{Backend: "zerolog"}, &ZerologLogger{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Output = &buf
			l, err := New(tt.opts)
			require.NoError(t, err)
			assert.IsType(t, tt.wantTyp, l)

			l.With("component", "vault").Info(context.Background(), "unlocked", "compartment", "alpha")
			l.Debug(context.Background(), "hidden at info")
			if z, ok := l.(*ZapLogger); ok {
				_ = z.Sync()
			}

			out := strings.TrimSpace(buf.String())
			require.NotEmpty(t, out)
			assert.NotContains(t, out, "hidden at info")
			assert.Contains(t, out, "unlocked")
			assert.Contains(t, out, "alpha")
			assert.Contains(t, out, "vault")

			if tt.json {
				var m map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &m))
				assert.Equal(t, "alpha", m["compartment"])
				assert.Equal(t, "vault", m["component"])
			}
		})
	}
}

func TestNew_Levels(t *testing.T) {
	for _, backend := range []string{"slog", "zap", "zerolog"} {
		var buf bytes.Buffer
		l, err := New(Options{Backend: backend, Level: "warn", Output: &buf})
		require.NoError(t, err)

		ctx := context.Background()
		l.Info(ctx, "quiet")
		l.Warn(ctx, "loud")
		l.Error(ctx, "louder")
		if z, ok := l.(*ZapLogger); ok {
			_ = z.Sync()
		}

		out := buf.String()
		assert.NotContains(t, out, "quiet", backend)
		assert.Contains(t, out, "loud", backend)
		assert.Contains(t, out, "louder", backend)
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Backend: "logrus"})
	assert.Error(t, err)

	_, err = New(Options{Level: "chatty"})
	assert.Error(t, err)

	l, err := New(Options{})
	require.NoError(t, err)
	l.Info(context.Background(), "discarded")
}
