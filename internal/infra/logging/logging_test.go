//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"sports-tips-subscription/internal/config"
)

func TestWith_AttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)

	ctx := WithTraceID(context.Background(), "tr-1")
	ctx = WithSubscriptionID(ctx, "sub-9")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "tr-1" || line["subscription_id"] != "sub-9" {
		t.Fatalf("ids missing: %v", line)
	}
	if _, ok := line["user_id"]; ok {
		t.Fatal("user_id should be absent")
	}
	if TraceID(ctx) != "tr-1" {
		t.Fatal("TraceID lookup failed")
	}
}

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "warn"}, false)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn: %s", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("warn should be written")
	}
}

func TestRedact(t *testing.T) {
	testCases := []struct {
		in   string
		dev  bool
		want string
	}{
		{"someone@example.com", false, "s***@example.com"},
		{"@example.com", false, "@exa...om"},
		{"tr-0123456789", false, "tr-0...89"},
		{"short", false, "***"},
		{"someone@example.com", true, "someone@example.com"},
	}
	for _, tc := range testCases {
		if got := Redact(tc.in, tc.dev); got != tc.want {
			t.Errorf("Redact(%q, %v): want %q, got %q", tc.in, tc.dev, tc.want, got)
		}
	}
}
