package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Handler:   slog.NewTextHandler(&buf, nil),
		Component: "api",
	}).With("request_id", "req-1")

	ctx := IntoContext(context.Background(), logger)
	FromContext(ctx).InfoContext(ctx, "handled")

	out := buf.String()
	if !strings.Contains(out, "component=api") || !strings.Contains(out, "request_id=req-1") {
		t.Fatalf("log line missing attached attributes: %q", out)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected the process default logger")
	}
}
