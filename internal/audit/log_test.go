package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"counselflow.org/internal/auth"
	"counselflow.org/internal/model"
	"counselflow.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	obs.Logger().SetOutput(&buf)
	t.Cleanup(func() { obs.Logger().SetOutput(os.Stdout) })
	return &buf
}

func TestLogEventIncludesRequestAndUser(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithPrincipal(ctx, &auth.Principal{User: &model.User{ID: 7}})

	if err := LogEvent(ctx, "matters.create", map[string]any{"id": int64(42)}); err != nil {
		t.Fatalf("log event: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v\n%s", err, buf.String())
	}
	if entry["type"] != "audit" || entry["event"] != "matters.create" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("request id missing: %v", entry)
	}
	if entry["user_id"] != float64(7) {
		t.Fatalf("user id missing: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["id"] != float64(42) {
		t.Fatalf("unexpected fields: %v", entry["fields"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing timestamp: %v", entry)
	}
}

func TestLogEventWithoutContextEnrichment(t *testing.T) {
	buf := captureLog(t)

	if err := LogEvent(context.Background(), "auth.login", nil); err != nil {
		t.Fatalf("log event: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatal("request id should be absent")
	}
	if _, ok := entry["user_id"]; ok {
		t.Fatal("user id should be absent")
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  ")
	if got := requestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}
