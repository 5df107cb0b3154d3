package errutil

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogMsg(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogMsg(logger, nil, "should not appear")
	if buf.Len() != 0 {
		t.Fatalf("nil error must not log, got %q", buf.String())
	}

	LogMsg(logger, errors.New("boom"), "Failed thing", "key", "k1")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error=boom") || !strings.Contains(out, "key=k1") {
		t.Errorf("unexpected log line %q", out)
	}

	buf.Reset()
	ReportError(logger, errors.New("bad"), "Broken")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected error level, got %q", buf.String())
	}
}
