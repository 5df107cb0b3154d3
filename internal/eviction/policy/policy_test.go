package policy_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/lucasew/diskcache/internal/eviction/policy"
	"github.com/lucasew/diskcache/internal/eviction/policy/maxcount"
	"github.com/lucasew/diskcache/internal/eviction/policy/maxsize"
	"github.com/lucasew/diskcache/internal/eviction/policy/minfree"
)

func TestLimits(t *testing.T) {
	cases := []struct {
		name   string
		p      policy.Policy
		usage  policy.Usage
		exceed bool
	}{
		{"size under", &maxsize.Policy{MaxBytes: 10}, policy.Usage{Bytes: 10}, false},
		{"size over", &maxsize.Policy{MaxBytes: 10}, policy.Usage{Bytes: 11}, true},
		{"count under", &maxcount.Policy{MaxCount: 2}, policy.Usage{Count: 2}, false},
		{"count over", &maxcount.Policy{MaxCount: 2}, policy.Usage{Count: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.p.Exceeded(tc.usage)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.exceed {
				t.Errorf("expected %v, got %v", tc.exceed, got)
			}
		})
	}
}

func TestMinFree(t *testing.T) {
	dir := t.TempDir()

	p := &minfree.Policy{Path: dir, MinFreeBytes: 0}
	if over, err := p.Exceeded(policy.Usage{}); err != nil || over {
		t.Errorf("zero threshold should never be exceeded: %v, %v", over, err)
	}

	p = &minfree.Policy{Path: dir, MinFreeBytes: 1 << 62}
	if over, err := p.Exceeded(policy.Usage{}); err != nil || !over {
		t.Errorf("huge threshold should be exceeded: %v, %v", over, err)
	}

	p = &minfree.Policy{Path: dir + "/missing", MinFreeBytes: 1}
	if _, err := p.Exceeded(policy.Usage{}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestMinFree_LogsToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := &minfree.Policy{Path: t.TempDir(), MinFreeBytes: 1, Logger: logger.With("cache_dir", "ns")}
	if _, err := p.Exceeded(policy.Usage{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Disk space check") || !strings.Contains(out, "cache_dir=ns") {
		t.Errorf("expected disk check on the injected logger, got %q", out)
	}
}
