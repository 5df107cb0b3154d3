package minfree

import (
	"fmt"
	"log/slog"
	"syscall"

	"github.com/lucasew/diskcache/internal/eviction/policy"
)

// Policy triggers eviction when disk free space is below a threshold.
//
// Payloads are written before they are admitted, so the free space reported by
// the filesystem already accounts for the incoming entry and usage is ignored.
type Policy struct {
	Path         string
	MinFreeBytes int64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (m *Policy) Exceeded(_ policy.Usage) (bool, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.Path, &stat); err != nil {
		return false, fmt.Errorf("failed to check disk space: %w", err)
	}

	// Available blocks * block size
	freeSpace := int64(stat.Bavail) * int64(stat.Bsize)

	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Disk space check", "path", m.Path, "free_bytes", freeSpace, "min_required", m.MinFreeBytes)

	return freeSpace < m.MinFreeBytes, nil
}

func (m *Policy) Name() string { return "min-free" }
