package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lucasew/diskcache"
	"github.com/lucasew/diskcache/internal/catalog"
	"github.com/lucasew/diskcache/internal/errutil"
	"github.com/shogo82148/go-sfv"
)

// DefaultNamespace names the namespace given by Config.Dir when Config.Namespace is empty.
const DefaultNamespace = "default"

type Config struct {
	// Dir opens one namespace directly, named Namespace or DefaultNamespace.
	Dir string
	// Namespace selects the namespace commands act on.
	Namespace string
	// CatalogPath points at the sqlite catalog of named namespaces. Empty disables it.
	CatalogPath string
	// ExtraDirs are opened as namespaces named after their base name.
	ExtraDirs []string

	SizeLimit    int64
	CountLimit   int64
	MinFreeSpace int64
	Strategy     string

	// WaitForScan blocks until every startup scan is done.
	WaitForScan bool
	Logger      *slog.Logger
}

// ParseNamespaceList parses a structured field list of directory strings,
// e.g. `"/var/cache/a", "/var/cache/b"`.
func ParseNamespaceList(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	list, err := sfv.DecodeList([]string{value})
	if err != nil {
		return nil, fmt.Errorf("failed to parse namespace list: %w", err)
	}
	var dirs []string
	for _, item := range list {
		if s, ok := item.Value.(string); ok {
			dirs = append(dirs, s)
		}
	}
	return dirs, nil
}

func (cfg Config) options(strategy string, sizeLimit, countLimit int64) diskcache.Options {
	if strategy == "" {
		strategy = cfg.Strategy
	}
	return diskcache.Options{
		SizeLimit:    sizeLimit,
		CountLimit:   countLimit,
		MinFreeBytes: cfg.MinFreeSpace,
		Strategy:     strategy,
		JSON:         diskcache.StdJSON{},
		Images:       diskcache.PNG{},
		Logger:       cfg.Logger,
		WaitForScan:  cfg.WaitForScan,
	}
}

// NewRegistry opens every namespace the configuration knows about. The
// returned cleanup closes the registry.
func NewRegistry(ctx context.Context, cfg Config) (*diskcache.Registry, func(), error) {
	reg := diskcache.NewRegistry()
	fail := func(err error) (*diskcache.Registry, func(), error) {
		reg.Close()
		return nil, nil, err
	}

	if cfg.CatalogPath != "" {
		cat, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return fail(fmt.Errorf("failed to open catalog at %s: %w", cfg.CatalogPath, err))
		}
		namespaces, err := cat.List(ctx)
		errutil.LogMsg(cfg.Logger, cat.Close(), "Failed to close catalog")
		if err != nil {
			return fail(err)
		}
		for _, ns := range namespaces {
			if _, err := reg.Open(ns.Name, ns.Dir, cfg.options(ns.Strategy, ns.SizeLimit, ns.CountLimit)); err != nil {
				return fail(err)
			}
		}
	}

	for _, dir := range cfg.ExtraDirs {
		name := filepath.Base(filepath.Clean(dir))
		if _, err := reg.Open(name, dir, cfg.options("", cfg.SizeLimit, cfg.CountLimit)); err != nil {
			return fail(err)
		}
	}

	if cfg.Dir != "" {
		name := cfg.Namespace
		if name == "" {
			name = DefaultNamespace
		}
		if _, err := reg.Open(name, cfg.Dir, cfg.options("", cfg.SizeLimit, cfg.CountLimit)); err != nil {
			return fail(err)
		}
	}

	return reg, reg.Close, nil
}

// Select returns the namespace commands should act on.
func Select(reg *diskcache.Registry, cfg Config) (*diskcache.Store, error) {
	name := cfg.Namespace
	if name == "" {
		name = DefaultNamespace
	}
	if s, ok := reg.Get(name); ok {
		return s, nil
	}
	if cfg.Namespace == "" && len(reg.Names()) == 1 {
		s, _ := reg.Get(reg.Names()[0])
		return s, nil
	}
	return nil, errors.New("no namespace selected: pass --dir or --namespace")
}
