// Package filecodec implements the on-disk layout of a cache namespace.
//
// Every entry is a pair of sibling files in one flat directory:
// {name}.json holds the Config and {name}.data holds the raw payload.
// The name is the hex digest of the entry key, so distinct keys map to
// distinct files and the original key is kept inside the config.
package filecodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lucasew/diskcache/internal/hashutil"
)

const (
	ConfigExt = ".json"
	DataExt   = ".data"

	tmpPrefix = ".tmp-"
)

var (
	// ErrNotFound is returned when the config file of an entry does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrCorruptConfig is returned when a config file cannot be parsed or misses a field.
	ErrCorruptConfig = errors.New("corrupt config")

	// ErrMissingData is returned when a config file has no matching data file.
	ErrMissingData = errors.New("missing data file")
)

// Record is a parsed entry as found on disk.
type Record struct {
	Name   string
	Config Config
	Size   int64
}

// Dir is one namespace directory.
type Dir struct {
	Path string
	Algo string
}

// New creates the directory if needed and validates the hash algorithm.
func New(path, algo string) (*Dir, error) {
	if algo == "" {
		algo = hashutil.DefaultAlgo
	}
	if !hashutil.IsSupported(algo) {
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Dir{Path: path, Algo: algo}, nil
}

// Name derives the file name for a key.
func (d *Dir) Name(key string) string {
	// New validated the algorithm, so Sum cannot fail here.
	name, _ := hashutil.Sum(d.Algo, key)
	return name
}

func (d *Dir) ConfigPath(name string) string {
	return filepath.Join(d.Path, name+ConfigExt)
}

func (d *Dir) DataPath(name string) string {
	return filepath.Join(d.Path, name+DataExt)
}

// ReadConfig loads and validates the config of name.
func (d *Dir) ReadConfig(name string) (Config, error) {
	var c Config
	b, err := os.ReadFile(d.ConfigPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, ErrNotFound
		}
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		if errors.Is(err, ErrCorruptConfig) {
			return c, err
		}
		return c, fmt.Errorf("%w: %w", ErrCorruptConfig, err)
	}
	return c, nil
}

func (d *Dir) WriteConfig(name string, c Config) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return d.writeAtomic(d.ConfigPath(name), b)
}

func (d *Dir) ReadData(name string) ([]byte, error) {
	b, err := os.ReadFile(d.DataPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissingData
		}
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return b, nil
}

func (d *Dir) WriteData(name string, data []byte) error {
	return d.writeAtomic(d.DataPath(name), data)
}

// DataSize returns the size of the data file of name.
func (d *Dir) DataSize(name string) (int64, error) {
	info, err := os.Stat(d.DataPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrMissingData
		}
		return 0, err
	}
	return info.Size(), nil
}

// Touch sets the modification time of the data file.
func (d *Dir) Touch(name string, t time.Time) error {
	return os.Chtimes(d.DataPath(name), t, t)
}

// Exists reports whether both files of name are present.
func (d *Dir) Exists(name string) bool {
	if _, err := os.Stat(d.ConfigPath(name)); err != nil {
		return false
	}
	_, err := os.Stat(d.DataPath(name))
	return err == nil
}

// Delete removes both files of name. Missing files are not an error.
func (d *Dir) Delete(name string) error {
	var errs []error
	for _, p := range []string{d.DataPath(name), d.ConfigPath(name)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load reads the config and data size of name.
func (d *Dir) Load(name string) (Record, error) {
	c, err := d.ReadConfig(name)
	if err != nil {
		return Record{Name: name}, err
	}
	size, err := d.DataSize(name)
	if err != nil {
		return Record{Name: name, Config: c}, err
	}
	return Record{Name: name, Config: c, Size: size}, nil
}

// Names lists every entry that has a config file, sorted. Files whose name is
// not a digest of the directory's algorithm are not entries and are skipped.
func (d *Dir) Names() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, tmpPrefix) || !strings.HasSuffix(n, ConfigExt) {
			continue
		}
		name := strings.TrimSuffix(n, ConfigExt)
		if !hashutil.IsDigest(d.Algo, name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Walk calls fn for every entry with a config file. Load errors are passed to
// fn instead of aborting the walk; returning an error from fn stops it.
func (d *Dir) Walk(fn func(Record, error) error) error {
	names, err := d.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		rec, err := d.Load(name)
		if err := fn(rec, err); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes everything inside the directory, keeping the directory itself.
func (d *Dir) Clear() error {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return fmt.Errorf("failed to list cache dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.Path, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeAtomic writes to a temp file in the same directory and renames it over path.
func (d *Dir) writeAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(d.Path, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmpFile.Name()) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), path); err != nil {
		return fmt.Errorf("failed to rename to final path: %w", err)
	}
	return nil
}
