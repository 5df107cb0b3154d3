// Package catalog persists namespace definitions so that tools can reopen
// caches by name.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Namespace is a named cache directory with its limits.
type Namespace struct {
	Name       string
	Dir        string
	SizeLimit  int64
	CountLimit int64
	Strategy   string
}

// Catalog represents the database connection.
type Catalog struct {
	db *sql.DB
}

// Open opens the catalog at path and applies pending migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Catalog) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put inserts or replaces a namespace definition.
func (c *Catalog) Put(ctx context.Context, ns Namespace) error {
	if ns.Name == "" || ns.Dir == "" {
		return fmt.Errorf("namespace needs a name and a directory")
	}
	if ns.Strategy == "" {
		ns.Strategy = "lru"
	}
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO namespaces (name, dir, size_limit, count_limit, strategy) VALUES (?, ?, ?, ?, ?)",
		ns.Name, ns.Dir, ns.SizeLimit, ns.CountLimit, ns.Strategy)
	if err != nil {
		return fmt.Errorf("failed to store namespace %s: %w", ns.Name, err)
	}
	return nil
}

// Get retrieves the namespace with the given name.
func (c *Catalog) Get(ctx context.Context, name string) (Namespace, bool, error) {
	var ns Namespace
	err := c.db.QueryRowContext(ctx,
		"SELECT name, dir, size_limit, count_limit, strategy FROM namespaces WHERE name = ?", name).
		Scan(&ns.Name, &ns.Dir, &ns.SizeLimit, &ns.CountLimit, &ns.Strategy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ns, false, nil
		}
		return ns, false, fmt.Errorf("failed to get namespace %s: %w", name, err)
	}
	return ns, true, nil
}

// List returns every namespace ordered by name.
func (c *Catalog) List(ctx context.Context) ([]Namespace, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name, dir, size_limit, count_limit, strategy FROM namespaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		var ns Namespace
		if err := rows.Scan(&ns.Name, &ns.Dir, &ns.SizeLimit, &ns.CountLimit, &ns.Strategy); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Delete removes a namespace definition. The cache directory is left alone.
func (c *Catalog) Delete(ctx context.Context, name string) (bool, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM namespaces WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("failed to delete namespace %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
