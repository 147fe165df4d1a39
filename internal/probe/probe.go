// Package probe discovers which tables and columns exist in the connected
// configuration store. PBX schema layouts drift across released versions
// (tables renamed, columns added or dropped), so every extraction run starts
// by building a Capabilities value and all version-specific knowledge reduces
// to candidate-name lookups against it.
package probe

import (
	"context"
	"fmt"
	"strings"

	"callflowmap/internal/logger"
	"callflowmap/internal/store"
)

// Capabilities holds the set of tables visible to the current credentials
// and the column set of each. Ephemeral: rebuilt at the start of every
// extraction run, never persisted.
type Capabilities struct {
	tables map[string]map[string]struct{}
}

// HasTable reports whether the named table exists.
func (c *Capabilities) HasTable(table string) bool {
	_, ok := c.tables[strings.ToLower(table)]
	return ok
}

// HasColumn reports whether the table exists and carries the named column.
func (c *Capabilities) HasColumn(table, column string) bool {
	cols, ok := c.tables[strings.ToLower(table)]
	if !ok {
		return false
	}
	_, ok = cols[strings.ToLower(column)]
	return ok
}

// FirstTable returns the first candidate table that exists. Used wherever a
// schema revision renamed a table.
func (c *Capabilities) FirstTable(candidates ...string) (string, bool) {
	for _, t := range candidates {
		if c.HasTable(t) {
			return t, true
		}
	}
	return "", false
}

// FirstColumn returns the first candidate column present on table. Used
// wherever a schema revision renamed a column.
func (c *Capabilities) FirstColumn(table string, candidates ...string) (string, bool) {
	for _, col := range candidates {
		if c.HasColumn(table, col) {
			return col, true
		}
	}
	return "", false
}

// TableCount returns the number of discovered tables (for diagnostics).
func (c *Capabilities) TableCount() int {
	return len(c.tables)
}

// Catalog carries the engine-specific queries used to enumerate tables and
// columns.
type Catalog struct {
	// Tables lists all table names, one per row, name in the first field.
	Tables string
	// Columns lists the columns of one table.
	Columns func(table string) string
	// ColumnField is the field index of the column name in Columns output.
	ColumnField int
	// Version reports the store server version, single row single field.
	Version string
}

// CatalogFor returns the catalog queries for a normalized engine name.
func CatalogFor(engine string) (Catalog, error) {
	switch engine {
	case "mysql":
		return Catalog{
			Tables: `SHOW TABLES`,
			Columns: func(table string) string {
				return fmt.Sprintf("SHOW COLUMNS FROM `%s`", table)
			},
			ColumnField: 0,
			Version:     `SELECT VERSION()`,
		}, nil
	case "sqlite":
		return Catalog{
			Tables: `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
			Columns: func(table string) string {
				return fmt.Sprintf("PRAGMA table_info('%s')", table)
			},
			ColumnField: 1,
			Version:     `SELECT sqlite_version()`,
		}, nil
	case "postgres":
		return Catalog{
			Tables: `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`,
			Columns: func(table string) string {
				return fmt.Sprintf(`SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = '%s' ORDER BY ordinal_position`, table)
			},
			ColumnField: 0,
			Version:     `SHOW server_version`,
		}, nil
	default:
		return Catalog{}, fmt.Errorf("no catalog for engine: %q", engine)
	}
}

// Discover enumerates tables and their columns through the runner. A failure
// on the initial table listing means the store is unreachable and is fatal;
// a failure listing one table's columns degrades to an empty column set.
func Discover(ctx context.Context, r store.Runner, cat Catalog) (*Capabilities, error) {
	rows, err := r.Query(ctx, cat.Tables)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrConnect, err)
	}

	caps := &Capabilities{tables: make(map[string]map[string]struct{}, len(rows))}
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		table := strings.TrimSpace(row[0])
		cols := make(map[string]struct{})
		colRows, err := r.Query(ctx, cat.Columns(table))
		if err != nil {
			logger.Warn("probe: columns of %s: %v", table, err)
		}
		for _, cr := range colRows {
			if len(cr) <= cat.ColumnField {
				continue
			}
			name := strings.TrimSpace(cr[cat.ColumnField])
			if name != "" {
				cols[strings.ToLower(name)] = struct{}{}
			}
		}
		caps.tables[strings.ToLower(table)] = cols
	}
	logger.Debug("probe: discovered %d tables", caps.TableCount())
	return caps, nil
}
