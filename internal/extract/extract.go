// Package extract turns a live configuration store into the canonical
// snapshot. One sub-extractor per snapshot collection, each independently
// resilient: a table or column missing in the installed schema revision
// degrades that collection to empty with a recorded warning, never an error.
// Only an unreachable store is fatal.
package extract

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"callflowmap/internal/logger"
	"callflowmap/internal/probe"
	"callflowmap/internal/snapshot"
	"callflowmap/internal/store"
	"callflowmap/pkg/config"
)

// Options controls one extraction run.
type Options struct {
	// Engine selects the catalog queries (mysql, postgres, sqlite).
	Engine string
	// Hostname overrides the os hostname recorded in Meta.
	Hostname string
}

// Run probes the store schema, extracts every collection and assembles a
// snapshot. The returned snapshot always carries Meta and the accumulated
// warnings; only a connection-level failure returns an error.
func Run(ctx context.Context, r store.Runner, opts Options) (*snapshot.Snapshot, error) {
	engine := config.NormalizeEngine(opts.Engine)
	cat, err := probe.CatalogFor(engine)
	if err != nil {
		return nil, err
	}
	caps, err := probe.Discover(ctx, r, cat)
	if err != nil {
		return nil, err
	}

	c := &collector{ctx: ctx, r: r, caps: caps}

	snap := &snapshot.Snapshot{}
	snap.InboundRoutes = c.inboundRoutes()
	snap.RingGroups = c.ringGroups()
	snap.Queues = c.queues()
	snap.IvrMenus, snap.IvrOptions = c.ivr()
	snap.TimeConditions = c.timeConditions()
	snap.TimeGroups = c.timeGroups()
	snap.Announcements = c.announcements()
	snap.Extensions = c.extensions()
	snap.Recordings = c.recordings()
	snap.Trunks = c.trunks()
	snap.OutboundRoutes = c.outboundRoutes()
	snap.Meta = c.meta(cat, opts)
	snap.Warnings = c.warnings

	logger.Info("extraction done: %d inbound routes, %d warnings",
		len(snap.InboundRoutes), len(snap.Warnings))
	return snap, nil
}

// collector carries the per-run state shared by the sub-extractors.
type collector struct {
	ctx      context.Context
	r        store.Runner
	caps     *probe.Capabilities
	warnings []snapshot.Warning
}

func (c *collector) warnf(code, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn("%s: %s", code, msg)
	c.warnings = append(c.warnings, snapshot.Warning{Code: code, Message: msg})
}

// query runs one statement; a failure is recorded under code and yields nil
// rows, so the calling sub-extractor degrades to an empty collection.
func (c *collector) query(code, sqlText string) [][]string {
	rows, err := c.r.Query(c.ctx, sqlText)
	if err != nil {
		c.warnf(code, "query failed, collection degraded to empty: %v", err)
		return nil
	}
	return rows
}

// colExpr returns the first candidate column present on table, or an empty
// string literal so the select list keeps its positional shape when an
// optional field is absent in this schema revision.
func (c *collector) colExpr(table string, candidates ...string) string {
	if col, ok := c.caps.FirstColumn(table, candidates...); ok {
		return col
	}
	return "''"
}

// field returns the trimmed row field at i, tolerating short rows.
func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// atoi coerces a numeric-looking field to an int; anything else is 0.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseFlag interprets the assorted truthy spellings used by flag columns.
func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "true", "1":
		return true
	}
	return false
}

// meta assembles the snapshot metadata, probing the store server version and
// the platform version where the installation exposes them.
func (c *collector) meta(cat probe.Catalog, opts Options) snapshot.Meta {
	m := snapshot.Meta{
		FormatVersion:  snapshot.FormatVersion,
		RunID:          uuid.NewString(),
		GeneratedAtUTC: time.Now().UTC(),
	}

	m.Hostname = opts.Hostname
	if m.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			m.Hostname = h
		}
	}

	if rows, err := c.r.Query(c.ctx, cat.Version); err == nil && len(rows) > 0 {
		m.StoreVersion = field(rows[0], 0)
	}

	// the platform records its own version as a key/value row
	if table, ok := c.caps.FirstTable("admin"); ok {
		if c.caps.HasColumn(table, "variable") && c.caps.HasColumn(table, "value") {
			sqlText := fmt.Sprintf("SELECT value FROM %s WHERE variable = 'version'", table)
			if rows, err := c.r.Query(c.ctx, sqlText); err == nil && len(rows) > 0 {
				m.PBXVersion = field(rows[0], 0)
			}
		}
	}
	return m
}
