// Package store provides query transports for the PBX configuration store.
//
// All schema probing and extraction code talks to the store through the
// Runner interface: one SQL statement in, rows of ordered string fields out.
// The default transport shells out to an external SQL client per query so the
// tool works on locked-down hosts without a reachable database port; a
// database/sql transport is available where a direct connection is allowed.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callflowmap/pkg/config"
)

// ErrConnect marks a connection-level failure: the configuration store
// cannot be reached at all. This is the only fatal error class in an
// extraction run.
var ErrConnect = errors.New("configuration store unreachable")

// Runner executes one SQL statement against the configuration store and
// returns result rows as ordered string fields. NULL values come back as
// empty strings.
type Runner interface {
	Query(ctx context.Context, sqlText string) ([][]string, error)
	Close() error
}

// Factory builds a Runner from store configuration.
type Factory func(st config.StoreConfig) (Runner, error)

var transports = map[string]Factory{}

// Register makes a transport Factory available under name.
func Register(name string, f Factory) {
	transports[strings.ToLower(name)] = f
}

// listRegistered returns the registered transport keys (for diagnostics).
func listRegistered() []string {
	keys := make([]string, 0, len(transports))
	for k := range transports {
		keys = append(keys, k)
	}
	return keys
}

// Open builds the Runner selected by the store configuration's transport.
func Open(st config.StoreConfig) (Runner, error) {
	transport := config.NormalizeTransport(st.Transport)
	f, ok := transports[transport]
	if !ok {
		return nil, fmt.Errorf("transport not registered: %q (available: %v)", transport, listRegistered())
	}
	return f(st)
}

// RegisteredTransports is a helper that allows main to print registered transports
func RegisteredTransports() []string {
	return listRegistered()
}
