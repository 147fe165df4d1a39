package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"callflowmap/internal/extract"
	"callflowmap/internal/flow"
	"callflowmap/internal/logger"
	"callflowmap/internal/snapshot"
	"callflowmap/internal/store"
	"callflowmap/pkg/config"
)

var (
	activeMu     sync.RWMutex
	activeStore  config.StoreConfig
	activeSnap   *snapshot.Snapshot
	snapshotPath string
	defaultPort  = 8080
)

// cmpOr returns the first of its arguments that is not equal to the zero
// value, matching the behavior of cmp.Or (stdlib Go 1.22+), which is
// unavailable on the Go 1.21 toolchain used to build this module.
func cmpOr[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

// setActive sets the active store configuration
func setActive(st config.StoreConfig) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeStore = st
}

// getActive returns the active store configuration
func getActive() config.StoreConfig {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activeStore
}

func setSnapshot(s *snapshot.Snapshot) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeSnap = s
}

// getSnapshot returns the loaded snapshot, reading it from disk on first use.
func getSnapshot() (*snapshot.Snapshot, error) {
	activeMu.RLock()
	s := activeSnap
	activeMu.RUnlock()
	if s != nil {
		return s, nil
	}
	s, err := snapshot.Load(snapshotPath)
	if err != nil {
		return nil, err
	}
	setSnapshot(s)
	return s, nil
}

// runExtraction probes the active store and persists a fresh snapshot.
func runExtraction(ctx context.Context) (*snapshot.Snapshot, error) {
	st := getActive()
	r, err := store.Open(st)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	snap, err := extract.Run(ctx, r, extract.Options{Engine: st.Engine})
	if err != nil {
		return nil, err
	}
	if err := snapshot.Save(snapshotPath, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	setSnapshot(snap)
	return snap, nil
}

func main() {
	// flags
	cfgPath := flag.String("config", filepath.Join(".", "configs", "example.yaml"), "path to config YAML")
	engineFlag := flag.String("engine", "", "store engine override (mysql,postgres,sqlite)")
	transportFlag := flag.String("transport", "", "store transport override (client,driver)")
	clientFlag := flag.String("client", "", "SQL client binary override")
	dbFlag := flag.String("db", "", "database name override")
	dsnFlag := flag.String("dsn", "", "dsn override (driver transport)")
	snapFlag := flag.String("snapshot", "", "snapshot file path override")
	port := flag.Int("port", 0, "http port (overrides config, default"+fmt.Sprintf(" %d)", defaultPort))
	timeout := flag.Int("timeout", 0, "per-query timeout seconds")
	doExtract := flag.Bool("extract", false, "extract a snapshot to the snapshot path and exit")
	did := flag.String("did", "", "build the call-flow graph for this DID and exit")
	maxDepth := flag.Int("max-depth", 0, "traversal depth cap for graph builds")
	out := flag.String("out", "", "graph output file (default stdout)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()
	logger.SetVerbose(*verbose)

	// attempt to load config file (optional)
	var appCfg config.AppConfig
	if cfgPath != nil {
		logger.Debug("config file %s", *cfgPath)
		if c, err := config.LoadFile(*cfgPath); err == nil {
			appCfg = c
		} else {
			logger.Warn("error reading config file: %v", err)
		}
	}

	// allow CLI overrides
	if *engineFlag != "" {
		appCfg.Store.Engine = *engineFlag
	}
	if *transportFlag != "" {
		appCfg.Store.Transport = *transportFlag
	}
	if *clientFlag != "" {
		appCfg.Store.Client = *clientFlag
	}
	if *dbFlag != "" {
		appCfg.Store.DatabaseName = *dbFlag
	}
	if *dsnFlag != "" {
		appCfg.Store.DSN = *dsnFlag
		appCfg.Store.Transport = config.TransportDriver
	}
	if *timeout > 0 {
		appCfg.Store.TimeoutSeconds = *timeout
	}
	setActive(appCfg.Store)

	snapshotPath = cmpOr(*snapFlag, appCfg.Snapshot.Path, filepath.Join(".", "snapshot.json"))
	*port = cmpOr(*port, appCfg.Server.Port, defaultPort)

	// one-shot: extract and exit
	if *doExtract {
		snap, err := runExtraction(context.Background())
		if err != nil {
			logger.Fatal("extraction failed: %v", err)
		}
		for _, w := range snap.Warnings {
			logger.Warn("%s: %s", w.Code, w.Message)
		}
		logger.Info("snapshot written to %s (%d inbound routes, %d warnings)",
			snapshotPath, len(snap.InboundRoutes), len(snap.Warnings))
		return
	}

	// one-shot: build a graph and exit
	if *did != "" {
		snap, err := getSnapshot()
		if err != nil {
			logger.Fatal("load snapshot %s: %v", snapshotPath, err)
		}
		g, err := flow.Build(snap, *did, *maxDepth)
		if err != nil {
			logger.Fatal("%v", err)
		}
		if g.Truncated() {
			logger.Warn("graph truncated at depth cap; the map is partial")
		}
		data, err := json.MarshalIndent(g.Export(), "", "  ")
		if err != nil {
			logger.Fatal("encode graph: %v", err)
		}
		if *out == "" {
			fmt.Println(string(data))
		} else if err := os.WriteFile(*out, data, 0o644); err != nil {
			logger.Fatal("write graph: %v", err)
		}
		return
	}

	// extract endpoint: run an extraction against the active store
	http.HandleFunc("/api/extract", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap, err := runExtraction(r.Context())
		if err != nil {
			http.Error(w, "extraction failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			OK       bool               `json:"ok"`
			Meta     snapshot.Meta      `json:"meta"`
			Warnings []snapshot.Warning `json:"warnings,omitempty"`
		}{OK: true, Meta: snap.Meta, Warnings: snap.Warnings})
	})

	// snapshot endpoint: serve the current snapshot document
	http.HandleFunc("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, err := getSnapshot()
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				http.Error(w, "no snapshot yet; POST /api/extract to create one", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	})

	// graph endpoint: build the call-flow graph for one DID
	http.HandleFunc("/api/graph", func(w http.ResponseWriter, r *http.Request) {
		number := r.URL.Query().Get("did")
		if number == "" {
			http.Error(w, "did query parameter is required", http.StatusBadRequest)
			return
		}
		depth := 0
		fmt.Sscanf(r.URL.Query().Get("maxDepth"), "%d", &depth)

		snap, err := getSnapshot()
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				http.Error(w, "no snapshot yet; POST /api/extract to create one", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		g, err := flow.Build(snap, number, depth)
		if err != nil {
			if errors.Is(err, flow.ErrDIDNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(g.Export())
	})

	// HTTP server
	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info("listening on %s, snapshot path %s", addr, snapshotPath)
	logger.Info("registered transports: %v", store.RegisteredTransports())
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("%v", err)
	}
}
