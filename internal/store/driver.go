package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"callflowmap/pkg/config"
)

// driverRunner serves queries over an in-process database/sql connection,
// for environments where a direct store connection is allowed.
type driverRunner struct {
	db *sql.DB
}

func newDriverRunner(st config.StoreConfig) (Runner, error) {
	driver, dsn, err := config.BuildDriverAndDSN(st)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	timeout := defaultClientTimeout
	if st.TimeoutSeconds > 0 {
		timeout = time.Duration(st.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return &driverRunner{db: db}, nil
}

// NewDriverRunner wraps an already-open database handle. The caller keeps
// ownership of the handle; Close on the runner is a no-op.
func NewDriverRunner(db *sql.DB) Runner {
	return &borrowedDriverRunner{driverRunner{db: db}}
}

func (d *driverRunner) Query(ctx context.Context, sqlText string) ([][]string, error) {
	rows, err := d.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		fields := make([]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				fields[i] = v.String
			}
		}
		out = append(out, fields)
	}
	return out, rows.Err()
}

func (d *driverRunner) Close() error {
	return d.db.Close()
}

type borrowedDriverRunner struct {
	driverRunner
}

func (b *borrowedDriverRunner) Close() error {
	return nil
}

func init() {
	Register(config.TransportDriver, newDriverRunner)
}
