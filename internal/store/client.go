package store

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"callflowmap/internal/logger"
	"callflowmap/pkg/config"
)

const defaultClientTimeout = 30 * time.Second

// clientRunner executes an external SQL client binary per query, in batch
// mode, and parses the tab-separated output. No in-process driver involved.
type clientRunner struct {
	bin      string
	database string
	connArgs []string
	timeout  time.Duration
}

func newClientRunner(st config.StoreConfig) (Runner, error) {
	if st.DatabaseName == "" {
		return nil, fmt.Errorf("client transport needs database_name")
	}
	bin := st.Client
	if bin == "" {
		bin = "mysql"
	}
	var connArgs []string
	if st.Host != "" {
		connArgs = append(connArgs, "-h", st.Host)
	}
	if st.Port != 0 {
		connArgs = append(connArgs, "-P", strconv.Itoa(st.Port))
	}
	if st.Username != "" {
		connArgs = append(connArgs, "-u", st.Username)
	}
	if st.Password != "" {
		connArgs = append(connArgs, "-p"+st.Password)
	}
	timeout := defaultClientTimeout
	if st.TimeoutSeconds > 0 {
		timeout = time.Duration(st.TimeoutSeconds) * time.Second
	}
	return &clientRunner{
		bin:      bin,
		database: st.DatabaseName,
		connArgs: connArgs,
		timeout:  timeout,
	}, nil
}

// Query runs one client invocation: the SQL text and the target database
// name are passed as arguments, rows come back tab-separated with
// --skip-column-names.
func (c *clientRunner) Query(ctx context.Context, sqlText string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append([]string{}, c.connArgs...)
	args = append(args, "--batch", "--skip-column-names", "-e", sqlText, c.database)
	cmd := exec.CommandContext(ctx, c.bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logger.Debug("client query failed: %v, stderr=%s", err, strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("client query: %w; stderr=%s", err, strings.TrimSpace(stderr.String()))
	}
	return parseBatchOutput(stdout.String()), nil
}

func (c *clientRunner) Close() error {
	// one process per query, nothing held open
	return nil
}

// parseBatchOutput splits client batch output into rows and fields.
// The batch format escapes tab, newline, NUL and backslash inside field
// values, so a plain line/tab split is safe before unescaping.
func parseBatchOutput(out string) [][]string {
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		raw := strings.Split(line, "\t")
		fields := make([]string, len(raw))
		for i, f := range raw {
			fields[i] = unescapeBatchField(f)
		}
		rows = append(rows, fields)
	}
	return rows
}

func unescapeBatchField(f string) string {
	if f == "NULL" {
		return ""
	}
	if !strings.ContainsRune(f, '\\') {
		return f
	}
	var b strings.Builder
	b.Grow(len(f))
	for i := 0; i < len(f); i++ {
		if f[i] != '\\' || i+1 == len(f) {
			b.WriteByte(f[i])
			continue
		}
		i++
		switch f[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '0':
			b.WriteByte(0)
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(f[i])
		}
	}
	return b.String()
}

func init() {
	Register(config.TransportClient, newClientRunner)
}
