package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hackjutsu/mini-chatbot/internal/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database. file: URLs are served by the
// embedded sqlite driver; libsql:// and http(s):// URLs go to Turso.
func Open(cfg config.Config) (*sql.DB, error) {
	driver, dsn, err := buildDSN(cfg.DatabaseURL, cfg.DatabaseAuthToken)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		if err := ensureParentDir(dsn); err != nil {
			return nil, err
		}
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == "sqlite" {
		// sqlite serialises writers; one connection keeps pragmas consistent.
		database.SetMaxOpenConns(1)
	}

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return database, nil
}

func OpenMigrated(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	database, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func buildDSN(rawURL, authToken string) (string, string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	if strings.HasPrefix(rawURL, "file:") || rawURL == ":memory:" {
		return "sqlite", withSQLitePragmas(rawURL), nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse database url: %w", err)
	}

	switch parsed.Scheme {
	case "libsql", "http", "https":
	default:
		return "", "", fmt.Errorf("unsupported database url scheme %q", parsed.Scheme)
	}

	if parsed.Scheme == "libsql" {
		query := parsed.Query()
		if query.Get("authToken") == "" && strings.TrimSpace(authToken) != "" {
			query.Set("authToken", strings.TrimSpace(authToken))
			parsed.RawQuery = query.Encode()
		}
	}

	return "libsql", parsed.String(), nil
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func ensureParentDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
