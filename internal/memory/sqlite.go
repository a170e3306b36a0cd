//go:build sqlite
// +build sqlite

package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "quackbot/pkg/logx"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS memory(
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context, key string) ([]byte, bool) {
	if s == nil || s.db == nil || key == "" {
		return nil, false
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM memory WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("sqlite load failed", logx.String("key", key), logx.Err(err))
		return nil, false
	}
	return data, true
}

func (s *sqliteStore) Save(ctx context.Context, key string, data []byte) {
	if s == nil || s.db == nil || key == "" {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory(key, data, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.log.Warn("sqlite save failed; write dropped", logx.String("key", key), logx.Err(err))
	}
}

func (s *sqliteStore) ClearAll(ctx context.Context) string {
	if s == nil || s.db == nil {
		return ""
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory`)
	if err != nil {
		return fmt.Sprintf("Error clearing memory table: %v\n", err)
	}
	n, _ := res.RowsAffected()
	return fmt.Sprintf("Deleted %d entries\n", n)
}
