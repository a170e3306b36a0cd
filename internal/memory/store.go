package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "quackbot/pkg/logx"
)

var ErrDisabled = errors.New("memory store disabled")

// DefaultLockTimeout bounds per-key lock acquisition. Contention beyond this
// degrades the single operation to a no-op instead of blocking the bot.
const DefaultLockTimeout = 5 * time.Second

// Config configures the store.
//
// Driver values:
//   - "file": one JSON file per key under Path (a directory)
//   - "sqlite": SQLite database file at Path (optional build tag)
//
// If Driver is empty or "none", the store is disabled.
type Config struct {
	Driver      string
	Path        string
	LockTimeout time.Duration // file only; 0 means DefaultLockTimeout
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the raw persistence API. Values are opaque byte payloads; the
// envelope helpers in object.go layer typed access and last-write-wins
// timestamps on top.
type Store interface {
	// Load returns the stored payload for key, or ok=false if the key was
	// never written, the payload is unreadable, or the lock timed out.
	Load(ctx context.Context, key string) (data []byte, ok bool)

	// Save writes the payload for key, creating the backing location if
	// needed. On lock timeout the write is dropped and logged.
	Save(ctx context.Context, key string, data []byte)

	// ClearAll removes every persisted entry and returns a human-readable
	// per-entry report. Used only by the explicit admin reset command.
	ClearAll(ctx context.Context) string

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if the store is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown memory driver: " + driver)
	}
}
