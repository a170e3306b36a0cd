package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	logx "quackbot/pkg/logx"
)

// fileStore keeps one JSON file per key under a working directory.
//
// Files:
//   - <dir>/<key>.json       (payload)
//   - <dir>/<key>.json.lock  (advisory lock, shared with other processes)
//
// The lock is held for the duration of each read or write so a second bot
// process pointed at the same directory cannot interleave partial writes.
type fileStore struct {
	dir         string
	lockTimeout time.Duration
	log         logx.Logger
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("memory.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lt := cfg.LockTimeout
	if lt <= 0 {
		lt = DefaultLockTimeout
	}
	return &fileStore{dir: dir, lockTimeout: lt, log: log}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) pathFor(key string) string {
	// Keys are internal identifiers; flatten anything path-like.
	key = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.':
			return '_'
		}
		return r
	}, key)
	return filepath.Join(s.dir, key+".json")
}

// withLock runs fn while holding the advisory lock for path.
// Returns false if the lock could not be acquired within the timeout.
func (s *fileStore) withLock(ctx context.Context, path string, fn func()) bool {
	lk := flock.New(path + ".lock")
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := lk.TryLockContext(lctx, 50*time.Millisecond)
	if err != nil || !ok {
		return false
	}
	defer lk.Unlock()
	fn()
	return true
}

func (s *fileStore) Load(ctx context.Context, key string) ([]byte, bool) {
	path := s.pathFor(key)

	var data []byte
	var found bool
	locked := s.withLock(ctx, path, func() {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		data = b
		found = true
	})
	if !locked {
		s.log.Warn("lock timeout while loading key", logx.String("key", key))
		return nil, false
	}
	return data, found
}

func (s *fileStore) Save(ctx context.Context, key string, data []byte) {
	path := s.pathFor(key)

	locked := s.withLock(ctx, path, func() {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			s.log.Warn("write failed", logx.String("key", key), logx.Err(err))
			return
		}
		if err := os.Rename(tmp, path); err != nil {
			s.log.Warn("rename failed", logx.String("key", key), logx.Err(err))
		}
	})
	if !locked {
		s.log.Warn("lock timeout while saving key; write dropped", logx.String("key", key))
	}
}

func (s *fileStore) ClearAll(ctx context.Context) string {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Sprintf("Error listing memory files: %v\n", err)
	}

	var b strings.Builder
	for _, path := range matches {
		removed := false
		locked := s.withLock(ctx, path, func() {
			if err := os.Remove(path); err != nil {
				fmt.Fprintf(&b, "Error deleting: %s\n", path)
				return
			}
			removed = true
		})
		switch {
		case !locked:
			s.log.Warn("lock timeout while deleting", logx.String("path", path))
			fmt.Fprintf(&b, "Timeout deleting: %s\n", path)
		case removed:
			fmt.Fprintf(&b, "Deleted: %s\n", path)
		}
	}
	return b.String()
}

// RemoveStaleLocks deletes leftover .lock files, typically after an unclean
// shutdown. Call once at startup before the store is used.
func (s *fileStore) RemoveStaleLocks() {
	matches, _ := filepath.Glob(filepath.Join(s.dir, "*.lock"))
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			s.log.Warn("failed to delete stale lock", logx.String("path", path), logx.Err(err))
		}
	}
}

// StaleLockCleaner is implemented by drivers that leave lock files on disk.
type StaleLockCleaner interface {
	RemoveStaleLocks()
}
