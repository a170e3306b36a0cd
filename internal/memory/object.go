package memory

import (
	"context"
	"encoding/json"
	"time"
)

// envelope wraps every stored value with the wall-clock time of the write.
// SyncObject compares this timestamp against "now" to pick a winner when the
// in-memory copy and the stored copy have diverged (e.g. across restarts).
type envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func saveEnvelope(ctx context.Context, s Store, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	env, err := json.Marshal(envelope{Timestamp: time.Now(), Data: data})
	if err != nil {
		return
	}
	s.Save(ctx, key, env)
}

// SyncObject reconciles value against the stored record under key using
// last-write-wins: the stored record wins only when its timestamp is in the
// future (an in-flight write from another process); otherwise the caller's
// value wins. The winner is re-stored with a fresh timestamp and returned.
//
// This is a simple clock comparison, not a vector clock. It is only safe
// in a single-writer deployment.
func SyncObject[T any](ctx context.Context, s Store, key string, value T) T {
	if s == nil {
		return value
	}
	keep := value
	if raw, ok := s.Load(ctx, key); ok {
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Timestamp.After(time.Now()) {
			var stored T
			if err := json.Unmarshal(env.Data, &stored); err == nil {
				keep = stored
			}
		}
	}
	saveEnvelope(ctx, s, key, keep)
	return keep
}

// LoadObject returns the stored value under key, or def when the key is
// absent or its payload is malformed. The result is written back with a
// fresh timestamp so a subsequent SyncObject sees this process as current.
func LoadObject[T any](ctx context.Context, s Store, key string, def T) T {
	if s == nil {
		return def
	}
	got := def
	if raw, ok := s.Load(ctx, key); ok {
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
			var stored T
			if err := json.Unmarshal(env.Data, &stored); err == nil {
				got = stored
			}
		}
	}
	saveEnvelope(ctx, s, key, got)
	return got
}
