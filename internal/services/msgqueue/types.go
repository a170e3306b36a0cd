package msgqueue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is a job's terminal-outcome state. PENDING jobs are picked up by the
// dispatch tick; SENT and ERROR are terminal and never revisited.
type Status int

const (
	StatusPending Status = iota
	StatusSent
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusSent:
		return "SENT"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both the canonical string form and legacy records
// that stored the status as a bare number.
func (s *Status) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "PENDING":
			*s = StatusPending
		case "SENT":
			*s = StatusSent
		case "ERROR":
			*s = StatusError
		default:
			return fmt.Errorf("unknown job status %q", v)
		}
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("unknown job status %s", b)
	}
	switch Status(n) {
	case StatusPending, StatusSent, StatusError:
		*s = Status(n)
	default:
		return fmt.Errorf("unknown job status %d", n)
	}
	return nil
}

// Job is one scheduled send request. DueAt is stored in UTC.
type Job struct {
	ID        int64     `json:"id"`
	ChannelID string    `json:"channel_id"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`
	Status    Status    `json:"status"`
	AuthorID  string    `json:"author_id,omitempty"`
}

// queueState is the persisted whole-queue record. Jobs are retained after
// dispatch for listing; NextID only ever grows.
type queueState struct {
	Jobs   []Job `json:"jobs"`
	NextID int64 `json:"next_id"`
}
