// Package msgqueue implements the persistent scheduled-message queue.
//
// Jobs are appended by authorized users, persisted after every mutation, and
// dispatched by a periodic tick. A job's outcome (SENT or ERROR) is terminal:
// failed sends are visible in the listing but never retried.
package msgqueue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"quackbot/internal/memory"
	"quackbot/pkg/chatfmt"
	logx "quackbot/pkg/logx"
)

const stateKey = "message_queue"

// ErrNotAuthorized is returned when the caller is not in the allow-set.
var ErrNotAuthorized = errors.New("not authorized to schedule messages")

// Sender delivers a message to a channel, resolving the channel id on the
// chat platform. Implemented by the discord adapter.
type Sender interface {
	SendChannel(ctx context.Context, channelID, text string) error
}

type Config struct {
	// Allowed are the user IDs permitted to schedule messages. Empty means
	// nobody (the gate is deny-by-default).
	Allowed []string
}

type ScheduleRequest struct {
	CallerID  string
	ChannelID string
	Message   string
	Date      string // optional, "2006-01-02" local
	TimeOfDay string // optional, "15:04" or "15:04:05" local
	AuthorID  string // mentioned in front of the message when set
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	store  memory.Store
	sender Sender
	loc    *time.Location

	allowed map[string]struct{}
	st      queueState

	now func() time.Time
}

func New(cfg Config, store memory.Store, sender Sender, loc *time.Location, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	allowed := make(map[string]struct{}, len(cfg.Allowed))
	for _, id := range cfg.Allowed {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}
	s := &Service{
		log:     log,
		store:   store,
		sender:  sender,
		loc:     loc,
		allowed: allowed,
		now:     time.Now,
	}
	s.st = memory.LoadObject(context.Background(), store, stateKey, queueState{NextID: 1})
	if s.st.NextID < 1 {
		s.st.NextID = 1
	}
	s.log.Info("message queue loaded", logx.Int("jobs", len(s.st.Jobs)), logx.Int64("next_id", s.st.NextID))
	return s
}

// SetAllowed replaces the allow-set (used on config hot reload).
func (s *Service) SetAllowed(ids []string) {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			m[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.allowed = m
	s.mu.Unlock()
}

// Schedule validates the caller and the due-time inputs, appends a PENDING
// job, persists the queue, and returns the new job id.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.allowed[req.CallerID]; !ok {
		return 0, ErrNotAuthorized
	}
	due, err := ResolveDueTime(s.now(), req.Date, req.TimeOfDay, s.loc)
	if err != nil {
		return 0, err
	}

	id := s.st.NextID
	s.st.NextID++
	s.st.Jobs = append(s.st.Jobs, Job{
		ID:        id,
		ChannelID: req.ChannelID,
		Message:   req.Message,
		DueAt:     due,
		Status:    StatusPending,
		AuthorID:  req.AuthorID,
	})
	s.persistLocked(ctx)

	s.log.Info("message scheduled",
		logx.Int64("job", id),
		logx.String("channel", req.ChannelID),
		logx.Time("due_at", due))
	return id, nil
}

// Tick dispatches every PENDING job whose due time has passed. The queue is
// persisted after each individual status change so a crash mid-tick loses at
// most the in-flight job's update.
func (s *Service) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for i := range s.st.Jobs {
		j := &s.st.Jobs[i]
		if j.Status != StatusPending || j.DueAt.After(now) {
			continue
		}

		text := j.Message
		if j.AuthorID != "" {
			text = chatfmt.Mention(j.AuthorID) + " " + text
		}
		if err := s.sender.SendChannel(ctx, j.ChannelID, text); err != nil {
			j.Status = StatusError
			s.log.Warn("scheduled send failed", logx.Int64("job", j.ID), logx.String("channel", j.ChannelID), logx.Err(err))
		} else {
			j.Status = StatusSent
			s.log.Info("scheduled message sent", logx.Int64("job", j.ID), logx.String("channel", j.ChannelID))
		}
		s.persistLocked(ctx)
	}
}

// ListPending returns up to limit PENDING jobs ordered by (due time, id),
// and the total pending count for "showing N of M" reporting.
func (s *Service) ListPending(limit int) ([]Job, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Job, 0, len(s.st.Jobs))
	for _, j := range s.st.Jobs {
		if j.Status == StatusPending {
			pending = append(pending, j)
		}
	}
	sort.Slice(pending, func(a, b int) bool {
		if !pending[a].DueAt.Equal(pending[b].DueAt) {
			return pending[a].DueAt.Before(pending[b].DueAt)
		}
		return pending[a].ID < pending[b].ID
	})
	total := len(pending)
	if limit >= 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, total
}

// Flush persists the current queue state. Called at shutdown.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
}

func (s *Service) persistLocked(ctx context.Context) {
	s.st = memory.SyncObject(ctx, s.store, stateKey, s.st)
}
