package msgqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quackbot/internal/memory"
	logx "quackbot/pkg/logx"
)

// fakeStore is an in-memory memory.Store that counts writes.
type fakeStore struct {
	data   map[string][]byte
	writes int
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (f *fakeStore) Load(ctx context.Context, key string) ([]byte, bool) {
	b, ok := f.data[key]
	return b, ok
}
func (f *fakeStore) Save(ctx context.Context, key string, data []byte) {
	f.data[key] = append([]byte(nil), data...)
	f.writes++
}
func (f *fakeStore) ClearAll(ctx context.Context) string { f.data = map[string][]byte{}; return "" }
func (f *fakeStore) Close() error                        { return nil }

var _ memory.Store = (*fakeStore)(nil)

type fakeSender struct {
	sent []string // "channel|text"
	fail map[string]error
}

func (f *fakeSender) SendChannel(ctx context.Context, channelID, text string) error {
	if err := f.fail[channelID]; err != nil {
		return err
	}
	f.sent = append(f.sent, channelID+"|"+text)
	return nil
}

func newTestService(t *testing.T, store *fakeStore, sender Sender) *Service {
	t.Helper()
	s := New(Config{Allowed: []string{"alice"}}, store, sender, time.UTC, logx.Nop())
	return s
}

func TestScheduleAssignsIncreasingIDs(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, &fakeSender{})
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		id, err := s.Schedule(ctx, ScheduleRequest{
			CallerID: "alice", ChannelID: "c1", Message: "hi", Date: "2099-01-01",
		})
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if id <= prev {
			t.Fatalf("ids not strictly increasing: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestScheduleRejectsUnauthorized(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, &fakeSender{})
	writesBefore := store.writes

	_, err := s.Schedule(context.Background(), ScheduleRequest{
		CallerID: "mallory", ChannelID: "c1", Message: "hi", Date: "2099-01-01",
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if store.writes != writesBefore {
		t.Fatal("unauthorized call must not mutate queue state")
	}
	if _, total := s.ListPending(10); total != 0 {
		t.Fatalf("queue should be empty, has %d pending", total)
	}
}

func TestScheduleRejectsMissingDueInputs(t *testing.T) {
	s := newTestService(t, newFakeStore(), &fakeSender{})
	_, err := s.Schedule(context.Background(), ScheduleRequest{CallerID: "alice", ChannelID: "c1", Message: "hi"})
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}

func TestQueueStateSurvivesRestart(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, &fakeSender{})
	ctx := context.Background()

	id, err := s.Schedule(ctx, ScheduleRequest{CallerID: "alice", ChannelID: "c1", Message: "later", Date: "2099-01-01"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// New service over the same store simulates a restart.
	s2 := newTestService(t, store, &fakeSender{})
	jobs, total := s2.ListPending(10)
	if total != 1 || jobs[0].ID != id || jobs[0].Message != "later" {
		t.Fatalf("restart lost state: total=%d jobs=%#v", total, jobs)
	}

	id2, err := s2.Schedule(ctx, ScheduleRequest{CallerID: "alice", ChannelID: "c1", Message: "again", Date: "2099-01-01"})
	if err != nil {
		t.Fatalf("Schedule after restart: %v", err)
	}
	if id2 <= id {
		t.Fatalf("next_id did not survive restart: %d after %d", id2, id)
	}
}

func TestTickDispatchesDueJobs(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{fail: map[string]error{"bad": errors.New("boom")}}
	s := newTestService(t, store, sender)
	ctx := context.Background()

	base := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if _, err := s.Schedule(ctx, ScheduleRequest{CallerID: "alice", ChannelID: "ok", Message: "due", TimeOfDay: "11:00", AuthorID: "u42"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := s.Schedule(ctx, ScheduleRequest{CallerID: "alice", ChannelID: "bad", Message: "fails", TimeOfDay: "11:00"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := s.Schedule(ctx, ScheduleRequest{CallerID: "alice", ChannelID: "ok", Message: "future", Date: "2099-01-01"}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Nothing due yet.
	s.Tick(ctx)
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent before due time, got %v", sender.sent)
	}

	// Advance past the due time.
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	writesBefore := store.writes
	s.Tick(ctx)

	if len(sender.sent) != 1 || sender.sent[0] != "ok|<@u42> due" {
		t.Fatalf("unexpected sends: %v", sender.sent)
	}
	// One persist per dispatched job (success + failure).
	if store.writes != writesBefore+2 {
		t.Fatalf("expected 2 persists, got %d", store.writes-writesBefore)
	}

	jobs, total := s.ListPending(10)
	if total != 1 || jobs[0].Message != "future" {
		t.Fatalf("only the future job should stay pending, got %#v", jobs)
	}

	// Terminal states never redispatch.
	s.Tick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("SENT/ERROR jobs must not be retried, got %v", sender.sent)
	}
}

func TestListPendingOrderAndLimit(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, &fakeSender{})
	ctx := context.Background()

	// Same due date scheduled out of order.
	for _, d := range []string{"2099-01-03", "2099-01-01", "2099-01-02", "2099-01-01"} {
		if _, err := s.Schedule(ctx, ScheduleRequest{CallerID: "alice", ChannelID: "c", Message: d, Date: d}); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	jobs, total := s.ListPending(3)
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}
	if jobs[0].Message != "2099-01-01" || jobs[1].Message != "2099-01-01" {
		t.Fatalf("jobs not ordered by due time: %#v", jobs)
	}
	if jobs[0].ID > jobs[1].ID {
		t.Fatalf("equal due times must order by id: %d before %d", jobs[0].ID, jobs[1].ID)
	}
	if jobs[2].Message != "2099-01-02" {
		t.Fatalf("unexpected third job: %#v", jobs[2])
	}
}

func TestStatusJSONRoundTripAndLegacy(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(StatusSent)
	if err != nil || string(b) != `"SENT"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}

	tests := []struct {
		raw  string
		want Status
	}{
		{`"PENDING"`, StatusPending},
		{`"sent"`, StatusSent},
		{`"ERROR"`, StatusError},
		{`0`, StatusPending},
		{`2`, StatusError},
	}
	for _, tt := range tests {
		var got Status
		if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("unmarshal %s = %v, want %v", tt.raw, got, tt.want)
		}
	}

	var bad Status
	if err := json.Unmarshal([]byte(`"LOST"`), &bad); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
