package eventsync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func taskDue(name string, due time.Time) TaskRecord {
	return TaskRecord{Name: name, Due: due, HasDue: true}
}

func TestDailyDigestFiltersToday(t *testing.T) {
	today := baseTime()
	src := &fakeSource{tasks: []TaskRecord{
		taskDue("Book venue", today.Add(2*time.Hour)),
		taskDue("Order pizza", today.Add(-3*time.Hour)),
		taskDue("Next week", today.Add(7*24*time.Hour)),
		{Name: "No date"},
		{Ref: "task-9", Err: errors.New("bad row")},
	}}
	s := newTestService(t, nil, src, newFakeTarget(), nil)

	count, rep, err := s.DailyDigest(context.Background(), nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if len(rep.Successes) != 2 {
		t.Fatalf("lines = %v", rep.Successes)
	}
	if !strings.HasPrefix(rep.Successes[0], "- Book venue - Due: ") {
		t.Fatalf("line = %q", rep.Successes[0])
	}
	if len(rep.Failures) != 1 || !strings.Contains(rep.Failures[0], "task-9") {
		t.Fatalf("failures = %v", rep.Failures)
	}
}

func TestDailyDigestMasksAndGroups(t *testing.T) {
	today := baseTime()
	src := &fakeSource{tasks: []TaskRecord{
		taskDue("alice: setup", today.Add(time.Hour)),
		taskDue("alice: teardown", today.Add(2*time.Hour)),
	}}
	s := newTestService(t, nil, src, newFakeTarget(), nil)

	mask := func(name string) string {
		return strings.SplitN(name, ":", 2)[0]
	}
	count, rep, err := s.DailyDigest(context.Background(), mask)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if len(rep.Successes) != 1 || !strings.HasPrefix(rep.Successes[0], "- alice - Due: ") {
		t.Fatalf("lines = %v", rep.Successes)
	}
}

func TestRunDigestIfDueFiresOncePerDay(t *testing.T) {
	src := &fakeSource{tasks: []TaskRecord{
		taskDue("Book venue", baseTime().Add(time.Hour)),
	}}
	s := newTestService(t, nil, src, newFakeTarget(), nil)
	if err := s.SetDigestTime(context.Background(), "09:00"); err != nil {
		t.Fatalf("set time: %v", err)
	}

	var sent []string
	send := func(ctx context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}

	// Before the trigger time: nothing fires.
	s.now = func() time.Time { return baseTime().Add(-4 * time.Hour) } // 08:00
	if err := s.RunDigestIfDue(context.Background(), nil, send); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("fired before trigger: %v", sent)
	}

	// After the trigger: fires exactly once despite repeated polls.
	s.now = baseTime // 12:00
	for i := 0; i < 3; i++ {
		if err := s.RunDigestIfDue(context.Background(), nil, send); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d times, want 1", len(sent))
	}
	if !strings.Contains(sent[0], "Book venue") {
		t.Fatalf("digest text = %q", sent[0])
	}

	// Next day: fires again.
	s.now = func() time.Time { return baseTime().Add(24 * time.Hour) }
	if err := s.RunDigestIfDue(context.Background(), nil, send); err != nil {
		t.Fatalf("next day: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d times, want 2", len(sent))
	}
}

func TestRunDigestIfDueDisabledWithoutTime(t *testing.T) {
	s := newTestService(t, nil, &fakeSource{}, newFakeTarget(), nil)
	fired := false
	err := s.RunDigestIfDue(context.Background(), nil, func(ctx context.Context, text string) error {
		fired = true
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fired {
		t.Fatalf("fired with no configured time")
	}
}

func TestSetDigestTimeRejectsBadInput(t *testing.T) {
	s := newTestService(t, nil, &fakeSource{}, newFakeTarget(), nil)
	if err := s.SetDigestTime(context.Background(), "25:00"); err == nil {
		t.Fatalf("want error for 25:00")
	}
}
