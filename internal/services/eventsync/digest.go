package eventsync

import (
	"context"
	"time"

	"quackbot/internal/memory"
	"quackbot/internal/services/scheduler"
	"quackbot/pkg/chatfmt"
	logx "quackbot/pkg/logx"
)

const lastDigestKey = "daily_digest_last_run"

// NameMask rewrites a task name for display, typically to turn a person's
// name into a platform mention. The identity function is a valid mask.
type NameMask func(name string) string

// DailyDigest lists the tasks due today in the service's timezone, grouped
// by masked name. Returns the number of due tasks alongside the report.
func (s *Service) DailyDigest(ctx context.Context, mask NameMask) (int, *Report, error) {
	if mask == nil {
		mask = func(name string) string { return name }
	}
	records, err := s.source.QueryTasks(ctx)
	if err != nil {
		return 0, nil, err
	}

	rep := NewReport()
	today := s.now().In(s.loc)
	count := 0
	seen := map[string]bool{}
	var order []string
	due := map[string]time.Time{}
	for _, rec := range records {
		if rec.Err != nil {
			rep.AddFailure(rec.Ref, rec.Err.Error())
			continue
		}
		if !rec.HasDue || !sameDay(rec.Due.In(s.loc), today) {
			continue
		}
		count++
		masked := mask(rec.Name)
		if !seen[masked] {
			seen[masked] = true
			order = append(order, masked)
			due[masked] = rec.Due
		}
	}
	for _, masked := range order {
		rep.Successes = append(rep.Successes, "- "+masked+" - Due: "+chatfmt.LongDate(due[masked]))
	}
	return count, rep, nil
}

// ListTasks reports every in-progress task with its due date, without the
// today filter the digest applies.
func (s *Service) ListTasks(ctx context.Context) (*Report, error) {
	records, err := s.source.QueryTasks(ctx)
	if err != nil {
		return nil, err
	}
	rep := NewReport()
	for _, rec := range records {
		if rec.Err != nil {
			rep.AddFailure(rec.Ref, rec.Err.Error())
			continue
		}
		line := "- " + rec.Name
		if rec.HasDue {
			line += " - Due: " + chatfmt.LongDate(rec.Due)
		}
		rep.Successes = append(rep.Successes, line)
	}
	return rep, nil
}

// SetDigestTime reconfigures the daily trigger and resets the once-per-day
// gate so the digest can fire again under the new time.
func (s *Service) SetDigestTime(ctx context.Context, at string) error {
	if at != "" {
		if _, _, err := scheduler.ParseHHMM(at); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digestAt = at
	s.lastDigest = ""
	s.persistLastDigest(ctx)
	return nil
}

// RunDigestIfDue fires the digest at most once per civil day, once the
// configured wall-clock time has passed. Meant to be polled on a short
// interval; the persisted marker keeps restarts from re-sending.
func (s *Service) RunDigestIfDue(ctx context.Context, mask NameMask, send func(ctx context.Context, text string) error) error {
	s.mu.Lock()
	at := s.digestAt
	last := s.lastDigest
	s.mu.Unlock()
	if at == "" {
		return nil
	}
	hour, minute, err := scheduler.ParseHHMM(at)
	if err != nil {
		return err
	}
	now := s.now().In(s.loc)
	trigger := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.loc)
	if now.Before(trigger) {
		return nil
	}
	today := now.Format("2006-01-02")
	if last == today {
		return nil
	}

	count, rep, err := s.DailyDigest(ctx, mask)
	if err != nil {
		return err
	}
	if count > 0 || len(rep.Failures) > 0 {
		text := rep.Render("Tasks due today:", "Tasks that could not be read:")
		if err := send(ctx, text); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.lastDigest = today
	s.persistLastDigest(ctx)
	s.mu.Unlock()
	s.log.Info("daily digest sent", logx.Int("tasks", count))
	return nil
}

func (s *Service) persistLastDigest(ctx context.Context) {
	s.lastDigest = memory.SyncObject(ctx, s.store, lastDigestKey, s.lastDigest)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
