package eventsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"quackbot/internal/memory"
	logx "quackbot/pkg/logx"
)

const (
	managedKey = "managed_event_names"
	thumbsKey  = "event_thumbnails"

	maxVenueLen = 100
)

// Config holds the reconciliation settings.
type Config struct {
	DigestAt string `json:"digest_at"` // "HH:MM", empty disables the digest
}

// Service reconciles workspace events onto the chat platform's scheduled
// events. Runs are serialized; concurrent callers queue behind the mutex.
type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	store  memory.Store
	source SourceLister
	target TargetCRUD
	images ImageFetcher
	loc    *time.Location

	managed []string
	thumbs  map[string][]byte

	digestAt   string
	lastDigest string

	now func() time.Time
}

// New loads the managed set and thumbnail cache from the store. A nil store
// runs stateless: every run treats all target events as unmanaged.
func New(ctx context.Context, cfg Config, store memory.Store, source SourceLister, target TargetCRUD, images ImageFetcher, loc *time.Location, log logx.Logger) *Service {
	s := &Service{
		log:      log,
		store:    store,
		source:   source,
		target:   target,
		images:   images,
		loc:      loc,
		thumbs:   map[string][]byte{},
		digestAt: cfg.DigestAt,
		now:      time.Now,
	}
	if store != nil {
		s.managed = memory.LoadObject(ctx, store, managedKey, []string{})
		s.thumbs = memory.LoadObject(ctx, store, thumbsKey, map[string][]byte{})
		s.lastDigest = memory.LoadObject(ctx, store, lastDigestKey, "")
	}
	return s
}

// Reconcile runs one pass: query the source, validate, sync thumbnails,
// create or patch target events, delete events that left the source, and
// persist the managed set. Per-entity errors land in the report; only
// source or target listing failures abort the run.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := NewReport()
	start := s.now()

	records, err := s.source.QueryEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query source events: %w", err)
	}
	targets, err := s.target.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list target events: %w", err)
	}
	byName := make(map[string]TargetEvent, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}

	now := s.now()
	var valid []SourceEvent
	for _, rec := range records {
		switch {
		case rec.Err != nil || rec.Event == nil:
			rep.AddFailure(rec.Ref, "Cannot parse page")
		case rec.Event.End.Before(now):
			rep.AddFailure(rec.Event.Name, "End time is in the past")
		case utf8.RuneCountInString(rec.Event.Venue) > maxVenueLen:
			rep.AddFailure(rec.Event.Name, fmt.Sprintf("Location string length is greater than %d characters", maxVenueLen))
		default:
			valid = append(valid, *rec.Event)
		}
	}

	for _, ev := range valid {
		s.syncThumbnail(ctx, ev.Name, ev.ThumbnailURL)
	}

	for _, ev := range valid {
		if err := s.applyEvent(ctx, ev, byName, rep); err != nil {
			s.log.Error("event apply failed", logx.String("event", ev.Name), logx.Err(err))
		}
	}

	s.deleteStale(ctx, valid, byName, rep)

	names := make([]string, 0, len(valid))
	for _, ev := range valid {
		names = append(names, ev.Name)
	}
	s.managed = names
	s.persistManaged(ctx)
	s.persistThumbs(ctx)

	s.log.Info("reconciliation finished",
		logx.String("run_id", rep.RunID),
		logx.Int("events", len(valid)),
		logx.Int("failures", len(rep.Failures)),
		logx.Duration("elapsed", s.now().Sub(start)))
	return rep, nil
}

// applyEvent creates or patches one target event and records the outcome.
func (s *Service) applyEvent(ctx context.Context, ev SourceEvent, byName map[string]TargetEvent, rep *Report) error {
	cached := s.thumbs[ev.Name]

	cur, exists := byName[ev.Name]
	if !exists {
		f := EventFields{
			Name:        ev.Name,
			Description: ev.Description,
			Venue:       ev.Venue,
			Start:       ev.Start,
			End:         ev.End,
			Image:       cached,
		}
		if err := s.target.CreateEvent(ctx, f); err != nil {
			rep.AddFailure(ev.Name, "Error when creating new discord event")
			return err
		}
		rep.AddSuccess(ev.Name, "Created")
		return nil
	}

	var p EventPatch
	changed := false
	if !cur.Start.Equal(ev.Start) {
		t := ev.Start
		p.Start = &t
		changed = true
	}
	if !cur.End.Equal(ev.End) {
		t := ev.End
		p.End = &t
		changed = true
	}
	if cur.Description != ev.Description {
		d := ev.Description
		p.Description = &d
		changed = true
	}
	if cur.Venue != ev.Venue {
		v := ev.Venue
		p.Venue = &v
		changed = true
	}
	if (cached != nil) != cur.HasImage {
		changed = true
	}
	if !changed {
		rep.AddSuccess(ev.Name, "Unchanged")
		return nil
	}
	if cached != nil || cur.HasImage {
		p.SetImage = true
		p.Image = cached
	}
	if err := s.target.UpdateEvent(ctx, cur, p); err != nil {
		rep.AddFailure(ev.Name, "Error when editing existing discord event")
		return err
	}
	rep.AddSuccess(ev.Name, "Edited")
	return nil
}

// deleteStale removes target events that were managed on the previous run
// but no longer appear as valid source events.
func (s *Service) deleteStale(ctx context.Context, valid []SourceEvent, byName map[string]TargetEvent, rep *Report) {
	current := make(map[string]bool, len(valid))
	for _, ev := range valid {
		current[ev.Name] = true
	}
	var stale []string
	for _, name := range s.managed {
		if !current[name] {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		cur, exists := byName[name]
		if !exists {
			rep.AddSuccess(name, "Already removed")
			delete(s.thumbs, name)
			continue
		}
		if err := s.target.DeleteEvent(ctx, cur); err != nil {
			rep.AddFailure(name, "Cannot remove the event")
			s.log.Error("event delete failed", logx.String("event", name), logx.Err(err))
			continue
		}
		rep.AddSuccess(name, "Removed")
		delete(s.thumbs, name)
	}
}

// syncThumbnail keeps the cached image for one event name in step with its
// source URL. An empty URL evicts the cache entry; a fetch failure leaves
// any previous entry in place.
func (s *Service) syncThumbnail(ctx context.Context, name, url string) {
	if url == "" {
		if _, ok := s.thumbs[name]; ok {
			delete(s.thumbs, name)
		}
		return
	}
	if s.images == nil {
		return
	}
	data, err := s.images.Fetch(ctx, url)
	if err != nil {
		s.log.Warn("thumbnail fetch failed", logx.String("event", name), logx.Err(err))
		return
	}
	s.thumbs[name] = data
}

// ClearMemory drops the managed set and thumbnail cache. The next run
// treats every target event as unmanaged.
func (s *Service) ClearMemory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managed = nil
	s.thumbs = map[string][]byte{}
	s.persistManaged(ctx)
	s.persistThumbs(ctx)
}

// ClearBotEvents deletes every target event the bot itself created, then
// clears the managed set. Returns the number of events deleted.
func (s *Service) ClearBotEvents(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.target.ListEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list target events: %w", err)
	}
	deleted := 0
	for _, t := range targets {
		if !t.CreatedByMe {
			continue
		}
		if err := s.target.DeleteEvent(ctx, t); err != nil {
			s.log.Error("event delete failed", logx.String("event", t.Name), logx.Err(err))
			continue
		}
		deleted++
		delete(s.thumbs, t.Name)
	}
	s.managed = nil
	s.persistManaged(ctx)
	s.persistThumbs(ctx)
	return deleted, nil
}

func (s *Service) persistManaged(ctx context.Context) {
	s.managed = memory.SyncObject(ctx, s.store, managedKey, s.managed)
}

func (s *Service) persistThumbs(ctx context.Context) {
	s.thumbs = memory.SyncObject(ctx, s.store, thumbsKey, s.thumbs)
}
