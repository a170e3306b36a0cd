package discord

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"quackbot/internal/services/eventsync"
)

// ListEvents returns the guild's scheduled events.
func (a *Adapter) ListEvents(ctx context.Context) ([]eventsync.TargetEvent, error) {
	s, err := a.live()
	if err != nil {
		return nil, err
	}
	events, err := s.GuildScheduledEvents(a.cfg.GuildID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: list scheduled events: %w", err)
	}
	me := a.botUserID()
	out := make([]eventsync.TargetEvent, 0, len(events))
	for _, ev := range events {
		t := eventsync.TargetEvent{
			ID:          ev.ID,
			Name:        ev.Name,
			Start:       ev.ScheduledStartTime,
			Description: ev.Description,
			Venue:       ev.EntityMetadata.Location,
			HasImage:    ev.Image != "",
			CreatedByMe: me != "" && ev.CreatorID == me,
		}
		if ev.ScheduledEndTime != nil {
			t.End = *ev.ScheduledEndTime
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateEvent creates an external scheduled event, guild-only visibility.
func (a *Adapter) CreateEvent(ctx context.Context, f eventsync.EventFields) error {
	s, err := a.live()
	if err != nil {
		return err
	}
	start := f.Start
	end := f.End
	params := &discordgo.GuildScheduledEventParams{
		Name:               f.Name,
		Description:        f.Description,
		ScheduledStartTime: &start,
		ScheduledEndTime:   &end,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityMetadata:     &discordgo.GuildScheduledEventEntityMetadata{Location: f.Venue},
	}
	if f.Image != nil {
		params.Image = imageDataURI(f.Image)
	}
	if _, err := s.GuildScheduledEventCreate(a.cfg.GuildID, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: create event %q: %w", f.Name, err)
	}
	return nil
}

// UpdateEvent applies a field patch to an existing scheduled event. A patch
// that clears the cover image goes through a raw request because the typed
// params cannot serialize an explicit null image.
func (a *Adapter) UpdateEvent(ctx context.Context, ev eventsync.TargetEvent, p eventsync.EventPatch) error {
	s, err := a.live()
	if err != nil {
		return err
	}
	if p.SetImage && p.Image == nil {
		body := map[string]any{"image": nil}
		endpoint := discordgo.EndpointGuildScheduledEvent(a.cfg.GuildID, ev.ID)
		if _, err := s.RequestWithBucketID(http.MethodPatch, endpoint, body, endpoint, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord: clear event image %q: %w", ev.Name, err)
		}
	}
	params := &discordgo.GuildScheduledEventParams{
		ScheduledStartTime: p.Start,
		ScheduledEndTime:   p.End,
	}
	touched := p.Start != nil || p.End != nil
	if p.Description != nil {
		params.Description = *p.Description
		touched = true
	}
	if p.Venue != nil {
		params.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{Location: *p.Venue}
		touched = true
	}
	if p.SetImage && p.Image != nil {
		params.Image = imageDataURI(p.Image)
		touched = true
	}
	if !touched {
		return nil
	}
	if _, err := s.GuildScheduledEventEdit(a.cfg.GuildID, ev.ID, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: edit event %q: %w", ev.Name, err)
	}
	return nil
}

// DeleteEvent removes a scheduled event.
func (a *Adapter) DeleteEvent(ctx context.Context, ev eventsync.TargetEvent) error {
	s, err := a.live()
	if err != nil {
		return err
	}
	if err := s.GuildScheduledEventDelete(a.cfg.GuildID, ev.ID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete event %q: %w", ev.Name, err)
	}
	return nil
}

func imageDataURI(b []byte) string {
	return "data:" + http.DetectContentType(b) + ";base64," + base64.StdEncoding.EncodeToString(b)
}
