package eventsync

import (
	"context"
	"time"
)

// SourceEvent is a workspace event row parsed into its typed form at the
// boundary. Name and Start are required by the parser; End defaults to the
// end of the start day when the source leaves it empty.
type SourceEvent struct {
	Name         string
	Start        time.Time
	End          time.Time
	Description  string
	Venue        string
	ThumbnailURL string
}

// SourceRecord is one raw source row. Rows that failed to parse carry Err and
// a Ref placeholder used in failure reporting; they never produce a partial
// event.
type SourceRecord struct {
	Ref   string
	Event *SourceEvent
	Err   error
}

// TaskRecord is one task row for the daily digest.
type TaskRecord struct {
	Ref    string
	Name   string
	Due    time.Time
	HasDue bool
	Err    error
}

// SourceLister queries the external workspace. Implemented by the notion
// client.
type SourceLister interface {
	QueryEvents(ctx context.Context) ([]SourceRecord, error)
	QueryTasks(ctx context.Context) ([]TaskRecord, error)
}

// TargetEvent is a scheduled event as it currently exists on the chat
// platform.
type TargetEvent struct {
	ID          string
	Name        string
	Start       time.Time
	End         time.Time
	Description string
	Venue       string
	HasImage    bool
	CreatedByMe bool
}

// EventFields is the payload for creating a new target event.
type EventFields struct {
	Name        string
	Description string
	Venue       string
	Start       time.Time
	End         time.Time
	Image       []byte // optional cover image
}

// EventPatch is a minimal field-level update. Nil pointer fields are left
// untouched. When SetImage is true the cover image is replaced with Image,
// or removed if Image is nil.
type EventPatch struct {
	Start       *time.Time
	End         *time.Time
	Description *string
	Venue       *string
	SetImage    bool
	Image       []byte
}

// TargetCRUD mutates scheduled events on the chat platform. Implemented by
// the discord adapter.
type TargetCRUD interface {
	ListEvents(ctx context.Context) ([]TargetEvent, error)
	CreateEvent(ctx context.Context, f EventFields) error
	UpdateEvent(ctx context.Context, ev TargetEvent, p EventPatch) error
	DeleteEvent(ctx context.Context, ev TargetEvent) error
}

// ImageFetcher downloads a thumbnail. A non-nil error leaves any previously
// cached image untouched.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
