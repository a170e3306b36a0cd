// Package notion reads event and task rows from Notion databases and turns
// them into typed records for the reconciliation service.
package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"quackbot/internal/services/eventsync"
	logx "quackbot/pkg/logx"
)

// Config holds the workspace coordinates.
type Config struct {
	Token      string `json:"token"`
	EventsDB   string `json:"events_db"`
	TasksDB    string `json:"tasks_db"`
	PublicProp string `json:"public_prop"` // checkbox gating event visibility
}

// Client implements eventsync.SourceLister against the Notion API.
type Client struct {
	api *notionapi.Client
	cfg Config
	loc *time.Location
	log logx.Logger
}

func New(cfg Config, loc *time.Location, log logx.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("notion: token is required")
	}
	if cfg.PublicProp == "" {
		cfg.PublicProp = "Public Checkbox"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		api: notionapi.NewClient(notionapi.Token(cfg.Token)),
		cfg: cfg,
		loc: loc,
		log: log,
	}, nil
}

// QueryEvents returns every public row of the events database, parsed. Rows
// that fail to parse come back as error records so the caller can report
// them without losing the rest of the batch.
func (c *Client) QueryEvents(ctx context.Context) ([]eventsync.SourceRecord, error) {
	if c.cfg.EventsDB == "" {
		return nil, fmt.Errorf("notion: events database is not configured")
	}
	pages, err := c.queryAll(ctx, c.cfg.EventsDB, &notionapi.PropertyFilter{
		Property: c.cfg.PublicProp,
		Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
	})
	if err != nil {
		return nil, fmt.Errorf("query events database: %w", err)
	}
	records := make([]eventsync.SourceRecord, 0, len(pages))
	for _, page := range pages {
		ev, err := parseEventPage(page, c.loc)
		if err != nil {
			c.log.Warn("event page rejected", logx.String("page", string(page.ID)), logx.Err(err))
			ref := richTextOf(page, propEventName)
			if ref == "" {
				ref = unknownEventRef
			}
			records = append(records, eventsync.SourceRecord{Ref: ref, Err: err})
			continue
		}
		records = append(records, eventsync.SourceRecord{Ref: ev.Name, Event: ev})
	}
	return records, nil
}

// QueryTasks returns every row of the tasks database, parsed.
func (c *Client) QueryTasks(ctx context.Context) ([]eventsync.TaskRecord, error) {
	if c.cfg.TasksDB == "" {
		return nil, fmt.Errorf("notion: tasks database is not configured")
	}
	pages, err := c.queryAll(ctx, c.cfg.TasksDB, &notionapi.PropertyFilter{
		Property: "Status",
		Status:   &notionapi.StatusFilterCondition{Equals: "In progress"},
	})
	if err != nil {
		return nil, fmt.Errorf("query tasks database: %w", err)
	}
	records := make([]eventsync.TaskRecord, 0, len(pages))
	for _, page := range pages {
		records = append(records, parseTaskPage(page, c.loc))
	}
	return records, nil
}

// queryAll follows pagination cursors until the database is exhausted.
func (c *Client) queryAll(ctx context.Context, dbID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req := &notionapi.DatabaseQueryRequest{Filter: filter}
	for {
		resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			return pages, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

