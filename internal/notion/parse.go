package notion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"quackbot/internal/services/eventsync"
)

// Events database property names.
const (
	propEventName        = "Public Name"
	propEventDate        = "Event Date"
	propEventDescription = "Public Description"
	propEventVenue       = "Venue"
	propEventThumbnail   = "Thumbnail"
)

// Tasks database property names.
const (
	propTaskName = "Task"
	propTaskDue  = "Due"
)

const (
	unknownEventRef = "<Unknown Notion Event>"
	unknownTaskRef  = "<Unknown Notion Task>"
)

// parseEventPage turns one events-database row into a typed event. End
// defaults to the end of the start day (23:59) when the row has no end.
func parseEventPage(page notionapi.Page, loc *time.Location) (*eventsync.SourceEvent, error) {
	name := richTextOf(page, propEventName)
	if name == "" {
		return nil, errors.New("missing event name")
	}
	date, err := dateOf(page, propEventDate)
	if err != nil {
		return nil, err
	}
	if date.Start == nil {
		return nil, fmt.Errorf("%s has no start", propEventDate)
	}
	start := localize(time.Time(*date.Start), loc, 0, 0)
	var end time.Time
	if date.End != nil {
		end = localize(time.Time(*date.End), loc, 23, 59)
	} else {
		end = localize(time.Time(*date.Start), loc, 23, 59)
	}
	return &eventsync.SourceEvent{
		Name:         name,
		Start:        start,
		End:          end,
		Description:  richTextOf(page, propEventDescription),
		Venue:        richTextOf(page, propEventVenue),
		ThumbnailURL: fileURLOf(page, propEventThumbnail),
	}, nil
}

// parseTaskPage turns one tasks-database row into a task record. Missing
// names and due dates are reported through the record's error field.
func parseTaskPage(page notionapi.Page, loc *time.Location) eventsync.TaskRecord {
	name := titleOf(page, propTaskName)
	if name == "" {
		return eventsync.TaskRecord{
			Ref: unknownTaskRef,
			Err: errors.New("Cannot fetch task name and date"),
		}
	}
	date, err := dateOf(page, propTaskDue)
	if err != nil || date == nil || date.Start == nil {
		return eventsync.TaskRecord{
			Ref:  name,
			Name: name,
			Err:  errors.New("Nothing set in the Due Date column"),
		}
	}
	// Prefer the range end when the due date is a span.
	raw := *date.Start
	if date.End != nil {
		raw = *date.End
	}
	return eventsync.TaskRecord{
		Ref:    name,
		Name:   name,
		Due:    localize(time.Time(raw), loc, 21, 0),
		HasDue: true,
	}
}

// localize applies the configured timezone and default clock time to
// date-only values. Notion date-only values come through as midnight UTC;
// values with an explicit time keep their own clock and offset.
func localize(t time.Time, loc *time.Location, defHour, defMin int) time.Time {
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), defHour, defMin, 0, 0, loc)
	}
	return t
}

// richTextOf renders a rich_text property as chat markdown.
func richTextOf(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok {
		return ""
	}
	return RenderRichText(rt.RichText)
}

// titleOf renders a title property as plain text.
func titleOf(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	tp, ok := prop.(*notionapi.TitleProperty)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, rt := range tp.Title {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

func dateOf(page notionapi.Page, name string) (*notionapi.DateObject, error) {
	prop, ok := page.Properties[name]
	if !ok {
		return nil, fmt.Errorf("missing property %q", name)
	}
	dp, ok := prop.(*notionapi.DateProperty)
	if !ok || dp.Date == nil {
		return nil, fmt.Errorf("property %q is not a date", name)
	}
	return dp.Date, nil
}

// fileURLOf returns the URL of the first attachment, external or uploaded.
func fileURLOf(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	fp, ok := prop.(*notionapi.FilesProperty)
	if !ok || len(fp.Files) == 0 {
		return ""
	}
	f := fp.Files[0]
	switch {
	case f.External != nil && f.External.URL != "":
		return f.External.URL
	case f.File != nil && f.File.URL != "":
		return f.File.URL
	}
	return ""
}

// RenderRichText converts Notion rich text into chat markdown, applying
// annotations inside out: code, bold, italic, underline, strikethrough,
// then link.
func RenderRichText(spans []notionapi.RichText) string {
	var b strings.Builder
	for _, span := range spans {
		text := span.PlainText
		if a := span.Annotations; a != nil {
			if a.Code {
				text = "`" + text + "`"
			}
			if a.Bold {
				text = "**" + text + "**"
			}
			if a.Italic {
				text = "*" + text + "*"
			}
			if a.Underline {
				text = "__" + text + "__"
			}
			if a.Strikethrough {
				text = "~~" + text + "~~"
			}
		}
		if span.Href != "" {
			text = "[" + text + "](" + span.Href + ")"
		}
		b.WriteString(text)
	}
	return b.String()
}
