package notion

import (
	"testing"
	"time"

	"github.com/jomei/notionapi"
)

func mel(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Melbourne")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func plain(text string) notionapi.RichText {
	return notionapi.RichText{PlainText: text, Annotations: &notionapi.Annotations{}}
}

func datePtr(t time.Time) *notionapi.Date {
	d := notionapi.Date(t)
	return &d
}

func eventPage(name string, date *notionapi.DateObject) notionapi.Page {
	props := notionapi.Properties{
		propEventDescription: &notionapi.RichTextProperty{RichText: []notionapi.RichText{plain("desc")}},
		propEventVenue:       &notionapi.RichTextProperty{RichText: []notionapi.RichText{plain("Hall A")}},
		propEventThumbnail:   &notionapi.FilesProperty{},
	}
	if name != "" {
		props[propEventName] = &notionapi.RichTextProperty{RichText: []notionapi.RichText{plain(name)}}
	}
	if date != nil {
		props[propEventDate] = &notionapi.DateProperty{Date: date}
	}
	return notionapi.Page{ID: "page-1", Properties: props}
}

func TestRenderRichText(t *testing.T) {
	tests := []struct {
		name string
		in   []notionapi.RichText
		want string
	}{
		{"plain", []notionapi.RichText{plain("hello")}, "hello"},
		{"bold", []notionapi.RichText{{PlainText: "x", Annotations: &notionapi.Annotations{Bold: true}}}, "**x**"},
		{"code inside bold", []notionapi.RichText{{PlainText: "x", Annotations: &notionapi.Annotations{Bold: true, Code: true}}}, "**`x`**"},
		{"strikethrough", []notionapi.RichText{{PlainText: "x", Annotations: &notionapi.Annotations{Strikethrough: true}}}, "~~x~~"},
		{"underline italic", []notionapi.RichText{{PlainText: "x", Annotations: &notionapi.Annotations{Italic: true, Underline: true}}}, "__*x*__"},
		{"link", []notionapi.RichText{{PlainText: "site", Href: "https://example.org"}}, "[site](https://example.org)"},
		{"concatenation", []notionapi.RichText{plain("a"), plain("b")}, "ab"},
		{"nil annotations", []notionapi.RichText{{PlainText: "x"}}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderRichText(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalize(t *testing.T) {
	loc := mel(t)

	// Date-only values arrive as midnight UTC and take the default clock.
	dateOnly := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	got := localize(dateOnly, loc, 23, 59)
	want := time.Date(2025, 8, 22, 23, 59, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("date-only: got %v, want %v", got, want)
	}

	// Timed values keep their own clock and offset.
	timed := time.Date(2025, 7, 24, 16, 0, 0, 0, time.FixedZone("", 10*3600))
	if got := localize(timed, loc, 23, 59); !got.Equal(timed) {
		t.Fatalf("timed: got %v, want %v", got, timed)
	}
}

func TestParseEventPage(t *testing.T) {
	loc := mel(t)
	start := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)

	ev, err := parseEventPage(eventPage("Workshop", &notionapi.DateObject{Start: datePtr(start)}), loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Name != "Workshop" || ev.Description != "desc" || ev.Venue != "Hall A" {
		t.Fatalf("event = %+v", ev)
	}
	if want := time.Date(2025, 8, 22, 0, 0, 0, 0, loc); !ev.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", ev.Start, want)
	}
	// Without an explicit end the event runs to the end of the start day.
	if want := time.Date(2025, 8, 22, 23, 59, 0, 0, loc); !ev.End.Equal(want) {
		t.Fatalf("end = %v, want %v", ev.End, want)
	}
}

func TestParseEventPageExplicitEnd(t *testing.T) {
	loc := mel(t)
	start := time.Date(2025, 7, 24, 16, 0, 0, 0, time.FixedZone("", 10*3600))
	end := time.Date(2025, 7, 24, 18, 0, 0, 0, time.FixedZone("", 10*3600))

	ev, err := parseEventPage(eventPage("Social", &notionapi.DateObject{Start: datePtr(start), End: datePtr(end)}), loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ev.Start.Equal(start) || !ev.End.Equal(end) {
		t.Fatalf("start=%v end=%v", ev.Start, ev.End)
	}
}

func TestParseEventPageRejectsIncompleteRows(t *testing.T) {
	loc := mel(t)
	if _, err := parseEventPage(eventPage("", &notionapi.DateObject{Start: datePtr(time.Now())}), loc); err == nil {
		t.Fatalf("want error for missing name")
	}
	if _, err := parseEventPage(eventPage("Workshop", nil), loc); err == nil {
		t.Fatalf("want error for missing date")
	}
}

func TestParseEventPageThumbnail(t *testing.T) {
	loc := mel(t)
	page := eventPage("Workshop", &notionapi.DateObject{Start: datePtr(time.Now())})
	page.Properties[propEventThumbnail] = &notionapi.FilesProperty{Files: []notionapi.File{
		{Type: "external", External: &notionapi.FileObject{URL: "https://img.example/a.png"}},
	}}
	ev, err := parseEventPage(page, loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.ThumbnailURL != "https://img.example/a.png" {
		t.Fatalf("thumbnail = %q", ev.ThumbnailURL)
	}
}

func TestParseTaskPage(t *testing.T) {
	loc := mel(t)
	taskPage := func(name string, date *notionapi.DateObject) notionapi.Page {
		props := notionapi.Properties{}
		if name != "" {
			props[propTaskName] = &notionapi.TitleProperty{Title: []notionapi.RichText{plain(name)}}
		}
		if date != nil {
			props[propTaskDue] = &notionapi.DateProperty{Date: date}
		}
		return notionapi.Page{Properties: props}
	}

	dateOnly := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	rec := parseTaskPage(taskPage("Book venue", &notionapi.DateObject{Start: datePtr(dateOnly)}), loc)
	if rec.Err != nil {
		t.Fatalf("err = %v", rec.Err)
	}
	// Date-only due dates default to 21:00 local.
	if want := time.Date(2025, 8, 22, 21, 0, 0, 0, loc); !rec.Due.Equal(want) {
		t.Fatalf("due = %v, want %v", rec.Due, want)
	}

	// A due range prefers its end.
	end := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	rec = parseTaskPage(taskPage("Span", &notionapi.DateObject{Start: datePtr(dateOnly), End: datePtr(end)}), loc)
	if want := time.Date(2025, 8, 25, 21, 0, 0, 0, loc); !rec.Due.Equal(want) {
		t.Fatalf("span due = %v, want %v", rec.Due, want)
	}

	rec = parseTaskPage(taskPage("No due", nil), loc)
	if rec.Err == nil || rec.HasDue {
		t.Fatalf("want missing-due error, got %+v", rec)
	}
	if rec.Ref != "No due" {
		t.Fatalf("ref = %q", rec.Ref)
	}

	rec = parseTaskPage(taskPage("", nil), loc)
	if rec.Err == nil || rec.Ref != unknownTaskRef {
		t.Fatalf("unnamed record = %+v", rec)
	}
}
