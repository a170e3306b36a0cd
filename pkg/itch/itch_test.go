package itch

import (
	"fmt"
	"testing"
	"time"
)

func TestCleanURL(t *testing.T) {
	got := CleanURL("https://itch.io/jam/duck-jam/preview")
	if got != "https://itch.io/jam/duck-jam" {
		t.Fatalf("got %q", got)
	}
}

func TestValidURL(t *testing.T) {
	if !ValidURL("https://itch.io/jam/duck-jam") {
		t.Fatalf("jam url rejected")
	}
	if ValidURL("https://example.org/jam/duck-jam") {
		t.Fatalf("non-itch url accepted")
	}
}

func TestParsePageCountdown(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(26*time.Hour + 30*time.Minute)
	html := fmt.Sprintf(`<html>
<h1 class="jam_title"><a href="/jam/duck-jam">Duck Jam <b>2025</b></a></h1>
<div class="countdown timer" data-end-time="%d"></div>
</html>`, deadline.Unix())

	jam := ParsePage(html, now)
	if jam.Title != "Duck Jam 2025" {
		t.Fatalf("title = %q", jam.Title)
	}
	if jam.Status != StatusRunning {
		t.Fatalf("status = %q", jam.Status)
	}
	if jam.SubmissionEnd == nil || !jam.SubmissionEnd.Equal(deadline) {
		t.Fatalf("submission end = %v", jam.SubmissionEnd)
	}
	if got := jam.Remaining(now); got != "26h 30m" {
		t.Fatalf("remaining = %q", got)
	}
	// Without a separate jam end the submission deadline stands in.
	if jam.JamEnd == nil || !jam.JamEnd.Equal(deadline) {
		t.Fatalf("jam end = %v", jam.JamEnd)
	}
}

func TestParsePageJSEndDate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	html := `<h1>Old Jam</h1>
<script>var jam = {"end_date": "2025-06-09 18:00:00", "jam_end": "2025-06-12T00:00:00Z"};</script>`

	jam := ParsePage(html, now)
	if jam.Status != StatusEnded {
		t.Fatalf("status = %q", jam.Status)
	}
	want := time.Date(2025, 6, 9, 18, 0, 0, 0, time.UTC)
	if jam.SubmissionEnd == nil || !jam.SubmissionEnd.Equal(want) {
		t.Fatalf("submission end = %v", jam.SubmissionEnd)
	}
	wantJamEnd := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	if jam.JamEnd == nil || !jam.JamEnd.Equal(wantJamEnd) {
		t.Fatalf("jam end = %v", jam.JamEnd)
	}
	if got := jam.Remaining(now); got != "" {
		t.Fatalf("remaining = %q, want empty", got)
	}
}

func TestParsePageTextStatus(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		html string
		want Status
	}{
		{"closed text wins", `<h1>J</h1> submission period is over`, StatusEnded},
		{"upcoming", `<h1>J</h1> starting soon`, StatusUpcoming},
		{"open", `<h1>J</h1> submit your game`, StatusRunning},
		{"nothing", `<h1>J</h1>`, StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePage(tt.html, now).Status; got != tt.want {
				t.Fatalf("status = %q, want %q", got, tt.want)
			}
		})
	}
}
