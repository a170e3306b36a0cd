// Package itch scrapes itch.io jam pages for timing information. The pages
// have no stable API, so parsing is regex-based and best effort.
package itch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// JamURLPrefix is the only URL shape the scraper accepts.
	JamURLPrefix = "https://itch.io/jam/"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxPageBytes = 4 << 20
)

// Status of a jam's submission window.
type Status string

const (
	StatusRunning  Status = "running"
	StatusEnded    Status = "ended"
	StatusUpcoming Status = "upcoming"
	StatusUnknown  Status = "unknown"
)

// Jam is the timing information scraped from one jam page.
type Jam struct {
	Title         string
	Status        Status
	SubmissionEnd *time.Time
	JamEnd        *time.Time
	URL           string
}

// Remaining formats the time left until the submission deadline as "Xh Ym",
// or "" when there is no deadline or it has passed.
func (j Jam) Remaining(now time.Time) string {
	if j.SubmissionEnd == nil {
		return ""
	}
	left := j.SubmissionEnd.Sub(now)
	if left <= 0 {
		return ""
	}
	hours := int(left.Hours())
	minutes := int(left.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// CleanURL strips the /preview suffix jam organizers often share.
func CleanURL(url string) string {
	return strings.ReplaceAll(url, "/preview", "")
}

// ValidURL reports whether url points at an itch.io jam page.
func ValidURL(url string) bool {
	return strings.HasPrefix(url, JamURLPrefix)
}

var (
	titleRe     = regexp.MustCompile(`(?is)<h1[^>]*class="[^"]*jam_title[^"]*"[^>]*>(.*?)</h1>`)
	anyH1Re     = regexp.MustCompile(`(?s)<h1[^>]*>(.*?)</h1>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	countdownRe = regexp.MustCompile(`(?i)<div[^>]*class="[^"]*countdown[^"]*"[^>]*data-end-time="([^"]+)"`)
	jsEndRe     = regexp.MustCompile(`(?i)end_date["']?\s*:\s*["']([^"']+)["']`)
	jamEndRe    = regexp.MustCompile(`(?i)jam_end["']?\s*:\s*["']([^"']+)["']`)
)

// Scraper fetches and parses jam pages. Requests are rate limited so
// repeated commands cannot hammer itch.io.
type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewScraper() *Scraper {
	return &Scraper{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		now:     time.Now,
	}
}

// Scrape downloads a jam page and extracts its timing information.
func (s *Scraper) Scrape(ctx context.Context, url string) (Jam, error) {
	url = CleanURL(url)
	if !ValidURL(url) {
		return Jam{}, fmt.Errorf("itch: not a jam url: %s", url)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return Jam{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Jam{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Jam{}, fmt.Errorf("itch: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Jam{}, fmt.Errorf("itch: fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Jam{}, fmt.Errorf("itch: read %s: %w", url, err)
	}

	jam := ParsePage(string(body), s.now())
	jam.URL = url
	return jam, nil
}

// ParsePage extracts jam timing from raw page HTML.
func ParsePage(html string, now time.Time) Jam {
	jam := Jam{Title: "Unknown Jam", Status: StatusUnknown}

	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		m = anyH1Re.FindStringSubmatch(html)
	}
	if m != nil {
		jam.Title = strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
	}

	// The countdown widget carries the submission deadline as a unix
	// timestamp.
	if m := countdownRe.FindStringSubmatch(html); m != nil {
		if epoch, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			end := time.Unix(epoch, 0).UTC()
			jam.SubmissionEnd = &end
		}
	}
	// Older pages embed the deadline in page JavaScript instead.
	if jam.SubmissionEnd == nil {
		if m := jsEndRe.FindStringSubmatch(html); m != nil {
			if end, ok := parseDate(m[1]); ok {
				jam.SubmissionEnd = &end
			}
		}
	}
	if jam.SubmissionEnd != nil {
		if jam.SubmissionEnd.After(now) {
			jam.Status = StatusRunning
		} else {
			jam.Status = StatusEnded
		}
	}

	// Rating-period end, when present, differs from the submission
	// deadline.
	if m := jamEndRe.FindStringSubmatch(html); m != nil {
		if end, ok := parseDate(m[1]); ok {
			jam.JamEnd = &end
		}
	}
	if jam.JamEnd == nil {
		jam.JamEnd = jam.SubmissionEnd
	}

	lower := strings.ToLower(html)
	switch {
	case strings.Contains(lower, "submission period is over") || strings.Contains(lower, "submissions closed"):
		jam.Status = StatusEnded
	case strings.Contains(lower, "starting soon") || strings.Contains(lower, "not yet started"):
		jam.Status = StatusUpcoming
	case jam.Status == StatusUnknown &&
		(strings.Contains(lower, "submissions open") || strings.Contains(lower, "submit your game")):
		jam.Status = StatusRunning
	}

	return jam
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
