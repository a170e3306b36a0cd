// Package chatfmt builds Discord-flavoured message text: timestamp tokens,
// user mentions, and chunking of long responses to the platform limit.
package chatfmt

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLen is Discord's message content limit in characters.
const MaxMessageLen = 2000

// LongDate renders dt as a dynamic timestamp token, e.g. "July 19, 2025".
func LongDate(dt time.Time) string { return token(dt, "D") }

// ShortDateTime renders dt as e.g. "August 5, 2024 4:00 PM".
func ShortDateTime(dt time.Time) string { return token(dt, "f") }

// ShortTime renders dt as e.g. "4:00 PM".
func ShortTime(dt time.Time) string { return token(dt, "t") }

// FullDateTime renders dt as e.g. "Monday, August 5, 2024 4:00 PM".
func FullDateTime(dt time.Time) string { return token(dt, "F") }

// Relative renders dt as e.g. "in 2 hours".
func Relative(dt time.Time) string { return token(dt, "R") }

func token(dt time.Time, style string) string {
	return "<t:" + strconv.FormatInt(dt.Unix(), 10) + ":" + style + ">"
}

// Mention renders a user mention for the given user ID.
func Mention(userID string) string {
	if userID == "" {
		return ""
	}
	return "<@" + userID + ">"
}

// Chunk splits text into messages of at most MaxMessageLen characters,
// breaking on line boundaries where possible. A single line longer than the
// limit is hard-split.
func Chunk(text string) []string {
	return ChunkN(text, MaxMessageLen)
}

// ChunkN is Chunk with an explicit size limit (exposed for tests).
func ChunkN(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		ll := utf8.RuneCountInString(line)
		for ll > limit {
			// Hard split an oversized line.
			flush()
			runes := []rune(line)
			out = append(out, string(runes[:limit]))
			line = string(runes[limit:])
			ll = utf8.RuneCountInString(line)
		}
		// +1 for the joining newline.
		if curLen > 0 && curLen+1+ll > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n")
			curLen++
		}
		cur.WriteString(line)
		curLen += ll
	}
	flush()
	return out
}
