package eventsync

import (
	"strings"

	"github.com/google/uuid"
)

// Report accumulates per-entity outcome lines for one run. Success lines
// render before failure lines, each as "- name (tag)".
type Report struct {
	RunID     string
	Successes []string
	Failures  []string
}

func NewReport() *Report {
	return &Report{RunID: uuid.NewString()}
}

func (r *Report) AddSuccess(name, tag string) {
	r.Successes = append(r.Successes, "- "+name+" ("+tag+")")
}

func (r *Report) AddFailure(name, reason string) {
	r.Failures = append(r.Failures, "- "+name+" ("+reason+")")
}

// CountTag reports how many success lines carry the given parenthetical tag.
func (r *Report) CountTag(tag string) int {
	n := 0
	suffix := " (" + tag + ")"
	for _, line := range r.Successes {
		if strings.HasSuffix(line, suffix) {
			n++
		}
	}
	return n
}

// Render formats the report under the given section headers. Empty sections
// are omitted; an entirely empty report renders as empty.
func (r *Report) Render(successHeader, failureHeader string) string {
	var b strings.Builder
	if len(r.Successes) > 0 {
		b.WriteString(successHeader)
		b.WriteString("\n")
		b.WriteString(strings.Join(r.Successes, "\n"))
	}
	if len(r.Failures) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(failureHeader)
		b.WriteString("\n")
		b.WriteString(strings.Join(r.Failures, "\n"))
	}
	return b.String()
}
