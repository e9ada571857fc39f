// Package transcript strips subtitle noise (sequence numbers, timestamp
// lines, HTML tags) out of converted text before extraction.
package transcript

import (
	"regexp"
	"strings"
)

var (
	reSequence  = regexp.MustCompile(`^\d+$`)
	reTimestamp = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)
	reBareTime  = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[,.]\d{3}`)
	reTag       = regexp.MustCompile(`<[^>]*>`)
	reMultiNL   = regexp.MustCompile(`\n{3,}`)
)

// Clean removes subtitle sequence numbers, timestamp lines, and HTML
// tags from raw subtitle or transcript text. It is deterministic and has
// no error path: empty input yields empty output.
//
// Lines are grouped into blocks separated by blank lines; within a block
// a line is dropped when it is pure digits (a subtitle sequence number)
// or starts with a timestamp. Kept blocks are joined with a blank line.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if reSequence.MatchString(trimmed) || reTimestamp.MatchString(trimmed) || reBareTime.MatchString(trimmed) {
			continue
		}
		current = append(current, line)
	}
	flush()

	out := strings.Join(blocks, "\n\n")
	out = reTag.ReplaceAllString(out, "")
	out = reTimestamp.ReplaceAllString(out, "")

	kept := strings.Split(out, "\n")
	for i := range kept {
		kept[i] = strings.TrimRight(kept[i], " \t")
	}
	out = strings.Join(kept, "\n")
	out = reMultiNL.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
