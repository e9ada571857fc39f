// Package extract asks the language model for the vocabulary word list
// of a converted source. It makes exactly one model call per source.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/furkantekkartal/vocabforge/pkg/ai"
)

// ErrEmptyExtraction is returned when the model produced no usable
// words. The pipeline treats it as fatal for the run.
var ErrEmptyExtraction = errors.New("extraction produced no words")

// Extractor runs the word extraction prompt against a Generator.
type Extractor struct {
	Gen ai.Generator
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
}

// Extract returns the raw word list for the given source content. The
// response is split on newlines; list markers and blank lines are
// dropped. Words are not validated or deduplicated here.
func (e *Extractor) Extract(ctx context.Context, sourceType, content string) ([]string, error) {
	system, user := ai.ExtractionPrompt(sourceType, content)
	resp, err := e.Gen.Generate(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	var words []string
	for _, line := range strings.Split(resp, "\n") {
		w := cleanLine(line)
		if w != "" {
			words = append(words, w)
		}
	}
	if e.Logger != nil {
		e.Logger.Printf("extracted %d words from %s source", len(words), sourceType)
	}
	if len(words) == 0 {
		return nil, ErrEmptyExtraction
	}
	return words, nil
}

// cleanLine strips bullet markers and numbering the model sometimes
// adds despite the one-word-per-line instruction.
func cleanLine(line string) string {
	w := strings.TrimSpace(line)
	w = strings.TrimLeft(w, "-*• \t")
	if i := strings.IndexAny(w, ".)"); i > 0 && i <= 3 && isDigits(w[:i]) {
		w = strings.TrimSpace(w[i+1:])
	}
	return strings.TrimSpace(w)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
