// Package level computes a source's overall CEFR level from the level
// distribution of its linked words.
package level

// levelWeights maps a CEFR band to its contribution in the weighted
// mean. The gaps between weights widen toward the advanced bands so a
// handful of C-level words pulls a source up noticeably.
var levelWeights = map[string]float64{
	"A1": 1,
	"A2": 2,
	"B1": 4,
	"B2": 6,
	"C1": 7,
	"C2": 8,
}

// Result is the aggregate of one source's word levels.
type Result struct {
	Level  string
	Mean   float64
	Counts map[string]int
	N      int
}

// Aggregate computes the weighted mean of the counted levels and maps
// it onto a band. Unknown level labels and empty levels are ignored.
// ok is false when no word carried a recognized level.
func Aggregate(counts map[string]int) (Result, bool) {
	var sum float64
	var n int
	for lvl, count := range counts {
		w, known := levelWeights[lvl]
		if !known || count <= 0 {
			continue
		}
		sum += float64(count) * w
		n += count
	}
	if n == 0 {
		return Result{Counts: counts}, false
	}

	mean := sum / float64(n)
	return Result{
		Level:  bandFor(mean),
		Mean:   mean,
		Counts: counts,
		N:      n,
	}, true
}

// bandFor maps a weighted mean onto a CEFR band using half-open
// intervals; a mean sitting exactly on a boundary belongs to the band
// above it.
func bandFor(mean float64) string {
	switch {
	case mean < 1.5:
		return "A1"
	case mean < 2.5:
		return "A2"
	case mean < 3.5:
		return "B1"
	case mean < 4.5:
		return "B2"
	case mean < 5.5:
		return "C1"
	default:
		return "C2"
	}
}
