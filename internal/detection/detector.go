// Package detection finds completion keywords in free-text tool output and
// scores them.
//
// Each keyword occurrence starts at BaseConfidence. Failure indicators inside
// the surrounding window pull the score down by distance (within
// NearPenaltyDistance: -40, within FarPenaltyDistance: -20) and a category
// positive indicator anywhere in the window adds 10, capped at 100.
package detection

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vietddude/relihub/internal/core/domain"
)

const (
	BaseConfidence = 85
	// MinConfidence is the lowest score Detect reports.
	MinConfidence = 60

	WindowRadius        = 500
	NearPenaltyDistance = 50
	FarPenaltyDistance  = 150
	NearPenalty         = 40
	FarPenalty          = 20
	PositiveBonus       = 10

	// SnippetRadius bounds the context snippet around a match.
	SnippetRadius = 100
)

type match struct {
	category domain.Category
	keyword  string
	start    int
	end      int
	score    int
}

// Detector scores keyword matches in tool output.
type Detector struct {
	rules      []categoryRule
	indicators []string
}

// New returns a detector with the built-in keyword table.
func New() *Detector {
	return &Detector{
		rules:      rules,
		indicators: failureIndicators,
	}
}

// Detect returns the best match scoring at least MinConfidence, or nil.
func (d *Detector) Detect(text string) *domain.DetectionResult {
	best := d.Best(text)
	if best == nil || best.Confidence < MinConfidence {
		return nil
	}
	return best
}

// Best returns the highest scoring match regardless of threshold, or nil
// when no keyword occurs in text.
func (d *Detector) Best(text string) *domain.DetectionResult {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lower := strings.ToLower(text)
	matches := d.findMatches(lower)
	if len(matches) == 0 {
		return nil
	}

	for i := range matches {
		matches[i].score = d.score(lower, matches[i])
	}

	// Stable so that, on equal scores, discovery order decides
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	top := matches[0]
	return &domain.DetectionResult{
		Keyword:        top.keyword,
		Confidence:     top.score,
		Category:       top.category,
		ContextSnippet: snippet(text, lower, top.start, top.end),
	}
}

func (d *Detector) findMatches(lower string) []match {
	var out []match
	for _, rule := range d.rules {
		for _, kw := range rule.keywords {
			offset := 0
			for {
				idx := strings.Index(lower[offset:], kw)
				if idx < 0 {
					break
				}
				start := offset + idx
				out = append(out, match{
					category: rule.category,
					keyword:  kw,
					start:    start,
					end:      start + len(kw),
				})
				offset = start + len(kw)
			}
		}
	}
	return out
}

func (d *Detector) score(lower string, m match) int {
	winStart := max(0, m.start-WindowRadius)
	winEnd := min(len(lower), m.end+WindowRadius)
	window := lower[winStart:winEnd]

	score := BaseConfidence

	nearest := -1
	for _, ind := range d.indicators {
		offset := 0
		for {
			idx := strings.Index(window[offset:], ind)
			if idx < 0 {
				break
			}
			indStart := winStart + offset + idx
			indEnd := indStart + len(ind)
			dist := distance(m.start, m.end, indStart, indEnd)
			if nearest < 0 || dist < nearest {
				nearest = dist
			}
			offset += idx + len(ind)
		}
	}
	switch {
	case nearest < 0:
	case nearest <= NearPenaltyDistance:
		score -= NearPenalty
	case nearest <= FarPenaltyDistance:
		score -= FarPenalty
	}

	for _, rule := range d.rules {
		if rule.category != m.category {
			continue
		}
		for _, pos := range rule.positive {
			if strings.Contains(window, pos) {
				score = min(100, score+PositiveBonus)
				return score
			}
		}
	}
	return score
}

// distance is the gap in bytes between two spans; overlapping spans are 0 apart.
func distance(aStart, aEnd, bStart, bEnd int) int {
	switch {
	case bEnd <= aStart:
		return aStart - bEnd
	case bStart >= aEnd:
		return bStart - aEnd
	default:
		return 0
	}
}

// snippet cuts a bounded window around the match. Offsets come from the
// lowered text, so the original is only used when lowering kept byte lengths.
func snippet(original, lower string, start, end int) string {
	src := original
	if len(original) != len(lower) {
		src = lower
	}
	from := max(0, start-SnippetRadius)
	to := min(len(src), end+SnippetRadius)
	out := strings.TrimSpace(src[from:to])
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "")
	}
	return out
}
