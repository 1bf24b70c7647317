// Package timing converts raw transcription spans into display-ready
// subtitle cues. The adjuster bridges short silences when a sentence is
// judged incomplete ("linguistic bridging"), enforces a reading-speed
// based minimum duration, and guarantees adjacent cues never overlap.
package timing

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/subtitle"
)

// Hint is the per-cue sentence structure classification.
type Hint string

const (
	HintComplete  Hint = "COMPLETE"
	HintContinues Hint = "CONTINUES"
)

// Thresholds for bridging decisions. An incomplete sentence is bridged
// across gaps up to bridgeGapLimit; a complete one only across a short
// breath pause.
const (
	bridgeGapLimit = 4 * time.Second
	breathGapLimit = 1500 * time.Millisecond
)

var sentenceEndings = []string{".", "?", "!", "\"", "”", ")", "]", "…", "..."}

// IsSentenceEnding reports whether text ends with closing punctuation.
// Empty text counts as complete so it never triggers bridging.
func IsSentenceEnding(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	for _, ending := range sentenceEndings {
		if strings.HasSuffix(text, ending) {
			return true
		}
	}
	return false
}

// Adjust returns a timing-adjusted copy of lines. hints may be nil, in
// which case the punctuation heuristic decides sentence completeness.
// Deterministic for identical inputs; the input slice is not mutated.
//
// Each cue is only ever compared against its immediate successor, in a
// single forward pass. Overlap prevention always wins over bridging and
// over the minimum-duration extension.
func Adjust(lines []subtitle.Line, hints []Hint, cfg config.TimingConfig) []subtitle.Line {
	adjusted := make([]subtitle.Line, len(lines))

	for i, line := range lines {
		start := line.StartTime
		end := line.EndTime

		effectiveMin := effectiveMinDuration(line.Text, cfg)

		if i < len(lines)-1 {
			nextStart := lines[i+1].StartTime
			silenceGap := nextStart - end

			incomplete := sentenceIncomplete(line.Text, hints, i)

			switch {
			case incomplete && silenceGap < bridgeGapLimit:
				potentialEnd := nextStart - cfg.GapMargin
				if potentialEnd-start <= cfg.MaxDuration {
					end = potentialEnd
				} else {
					end = start + cfg.MaxDuration
				}
			case silenceGap < breathGapLimit:
				potentialEnd := nextStart - cfg.GapMargin
				if potentialEnd-start <= cfg.MaxDuration {
					end = potentialEnd
				}
			}

			// Overlap prevention takes precedence over any extension.
			if end >= nextStart {
				end = nextStart - cfg.GapMargin
			}

			if end-start < effectiveMin {
				potentialEnd := start + effectiveMin
				if potentialEnd < nextStart-cfg.GapMargin {
					end = potentialEnd
				} else {
					end = nextStart - cfg.GapMargin
				}
			}
		} else {
			// Last cue has no forward neighbor to clamp against.
			if end-start < effectiveMin {
				end = start + effectiveMin
			}
		}

		// Degenerate input: the neighbor starts at or before this cue's
		// start. Restore a positive duration as a last resort.
		if end <= start {
			end = start + effectiveMin
		}

		line.StartTime = start.Round(time.Millisecond)
		line.EndTime = end.Round(time.Millisecond)
		adjusted[i] = line
	}

	return adjusted
}

// OptimizeGaps is retained for interface compatibility with older callers.
// Collision handling is fully subsumed by Adjust, so this is a no-op.
func OptimizeGaps(lines []subtitle.Line) []subtitle.Line {
	return lines
}

func effectiveMinDuration(text string, cfg config.TimingConfig) time.Duration {
	readingSpeed := cfg.ReadingSpeed
	if readingSpeed <= 0 {
		readingSpeed = config.DefaultTimingConfig().ReadingSpeed
	}
	readingDuration := time.Duration(float64(utf8.RuneCountInString(text)) / readingSpeed * float64(time.Second))
	if readingDuration > cfg.MinDuration {
		return readingDuration
	}
	return cfg.MinDuration
}

// sentenceIncomplete prefers the classifier hint when one exists for the
// cue; the punctuation heuristic is only a fallback.
func sentenceIncomplete(text string, hints []Hint, i int) bool {
	if len(hints) > 0 && i < len(hints) {
		return hints[i] == HintContinues
	}
	return !IsSentenceEnding(text)
}
