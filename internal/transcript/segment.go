package transcript

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Segment is the canonical form of one speech event. Partial segments
// (IsFinal=false) exist for live display only and must never reach timers or
// classifiers.
type Segment struct {
	Speaker     string
	Text        string
	TimestampMs int64
	IsFinal     bool
}

// wordsPerSecond is the fallback speaking rate used when timestamp deltas are
// unusable for attributing segment duration.
const wordsPerSecond = 2.5

var speakerCaser = cases.Title(language.English, cases.NoLower)

// ErrEmptySegment is returned when a segment lacks a speaker or text.
var ErrEmptySegment = errors.New("transcript: segment requires speaker and text")

// Normalize canonicalizes a raw speech event: whitespace is collapsed, the
// speaker display name is title-cased, and empty events are rejected.
func Normalize(speaker, text string, timestampMs int64, isFinal bool) (Segment, error) {
	speaker = strings.Join(strings.Fields(speaker), " ")
	text = strings.TrimSpace(text)
	if speaker == "" || text == "" {
		return Segment{}, ErrEmptySegment
	}
	return Segment{
		Speaker:     speakerCaser.String(speaker),
		Text:        text,
		TimestampMs: timestampMs,
		IsFinal:     isFinal,
	}, nil
}

// EstimateSeconds approximates how long a segment took to say from its word
// count. Used when no previous finalized timestamp exists or the delta
// exceeds the configured cap.
func EstimateSeconds(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return float64(words) / wordsPerSecond
}

// AttributeSeconds derives the speaking duration of a finalized segment from
// the delta to the previous finalized segment's timestamp, clamped to
// (0, maxSeconds]. Outside that range it falls back to the word-count
// estimate.
func AttributeSeconds(seg Segment, prevFinalMs int64, maxSeconds int) float64 {
	if prevFinalMs > 0 && seg.TimestampMs > prevFinalMs {
		delta := float64(seg.TimestampMs-prevFinalMs) / 1000.0
		if delta <= float64(maxSeconds) {
			return delta
		}
	}
	estimate := EstimateSeconds(seg.Text)
	if maxSeconds > 0 && estimate > float64(maxSeconds) {
		return float64(maxSeconds)
	}
	return estimate
}
