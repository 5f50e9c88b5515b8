// Package segment slices an oversized artifact into ordered,
// overlapping pieces sized for a remote service's per-call limits.
// Text is cut at sentence boundaries where possible; audio is cut at
// uniform time offsets. Splitting never fails outright: when no
// strategy applies the whole artifact comes back as one segment so the
// pipeline always has something to attempt.
package segment

import (
	"math"

	"scribeflow/internal/types"
)

// Segment is one bounded slice of an artifact. Segments are produced in
// a single batch, ordered by Index, and are immutable; payloads
// reference the artifact, they do not copy it.
type Segment struct {
	Index int

	// Text payload (text artifacts).
	Text string

	// Audio payload (audio artifacts) plus its time window.
	Data         []byte
	StartSeconds float64
	EndSeconds   float64

	// Overlap shared with the previous segment: characters for text,
	// seconds for audio. Zero for the first segment.
	OverlapChars   int
	OverlapSeconds float64
}

// sentenceEnders are the cut points preferred over a hard character
// split: ASCII and CJK sentence-terminal punctuation.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, // 。
	'！': true, // ！
	'？': true, // ？
}

type TextOptions struct {
	// SizeChars is the target segment length in characters.
	SizeChars int
	// OverlapChars is shared between adjacent segments; it is also the
	// window scanned backward for a sentence boundary. Must be smaller
	// than SizeChars.
	OverlapChars int
}

// SplitText cuts text into segments of at most SizeChars characters,
// preferring sentence-terminal punctuation near the boundary and
// carrying OverlapChars of context across each cut. Text at or under
// the target size is returned whole.
func SplitText(text string, opts TextOptions) []Segment {
	runes := []rune(text)
	size := opts.SizeChars
	overlap := opts.OverlapChars
	if size <= 0 || overlap < 0 || overlap >= size {
		return []Segment{{Index: 0, Text: text}}
	}
	if len(runes) <= size {
		// Fits in one call, no slicing at all.
		return []Segment{{Index: 0, Text: text}}
	}

	var segs []Segment
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			segs = append(segs, Segment{
				Index:        len(segs),
				Text:         string(runes[start:]),
				OverlapChars: overlapOf(segs, overlap),
			})
			break
		}

		// Scan backward from the ideal cut for a sentence ender; give
		// up after the overlap window and cut hard.
		for i := end - 1; i > end-overlap; i-- {
			if sentenceEnders[runes[i]] {
				end = i + 1
				break
			}
		}

		segs = append(segs, Segment{
			Index:        len(segs),
			Text:         string(runes[start:end]),
			OverlapChars: overlapOf(segs, overlap),
		})
		next := end - overlap
		if next <= start {
			// Degenerate size/overlap combination; forfeit the overlap
			// rather than loop on the same offset.
			next = end
		}
		start = next
	}
	return segs
}

func overlapOf(segs []Segment, overlap int) int {
	if len(segs) == 0 {
		return 0
	}
	return overlap
}

type AudioOptions struct {
	// TargetSeconds is the target duration of one segment.
	TargetSeconds float64
	// OverlapSeconds extends each segment after the first backward into
	// its predecessor.
	OverlapSeconds float64
	// DurationSeconds is the measured duration, zero when the media
	// collaborator could not determine it.
	DurationSeconds float64
	// BytesPerSecond estimates duration from byte size when
	// DurationSeconds is zero.
	BytesPerSecond int
}

// SplitAudio cuts audio bytes at uniform time boundaries. There is no
// content-aware boundary search for audio; segment count is
// ceil(duration / target). An unknown duration falls back to a
// size-based estimate, and if no duration can be established at all the
// whole artifact is returned as one segment.
func SplitAudio(a types.Artifact, opts AudioOptions) []Segment {
	whole := []Segment{{Index: 0, Data: a.Data, EndSeconds: opts.DurationSeconds}}
	if len(a.Data) == 0 || opts.TargetSeconds <= 0 {
		return whole
	}

	duration := opts.DurationSeconds
	if duration <= 0 {
		if opts.BytesPerSecond <= 0 {
			// No duration and no way to estimate one: degrade to a
			// single whole-artifact segment.
			return whole
		}
		duration = float64(len(a.Data)) / float64(opts.BytesPerSecond)
	}
	if duration <= opts.TargetSeconds {
		// Short audio, no split needed.
		whole[0].EndSeconds = duration
		return whole
	}

	n := int(math.Ceil(duration / opts.TargetSeconds))
	segDur := duration / float64(n)
	rate := float64(len(a.Data)) / duration

	var segs []Segment
	for i := 0; i < n; i++ {
		startSec := float64(i) * segDur
		endSec := math.Min(float64(i+1)*segDur, duration)
		overlap := 0.0
		if i > 0 && opts.OverlapSeconds > 0 {
			overlap = math.Min(opts.OverlapSeconds, startSec)
			startSec -= overlap
		}

		startB := int(startSec * rate)
		endB := int(endSec * rate)
		if i == n-1 {
			endB = len(a.Data)
		}
		if startB < 0 {
			startB = 0
		}
		if endB > len(a.Data) {
			endB = len(a.Data)
		}
		if endB <= startB {
			// Rounding produced an empty slice; nothing to send for
			// this window.
			continue
		}

		segs = append(segs, Segment{
			Index:          len(segs),
			Data:           a.Data[startB:endB],
			StartSeconds:   startSec,
			EndSeconds:     endSec,
			OverlapSeconds: overlap,
		})
	}
	if len(segs) == 0 {
		return whole
	}
	return segs
}
