// Package merge reassembles per-segment outcomes into one result,
// strictly in segment-index order regardless of arrival order.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"scribeflow/internal/remote"
	"scribeflow/internal/segment"
)

// Mode selects the failure-substitution policy.
type Mode int

const (
	// Transcription: a failed audio segment contributes nothing (there
	// is no pre-existing text to fall back to); transcripts of adjacent
	// segments read as sequential speech, joined by a single newline.
	Transcription Mode = iota
	// TextProcessing: a failed segment's original, unprocessed input is
	// substituted so no content is silently dropped; blocks are joined
	// by a blank line.
	TextProcessing
)

// Result of combining one run's outcomes.
type Result struct {
	Success bool
	Text    string
	// Warning is set when some, but not all, segments failed; the
	// combined text is still useful.
	Warning string
	Err     error
}

// Combine merges outcomes ordered by SegmentIndex. segs supplies the
// original input for substitution in text-processing mode and must be
// the batch the outcomes were produced from.
func Combine(mode Mode, segs []segment.Segment, outcomes []remote.Outcome) Result {
	ordered := make([]remote.Outcome, len(outcomes))
	copy(ordered, outcomes)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SegmentIndex < ordered[j].SegmentIndex
	})

	sep := "\n"
	if mode == TextProcessing {
		sep = "\n\n"
	}

	var parts []string
	failed := 0
	for _, o := range ordered {
		if o.Success {
			if t := strings.TrimSpace(o.Payload); t != "" {
				parts = append(parts, t)
			}
			continue
		}
		failed++
		if mode == TextProcessing && o.SegmentIndex >= 0 && o.SegmentIndex < len(segs) {
			parts = append(parts, segs[o.SegmentIndex].Text)
		}
	}

	if failed == len(ordered) {
		return Result{
			Success: false,
			Err:     fmt.Errorf("all %d segments failed", len(ordered)),
		}
	}

	res := Result{Success: true, Text: strings.Join(parts, sep)}
	if failed > 0 {
		res.Warning = fmt.Sprintf("%d of %d segments failed", failed, len(ordered))
	}
	return res
}
