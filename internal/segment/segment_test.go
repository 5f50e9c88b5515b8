package segment

import (
	"strings"
	"testing"

	"scribeflow/internal/types"
)

func TestSplitTextSmallInputStaysWhole(t *testing.T) {
	text := "Short enough to send as-is."
	segs := SplitText(text, TextOptions{SizeChars: 2000, OverlapChars: 200})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != text {
		t.Fatalf("small input must come back untouched")
	}
	if segs[0].OverlapChars != 0 {
		t.Fatalf("single segment has no overlap")
	}
}

func TestSplitTextOversizedInput(t *testing.T) {
	// Sentences of 100 chars each, 5000 chars total.
	sentence := strings.Repeat("a", 99) + "."
	text := strings.Repeat(sentence, 50)

	segs := SplitText(text, TextOptions{SizeChars: 2000, OverlapChars: 200})
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, s := range segs {
		if s.Index != i {
			t.Fatalf("segment %d has index %d", i, s.Index)
		}
		if n := len([]rune(s.Text)); n > 2000 {
			t.Fatalf("segment %d is %d chars, over the target", i, n)
		}
		if i > 0 && s.OverlapChars != 200 {
			t.Fatalf("segment %d overlap = %d, want 200", i, s.OverlapChars)
		}
	}
	// Every cut lands just after a sentence ender.
	for i, s := range segs[:len(segs)-1] {
		r := []rune(s.Text)
		if !sentenceEnders[r[len(r)-1]] {
			t.Fatalf("segment %d does not end at a sentence boundary: %q", i, string(r[len(r)-20:]))
		}
	}
}

func TestSplitTextNoBoundaryHardCut(t *testing.T) {
	text := strings.Repeat("x", 4500) // no punctuation anywhere
	segs := SplitText(text, TextOptions{SizeChars: 2000, OverlapChars: 200})
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if n := len([]rune(segs[0].Text)); n != 2000 {
		t.Fatalf("hard cut should land at the target size, got %d", n)
	}
}

func TestSplitTextOverlapCarriedAcrossCut(t *testing.T) {
	text := strings.Repeat("y", 3000)
	segs := SplitText(text, TextOptions{SizeChars: 2000, OverlapChars: 200})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	a, b := []rune(segs[0].Text), []rune(segs[1].Text)
	tail := string(a[len(a)-200:])
	head := string(b[:200])
	if tail != head {
		t.Fatalf("second segment must start with the first segment's tail")
	}
}

func TestSplitTextCJKBoundaries(t *testing.T) {
	sentence := strings.Repeat("音", 49) + "。"
	text := strings.Repeat(sentence, 30) // 1500 runes
	segs := SplitText(text, TextOptions{SizeChars: 600, OverlapChars: 100})
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, s := range segs[:len(segs)-1] {
		r := []rune(s.Text)
		if r[len(r)-1] != '。' {
			t.Fatalf("segment %d should end at a CJK sentence ender", i)
		}
	}
}

func TestSplitTextDegenerateOptionsStayWhole(t *testing.T) {
	text := strings.Repeat("z", 100)
	for _, opts := range []TextOptions{
		{SizeChars: 0, OverlapChars: 0},
		{SizeChars: 10, OverlapChars: 10},
		{SizeChars: 10, OverlapChars: 20},
		{SizeChars: -1, OverlapChars: -1},
	} {
		segs := SplitText(text, opts)
		if len(segs) != 1 || segs[0].Text != text {
			t.Fatalf("opts %+v: invalid options must not slice the input", opts)
		}
	}
}

func TestSplitTextTerminates(t *testing.T) {
	// Near-degenerate combination where the advance step is tiny.
	text := strings.Repeat("w", 1000)
	segs := SplitText(text, TextOptions{SizeChars: 10, OverlapChars: 9})
	if len(segs) == 0 {
		t.Fatalf("no segments produced")
	}
	seen := 0
	for _, s := range segs {
		seen += len(s.Text)
	}
	if seen < 1000 {
		t.Fatalf("segments cover only %d of 1000 chars", seen)
	}
}

func audioArtifact(n int) types.Artifact {
	return types.Artifact{Kind: types.KindAudio, Name: "a.wav", Data: make([]byte, n)}
}

func TestSplitAudioKnownDuration(t *testing.T) {
	a := audioArtifact(320000) // 10s at 32000 B/s
	segs := SplitAudio(a, AudioOptions{TargetSeconds: 3, DurationSeconds: 10})
	if len(segs) != 4 { // ceil(10/3)
		t.Fatalf("expected 4 segments, got %d", len(segs))
	}
	total := 0
	for i, s := range segs {
		if s.Index != i {
			t.Fatalf("segment %d has index %d", i, s.Index)
		}
		if len(s.Data) == 0 {
			t.Fatalf("segment %d has empty payload", i)
		}
		total += len(s.Data)
	}
	if total != len(a.Data) {
		t.Fatalf("segments cover %d of %d bytes", total, len(a.Data))
	}
	last := segs[len(segs)-1]
	if last.EndSeconds != 10 {
		t.Fatalf("last segment ends at %v, want 10", last.EndSeconds)
	}
}

func TestSplitAudioUnknownDurationEstimates(t *testing.T) {
	a := audioArtifact(32000 * 120) // ~120s at the default byte rate
	segs := SplitAudio(a, AudioOptions{TargetSeconds: 60, BytesPerSecond: 32000})
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments from the byte-rate estimate, got %d", len(segs))
	}
}

func TestSplitAudioNoEstimateFallsBackWhole(t *testing.T) {
	a := audioArtifact(1000)
	segs := SplitAudio(a, AudioOptions{TargetSeconds: 60})
	if len(segs) != 1 {
		t.Fatalf("expected whole-artifact fallback, got %d segments", len(segs))
	}
	if len(segs[0].Data) != 1000 {
		t.Fatalf("fallback segment must carry the full payload")
	}
}

func TestSplitAudioShortStaysWhole(t *testing.T) {
	a := audioArtifact(32000 * 30)
	segs := SplitAudio(a, AudioOptions{TargetSeconds: 60, DurationSeconds: 30})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment for short audio, got %d", len(segs))
	}
	if segs[0].EndSeconds != 30 {
		t.Fatalf("whole segment should carry the duration")
	}
}

func TestSplitAudioOverlapWindows(t *testing.T) {
	a := audioArtifact(320000)
	segs := SplitAudio(a, AudioOptions{TargetSeconds: 4, OverlapSeconds: 1, DurationSeconds: 10})
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	if segs[0].OverlapSeconds != 0 {
		t.Fatalf("first segment has no overlap")
	}
	for i, s := range segs[1:] {
		if s.OverlapSeconds != 1 {
			t.Fatalf("segment %d overlap = %v, want 1", i+1, s.OverlapSeconds)
		}
	}
}

func TestSplitAudioEmptyPayload(t *testing.T) {
	segs := SplitAudio(types.Artifact{Kind: types.KindAudio}, AudioOptions{TargetSeconds: 60, DurationSeconds: 300})
	if len(segs) != 1 {
		t.Fatalf("empty payload should come back as one segment")
	}
}
