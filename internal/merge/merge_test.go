package merge

import (
	"errors"
	"strings"
	"testing"

	"scribeflow/internal/remote"
	"scribeflow/internal/segment"
)

func segs(texts ...string) []segment.Segment {
	out := make([]segment.Segment, len(texts))
	for i, t := range texts {
		out[i] = segment.Segment{Index: i, Text: t}
	}
	return out
}

func TestCombineOrdersByIndexNotArrival(t *testing.T) {
	// Outcomes arrive out of order.
	outcomes := []remote.Outcome{
		{SegmentIndex: 2, Success: true, Payload: "third"},
		{SegmentIndex: 0, Success: true, Payload: "first"},
		{SegmentIndex: 1, Success: true, Payload: "second"},
	}
	res := Combine(Transcription, segs("a", "b", "c"), outcomes)
	if !res.Success {
		t.Fatalf("combine failed: %v", res.Err)
	}
	if res.Text != "first\nsecond\nthird" {
		t.Fatalf("wrong order: %q", res.Text)
	}
	if res.Warning != "" {
		t.Fatalf("unexpected warning: %q", res.Warning)
	}
}

func TestCombineTranscriptionOmitsFailures(t *testing.T) {
	outcomes := []remote.Outcome{
		{SegmentIndex: 0, Success: true, Payload: "hello"},
		{SegmentIndex: 1, Err: errors.New("timeout")},
		{SegmentIndex: 2, Success: true, Payload: "world"},
	}
	res := Combine(Transcription, segs("a", "b", "c"), outcomes)
	if !res.Success {
		t.Fatalf("partial failure should still succeed: %v", res.Err)
	}
	if res.Text != "hello\nworld" {
		t.Fatalf("failed segment must contribute nothing: %q", res.Text)
	}
	if res.Warning != "1 of 3 segments failed" {
		t.Fatalf("warning = %q", res.Warning)
	}
}

func TestCombineTextProcessingSubstitutesOriginal(t *testing.T) {
	original := segs("input one", "input two", "input three")
	outcomes := []remote.Outcome{
		{SegmentIndex: 0, Success: true, Payload: "processed one"},
		{SegmentIndex: 1, Err: errors.New("server error")},
		{SegmentIndex: 2, Success: true, Payload: "processed three"},
	}
	res := Combine(TextProcessing, original, outcomes)
	if !res.Success {
		t.Fatalf("partial failure should still succeed: %v", res.Err)
	}
	want := "processed one\n\ninput two\n\nprocessed three"
	if res.Text != want {
		t.Fatalf("got %q, want %q", res.Text, want)
	}
	// The substituted text is the verbatim input, not a processed form.
	if !strings.Contains(res.Text, "input two") {
		t.Fatalf("original input missing from merged output")
	}
}

func TestCombineAllFailed(t *testing.T) {
	outcomes := []remote.Outcome{
		{SegmentIndex: 0, Err: errors.New("a")},
		{SegmentIndex: 1, Err: errors.New("b")},
	}
	res := Combine(Transcription, segs("x", "y"), outcomes)
	if res.Success {
		t.Fatalf("all-fail must not succeed")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "all 2 segments failed") {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestCombineTrimsPayloadWhitespace(t *testing.T) {
	outcomes := []remote.Outcome{
		{SegmentIndex: 0, Success: true, Payload: "  padded  \n"},
		{SegmentIndex: 1, Success: true, Payload: "clean"},
	}
	res := Combine(Transcription, segs("a", "b"), outcomes)
	if res.Text != "padded\nclean" {
		t.Fatalf("got %q", res.Text)
	}
}

func TestCombineSingleOutcome(t *testing.T) {
	outcomes := []remote.Outcome{{SegmentIndex: 0, Success: true, Payload: "only"}}
	res := Combine(TextProcessing, segs("a"), outcomes)
	if !res.Success || res.Text != "only" || res.Warning != "" {
		t.Fatalf("got %+v", res)
	}
}
