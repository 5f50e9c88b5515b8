// Package pipeline orchestrates one processing run: cache lookup,
// size check, segmentation, per-segment remote calls, merge, cache
// store. Components arrive by injection; the package owns no globals.
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"scribeflow/internal/config"
	"scribeflow/internal/merge"
	"scribeflow/internal/prompt"
	"scribeflow/internal/remote"
	"scribeflow/internal/segment"
	"scribeflow/internal/types"
)

var (
	ErrEmptyInput = errors.New("empty input")
	ErrTooLarge   = errors.New("input exceeds hard limit")
	ErrCancelled  = errors.New("run cancelled")
)

// ProgressFunc receives a fraction in [0,1], non-decreasing within one
// run, and a human-readable message. It may be invoked from a
// background goroutine.
type ProgressFunc func(fraction float64, message string)

// Caller issues one outbound call; satisfied by *remote.Executor.
type Caller interface {
	Execute(ctx context.Context, req remote.Request) remote.Outcome
}

// Store is the result cache seam; satisfied by *cache.Cache.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, memoryOnly bool)
}

// Credentials carries the per-provider API keys. They come from the
// environment at the edges, never from config files.
type Credentials struct {
	TranscribeAPIKey string
	ProcessAPIKey    string
}

// SegmentReport records how one segment's call went, for run reports.
type SegmentReport struct {
	Index      int    `json:"index"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Result is the final answer of one run: full text, full text plus a
// warning, or a clear failure reason. Never a silent empty result.
type Result struct {
	Success   bool            `json:"success"`
	Cancelled bool            `json:"cancelled,omitempty"`
	FromCache bool            `json:"from_cache,omitempty"`
	Text      string          `json:"text,omitempty"`
	Warning   string          `json:"warning,omitempty"`
	Error     string          `json:"error,omitempty"`
	Segments  []SegmentReport `json:"segments,omitempty"`

	Err error `json:"-"`
}

type Runner struct {
	cfg   *config.Config
	cache Store
	exec  Caller
	creds Credentials
	log   *logrus.Entry
	sf    singleflight.Group
}

func NewRunner(cfg *config.Config, store Store, exec Caller, creds Credentials, log *logrus.Entry) *Runner {
	return &Runner{
		cfg:   cfg,
		cache: store,
		exec:  exec,
		creds: creds,
		log:   log.WithField("component", "pipeline"),
	}
}

// Run drives one artifact through the pipeline. Identical concurrent
// runs (same cache key) share a single remote call sequence.
func (r *Runner) Run(ctx context.Context, art types.Artifact, spec types.ProcessingSpec, progress ProgressFunc) (res Result) {
	report := newProgress(progress)
	log := r.log.WithFields(logrus.Fields{"op": string(spec.Op), "artifact": art.Name})

	// Last-resort net: a panic anywhere below becomes a failure
	// outcome, never an escape to the caller.
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("run panicked")
			res = failure(fmt.Errorf("internal error: %v", rec))
			report(0, res.Error)
		}
	}()

	report(0, "starting")

	if err := r.validate(art, spec); err != nil {
		report(0, err.Error())
		return failure(err)
	}

	key := cacheKey(art, spec)
	if v, ok := r.cache.Get(key); ok {
		log.Debug("cache hit")
		report(1, "complete (cached)")
		return Result{Success: true, FromCache: true, Text: v}
	}

	v, _, _ := r.sf.Do(key, func() (any, error) {
		return r.process(ctx, art, spec, key, report, log), nil
	})
	return v.(Result)
}

func (r *Runner) validate(art types.Artifact, spec types.ProcessingSpec) error {
	if art.Empty() {
		return ErrEmptyInput
	}
	switch spec.Op {
	case types.OpTranscribe:
		if art.Kind != types.KindAudio {
			return fmt.Errorf("transcribe needs an audio artifact")
		}
		if len(art.Data) > r.cfg.Transcribe.MaxUploadMB<<20 {
			return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(art.Data))
		}
	case types.OpTemplate, types.OpCustom:
		if art.Kind != types.KindText {
			return fmt.Errorf("text processing needs a text artifact")
		}
		if art.Size() > r.cfg.Process.MaxInputChars {
			return fmt.Errorf("%w: %d chars", ErrTooLarge, art.Size())
		}
		if spec.Op == types.OpCustom && strings.TrimSpace(spec.UserPrompt) == "" {
			return fmt.Errorf("custom processing needs a user prompt")
		}
		if spec.Op == types.OpTemplate {
			if _, ok := prompt.Lookup(spec.TemplateID); !ok {
				return fmt.Errorf("unknown template: %q", spec.TemplateID)
			}
		}
	default:
		return fmt.Errorf("unknown operation: %q", spec.Op)
	}
	return nil
}

func (r *Runner) process(ctx context.Context, art types.Artifact, spec types.ProcessingSpec, key string, report ProgressFunc, log *logrus.Entry) Result {
	report(0.1, "checking input size")

	var res Result
	if r.needsSplit(art, spec) {
		res = r.runSegmented(ctx, art, spec, report, log)
	} else {
		res = r.runSingle(ctx, art, spec, report, log)
	}

	if res.Success {
		r.cache.Set(key, res.Text, false)
		report(1, "complete")
	}
	return res
}

// needsSplit decides single-call vs. segmented against a threshold
// derived from the provider's advertised per-call limit, not a
// universal constant.
func (r *Runner) needsSplit(art types.Artifact, spec types.ProcessingSpec) bool {
	if spec.Op == types.OpTranscribe {
		limit := r.cfg.Transcribe.MaxFileSizeMB << 20
		if len(art.Data) > limit*8/10 {
			return true
		}
		if art.DurationSeconds > 0 &&
			art.DurationSeconds > float64(2*r.cfg.Transcribe.ChunkDurationSeconds) {
			return true
		}
		return false
	}
	return estimateTokens(art.Text) > r.cfg.Process.MaxTokens/2
}

func (r *Runner) runSingle(ctx context.Context, art types.Artifact, spec types.ProcessingSpec, report ProgressFunc, log *logrus.Entry) Result {
	report(0.3, "calling remote service")

	req, err := r.buildRequest(art.Name, wholeSegment(art), 0, 1, spec)
	if err != nil {
		return failure(err)
	}
	start := time.Now()
	out := r.exec.Execute(ctx, req)
	sr := SegmentReport{Index: 0, Success: out.Success, DurationMS: time.Since(start).Milliseconds()}
	if !out.Success {
		if ctx.Err() != nil {
			return cancelled()
		}
		sr.Error = out.Err.Error()
		log.WithField("error", out.Err.Error()).Warn("remote call failed")
		return Result{Success: false, Error: out.Err.Error(), Err: out.Err, Segments: []SegmentReport{sr}}
	}

	report(0.9, "processing result")
	return Result{Success: true, Text: out.Payload, Segments: []SegmentReport{sr}}
}

func (r *Runner) runSegmented(ctx context.Context, art types.Artifact, spec types.ProcessingSpec, report ProgressFunc, log *logrus.Entry) Result {
	report(0.2, "splitting input")

	segs := r.split(art, spec)
	report(0.3, fmt.Sprintf("split into %d segments", len(segs)))
	log.WithField("segments", len(segs)).Info("segmented input")

	mode := merge.Transcription
	if spec.Op != types.OpTranscribe {
		mode = merge.TextProcessing
	}

	outcomes := make([]remote.Outcome, 0, len(segs))
	reports := make([]SegmentReport, 0, len(segs))
	for i, seg := range segs {
		// One outbound call is atomic; cancellation is honored only
		// between segments.
		if ctx.Err() != nil {
			log.Info("run cancelled, skipping remaining segments")
			return cancelled()
		}

		req, err := r.buildRequest(art.Name, seg, i, len(segs), spec)
		if err != nil {
			outcomes = append(outcomes, remote.Outcome{SegmentIndex: i, Err: err})
			reports = append(reports, SegmentReport{Index: i, Error: err.Error()})
			continue
		}

		start := time.Now()
		out := r.exec.Execute(ctx, req)
		out.SegmentIndex = i
		outcomes = append(outcomes, out)

		sr := SegmentReport{Index: i, Success: out.Success, DurationMS: time.Since(start).Milliseconds()}
		if !out.Success {
			sr.Error = out.Err.Error()
			log.WithFields(logrus.Fields{"segment": i, "error": out.Err.Error()}).Warn("segment failed")
		}
		reports = append(reports, sr)

		report(0.3+float64(i+1)/float64(len(segs))*0.6,
			fmt.Sprintf("segment %d/%d done", i+1, len(segs)))
	}

	report(0.9, "merging results")
	merged := merge.Combine(mode, segs, outcomes)
	if !merged.Success {
		return Result{Success: false, Error: merged.Err.Error(), Err: merged.Err, Segments: reports}
	}
	return Result{Success: true, Text: merged.Text, Warning: merged.Warning, Segments: reports}
}

func (r *Runner) split(art types.Artifact, spec types.ProcessingSpec) []segment.Segment {
	if spec.Op == types.OpTranscribe {
		return segment.SplitAudio(art, segment.AudioOptions{
			TargetSeconds:   float64(r.cfg.Transcribe.ChunkDurationSeconds),
			DurationSeconds: art.DurationSeconds,
			BytesPerSecond:  r.cfg.Transcribe.BytesPerSecond,
		})
	}
	return segment.SplitText(art.Text, segment.TextOptions{
		SizeChars:    r.cfg.Process.ChunkSizeChars,
		OverlapChars: r.cfg.Process.ChunkOverlapChars,
	})
}

func (r *Runner) buildRequest(name string, seg segment.Segment, idx, total int, spec types.ProcessingSpec) (remote.Request, error) {
	if spec.Op == types.OpTranscribe {
		filename := name
		if total > 1 {
			filename = fmt.Sprintf("segment_%03d_%s", idx, name)
		}
		return remote.NewTranscriptionRequest(
			r.cfg.Transcribe.APIBaseURL,
			r.creds.TranscribeAPIKey,
			r.cfg.Transcribe.Model,
			spec.Language,
			filename,
			seg.Data,
			time.Duration(r.cfg.Transcribe.APITimeoutSeconds)*time.Second,
		)
	}

	system, user := r.resolvePrompts(spec)
	if total > 1 {
		// Annotate each chunk so multi-part outputs stay
		// stylistically consistent.
		user = fmt.Sprintf("%s\n\nNote: this is part %d of %d of the text. Keep the result consistent with the other parts.", user, idx+1, total)
	}
	return remote.NewChatRequest(
		r.cfg.Process.APIBaseURL,
		r.creds.ProcessAPIKey,
		r.cfg.Process.Model,
		system,
		user,
		seg.Text,
		r.cfg.Process.MaxTokens,
		r.cfg.Process.Temperature,
		time.Duration(r.cfg.Process.APITimeoutSeconds)*time.Second,
	)
}

func (r *Runner) resolvePrompts(spec types.ProcessingSpec) (system, user string) {
	if spec.Op == types.OpTemplate {
		t, _ := prompt.Lookup(spec.TemplateID)
		return t.System, t.User
	}
	return spec.SystemPrompt, spec.UserPrompt
}

// cacheKey derives a deterministic content address. Identical content
// with identical processing instructions collides; different
// instructions never do.
func cacheKey(art types.Artifact, spec types.ProcessingSpec) string {
	switch spec.Op {
	case types.OpTranscribe:
		return fmt.Sprintf("transcribe_%s_%s", md5hex(art.Data), spec.Language)
	case types.OpTemplate:
		return fmt.Sprintf("process_%s_%s", spec.TemplateID, md5hex([]byte(art.Text))[:16])
	default:
		combined := art.Text + "|" + spec.UserPrompt + "|" + spec.SystemPrompt
		return "process_custom_" + md5hex([]byte(combined))[:16]
	}
}

func md5hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// estimateTokens counts CJK characters plus non-CJK words, the rough
// heuristic the provider limits are stated against.
func estimateTokens(text string) int {
	cjk := 0
	var b strings.Builder
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			cjk++
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return cjk + len(strings.Fields(b.String()))
}

// newProgress wraps the callback: nil-safe and monotonically
// non-decreasing within one run.
func newProgress(fn ProgressFunc) ProgressFunc {
	last := 0.0
	return func(fraction float64, message string) {
		if fraction < last {
			fraction = last
		}
		last = fraction
		if fn != nil {
			fn(fraction, message)
		}
	}
}

func wholeSegment(art types.Artifact) segment.Segment {
	return segment.Segment{Index: 0, Text: art.Text, Data: art.Data, EndSeconds: art.DurationSeconds}
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}

func cancelled() Result {
	return Result{Cancelled: true, Error: ErrCancelled.Error(), Err: ErrCancelled}
}
