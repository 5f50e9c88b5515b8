// Package remote issues outbound calls to a size-limited processing
// service, classifies failures, and retries transient ones with
// exponential backoff. It never touches cache or shared state; that is
// the pipeline's job.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrTerminal marks a well-formed rejection from the remote side (bad
// input, bad credentials, any 4xx). Never retried.
var ErrTerminal = errors.New("terminal remote error")

// ErrTransient marks a failure worth retrying: timeout, connection
// failure, any 5xx, or a malformed response body.
var ErrTransient = errors.New("transient remote error")

// Outcome is the per-segment result of one Execute call. SegmentIndex
// is filled in by the caller; the executor does not know about
// segmentation.
type Outcome struct {
	SegmentIndex int
	Success      bool
	Payload      string
	Err          error
}

type Executor struct {
	transport   Transport
	maxAttempts int
	baseDelay   time.Duration
	log         *logrus.Entry
}

func NewExecutor(t Transport, maxAttempts int, baseDelay time.Duration, log *logrus.Entry) *Executor {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Executor{
		transport:   t,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		log:         log.WithField("component", "executor"),
	}
}

// Execute performs one call with retry. A success needs both a
// successful transport outcome and a body the envelope parser
// recognizes; a 2xx with an unrecognized body is retried as transient
// and surfaced as a parse failure once attempts run out.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	var payload string
	attempt := 0

	op := func() error {
		attempt++
		resp, err := e.transport.Send(ctx, req)
		if err != nil {
			e.log.WithFields(logrus.Fields{"attempt": attempt, "error": err.Error()}).Warn("transport failure")
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}

		switch {
		case resp.StatusCode >= 500:
			e.log.WithFields(logrus.Fields{"attempt": attempt, "status": resp.StatusCode}).Warn("server error")
			return fmt.Errorf("%w: HTTP %d: %s", ErrTransient, resp.StatusCode, truncate(resp.Body, 200))
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: HTTP %d: %s", ErrTerminal, resp.StatusCode, truncate(resp.Body, 200)))
		}

		text, err := ExtractText(resp.Body)
		if err != nil {
			if errors.Is(err, ErrTerminal) {
				return backoff.Permanent(err)
			}
			e.log.WithFields(logrus.Fields{"attempt": attempt, "error": err.Error()}).Warn("bad response shape")
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		payload = text
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(e.newBackOff(), ctx))
	if err != nil {
		return Outcome{Success: false, Err: err}
	}
	return Outcome{Success: true, Payload: payload}
}

// newBackOff waits baseDelay * 2^attempt between attempts, capped so
// the final wait never exceeds baseDelay * 2^(maxAttempts-1).
func (e *Executor) newBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(newExponential(e.baseDelay, e.maxAttempts), uint64(e.maxAttempts-1))
}

func newExponential(base time.Duration, maxAttempts int) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.Multiplier = 2
	bo.MaxInterval = base << (maxAttempts - 1)
	bo.MaxElapsedTime = 0
	return bo
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
