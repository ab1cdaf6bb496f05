package stream

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aq-cli/aq/internal/message"
)

// maxAttempts bounds the outer retry layer: up to 3 attempts total (§4.8).
const maxAttempts = 3

// TransientError wraps a transport failure the retry policy recognizes:
// network errors from a fixed code set, or HTTP 429/5xx.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transient transport error"
}

func (e *TransientError) Unwrap() error { return e.Err }

var transientSubstrings = []string{
	"connection reset",
	"econnreset",
	"no such host",
	"dns",
	"tls handshake",
	"fetch failed",
}

// IsTransient classifies an error as retryable per §4.8: a fixed network
// error set, or an HTTP 429/5xx status recorded on a *TransientError.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		if te.StatusCode == 429 || te.StatusCode >= 500 {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Opener starts one streaming attempt, returning the raw SSE line channel
// consumed by Parse, or an error if the request itself failed before any
// bytes were read.
type Opener func(ctx context.Context) (<-chan string, error)

// WithRetry drives Opener through the linear-backoff retry policy (§4.8):
// up to maxAttempts total, 500ms*attempt between tries, short-circuited by
// ctx cancellation. A Retry event is emitted at the start of each retry
// (attempt 2 onward); a terminal failure surfaces as a single Error event
// followed by Finished, matching the shape Parse itself would produce.
func WithRetry(ctx context.Context, open Opener) <-chan message.StreamEvent {
	out := make(chan message.StreamEvent)
	go func() {
		defer close(out)

		operation := func() (<-chan string, error) {
			lines, err := open(ctx)
			if err != nil {
				return nil, err
			}
			return lines, nil
		}

		attempt := 0
		for {
			attempt++
			if ctx.Err() != nil {
				out <- message.ErrorEvent("Request aborted")
				out <- message.FinishedEvent()
				return
			}
			lines, err := operation()
			if err == nil {
				for ev := range Parse(lines) {
					out <- ev
				}
				return
			}
			if !IsTransient(err) || attempt >= maxAttempts {
				out <- message.ErrorEvent(err.Error())
				out <- message.FinishedEvent()
				return
			}
			out <- message.RetryEvent(attempt, maxAttempts)
			wait := time.Duration(attempt) * 500 * time.Millisecond
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				out <- message.ErrorEvent("Request aborted")
				out <- message.FinishedEvent()
				return
			case <-timer.C:
			}
		}
	}()
	return out
}

// retryPermanent wraps a non-transient error in backoff.Permanent so a
// backoff.Retry loop stops on it. WithRetry runs its own loop and does not
// call it; nothing in the module does.
func retryPermanent(err error) error {
	if IsTransient(err) {
		return err
	}
	return backoff.Permanent(err)
}
