package datasource

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/sse"
	"github.com/flagcore/flagcore-go/internal/transport"
)

// ConnectionStats is a read-only snapshot of the streaming worker's most
// recent connection attempt (SPEC_FULL.md §5's supplemented diagnostics
// feature, grounded on the vendored go-server-sdk.v5's
// DiagnosticsManager.RecordStreamInit).
type ConnectionStats struct {
	LastAttempt time.Time
	LastSuccess bool
	LastError   error
	LastElapsed time.Duration
	Retries     uint32
}

type diagnostics struct {
	mu    sync.Mutex
	stats ConnectionStats
}

func (d *diagnostics) record(attempt time.Time, success bool, err error, elapsed time.Duration, retries uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = ConnectionStats{LastAttempt: attempt, LastSuccess: success, LastError: err, LastElapsed: elapsed, Retries: retries}
}

func (d *diagnostics) snapshot() ConnectionStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

const (
	streamBackoffBase    = 1 * time.Second
	streamBackoffMax     = 30 * time.Second
	streamResetThreshold = 60 * time.Second
	defaultStreamReadTimeout = 5 * time.Minute
)

// Refetcher performs a single full re-fetch of the flag bundle via the
// polling path, for handling a "ping" event (spec.md §4.2).
type Refetcher interface {
	RefetchAll(ctx context.Context) error
}

// pollRefetcher adapts a poll request into a Refetcher, reused by the
// streaming worker's ping handler so "ping" and ordinary polling share one
// code path for fetching and applying a full bundle.
type pollRefetcher struct {
	requester  transport.Requester
	updater    *Updater
	pollURI    string
	credential string
	useReport  bool
	useReasons bool
	control    Control
	loggers    ldlog.Loggers
}

func (r *pollRefetcher) RefetchAll(ctx context.Context) error {
	plan := BuildRequest(r.pollURI, "/msdk/evalx/users", "/msdk/evalx/user", r.control.UserJSON(), r.useReport, r.useReasons, r.credential)
	resp, err := r.requester.Do(ctx, plan.Method, plan.URL, plan.Headers, plan.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		r.control.MarkFailed()
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return r.updater.ApplyPut(resp.Body)
}

// NewPollRefetcher builds the Refetcher the streaming worker uses for
// "ping" events, sharing its URL-building and credential with the poll
// path.
func NewPollRefetcher(
	requester transport.Requester, updater *Updater, pollURI, credential string,
	useReport, useReasons bool, control Control, loggers ldlog.Loggers,
) Refetcher {
	return &pollRefetcher{
		requester: requester, updater: updater, pollURI: pollURI, credential: credential,
		useReport: useReport, useReasons: useReasons, control: control, loggers: loggers,
	}
}

// StreamingWorker implements L11: connect, parse SSE, reconnect with
// exponential backoff+jitter capped at streamBackoffMax, distinguishing
// short-lived from long-lived failures.
type StreamingWorker struct {
	control     Control
	updater     *Updater
	streamer    transport.Streamer
	refetcher   Refetcher
	streamURI   string
	credential  string
	useReport   bool
	useReasons  bool
	readTimeout time.Duration
	initialRetryDelay time.Duration
	loggers     ldlog.Loggers

	retries uint32
	diag    diagnostics
}

// Diagnostics returns a snapshot of the most recent connection attempt.
func (w *StreamingWorker) Diagnostics() ConnectionStats {
	return w.diag.snapshot()
}

// NewStreamingWorker creates a StreamingWorker.
func NewStreamingWorker(
	control Control, updater *Updater, streamer transport.Streamer, refetcher Refetcher,
	streamURI, credential string, useReport, useReasons bool,
	readTimeout, initialRetryDelay time.Duration, loggers ldlog.Loggers,
) *StreamingWorker {
	if readTimeout <= 0 {
		readTimeout = defaultStreamReadTimeout
	}
	if initialRetryDelay <= 0 {
		initialRetryDelay = streamBackoffBase
	}
	return &StreamingWorker{
		control: control, updater: updater, streamer: streamer, refetcher: refetcher,
		streamURI: streamURI, credential: credential, useReport: useReport, useReasons: useReasons,
		readTimeout: readTimeout, initialRetryDelay: initialRetryDelay, loggers: loggers,
	}
}

// BackoffDelay computes the spec.md §4.3 backoff formula for the given
// retry count, with a 1s base delay. retries == 0 always waits 0.
func BackoffDelay(retries uint32, rnd func() float64) time.Duration {
	return backoffDelay(streamBackoffBase, retries, rnd)
}

// backoffDelay is BackoffDelay with the given base delay.
func backoffDelay(base time.Duration, retries uint32, rnd func() float64) time.Duration {
	if retries == 0 {
		return 0
	}
	shift := retries - 1
	if shift > 20 { // guard against overflow in the shift
		shift = 20
	}
	delay := base * time.Duration(1<<shift)
	if delay > streamBackoffMax {
		delay = streamBackoffMax
	}
	jitter := time.Duration(rnd() * float64(delay))
	total := delay + jitter
	if total > streamBackoffMax {
		total = streamBackoffMax
	}
	return total
}

// Run is the streaming loop (spec.md §4.3); call it in its own goroutine.
func (w *StreamingWorker) Run(ctx context.Context) {
	for {
		if w.control.Terminated() {
			return
		}

		if !w.control.StreamingEnabled() || w.control.Offline() || w.control.Background() {
			w.control.WakeGate.Wait(1 * time.Second)
			continue
		}

		if w.retries > 0 {
			delay := backoffDelay(w.initialRetryDelay, w.retries, rand.Float64)
			if w.control.WakeGate.Wait(delay) {
				continue
			}
		}

		if w.control.Terminated() {
			return
		}

		w.connectOnce(ctx)
	}
}

func (w *StreamingWorker) connectOnce(ctx context.Context) {
	plan := BuildRequest(w.streamURI, "/meval", "/meval", w.control.UserJSON(), w.useReport, w.useReasons, w.credential)

	parser := sse.New(func(event, data string) {
		w.handleEvent(ctx, event, data)
	}, func(msg string) {
		w.loggers.Warnf("sse: %s", msg)
	})

	streamCtx := ctx
	if w.control.ConnContext != nil {
		streamCtx = w.control.ConnContext()
	}

	connStart := time.Now()
	result := w.streamer.Stream(streamCtx, plan.Method, plan.URL, plan.Headers, plan.Body, w.readTimeout, func(chunk []byte) {
		if err := parser.Feed(chunk); err != nil {
			w.loggers.Warnf("sse parser error: %s", err)
		}
	})

	w.classifyResult(result, time.Since(connStart), connStart)
}

func (w *StreamingWorker) classifyResult(result transport.StreamResult, elapsed time.Duration, attempt time.Time) {
	switch {
	case result.StatusCode == http.StatusUnauthorized || result.StatusCode == http.StatusForbidden:
		w.loggers.Errorf("stream connection returned %d; marking client failed", result.StatusCode)
		w.control.MarkFailed()
		w.diag.record(attempt, false, result.Err, elapsed, w.retries)
		return
	case result.StatusCode >= 400 &&
		result.StatusCode != http.StatusBadRequest &&
		result.StatusCode != http.StatusRequestTimeout &&
		result.StatusCode != 429:
		w.loggers.Errorf("stream connection returned %d; marking client failed", result.StatusCode)
		w.control.MarkFailed()
		w.diag.record(attempt, false, result.Err, elapsed, w.retries)
		return
	}

	// Recoverable: 400/408/429, transport error, or a clean 200 close.
	success := result.StatusCode == http.StatusOK && result.Err == nil
	if elapsed >= streamResetThreshold && success {
		w.retries = 0
	} else {
		w.retries++
	}
	w.diag.record(attempt, success, result.Err, elapsed, w.retries)
}

func (w *StreamingWorker) handleEvent(ctx context.Context, event, data string) {
	switch event {
	case "put":
		if err := w.updater.ApplyPut([]byte(data)); err != nil {
			w.loggers.Warnf("failed to apply streamed put: %s", err)
		}
	case "patch":
		if err := w.updater.ApplyPatch([]byte(data)); err != nil {
			w.loggers.Warnf("failed to apply streamed patch: %s", err)
		}
	case "delete":
		if err := w.updater.ApplyDelete([]byte(data)); err != nil {
			w.loggers.Warnf("failed to apply streamed delete: %s", err)
		}
	case "ping":
		if err := w.refetcher.RefetchAll(ctx); err != nil {
			w.loggers.Warnf("ping-triggered refetch failed: %s", err)
		}
	default:
		w.loggers.Infof("ignoring unrecognized stream event %q", event)
	}
}
