package events

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/ldtime"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
	"github.com/flagcore/flagcore-go/internal/transport"
)

// PayloadIDHeader is the header name carrying the per-delivery UUID.
const PayloadIDHeader = "X-FlagCore-Payload-Id"

// Sender delivers one already-bundled event payload. It is satisfied by
// transport.Requester with a thin adapter in the client package.
type Sender interface {
	PostEvents(ctx context.Context, body []byte, payloadID string) (status int, err error)
}

// HTTPSender adapts a transport.Requester into a Sender, POSTing to a fixed
// events URL with the credential/User-Agent/content headers spec.md §6.2
// requires.
type HTTPSender struct {
	Requester   transport.Requester
	EventsURI   string
	Credential  string
	UserAgent   string
	SchemaVersion string
}

// PostEvents implements Sender.
func (s *HTTPSender) PostEvents(ctx context.Context, body []byte, payloadID string) (int, error) {
	headers := http.Header{}
	headers.Set("Authorization", s.Credential)
	headers.Set("User-Agent", s.UserAgent)
	headers.Set("Content-Type", "application/json")
	headers.Set("X-LaunchDarkly-Event-Schema", s.SchemaVersion)
	headers.Set(PayloadIDHeader, payloadID)
	resp, err := s.Requester.Do(ctx, http.MethodPost, s.EventsURI+"/mobile", headers, body)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Worker drives the flush loop (spec.md §4.6, L12): flush on interval or
// on-demand signal, retry once on a transient error reusing the same
// payload UUID, and perform one final flush at shutdown.
type Worker struct {
	proc          *Processor
	sender        Sender
	flushInterval time.Duration
	loggers       ldlog.Loggers

	flushSignal chan struct{}
	stop        chan struct{}
	done        chan struct{}
}

// NewWorker creates a Worker. Call Run in its own goroutine.
func NewWorker(proc *Processor, sender Sender, flushInterval time.Duration, loggers ldlog.Loggers) *Worker {
	return &Worker{
		proc:          proc,
		sender:        sender,
		flushInterval: flushInterval,
		loggers:       loggers,
		flushSignal:   make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Flush requests an out-of-band flush as soon as the worker next wakes.
// Non-blocking: if a flush is already pending, this is a no-op.
func (w *Worker) Flush() {
	select {
	case w.flushSignal <- struct{}{}:
	default:
	}
}

// Stop signals the worker to perform one final flush and exit. It blocks
// until that has happened.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

// Run is the worker loop; call it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	interval := w.flushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flushOnce(ctx)
		case <-w.flushSignal:
			w.flushOnce(ctx)
		case <-w.stop:
			w.flushOnce(ctx) // final flush
			return
		case <-ctx.Done():
			w.flushOnce(ctx)
			return
		}
	}
}

func (w *Worker) flushOnce(ctx context.Context) {
	payload, ok := w.proc.BundlePayload(ldtime.Now())
	if !ok {
		return
	}
	items := make([]ldvalue.Value, len(payload))
	for i, e := range payload {
		items[i] = e.ToValue()
	}
	body, err := ldvalue.Array(items...).Marshal()
	if err != nil {
		w.loggers.Errorf("failed to encode event payload: %s", err)
		return
	}

	payloadID := uuid.NewString()
	w.deliver(ctx, body, payloadID, true)
}

// deliver posts body once, and on a transient failure retries exactly once
// with the identical payloadID (spec.md §4.5's payload-id stability
// requirement), then gives up and logs.
func (w *Worker) deliver(ctx context.Context, body []byte, payloadID string, allowRetry bool) {
	status, err := w.sender.PostEvents(ctx, body, payloadID)
	if err == nil && status >= 200 && status < 300 {
		return
	}
	transient := err != nil || isTransientStatus(status)
	if transient && allowRetry {
		w.loggers.Warnf("event delivery failed (status=%d err=%v); retrying once with same payload id", status, err)
		w.deliver(ctx, body, payloadID, false)
		return
	}
	w.loggers.Errorf("event delivery failed permanently (status=%d err=%v); payload dropped", status, err)
}

func isTransientStatus(status int) bool {
	if status == 408 || status == 429 {
		return true
	}
	return status >= 500
}
