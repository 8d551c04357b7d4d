package datasource

import (
	"context"
	"net/http"
	"time"

	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/transport"
)

const (
	minPollInterval           = 30 * time.Second
	minBackgroundPollInterval = 15 * time.Minute
)

// NormalizePollInterval applies the floor spec.md §3 requires.
func NormalizePollInterval(d time.Duration) time.Duration {
	if d < minPollInterval {
		return minPollInterval
	}
	return d
}

// NormalizeBackgroundPollInterval applies the background-mode floor.
func NormalizeBackgroundPollInterval(d time.Duration) time.Duration {
	if d < minBackgroundPollInterval {
		return minBackgroundPollInterval
	}
	return d
}

// PollingWorker implements L10: periodic GET with an initial fast-path
// fetch, background-mode interval switching, and permanent-failure
// detection on 401/403.
type PollingWorker struct {
	control     Control
	updater     *Updater
	requester   transport.Requester
	pollURI     string
	credential  string
	useReport   bool
	useReasons  bool
	interval    time.Duration
	bgInterval  time.Duration
	loggers     ldlog.Loggers
	isInitializing func() bool
}

// NewPollingWorker creates a PollingWorker. isInitializing reports whether
// the client's overall status is still "initializing," used to pick the
// zero-delay fast initial fetch.
func NewPollingWorker(
	control Control,
	updater *Updater,
	requester transport.Requester,
	pollURI, credential string,
	useReport, useReasons bool,
	interval, bgInterval time.Duration,
	loggers ldlog.Loggers,
	isInitializing func() bool,
) *PollingWorker {
	return &PollingWorker{
		control:        control,
		updater:        updater,
		requester:      requester,
		pollURI:        pollURI,
		credential:     credential,
		useReport:      useReport,
		useReasons:     useReasons,
		interval:       NormalizePollInterval(interval),
		bgInterval:     NormalizeBackgroundPollInterval(bgInterval),
		loggers:        loggers,
		isInitializing: isInitializing,
	}
}

// Run is the polling loop (spec.md §4.4); call it in its own goroutine.
func (w *PollingWorker) Run(ctx context.Context) {
	first := true
	for {
		if w.control.Terminated() {
			return
		}

		wait := w.nextInterval(first)
		first = false

		if wait > 0 {
			if w.control.WakeGate.Wait(wait) {
				// Woken early by identify()/close(); loop around to
				// re-check terminated/offline/background state.
				continue
			}
		}

		if w.control.Terminated() {
			return
		}

		background := w.control.Background()
		if background && w.control.DisableBackgroundUpdating() {
			continue // sleep only, never fetch
		}
		if !background && w.control.StreamingEnabled() {
			continue // streaming owns updates in the foreground
		}
		if w.control.Offline() {
			continue
		}

		w.fetchOnce(ctx)
	}
}

func (w *PollingWorker) nextInterval(first bool) time.Duration {
	if first && w.isInitializing() {
		return 0
	}
	if w.control.Background() {
		return w.bgInterval
	}
	return w.interval
}

func (w *PollingWorker) fetchOnce(ctx context.Context) {
	plan := BuildRequest(w.pollURI, "/msdk/evalx/users", "/msdk/evalx/user", w.control.UserJSON(), w.useReport, w.useReasons, w.credential)
	resp, err := w.requester.Do(ctx, plan.Method, plan.URL, plan.Headers, plan.Body)
	if err != nil {
		w.loggers.Warnf("poll request failed: %s", err)
		return
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		w.loggers.Errorf("poll request returned %d; marking client failed", resp.StatusCode)
		w.control.MarkFailed()
	case resp.StatusCode == http.StatusOK:
		if err := w.updater.ApplyPut(resp.Body); err != nil {
			w.loggers.Errorf("failed to apply poll response: %s", err)
		}
	default:
		w.loggers.Warnf("poll request returned unexpected status %d", resp.StatusCode)
	}
}
