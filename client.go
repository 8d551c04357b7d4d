// Package flagcore is a client-side feature-flag evaluation SDK: an
// embedded library that connects to a remote flag-management service,
// maintains a locally cached set of flag values scoped to a single user
// context, evaluates typed flags against that cache with fallback values,
// and emits analytics events describing evaluations and user lifecycle
// transitions.
package flagcore

import (
	"context"
	"sync"
	"time"

	"github.com/flagcore/flagcore-go/internal/datasource"
	"github.com/flagcore/flagcore-go/internal/events"
	"github.com/flagcore/flagcore-go/internal/gate"
	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/ldtime"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
	"github.com/flagcore/flagcore-go/internal/store"
	"github.com/flagcore/flagcore-go/internal/transport"
)

const (
	eventSchemaVersion = "3"
	userAgent          = "flagcore-go-sdk"
)

// Client is a single credential-scoped connection to the flag-management
// service: the lifecycle state machine, its three worker goroutines
// (events, polling, streaming), the flag store, and the event processor all
// live here (spec.md §2, L13).
type Client struct {
	environmentName string
	config          Config
	credential      string
	loggers         ldlog.Loggers

	mu         sync.RWMutex
	status     Status
	offline    bool
	background bool
	user       User

	store     *store.Store
	processor *events.Processor
	persist   PersistenceHooks

	requester transport.Requester
	streamer  transport.Streamer

	eventsWorker *events.Worker
	pollWorker   *datasource.PollingWorker
	streamWorker *datasource.StreamingWorker

	wakeGate *gate.Gate
	initGate *gate.Gate
	status1  *statusBroadcaster

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	streamConnMu     sync.Mutex
	streamConnCtx    context.Context
	streamConnCancel context.CancelFunc

	closed bool
}

// newClient constructs and starts one Client for the given credential,
// sharing user and persistence hooks with the rest of its registry.
func newClient(environmentName, credential string, config Config, user User, persist PersistenceHooks, loggers ldlog.Loggers) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		environmentName: environmentName,
		config:          config,
		credential:      credential,
		loggers:         loggers,
		status:          StatusInitializing,
		user:            user,
		store:           store.New(),
		persist:         persist,
		wakeGate:        gate.New(),
		initGate:        gate.New(),
		status1:         newStatusBroadcaster(),
		runCtx:          ctx,
		runCancel:       cancel,
	}
	c.streamConnCtx, c.streamConnCancel = context.WithCancel(ctx)

	transportImpl := transport.NewHTTPTransport(config.RequestTimeout, config.ConnectTimeout)
	c.requester = transportImpl
	c.streamer = transportImpl

	if c.config.Offline {
		c.offline = true
	}

	c.restoreFromPersistence()

	c.processor = events.New(events.Config{
		Capacity:            config.EventsCapacity,
		InlineUsersInEvents: config.InlineUsersInEvents,
	}, loggers)

	sender := &events.HTTPSender{
		Requester:     c.requester,
		EventsURI:     config.EventsURI,
		Credential:    credential,
		UserAgent:     userAgent,
		SchemaVersion: eventSchemaVersion,
	}
	c.eventsWorker = events.NewWorker(c.processor, sender, config.EventsFlushInterval, loggers)

	updater := datasource.NewUpdater(c.store, loggers, c.onFirstInitialized)

	control := datasource.Control{
		Terminated:                c.isTerminated,
		Offline:                   c.IsOffline,
		Background:                c.isBackground,
		StreamingEnabled:          func() bool { return config.Streaming },
		DisableBackgroundUpdating: func() bool { return config.DisableBackgroundUpdating },
		MarkFailed:                c.markFailed,
		UserJSON:                  c.currentUserJSON,
		WakeGate:                  c.wakeGate,
		ConnContext:               c.connContext,
	}

	c.pollWorker = datasource.NewPollingWorker(
		control, updater, c.requester, config.PollURI, credential,
		config.UseReport, config.UseReasons,
		config.PollInterval, config.BackgroundPollInterval,
		loggers, c.isInitializing,
	)

	refetcher := datasource.NewPollRefetcher(c.requester, updater, config.PollURI, credential, config.UseReport, config.UseReasons, control, loggers)

	c.streamWorker = datasource.NewStreamingWorker(
		control, updater, c.streamer, refetcher,
		config.StreamURI, credential, config.UseReport, config.UseReasons,
		config.StreamReadTimeout, config.StreamInitialRetryDelay, loggers,
	)

	// Workers start in offline mode too: the polling and streaming loops check
	// Offline() on every iteration and skip fetching while it is set, so a
	// later SetOnline resumes fetching. The events worker flushes either way.
	c.startWorkers()

	return c
}

func (c *Client) startWorkers() {
	c.wg.Add(3)
	go func() { defer c.wg.Done(); c.eventsWorker.Run(c.runCtx) }()
	go func() { defer c.wg.Done(); c.pollWorker.Run(c.runCtx) }()
	go func() { defer c.wg.Done(); c.streamWorker.Run(c.runCtx) }()
}

func (c *Client) isTerminated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusFailed || c.status == StatusShuttingDown
}

func (c *Client) isInitializing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusInitializing
}

func (c *Client) isBackground() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.background
}

// connContext returns the context the streaming worker should use for its
// next connection attempt.
func (c *Client) connContext() context.Context {
	c.streamConnMu.Lock()
	defer c.streamConnMu.Unlock()
	return c.streamConnCtx
}

// cancelStreamConnection tears down whatever connContext is currently in
// use and installs a fresh one derived from runCtx, so a live streaming
// connection is interrupted immediately without permanently disabling
// future connection attempts.
func (c *Client) cancelStreamConnection() {
	c.streamConnMu.Lock()
	c.streamConnCancel()
	c.streamConnCtx, c.streamConnCancel = context.WithCancel(c.runCtx)
	c.streamConnMu.Unlock()
}

// IsOffline reports whether the client is currently in offline mode.
func (c *Client) IsOffline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offline
}

func (c *Client) currentUserJSON() []byte {
	c.mu.RLock()
	u := c.user
	c.mu.RUnlock()
	v := u.ToValue(c.config.AllAttributesPrivate, c.config.globalPrivateAttributeSet())
	data, err := v.Marshal()
	if err != nil {
		return []byte("{}")
	}
	return data
}

func (c *Client) onFirstInitialized() {
	c.mu.Lock()
	if c.status == StatusInitializing {
		c.status = StatusInitialized
	}
	c.mu.Unlock()
	c.initGate.Broadcast()
	c.status1.broadcast(StatusInitialized)
	globalStatusRegistry.notify(c, StatusInitialized)
	c.maybePersist()
}

func (c *Client) markFailed() {
	c.mu.Lock()
	alreadyTerminal := c.status == StatusFailed || c.status == StatusShuttingDown
	c.status = StatusFailed
	c.mu.Unlock()
	if alreadyTerminal {
		return
	}
	c.initGate.Broadcast() // unblock any AwaitInitialized waiters
	c.status1.broadcast(StatusFailed)
	globalStatusRegistry.notify(c, StatusFailed)
}

func (c *Client) maybePersist() {
	if c.persist.Write == nil {
		return
	}
	c.mu.RLock()
	key := c.user.Key
	c.mu.RUnlock()
	blob, err := c.store.Serialize().Marshal()
	if err != nil {
		return
	}
	c.persist.Write(c.persist.Ctx, persistenceName(key), string(blob))
}

func (c *Client) restoreFromPersistence() {
	if c.persist.Read == nil {
		return
	}
	blob, ok := c.persist.Read(c.persist.Ctx, persistenceName(c.user.Key))
	if !ok {
		return
	}
	_ = c.store.Restore(blob) // best-effort; a bad cache is not fatal
}

// IsInitialized reports whether the first successful put has applied.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusInitialized
}

// Status returns the current lifecycle state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// AwaitInitialized blocks until the client becomes initialized or failed,
// or until timeout elapses, whichever comes first. It returns the final
// IsInitialized() value.
func (c *Client) AwaitInitialized(timeout time.Duration) bool {
	if c.IsInitialized() {
		return true
	}
	if c.config.Offline {
		return false
	}
	deadline := time.Now().Add(timeout)
	for {
		if c.IsInitialized() {
			return true
		}
		if c.isTerminated() {
			return c.IsInitialized()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return c.IsInitialized()
		}
		c.initGate.Wait(remaining)
	}
}

// AddStatusListener returns a channel that receives every subsequent status
// transition for this client (SPEC_FULL.md §5's supplemented status API).
func (c *Client) AddStatusListener() <-chan Status {
	return c.status1.subscribe()
}

// RemoveStatusListener unsubscribes a channel returned by AddStatusListener.
func (c *Client) RemoveStatusListener(ch <-chan Status) {
	c.status1.unsubscribe(ch)
}

// SetOffline puts the client into offline mode: workers stop fetching (but
// keep running their loop so they resume promptly on SetOnline).
func (c *Client) SetOffline() {
	c.mu.Lock()
	c.offline = true
	c.mu.Unlock()
	c.wakeGate.Broadcast()
}

// SetOnline takes the client out of offline mode.
func (c *Client) SetOnline() {
	c.mu.Lock()
	c.offline = false
	c.mu.Unlock()
	c.wakeGate.Broadcast()
}

// SetBackground flips background mode and, when entering it, cancels any
// live streaming connection so the streaming loop re-evaluates its disabled
// condition immediately (spec.md §4.6).
func (c *Client) SetBackground(background bool) {
	c.mu.Lock()
	c.background = background
	c.mu.Unlock()
	if background {
		c.cancelStreamConnection()
	}
	c.wakeGate.Broadcast()
}

// Flush requests an out-of-band events flush.
func (c *Client) Flush() {
	c.eventsWorker.Flush()
}

// ConnectionStats reports the streaming worker's most recent connection
// attempt (SPEC_FULL.md §5's supplemented diagnostics feature).
func (c *Client) ConnectionStats() datasource.ConnectionStats {
	return c.streamWorker.Diagnostics()
}

// Track enqueues a custom event with no data and no metric.
func (c *Client) Track(name string) {
	c.TrackMetric(name, nil, false, nil)
}

// TrackData enqueues a custom event carrying arbitrary JSON data.
func (c *Client) TrackData(name string, data interface{}) {
	c.TrackMetric(name, data, true, nil)
}

// TrackMetric enqueues a custom event with optional data and a numeric
// metric value.
func (c *Client) TrackMetric(name string, data interface{}, hasData bool, metric *float64) {
	key, value, kind := c.userSnapshot()
	c.processor.Track(key, value, kind, name, ldvalue.FromInterface(data), hasData, metric, ldtime.Now())
}

// Alias enqueues an alias event linking previous to current.
func (c *Client) Alias(current, previous User) {
	c.processor.Alias(current.Key, current.contextKind(), previous.Key, previous.contextKind(), ldtime.Now())
}

// userSnapshot returns the current user's key, encoded value, and context
// kind in one locked read.
func (c *Client) userSnapshot() (key string, value ldvalue.Value, contextKind string) {
	c.mu.RLock()
	u := c.user
	c.mu.RUnlock()
	return u.Key, u.ToValue(c.config.AllAttributesPrivate, c.config.globalPrivateAttributeSet()), u.contextKind()
}

// Close transitions the client to shutting-down, stops all workers, performs
// a final events flush, and releases resources. Safe to call more than
// once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.status != StatusFailed {
		c.status = StatusShuttingDown
	}
	c.closed = true
	c.mu.Unlock()

	c.wakeGate.Broadcast()
	// Stop the events worker before cancelling runCtx, so its final flush
	// is sent with a live context.
	c.eventsWorker.Stop() // performs the final flush
	c.runCancel()
	c.wg.Wait()
	return nil
}

// identifyLocked replaces the user and resets lifecycle state as part of a
// registry-wide Identify (spec.md §4.6). Returns the previous user so the
// registry can decide whether to also enqueue an alias event.
func (c *Client) identifyLocked(newUser User) (previous User) {
	c.mu.Lock()
	previous = c.user
	c.user = newUser
	if c.status != StatusFailed && c.status != StatusShuttingDown {
		c.status = StatusInitializing
	}
	c.mu.Unlock()

	c.cancelStreamConnection()
	c.wakeGate.Broadcast()
	c.processor.Identify(newUser.Key, newUser.ToValue(c.config.AllAttributesPrivate, c.config.globalPrivateAttributeSet()), ldtime.Now())
	return previous
}
