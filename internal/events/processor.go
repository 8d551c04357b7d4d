package events

import (
	"sync"

	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/ldtime"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

// EvalInput is everything ProcessEval needs to know about one variation
// call, decoupled from the flag store so this package has no dependency on
// internal/store.
type EvalInput struct {
	FlagKey      string
	Value        ldvalue.Value
	Default      ldvalue.Value
	FlagPresent  bool
	Version      uint32
	HasVariation bool
	Variation    int32
	TrackEvents  bool
	DebugUntil   ldtime.UnixMillis
	HasReason    bool
	Reason       ldvalue.Value
	Detailed     bool
}

// Config holds the event-processor options spec.md §3 enumerates.
type Config struct {
	Capacity           int
	InlineUsersInEvents bool
}

// Processor implements spec.md §4.5: identify/track/alias/process_eval
// contracts, summarisation, and atomic bundling. All state is
// mutex-protected; this is the single lock the event pipeline uses, matching
// spec.md §5 ("Event submissions are serialised through the event
// processor's mutex").
type Processor struct {
	mu       sync.Mutex
	cfg      Config
	loggers  ldlog.Loggers
	events   []Event
	summary  map[string]*FlagSummary
	summaryStart ldtime.UnixMillis
}

// New creates a Processor.
func New(cfg Config, loggers ldlog.Loggers) *Processor {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	return &Processor{
		cfg:     cfg,
		loggers: loggers,
		summary: map[string]*FlagSummary{},
	}
}

func (p *Processor) userRef(userKey string, userValue ldvalue.Value) UserRef {
	if p.cfg.InlineUsersInEvents {
		return UserRef{Inline: true, Key: userKey, User: userValue}
	}
	return UserRef{Inline: false, Key: userKey}
}

// Identify enqueues one identify event.
func (p *Processor) Identify(userKey string, userValue ldvalue.Value, now ldtime.UnixMillis) {
	p.enqueue(Event{
		Kind:      KindIdentify,
		CreatedAt: now,
		User:      UserRef{Inline: true, Key: userKey, User: userValue},
	})
}

// Track enqueues one custom event.
func (p *Processor) Track(
	userKey string, userValue ldvalue.Value, contextKind string,
	name string, data ldvalue.Value, hasData bool, metric *float64, now ldtime.UnixMillis,
) {
	p.enqueue(Event{
		Kind:        KindCustom,
		CreatedAt:   now,
		User:        p.userRef(userKey, userValue),
		ContextKind: contextKind,
		Name:        name,
		Data:        data,
		HasData:     hasData,
		MetricValue: metric,
	})
}

// Alias enqueues one alias event.
func (p *Processor) Alias(currentKey, currentKind, previousKey, previousKind string, now ldtime.UnixMillis) {
	p.enqueue(Event{
		Kind:                KindAlias,
		CreatedAt:           now,
		CurrentKey:          currentKey,
		CurrentContextKind:  currentKind,
		PreviousKey:         previousKey,
		PreviousContextKind: previousKind,
	})
}

// ProcessEval summarises one evaluation and, if warranted, also enqueues a
// full feature event (spec.md §4.5).
func (p *Processor) ProcessEval(
	userKey string, userValue ldvalue.Value, contextKind string,
	in EvalInput, now ldtime.UnixMillis,
) {
	p.mu.Lock()
	p.summarizeLocked(in, now)
	p.mu.Unlock()

	// A feature event is emitted when the flag explicitly requests tracking,
	// or when debug mode is still active (debugEventsUntilDate > now).
	emitFeature := in.FlagPresent && (in.TrackEvents || (in.DebugUntil != 0 && int64(in.DebugUntil) > int64(now)))
	if !emitFeature {
		return
	}

	evt := Event{
		Kind:        KindFeature,
		CreatedAt:   now,
		User:        p.userRef(userKey, userValue),
		ContextKind: contextKind,
		FlagKey:     in.FlagKey,
		Value:       in.Value,
		Default:     in.Default,
		Version:     in.Version,
	}
	if in.HasVariation {
		evt.HasVariation = true
		evt.Variation = in.Variation
	}
	if in.Detailed && in.HasReason {
		evt.HasReason = true
		evt.Reason = in.Reason
	}
	p.enqueue(evt)
}

func (p *Processor) summarizeLocked(in EvalInput, now ldtime.UnixMillis) {
	if p.summaryStart.IsZero() {
		p.summaryStart = now
	}
	fs, ok := p.summary[in.FlagKey]
	if !ok {
		fs = &FlagSummary{Counters: map[CounterKey]*Counter{}}
		if !in.FlagPresent {
			fs.Default = in.Default
			fs.HasDefault = true
		}
		p.summary[in.FlagKey] = fs
	}

	var ck CounterKey
	if !in.FlagPresent {
		ck = CounterKey{Unknown: true}
	} else {
		variation := int32(-1)
		if in.HasVariation {
			variation = in.Variation
		}
		ck = CounterKey{Version: in.Version, Variation: variation}
	}

	c, ok := fs.Counters[ck]
	if !ok {
		c = &Counter{
			Key:       ck,
			Value:     in.Value,
			Version:   in.Version,
			Variation: ck.Variation,
			Unknown:   ck.Unknown,
		}
		if ck.Unknown {
			c.Value = in.Default
		}
		fs.Counters[ck] = c
	}
	c.Count++
}

// enqueue appends an individual event, dropping it with a warning if the
// events list is already at capacity. The summary is never affected by
// capacity (spec.md §4.5).
func (p *Processor) enqueue(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) >= p.cfg.Capacity {
		p.loggers.Warnf("event capacity %d exceeded; dropping %s event", p.cfg.Capacity, e.Kind)
		return
	}
	p.events = append(p.events, e)
}

// BundlePayload atomically snapshots pending events and the summary,
// returning the list of events to send (with a trailing summary event
// appended if there was anything to summarise) and resetting internal
// state. If there is nothing to send at all, ok is false.
func (p *Processor) BundlePayload(now ldtime.UnixMillis) (payload []Event, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.events) == 0 && len(p.summary) == 0 {
		return nil, false
	}

	out := p.events
	p.events = nil

	if len(p.summary) > 0 {
		out = append(out, Event{
			Kind:         KindSummary,
			SummaryStart: p.summaryStart,
			SummaryEnd:   now,
			Features:     p.summary,
		})
		p.summary = map[string]*FlagSummary{}
		p.summaryStart = 0
	}

	return out, true
}
