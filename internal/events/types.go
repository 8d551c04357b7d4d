// Package events implements the event processor (spec.md §4.5, L7) and its
// flush worker (L12): summarisation of evaluation events, construction of
// identify/custom/alias/feature events, and bounded, UUID-tagged batched
// delivery.
package events

import (
	"github.com/flagcore/flagcore-go/internal/ldtime"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

// Kind distinguishes the tagged event variants of spec.md §3.
type Kind string

const (
	KindIdentify Kind = "identify"
	KindFeature  Kind = "feature"
	KindCustom   Kind = "custom"
	KindAlias    Kind = "alias"
	KindSummary  Kind = "summary"
)

// Event is one outgoing analytics event. Exactly the fields relevant to Kind
// are meaningful; this mirrors the teacher's wire format of one flat struct
// marshaled with only-if-set fields rather than a Go interface hierarchy,
// since the event payload is itself a JSON array of heterogeneous objects.
type Event struct {
	Kind Kind

	CreatedAt ldtime.UnixMillis

	// identify
	User UserRef

	// feature
	FlagKey     string
	Value       ldvalue.Value
	Default     ldvalue.Value
	Version     uint32
	HasVariation bool
	Variation   int32
	HasReason   bool
	Reason      ldvalue.Value
	ContextKind string

	// custom
	Name        string
	Data        ldvalue.Value
	HasData     bool
	MetricValue *float64

	// alias
	CurrentKey          string
	PreviousKey         string
	CurrentContextKind  string
	PreviousContextKind string

	// summary
	SummaryStart ldtime.UnixMillis
	SummaryEnd   ldtime.UnixMillis
	Features     map[string]*FlagSummary
}

// UserRef is either an inlined user object or just the user's key, per the
// inline_users_in_events policy (spec.md §3).
type UserRef struct {
	Inline bool
	Key    string
	User   ldvalue.Value
}

// CounterKey is (version, variation); the sentinel "unknown" key is used via
// the Unknown field when the flag was absent at evaluation time.
type CounterKey struct {
	Version   uint32
	Variation int32
	Unknown   bool
}

// Counter aggregates evaluation outcomes for one CounterKey within a
// summary window.
type Counter struct {
	Key     CounterKey
	Count   int
	Value   ldvalue.Value
	Version uint32
	Variation int32
	Unknown bool
}

// FlagSummary is one flag's worth of counters accumulated between two flush
// points.
type FlagSummary struct {
	Default    ldvalue.Value
	HasDefault bool
	Counters   map[CounterKey]*Counter
}

// ToValue renders e as its JSON wire representation.
func (e Event) ToValue() ldvalue.Value {
	b := ldvalue.NewObjectBuilder().
		Set("kind", ldvalue.String(string(e.Kind))).
		Set("creationDate", ldvalue.Int(int(e.CreatedAt)))

	switch e.Kind {
	case KindIdentify:
		b.Set("key", ldvalue.String(e.User.Key))
		if e.User.Inline {
			b.Set("user", e.User.User)
		}
	case KindFeature:
		b.Set("key", ldvalue.String(e.FlagKey))
		b.Set("value", e.Value)
		b.Set("default", e.Default)
		b.Set("version", ldvalue.Int(int(e.Version)))
		b.Set("contextKind", ldvalue.String(e.ContextKind))
		if e.HasVariation {
			b.Set("variation", ldvalue.Int(int(e.Variation)))
		}
		if e.HasReason {
			b.Set("reason", e.Reason)
		}
		if e.User.Inline {
			b.Set("user", e.User.User)
		} else {
			b.Set("userKey", ldvalue.String(e.User.Key))
		}
	case KindCustom:
		b.Set("key", ldvalue.String(e.Name))
		b.Set("contextKind", ldvalue.String(e.ContextKind))
		if e.HasData {
			b.Set("data", e.Data)
		}
		if e.MetricValue != nil {
			b.Set("metricValue", ldvalue.Number(*e.MetricValue))
		}
		if e.User.Inline {
			b.Set("user", e.User.User)
		} else {
			b.Set("userKey", ldvalue.String(e.User.Key))
		}
	case KindAlias:
		b.Set("key", ldvalue.String(e.CurrentKey))
		b.Set("contextKind", ldvalue.String(e.CurrentContextKind))
		b.Set("previousKey", ldvalue.String(e.PreviousKey))
		b.Set("previousContextKind", ldvalue.String(e.PreviousContextKind))
	case KindSummary:
		b.Set("startDate", ldvalue.Int(int(e.SummaryStart)))
		b.Set("endDate", ldvalue.Int(int(e.SummaryEnd)))
		featuresB := ldvalue.NewObjectBuilder()
		for key, summary := range e.Features {
			featuresB.Set(key, summary.toValue())
		}
		b.Set("features", featuresB.Build())
	}
	return b.Build()
}

func (s *FlagSummary) toValue() ldvalue.Value {
	b := ldvalue.NewObjectBuilder()
	if s.HasDefault {
		b.Set("default", s.Default)
	}
	counters := make([]ldvalue.Value, 0, len(s.Counters))
	for _, c := range s.Counters {
		cb := ldvalue.NewObjectBuilder().
			Set("count", ldvalue.Int(c.Count)).
			Set("value", c.Value)
		if c.Unknown {
			cb.Set("unknown", ldvalue.Bool(true))
		} else {
			cb.Set("version", ldvalue.Int(int(c.Version)))
			cb.Set("variation", ldvalue.Int(int(c.Variation)))
		}
		counters = append(counters, cb.Build())
	}
	b.Set("counters", ldvalue.Array(counters...))
	return b.Build()
}
