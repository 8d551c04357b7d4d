// Package ldmodel defines the flag record: the in-memory projection of one
// flag's metadata and current value, parsed from and serialized back to
// JSON.
package ldmodel

import (
	"fmt"

	"github.com/flagcore/flagcore-go/internal/ldtime"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

// Flag is one flag's metadata and value, as delivered by the polling or
// streaming update pipeline.
type Flag struct {
	Key                  string
	Value                ldvalue.Value
	Version              uint32
	FlagVersion          *uint32
	Variation            *int32
	TrackEvents          bool
	TrackReason          bool
	Reason               ldvalue.Value // ObjectType, or the zero Value if absent
	HasReason            bool
	DebugEventsUntilDate ldtime.UnixMillis
	Deleted              bool
}

// EffectiveFlagVersion returns FlagVersion if present, else Version, per
// spec.md §3's "if absent, use version wherever flag version is reported."
func (f Flag) EffectiveFlagVersion() uint32 {
	if f.FlagVersion != nil {
		return *f.FlagVersion
	}
	return f.Version
}

// EffectiveVariation returns the chosen variation index, or -1 if none was
// chosen (absent is normalized to -1 per spec.md §3).
func (f Flag) EffectiveVariation() int32 {
	if f.Variation == nil {
		return -1
	}
	return *f.Variation
}

// Tombstone builds a deleted placeholder record for key at version, used by
// Store.Delete.
func Tombstone(key string, version uint32) Flag {
	return Flag{
		Key:     key,
		Value:   ldvalue.Null(),
		Version: version,
		Deleted: true,
	}
}

// Clone returns a deep, independent copy of f.
func (f Flag) Clone() Flag {
	out := f
	out.Value = f.Value.Clone()
	if f.FlagVersion != nil {
		v := *f.FlagVersion
		out.FlagVersion = &v
	}
	if f.Variation != nil {
		v := *f.Variation
		out.Variation = &v
	}
	if f.HasReason {
		out.Reason = f.Reason.Clone()
	}
	return out
}

// Parse decodes one flag record from its JSON object representation. key, if
// non-empty, is used as the record's key when the object itself omits a
// "key" property (the streaming "put" payload keys flags by object key
// rather than embedding it).
func Parse(key string, v ldvalue.Value) (Flag, error) {
	if v.Type() != ldvalue.ObjectType {
		return Flag{}, fmt.Errorf("ldmodel: flag record must be a JSON object, got %s", v.Type())
	}
	f := Flag{Key: key}
	if kv, ok := v.GetByKey("key"); ok && kv.Type() == ldvalue.StringType {
		f.Key = kv.StringValue()
	}
	if f.Key == "" {
		return Flag{}, fmt.Errorf("ldmodel: flag record has no key")
	}
	if val, ok := v.GetByKey("value"); ok {
		f.Value = val
	} else {
		f.Value = ldvalue.Null()
	}
	if ver, ok := v.GetByKey("version"); ok && ver.Type() == ldvalue.NumberType {
		f.Version = uint32(ver.IntValue())
	}
	if fv, ok := v.GetByKey("flagVersion"); ok && fv.Type() == ldvalue.NumberType {
		n := uint32(fv.IntValue())
		f.FlagVersion = &n
	}
	if variation, ok := v.GetByKey("variation"); ok && variation.Type() == ldvalue.NumberType {
		n := int32(variation.IntValue())
		f.Variation = &n
	}
	if te, ok := v.GetByKey("trackEvents"); ok {
		f.TrackEvents = te.BoolValue()
	}
	if tr, ok := v.GetByKey("trackReason"); ok {
		f.TrackReason = tr.BoolValue()
	}
	if reason, ok := v.GetByKey("reason"); ok && reason.Type() == ldvalue.ObjectType {
		f.Reason = reason
		f.HasReason = true
	}
	if deud, ok := v.GetByKey("debugEventsUntilDate"); ok && deud.Type() == ldvalue.NumberType {
		f.DebugEventsUntilDate = ldtime.UnixMillis(deud.IntValue())
	}
	if del, ok := v.GetByKey("deleted"); ok {
		f.Deleted = del.BoolValue()
	}
	if f.Deleted {
		f.Value = ldvalue.Null()
	}
	return f, nil
}

// ToValue serializes f back into the JSON object shape Parse accepts.
func (f Flag) ToValue() ldvalue.Value {
	b := ldvalue.NewObjectBuilder().
		Set("key", ldvalue.String(f.Key)).
		Set("value", f.Value).
		Set("version", ldvalue.Int(int(f.Version)))
	if f.FlagVersion != nil {
		b.Set("flagVersion", ldvalue.Int(int(*f.FlagVersion)))
	}
	if f.Variation != nil {
		b.Set("variation", ldvalue.Int(int(*f.Variation)))
	}
	if f.TrackEvents {
		b.Set("trackEvents", ldvalue.Bool(true))
	}
	if f.TrackReason {
		b.Set("trackReason", ldvalue.Bool(true))
	}
	if f.HasReason {
		b.Set("reason", f.Reason)
	}
	if !f.DebugEventsUntilDate.IsZero() {
		b.Set("debugEventsUntilDate", ldvalue.Int(int(f.DebugEventsUntilDate)))
	}
	if f.Deleted {
		b.Set("deleted", ldvalue.Bool(true))
	}
	return b.Build()
}

// ParseSet parses a JSON object of {flag-key: flag-json} into a slice of
// Flag records. It pre-validates every child before returning any result:
// if any child fails to parse, the whole call fails and the returned slice
// is nil, so that callers applying a streaming "put" never partially apply
// an update (spec.md §4.2).
func ParseSet(v ldvalue.Value) ([]Flag, error) {
	if v.Type() != ldvalue.ObjectType {
		return nil, fmt.Errorf("ldmodel: flag set must be a JSON object, got %s", v.Type())
	}
	out := make([]Flag, 0, v.Count())
	var parseErr error
	v.ForEachKey(func(key string, item ldvalue.Value) {
		if parseErr != nil {
			return
		}
		flag, err := Parse(key, item)
		if err != nil {
			parseErr = fmt.Errorf("ldmodel: flag %q: %w", key, err)
			return
		}
		out = append(out, flag)
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}
