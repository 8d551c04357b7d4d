package flagcore

import (
	"github.com/flagcore/flagcore-go/internal/events"
	"github.com/flagcore/flagcore-go/internal/ldtime"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

// EvaluationDetail carries the extra diagnostic information returned by the
// *_detail variation methods (spec.md §4.7).
type EvaluationDetail struct {
	// VariationIndex is the chosen variation's index, or -1 if none
	// (flag not found, type mismatch, or the flag itself had no variation).
	VariationIndex int32
	// Reason describes why this value was returned, as a plain JSON-ish
	// object (map[string]interface{}), or nil if no reason is available.
	Reason interface{}
}

func errorReason(kind string) interface{} {
	return map[string]interface{}{"kind": "ERROR", "errorKind": kind}
}

// evaluate is the shared read-path for every variation method: look up the
// flag, apply the fallback/type-mismatch rules of spec.md §4.7, and feed the
// outcome into the event processor before returning.
func (c *Client) evaluate(key string, wantType ldvalue.Type, fallback ldvalue.Value, detailed bool) (ldvalue.Value, EvaluationDetail) {
	entry, ok := c.store.Get(key)

	in := events.EvalInput{
		FlagKey:  key,
		Default:  fallback,
		Detailed: detailed,
	}

	var result ldvalue.Value
	var detail EvaluationDetail

	switch {
	case !ok:
		result = fallback
		detail = EvaluationDetail{VariationIndex: -1, Reason: errorReason("FLAG_NOT_FOUND")}
		in.FlagPresent = false

	default:
		flag := entry.Flag()
		entry.Release()
		in.FlagPresent = true
		in.Version = flag.Version
		in.TrackEvents = flag.TrackEvents
		in.DebugUntil = flag.DebugEventsUntilDate
		if flag.Variation != nil {
			in.HasVariation = true
			in.Variation = *flag.Variation
		}
		if flag.HasReason {
			in.HasReason = true
			in.Reason = flag.Reason
		}

		typeOK := flag.Value.Type() == ldvalue.NullType || wantType == ldvalue.NullType || flag.Value.Type() == wantType
		if !typeOK {
			result = fallback
			detail = EvaluationDetail{VariationIndex: -1, Reason: errorReason("WRONG_TYPE")}
		} else {
			result = flag.Value
			detail = EvaluationDetail{VariationIndex: flag.EffectiveVariation()}
			if flag.HasReason {
				detail.Reason = flag.Reason.ToInterface()
			}
		}
	}

	in.Value = result

	key_, value, kind := c.userSnapshot()
	c.processor.ProcessEval(key_, value, kind, in, ldtime.Now())

	return result, detail
}

// BoolVariation returns key's value as a bool, or fallback if the flag is
// absent or not a bool.
func (c *Client) BoolVariation(key string, fallback bool) bool {
	v, _ := c.evaluate(key, ldvalue.BoolType, ldvalue.Bool(fallback), false)
	return boolOrFallback(v, fallback)
}

// BoolVariationDetail is BoolVariation plus an EvaluationDetail.
func (c *Client) BoolVariationDetail(key string, fallback bool) (bool, EvaluationDetail) {
	v, d := c.evaluate(key, ldvalue.BoolType, ldvalue.Bool(fallback), true)
	return boolOrFallback(v, fallback), d
}

func boolOrFallback(v ldvalue.Value, fallback bool) bool {
	if v.Type() != ldvalue.BoolType {
		return fallback
	}
	return v.BoolValue()
}

// IntVariation returns key's value as an int, truncated toward zero, or
// fallback if the flag is absent or not a number.
func (c *Client) IntVariation(key string, fallback int) int {
	v, _ := c.evaluate(key, ldvalue.NumberType, ldvalue.Int(fallback), false)
	return intOrFallback(v, fallback)
}

// IntVariationDetail is IntVariation plus an EvaluationDetail.
func (c *Client) IntVariationDetail(key string, fallback int) (int, EvaluationDetail) {
	v, d := c.evaluate(key, ldvalue.NumberType, ldvalue.Int(fallback), true)
	return intOrFallback(v, fallback), d
}

func intOrFallback(v ldvalue.Value, fallback int) int {
	if v.Type() != ldvalue.NumberType {
		return fallback
	}
	return v.IntValue()
}

// DoubleVariation returns key's value as a float64, or fallback if the flag
// is absent or not a number.
func (c *Client) DoubleVariation(key string, fallback float64) float64 {
	v, _ := c.evaluate(key, ldvalue.NumberType, ldvalue.Number(fallback), false)
	return doubleOrFallback(v, fallback)
}

// DoubleVariationDetail is DoubleVariation plus an EvaluationDetail.
func (c *Client) DoubleVariationDetail(key string, fallback float64) (float64, EvaluationDetail) {
	v, d := c.evaluate(key, ldvalue.NumberType, ldvalue.Number(fallback), true)
	return doubleOrFallback(v, fallback), d
}

func doubleOrFallback(v ldvalue.Value, fallback float64) float64 {
	if v.Type() != ldvalue.NumberType {
		return fallback
	}
	return v.NumberValue()
}

// StringVariation returns key's value as a string, or fallback if the flag
// is absent or not a string.
func (c *Client) StringVariation(key string, fallback string) string {
	v, _ := c.evaluate(key, ldvalue.StringType, ldvalue.String(fallback), false)
	return stringOrFallback(v, fallback)
}

// StringVariationDetail is StringVariation plus an EvaluationDetail.
func (c *Client) StringVariationDetail(key string, fallback string) (string, EvaluationDetail) {
	v, d := c.evaluate(key, ldvalue.StringType, ldvalue.String(fallback), true)
	return stringOrFallback(v, fallback), d
}

func stringOrFallback(v ldvalue.Value, fallback string) string {
	if v.Type() != ldvalue.StringType {
		return fallback
	}
	return v.StringValue()
}

// JSONVariation returns key's value as a generic Go value (as produced by
// encoding/json: map[string]interface{}, []interface{}, float64, string,
// bool, or nil), or fallback if the flag is absent. Any JSON
// type is accepted, matching spec.md §4.7's "JSON-null treated as any
// type" rule generalized to the whole-document variant.
func (c *Client) JSONVariation(key string, fallback interface{}) interface{} {
	v, _ := c.evaluate(key, ldvalue.NullType, ldvalue.FromInterface(fallback), false)
	return v.ToInterface()
}

// JSONVariationDetail is JSONVariation plus an EvaluationDetail.
func (c *Client) JSONVariationDetail(key string, fallback interface{}) (interface{}, EvaluationDetail) {
	v, d := c.evaluate(key, ldvalue.NullType, ldvalue.FromInterface(fallback), true)
	return v.ToInterface(), d
}
