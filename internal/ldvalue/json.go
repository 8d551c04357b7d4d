package ldvalue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Parse decodes a single JSON value from data into a Value tree.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Null(), fmt.Errorf("ldvalue: parse: %w", err)
	}
	return FromInterface(raw), nil
}

// FromInterface converts a value produced by encoding/json (with UseNumber,
// or not) into a Value tree. Unrecognized concrete types become Null.
func FromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		f, _ := t.Float64()
		return Number(f)
	case float64:
		return Number(t)
	case int:
		return Int(t)
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return Value{kind: ArrayType, aval: items}
	case map[string]interface{}:
		b := NewObjectBuilder()
		for k, item := range t {
			b.Set(k, FromInterface(item))
		}
		return b.Build()
	default:
		return Null()
	}
}

// Marshal serializes v to its compact JSON encoding using go-jsonstream's
// forward-only token writer, the same library the teacher uses in
// relay_endpoints.go to serialize flag payloads, rather than round-tripping
// through map[string]interface{}.
func (v Value) Marshal() ([]byte, error) {
	w := jwriter.NewWriter()
	v.WriteToJSONWriter(&w)
	return w.Bytes(), w.Error()
}

// WriteToJSONWriter streams v's encoding into w, mirroring the method of the
// same name on the real go-sdk-common ldvalue.Value that relay_endpoints.go
// calls directly (detail.Value.WriteToJSONWriter(...)).
func (v Value) WriteToJSONWriter(w *jwriter.Writer) {
	switch v.kind {
	case NullType:
		w.Null()
	case BoolType:
		w.Bool(v.bval)
	case NumberType:
		w.Float64(v.nval)
	case StringType:
		w.String(v.sval)
	case ArrayType:
		arr := w.Array()
		for _, item := range v.aval {
			item.WriteToJSONWriter(arr.Next())
		}
		arr.End()
	case ObjectType:
		obj := w.Object()
		if v.objval != nil {
			for _, k := range v.objval.keys {
				v.objval.values[k].WriteToJSONWriter(obj.Name(k))
			}
		}
		obj.End()
	}
}

// MarshalJSON implements encoding/json.Marshaler so Value composes cleanly
// with structs that embed it (flag records, events).
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Marshal()
}

// UnmarshalJSON implements encoding/json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ToInterface converts v back into plain Go values (map[string]interface{},
// []interface{}, etc.), for callers that need to interoperate with code
// outside this package's immediate boundary (e.g. the embedder's JSON layer
// mentioned in spec.md as an external collaborator).
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case NullType:
		return nil
	case BoolType:
		return v.bval
	case NumberType:
		return v.nval
	case StringType:
		return v.sval
	case ArrayType:
		out := make([]interface{}, len(v.aval))
		for i, item := range v.aval {
			out[i] = item.ToInterface()
		}
		return out
	case ObjectType:
		out := map[string]interface{}{}
		v.ForEachKey(func(k string, item Value) {
			out[k] = item.ToInterface()
		})
		return out
	default:
		return nil
	}
}
