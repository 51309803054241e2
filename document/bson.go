package document

import (
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ToBSON converts the document into the driver's ordered representation.
//
// Two extended JSON wrappers are recognised so callers can address
// store-generated values: {"$oid": "<24 hex chars>"} becomes an ObjectID and
// {"$date": "<RFC 3339>"} becomes a DateTime. Anything else is passed
// through as-is.
func (d *Document) ToBSON() bson.D {
	if d == nil {
		return bson.D{}
	}
	out := make(bson.D, 0, len(d.fields))
	for _, f := range d.fields {
		out = append(out, bson.E{Key: f.Key, Value: toNative(f.Value)})
	}
	return out
}

func toNative(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case String:
		return string(t)
	case Array:
		arr := make(bson.A, 0, len(t))
		for _, item := range t {
			arr = append(arr, toNative(item))
		}
		return arr
	case *Document:
		if native, ok := extendedValue(t); ok {
			return native
		}
		return t.ToBSON()
	}
	return nil
}

func extendedValue(d *Document) (any, bool) {
	if d.Len() != 1 {
		return nil, false
	}
	f := d.fields[0]
	s, ok := f.Value.(String)
	if !ok {
		return nil, false
	}
	switch f.Key {
	case "$oid":
		oid, err := bson.ObjectIDFromHex(string(s))
		if err != nil {
			return nil, false
		}
		return oid, true
	case "$date":
		ts, err := time.Parse(time.RFC3339Nano, string(s))
		if err != nil {
			return nil, false
		}
		return bson.NewDateTimeFromTime(ts), true
	}
	return nil, false
}

// FromBSON converts a driver document into a transport-safe Document.
// Store-specific types anywhere in the tree are rendered as plain values;
// see FromNative.
func FromBSON(d bson.D) *Document {
	doc := &Document{fields: make([]Field, 0, len(d))}
	for _, e := range d {
		doc.fields = append(doc.fields, Field{Key: e.Key, Value: FromNative(e.Value)})
	}
	return doc
}

// FromNative converts a value decoded by the driver into a Value. Object
// identifiers become their hex string, dates become RFC 3339 strings,
// decimals become their string form and binary data is base64 encoded.
// Infinite and NaN doubles become "Infinity", "-Infinity" and "NaN".
func FromNative(v any) Value {
	switch t := v.(type) {
	case nil, bson.Null, bson.Undefined:
		return Null{}
	case Float:
		return fromDouble(float64(t))
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Int(t)
	case int32:
		return Int(t)
	case int64:
		return Int(t)
	case float32:
		return fromDouble(float64(t))
	case float64:
		return fromDouble(t)
	case bson.ObjectID:
		return String(t.Hex())
	case bson.DateTime:
		return String(t.Time().UTC().Format(time.RFC3339Nano))
	case time.Time:
		return String(t.UTC().Format(time.RFC3339Nano))
	case bson.Decimal128:
		return String(t.String())
	case bson.Binary:
		return String(base64.StdEncoding.EncodeToString(t.Data))
	case bson.Timestamp:
		return New(Field{Key: "t", Value: Int(t.T)}, Field{Key: "i", Value: Int(t.I)})
	case bson.Regex:
		return String("/" + t.Pattern + "/" + t.Options)
	case bson.D:
		return FromBSON(t)
	case bson.M:
		return fromMapNative(t)
	case map[string]any:
		return fromMapNative(t)
	case bson.A:
		return fromSliceNative(t)
	case []any:
		return fromSliceNative(t)
	default:
		return String(fmt.Sprint(v))
	}
}

func fromMapNative(m map[string]any) *Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := &Document{fields: make([]Field, 0, len(keys))}
	for _, k := range keys {
		doc.fields = append(doc.fields, Field{Key: k, Value: FromNative(m[k])})
	}
	return doc
}

func fromSliceNative(s []any) Array {
	arr := make(Array, 0, len(s))
	for _, item := range s {
		arr = append(arr, FromNative(item))
	}
	return arr
}

// Stringify renders a store value, typically a generated identifier, as a
// plain string. Strings are returned unquoted; other values use their JSON
// encoding.
func Stringify(v any) string {
	val := FromNative(v)
	if s, ok := val.(String); ok {
		return string(s)
	}
	b, err := MarshalValue(val)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
