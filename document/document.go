package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Field is a single key/value pair of a Document.
type Field struct {
	Key   string
	Value Value
}

// Document is an ordered mapping of string keys to Values. The zero value
// is an empty document ready to use.
type Document struct {
	fields []Field
}

// New returns a document holding the given fields in order.
func New(fields ...Field) *Document {
	d := &Document{}
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return d
}

// Len returns the number of fields. A nil document has no fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Keys returns the field names in order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the document's fields.
func (d *Document) Fields() []Field {
	if d == nil {
		return nil
	}
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return nil, false
	}
	for _, f := range d.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key in place, or appends a new field.
func (d *Document) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	for i := range d.fields {
		if d.fields[i].Key == key {
			d.fields[i].Value = v
			return
		}
	}
	d.fields = append(d.fields, Field{Key: key, Value: v})
}

// MarshalJSON encodes the document as a JSON object with keys in order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the input.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	d.fields = parsed.fields
	return nil
}

// Parse decodes a JSON object into a Document. Key order is preserved and
// duplicate keys are rejected.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*Document)
	if !ok {
		return nil, fmt.Errorf("document: expected a JSON object, got %s", KindName(v))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("document: unexpected data after top-level object")
	}
	return doc, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("document: unexpected delimiter %q", t)
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("document: invalid number %q: %w", t, err)
		}
		return numberFromFloat(f), nil
	}
	return nil, fmt.Errorf("document: unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (*Document, error) {
	doc := &Document{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("document: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("document: expected object key, got %v", tok)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("document: duplicate key %q", key)
		}
		seen[key] = struct{}{}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		doc.fields = append(doc.fields, Field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	return doc, nil
}

func decodeArray(dec *json.Decoder) (Array, error) {
	arr := Array{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	return arr, nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(t)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case Float:
		if name, ok := nonFiniteName(float64(t)); ok {
			b, _ := json.Marshal(name)
			buf.Write(b)
			return nil
		}
		b, err := json.Marshal(float64(t))
		if err != nil {
			return fmt.Errorf("document: %w", err)
		}
		buf.Write(b)
	case String:
		b, _ := json.Marshal(string(t))
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Document:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, f := range t.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(f.Key)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeValue(buf, f.Value); err != nil {
				return fmt.Errorf("%s: %w", f.Key, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("document: unsupported value %T", v)
	}
	return nil
}

// MarshalValue encodes a single Value as JSON.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
