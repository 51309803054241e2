package store

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrUnsupportedOperator is returned by the in-memory backend for query or
// update operators it does not implement.
var ErrUnsupportedOperator = errors.New("store: unsupported operator")

// matchDocument evaluates a MongoDB filter against doc. It covers implicit
// equality (dotted paths and array membership included), the comparison
// operators, $in/$nin, $exists, $regex, $size, $not and the logical
// $and/$or/$nor.
func matchDocument(doc bson.D, filter bson.D) (bool, error) {
	for _, e := range filter {
		ok, err := matchElement(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElement(doc bson.D, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		clauses, err := clauseList(e.Key, e.Value)
		if err != nil {
			return false, err
		}
		for _, clause := range clauses {
			ok, err := matchDocument(doc, clause)
			if err != nil {
				return false, err
			}
			switch {
			case e.Key == "$and" && !ok:
				return false, nil
			case e.Key == "$or" && ok:
				return true, nil
			case e.Key == "$nor" && ok:
				return false, nil
			}
		}
		return e.Key != "$or", nil
	}
	if strings.HasPrefix(e.Key, "$") {
		return false, fmt.Errorf("%w %s", ErrUnsupportedOperator, e.Key)
	}

	values := resolvePath(doc, strings.Split(e.Key, "."))
	if cond, ok := asDoc(e.Value); ok && isOperatorDoc(cond) {
		return matchOperators(values, cond)
	}
	return matchEquals(values, e.Value), nil
}

func clauseList(op string, v any) ([]bson.D, error) {
	arr, ok := asArray(v)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("%s must be a nonempty array", op)
	}
	clauses := make([]bson.D, 0, len(arr))
	for _, item := range arr {
		d, ok := asDoc(item)
		if !ok {
			return nil, fmt.Errorf("%s entries must be objects", op)
		}
		clauses = append(clauses, d)
	}
	return clauses, nil
}

// resolvePath returns every value reachable at path. Arrays met along the
// way fan out over their document elements, and numeric parts index into
// them, mirroring how MongoDB resolves dotted field paths.
func resolvePath(v any, parts []string) []any {
	if len(parts) == 0 {
		return []any{v}
	}
	switch t := v.(type) {
	case bson.D:
		child, ok := lookupKey(t, parts[0])
		if !ok {
			return nil
		}
		return resolvePath(child, parts[1:])
	case bson.A:
		var out []any
		if idx, err := strconv.Atoi(parts[0]); err == nil && idx >= 0 && idx < len(t) {
			out = append(out, resolvePath(t[idx], parts[1:])...)
		}
		for _, item := range t {
			if d, ok := item.(bson.D); ok {
				out = append(out, resolvePath(d, parts)...)
			}
		}
		return out
	}
	return nil
}

func matchOperators(values []any, ops bson.D) (bool, error) {
	for _, op := range ops {
		ok, err := matchOperator(values, op.Key, op.Value, ops)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOperator(values []any, op string, arg any, ops bson.D) (bool, error) {
	switch op {
	case "$eq":
		return matchEquals(values, arg), nil
	case "$ne":
		return !matchEquals(values, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		return anyCandidate(values, func(v any) bool {
			c, ok := compareValues(v, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		}), nil
	case "$in", "$nin":
		arr, ok := asArray(arg)
		if !ok {
			return false, fmt.Errorf("%s needs an array", op)
		}
		found := false
		for _, item := range arr {
			if matchEquals(values, item) {
				found = true
				break
			}
		}
		return found == (op == "$in"), nil
	case "$exists":
		return (len(values) > 0) == truthy(arg), nil
	case "$not":
		inner, ok := asDoc(arg)
		if !ok || !isOperatorDoc(inner) {
			return false, errors.New("$not needs an operator expression")
		}
		ok, err := matchOperators(values, inner)
		return !ok, err
	case "$regex":
		re, err := compileRegex(arg, ops)
		if err != nil {
			return false, err
		}
		return anyCandidate(values, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	case "$options":
		if _, ok := lookupKey(ops, "$regex"); !ok {
			return false, errors.New("$options needs a $regex")
		}
		return true, nil
	case "$size":
		n, ok := toFloat(arg)
		if !ok {
			return false, errors.New("$size needs a number")
		}
		for _, v := range values {
			if arr, ok := v.(bson.A); ok && float64(len(arr)) == n {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w %s", ErrUnsupportedOperator, op)
}

func compileRegex(arg any, ops bson.D) (*regexp.Regexp, error) {
	var pattern, flags string
	switch t := arg.(type) {
	case string:
		pattern = t
	case bson.Regex:
		pattern, flags = t.Pattern, t.Options
	default:
		return nil, errors.New("$regex needs a string")
	}
	if o, ok := lookupKey(ops, "$options"); ok {
		s, _ := o.(string)
		flags = s
	}
	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		case 'x':
			// Go's RE2 syntax has no extended mode; ignore it.
		default:
			return nil, fmt.Errorf("invalid regex option %q", f)
		}
	}
	if prefix.Len() > 0 {
		pattern = "(?" + prefix.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("$regex: %w", err)
	}
	return re, nil
}

// matchEquals is implicit equality: a missing field equals null, and an
// array field matches when it equals target or holds an element that does.
func matchEquals(values []any, target any) bool {
	if len(values) == 0 {
		return isNull(target)
	}
	return anyCandidate(values, func(v any) bool { return valuesEqual(v, target) })
}

func anyCandidate(values []any, pred func(any) bool) bool {
	for _, v := range values {
		if pred(v) {
			return true
		}
		if arr, ok := v.(bson.A); ok {
			for _, item := range arr {
				if pred(item) {
					return true
				}
			}
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if isNull(a) || isNull(b) {
		return isNull(a) && isNull(b)
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			ai, aInt := toInt64(a)
			bi, bInt := toInt64(b)
			if aInt && bInt {
				return ai == bi
			}
			return af == bf
		}
		return false
	}
	switch at := a.(type) {
	case bson.D:
		bt, ok := asDoc(b)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if at[i].Key != bt[i].Key || !valuesEqual(at[i].Value, bt[i].Value) {
				return false
			}
		}
		return true
	case bson.A:
		bt, ok := asArray(b)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !valuesEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values of the same type class. The second
// result is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch at := a.(type) {
	case string:
		if bt, ok := b.(string); ok {
			return strings.Compare(at, bt), true
		}
	case bool:
		if bt, ok := b.(bool); ok {
			switch {
			case at == bt:
				return 0, true
			case !at:
				return -1, true
			}
			return 1, true
		}
	case bson.ObjectID:
		if bt, ok := b.(bson.ObjectID); ok {
			return bytes.Compare(at[:], bt[:]), true
		}
	case bson.DateTime:
		if bt, ok := b.(bson.DateTime); ok {
			switch {
			case at < bt:
				return -1, true
			case at > bt:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func isNull(v any) bool {
	switch v.(type) {
	case nil, bson.Null, bson.Undefined:
		return true
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

func isOperatorDoc(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

func asDoc(v any) (bson.D, bool) {
	switch t := v.(type) {
	case bson.D:
		return t, true
	case bson.M:
		return sortedDoc(t), true
	case map[string]any:
		return sortedDoc(t), true
	}
	return nil, false
}

func sortedDoc(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}

func asArray(v any) (bson.A, bool) {
	switch t := v.(type) {
	case bson.A:
		return t, true
	case []any:
		return bson.A(t), true
	}
	return nil, false
}

func lookupKey(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func cloneDoc(d bson.D) bson.D {
	out := make(bson.D, len(d))
	for i, e := range d {
		out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		return cloneDoc(t)
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case bson.Binary:
		return bson.Binary{Subtype: t.Subtype, Data: bytes.Clone(t.Data)}
	}
	return v
}
