package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func validateUpdate(update bson.D) error {
	if len(update) == 0 {
		return errors.New("update document must not be empty")
	}
	for _, e := range update {
		if !strings.HasPrefix(e.Key, "$") {
			return fmt.Errorf("update document requires atomic operators, found field %q", e.Key)
		}
	}
	return nil
}

// applyUpdate returns a copy of doc with the update operators applied.
// inserting enables $setOnInsert.
func applyUpdate(doc bson.D, update bson.D, inserting bool) (bson.D, error) {
	out := cloneDoc(doc)
	for _, op := range update {
		fields, ok := asDoc(op.Value)
		if !ok {
			return nil, fmt.Errorf("modifier %s requires an object argument", op.Key)
		}
		for _, f := range fields {
			path := strings.Split(f.Key, ".")
			var err error
			switch op.Key {
			case "$set":
				out, err = setPath(out, path, cloneValue(f.Value))
			case "$setOnInsert":
				if inserting {
					out, err = setPath(out, path, cloneValue(f.Value))
				}
			case "$unset":
				out = unsetPath(out, path)
			case "$inc":
				out, err = arithmetic(out, path, f.Value, false)
			case "$mul":
				out, err = arithmetic(out, path, f.Value, true)
			case "$min", "$max":
				cur, exists := getPath(out, path)
				c, comparable := compareValues(f.Value, cur)
				if !exists || (comparable && ((op.Key == "$min" && c < 0) || (op.Key == "$max" && c > 0))) {
					out, err = setPath(out, path, cloneValue(f.Value))
				}
			case "$push", "$addToSet":
				out, err = pushPath(out, path, f.Value, op.Key == "$addToSet")
			case "$pull":
				out, err = pullPath(out, path, f.Value)
			case "$rename":
				target, ok := f.Value.(string)
				if !ok || target == "" {
					return nil, fmt.Errorf("$rename target for %q must be a non-empty string", f.Key)
				}
				if cur, exists := getPath(out, path); exists {
					out = unsetPath(out, path)
					out, err = setPath(out, strings.Split(target, "."), cur)
				}
			case "$currentDate":
				out, err = setPath(out, path, bson.NewDateTimeFromTime(time.Now()))
			default:
				return nil, fmt.Errorf("%w %s", ErrUnsupportedOperator, op.Key)
			}
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", op.Key, f.Key, err)
			}
		}
	}
	return out, nil
}

// upsertSeed builds the base of an upserted document from the equality
// clauses of filter.
func upsertSeed(filter bson.D) bson.D {
	seed := bson.D{}
	for _, e := range filter {
		if e.Key == "$and" {
			clauses, err := clauseList(e.Key, e.Value)
			if err != nil {
				continue
			}
			for _, clause := range clauses {
				for _, ce := range upsertSeed(clause) {
					if next, err := setPath(seed, []string{ce.Key}, ce.Value); err == nil {
						seed = next
					}
				}
			}
			continue
		}
		if strings.HasPrefix(e.Key, "$") {
			continue
		}
		value := e.Value
		if cond, ok := asDoc(value); ok && isOperatorDoc(cond) {
			eq, ok := lookupKey(cond, "$eq")
			if !ok {
				continue
			}
			value = eq
		}
		if next, err := setPath(seed, strings.Split(e.Key, "."), cloneValue(value)); err == nil {
			seed = next
		}
	}
	return seed
}

func arithmetic(doc bson.D, path []string, operand any, multiply bool) (bson.D, error) {
	if _, ok := toFloat(operand); !ok {
		return nil, fmt.Errorf("cannot apply with non-numeric argument %v", operand)
	}
	cur, exists := getPath(doc, path)
	if !exists {
		if multiply {
			if _, isInt := toInt64(operand); isInt {
				return setPath(doc, path, int64(0))
			}
			return setPath(doc, path, 0.0)
		}
		return setPath(doc, path, operand)
	}
	if _, ok := toFloat(cur); !ok {
		return nil, fmt.Errorf("cannot apply to a value of non-numeric type %T", cur)
	}

	ci, curInt := toInt64(cur)
	oi, opInt := toInt64(operand)
	if curInt && opInt {
		if multiply {
			return setPath(doc, path, ci*oi)
		}
		return setPath(doc, path, ci+oi)
	}
	cf, _ := toFloat(cur)
	of, _ := toFloat(operand)
	if multiply {
		return setPath(doc, path, cf*of)
	}
	return setPath(doc, path, cf+of)
}

func pushPath(doc bson.D, path []string, value any, unique bool) (bson.D, error) {
	items := bson.A{value}
	if spec, ok := asDoc(value); ok {
		if each, has := lookupKey(spec, "$each"); has {
			arr, ok := asArray(each)
			if !ok {
				return nil, errors.New("$each needs an array")
			}
			items = arr
		}
	}

	var arr bson.A
	if cur, exists := getPath(doc, path); exists && !isNull(cur) {
		a, ok := cur.(bson.A)
		if !ok {
			return nil, fmt.Errorf("the field must be an array but is of type %T", cur)
		}
		arr = a
	}
	for _, item := range items {
		if unique && containsEqual(arr, item) {
			continue
		}
		arr = append(arr, cloneValue(item))
	}
	if arr == nil {
		arr = bson.A{}
	}
	return setPath(doc, path, arr)
}

func containsEqual(arr bson.A, item any) bool {
	for _, v := range arr {
		if valuesEqual(v, item) {
			return true
		}
	}
	return false
}

func pullPath(doc bson.D, path []string, cond any) (bson.D, error) {
	cur, exists := getPath(doc, path)
	if !exists {
		return doc, nil
	}
	arr, ok := cur.(bson.A)
	if !ok {
		return nil, fmt.Errorf("cannot apply $pull to a non-array value of type %T", cur)
	}
	kept := bson.A{}
	for _, item := range arr {
		var remove bool
		var err error
		condDoc, isDoc := asDoc(cond)
		switch {
		case isDoc && isOperatorDoc(condDoc):
			remove, err = matchOperators([]any{item}, condDoc)
		case isDoc:
			if itemDoc, ok := item.(bson.D); ok {
				remove, err = matchDocument(itemDoc, condDoc)
			}
		default:
			remove = valuesEqual(item, cond)
		}
		if err != nil {
			return nil, err
		}
		if !remove {
			kept = append(kept, item)
		}
	}
	return setPath(doc, path, kept)
}

func getPath(doc bson.D, path []string) (any, bool) {
	var cur any = doc
	for _, part := range path {
		switch t := cur.(type) {
		case bson.D:
			v, ok := lookupKey(t, part)
			if !ok {
				return nil, false
			}
			cur = v
		case bson.A:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil, false
			}
			cur = t[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc bson.D, path []string, value any) (bson.D, error) {
	key := path[0]
	idx := -1
	for i, e := range doc {
		if e.Key == key {
			idx = i
			break
		}
	}
	if len(path) > 1 {
		var child any
		if idx >= 0 {
			child = doc[idx].Value
		}
		next, err := setIn(child, path[1:], value)
		if err != nil {
			return nil, err
		}
		value = next
	}
	if idx >= 0 {
		doc[idx].Value = value
		return doc, nil
	}
	return append(doc, bson.E{Key: key, Value: value}), nil
}

func setIn(container any, path []string, value any) (any, error) {
	switch c := container.(type) {
	case nil:
		return setPath(bson.D{}, path, value)
	case bson.D:
		return setPath(c, path, value)
	case bson.A:
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("cannot create field %q in an array", path[0])
		}
		for len(c) <= idx {
			c = append(c, nil)
		}
		if len(path) == 1 {
			c[idx] = value
			return c, nil
		}
		next, err := setIn(c[idx], path[1:], value)
		if err != nil {
			return nil, err
		}
		c[idx] = next
		return c, nil
	}
	return nil, fmt.Errorf("cannot create field %q in element of type %T", path[0], container)
}

func unsetPath(doc bson.D, path []string) bson.D {
	for i, e := range doc {
		if e.Key != path[0] {
			continue
		}
		if len(path) == 1 {
			return append(doc[:i:i], doc[i+1:]...)
		}
		doc[i].Value = unsetIn(e.Value, path[1:])
		return doc
	}
	return doc
}

func unsetIn(container any, path []string) any {
	switch c := container.(type) {
	case bson.D:
		return unsetPath(c, path)
	case bson.A:
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 || idx >= len(c) {
			return c
		}
		if len(path) == 1 {
			// MongoDB keeps array positions stable and nulls the slot.
			c[idx] = nil
			return c
		}
		c[idx] = unsetIn(c[idx], path[1:])
		return c
	}
	return container
}
