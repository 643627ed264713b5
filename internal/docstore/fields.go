package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Fields is the write side of a document: top level or dotted field paths
// mapped to plain values or transforms.
type Fields map[string]any

type transform interface {
	apply(current any, exists bool, commit time.Time) (value any, remove bool, err error)
}

type arrayUnion struct{ values []any }
type arrayRemove struct{ values []any }
type increment struct{ by float64 }
type serverTimestamp struct{}
type deleteField struct{}

var (
	// ServerTimestamp resolves to the store's commit time.
	ServerTimestamp any = serverTimestamp{}
	// DeleteField removes the field on Update.
	DeleteField any = deleteField{}
)

// ArrayUnion appends each value not already present in the array field.
func ArrayUnion(values ...any) any {
	return arrayUnion{values: values}
}

func ArrayRemove(values ...any) any {
	return arrayRemove{values: values}
}

// Increment adds n to a numeric field, treating a missing field as 0.
func Increment[N int | int64 | float64](n N) any {
	return increment{by: float64(n)}
}

func (t arrayUnion) apply(current any, _ bool, _ time.Time) (any, bool, error) {
	arr, _ := current.([]any)
	out := append([]any{}, arr...)
	for _, v := range t.values {
		nv, err := normalize(v)
		if err != nil {
			return nil, false, err
		}
		if !containsValue(out, nv) {
			out = append(out, nv)
		}
	}
	return out, false, nil
}

func (t arrayRemove) apply(current any, _ bool, _ time.Time) (any, bool, error) {
	arr, _ := current.([]any)
	out := []any{}
	for _, existing := range arr {
		drop := false
		for _, v := range t.values {
			nv, err := normalize(v)
			if err != nil {
				return nil, false, err
			}
			if reflect.DeepEqual(existing, nv) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, existing)
		}
	}
	return out, false, nil
}

func (t increment) apply(current any, _ bool, _ time.Time) (any, bool, error) {
	n, _ := current.(float64)
	return n + t.by, false, nil
}

func (serverTimestamp) apply(_ any, _ bool, commit time.Time) (any, bool, error) {
	return commit.Format(time.RFC3339Nano), false, nil
}

func (deleteField) apply(_ any, _ bool, _ time.Time) (any, bool, error) {
	return nil, true, nil
}

func containsValue(arr []any, v any) bool {
	for _, existing := range arr {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

// FieldsOf turns a json-tagged struct into Fields.
func FieldsOf(v any) (Fields, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields Fields
	if err := json.Unmarshal(bytes, &fields); err != nil {
		return nil, fmt.Errorf("document must encode to a json object: %w", err)
	}
	return fields, nil
}

// normalize converts v to the shape encoding/json decodes into, so stored
// and compared values agree.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(bytes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func applyFields(doc map[string]any, fields Fields, commit time.Time) error {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		value := fields[path]
		if t, ok := value.(transform); ok {
			current, exists := getPath(doc, path)
			newValue, remove, err := t.apply(current, exists, commit)
			if err != nil {
				return fmt.Errorf("field %s: %w", path, err)
			}
			if remove {
				deletePath(doc, path)
				continue
			}
			setPath(doc, path, newValue)
			continue
		}

		nv, err := normalize(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", path, err)
		}
		setPath(doc, path, nv)
	}
	return nil
}

func getPath(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	m := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func deletePath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	m := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}
