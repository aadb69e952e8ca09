package agentcore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

const circularMarker = "[Circular]"

// MarshalSafe serializes a value to JSON, replacing cyclic references
// with a "[Circular]" marker instead of failing. Values that still
// cannot be marshaled are rendered via fmt as a quoted string.
func MarshalSafe(v any) []byte {
	sanitized := sanitizeValue(reflect.ValueOf(v), map[uintptr]bool{})
	data, err := json.Marshal(sanitized)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return data
}

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

func sanitizeValue(v reflect.Value, seen map[uintptr]bool) any {
	if !v.IsValid() {
		return nil
	}

	// Types with custom JSON encodings (time.Time, json.RawMessage)
	// handle themselves.
	if v.CanInterface() && v.Type().Implements(jsonMarshalerType) && v.Kind() != reflect.Pointer {
		return v.Interface()
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem(), seen)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return circularMarker
		}
		seen[ptr] = true
		out := sanitizeValue(v.Elem(), seen)
		delete(seen, ptr)
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return circularMarker
		}
		seen[ptr] = true
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			out[key] = sanitizeValue(iter.Value(), seen)
		}
		delete(seen, ptr)
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return circularMarker
		}
		seen[ptr] = true
		out := sanitizeSequence(v, seen)
		delete(seen, ptr)
		return out

	case reflect.Array:
		return sanitizeSequence(v, seen)

	case reflect.Struct:
		out := make(map[string]any)
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, omit := jsonFieldName(field)
			if name == "-" {
				continue
			}
			val := sanitizeValue(v.Field(i), seen)
			if omit && isEmptyValue(val) {
				continue
			}
			out[name] = val
		}
		return out

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil

	default:
		return v.Interface()
	}
}

func sanitizeSequence(v reflect.Value, seen map[uintptr]bool) []any {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = sanitizeValue(v.Index(i), seen)
	}
	return out
}

func jsonFieldName(field reflect.StructField) (name string, omitempty bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "" {
		return name, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(x).Int() == 0
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(x).Uint() == 0
	case float32, float64:
		return reflect.ValueOf(x).Float() == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
