package llm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const maxCoerceDepth = 10

var nestedTextKeys = []string{"value", "text", "content"}

// CoerceText normalizes a provider payload fragment into text. Strings,
// numbers, sequences, maps and structs are accepted; the second result is
// false when nothing usable was found.
func CoerceText(value any) (string, bool) {
	return coerceText(value, 0)
}

func coerceText(value any, depth int) (string, bool) {
	if value == nil || depth > maxCoerceDepth {
		return "", false
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	case json.Number:
		return v.String(), true
	case []any:
		return coerceSequence(v, depth)
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return coerceText(rv.String(), depth)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "", false
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return coerceSequence(items, depth)
	case reflect.Map, reflect.Struct:
		target := rv.Interface()
		for _, key := range nestedTextKeys {
			nested, ok := field(target, key)
			if !ok {
				continue
			}
			if text, ok := coerceText(nested, depth+1); ok {
				return text, true
			}
		}
		return renderGeneric(target)
	}
	return renderGeneric(rv.Interface())
}

func coerceSequence(items []any, depth int) (string, bool) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := coerceText(item, depth+1); ok {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// renderGeneric is the last resort for objects without a text-bearing field.
func renderGeneric(value any) (string, bool) {
	var rendered string
	if encoded, err := json.Marshal(value); err == nil {
		rendered = string(encoded)
	} else {
		// Composites that fail to encode may be cyclic; fmt would recurse forever.
		switch reflect.ValueOf(value).Kind() {
		case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array, reflect.Pointer, reflect.Interface:
			return "", false
		}
		rendered = fmt.Sprintf("%v", value)
	}
	rendered = strings.TrimSpace(rendered)
	switch rendered {
	case "", "{}", "[]", "null", "\"\"":
		return "", false
	}
	return rendered, true
}
