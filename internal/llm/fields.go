package llm

import (
	"reflect"
	"strings"
)

// field reads key from a decoded payload. Maps are consulted by key first,
// then struct fields by json tag or field name. Nil values count as missing.
func field(obj any, key string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	if m, ok := obj.(map[string]any); ok {
		value, ok := m[key]
		if !ok || value == nil {
			return nil, false
		}
		return value, true
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !value.IsValid() || isNilValue(value) {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			if jsonName(sf) != key && !strings.EqualFold(sf.Name, key) {
				continue
			}
			value := rv.Field(i)
			if isNilValue(value) {
				return nil, false
			}
			return value.Interface(), true
		}
	}
	return nil, false
}

func stringField(obj any, key string) string {
	value, ok := field(obj, key)
	if !ok {
		return ""
	}
	text, _ := value.(string)
	return text
}

// listField returns key as a list, wrapping a single value.
func listField(obj any, key string) []any {
	value, ok := field(obj, key)
	if !ok {
		return nil
	}
	return asList(value)
}

func asList(value any) []any {
	if value == nil {
		return nil
	}
	if items, ok := value.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items
	}
	return []any{value}
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func isNilValue(value reflect.Value) bool {
	switch value.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return value.IsNil()
	}
	return false
}
