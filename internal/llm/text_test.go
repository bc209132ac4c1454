package llm

import (
	"encoding/json"
	"strings"
	"testing"
)

type textPart struct {
	Type string `json:"type"`
	Text any    `json:"text"`
}

type annotatedValue struct {
	Value string
}

type opaque struct {
	hidden string
}

func TestCoerceText(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{name: "nil", input: nil},
		{name: "plain string", input: "hello", want: "hello", wantOK: true},
		{name: "whitespace only", input: "   \n\t"},
		{name: "empty string", input: ""},
		{name: "integer", input: 42, want: "42", wantOK: true},
		{name: "float", input: 3.5, want: "3.5", wantOK: true},
		{name: "decoded json number", input: float64(7), want: "7", wantOK: true},
		{name: "json number", input: json.Number("12"), want: "12", wantOK: true},
		{name: "empty slice", input: []any{}},
		{name: "empty map", input: map[string]any{}},
		{name: "slice drops empties", input: []any{"a", "", "b"}, want: "a\nb", wantOK: true},
		{name: "typed string slice", input: []string{"x", " ", "y"}, want: "x\ny", wantOK: true},
		{name: "all empty slice", input: []any{"", nil, map[string]any{}}},
		{name: "map text key", input: map[string]any{"text": "from text"}, want: "from text", wantOK: true},
		{name: "map value wins over text", input: map[string]any{"value": "v", "text": "t"}, want: "v", wantOK: true},
		{name: "map skips empty value", input: map[string]any{"value": " ", "content": "c"}, want: "c", wantOK: true},
		{
			name:   "nested content blocks",
			input:  map[string]any{"content": []any{map[string]any{"text": map[string]any{"value": "deep"}}}},
			want:   "deep",
			wantOK: true,
		},
		{name: "struct by json tag", input: textPart{Type: "output_text", Text: "tagged"}, want: "tagged", wantOK: true},
		{name: "struct pointer", input: &textPart{Text: []any{"p1", "p2"}}, want: "p1\np2", wantOK: true},
		{name: "struct by field name", input: annotatedValue{Value: "named"}, want: "named", wantOK: true},
		{name: "nil struct pointer", input: (*textPart)(nil)},
		{name: "struct without exported fields", input: opaque{hidden: "x"}},
		{name: "map without text keys renders generically", input: map[string]any{"id": "abc"}, want: `{"id":"abc"}`, wantOK: true},
		{name: "bool renders generically", input: true, want: "true", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceText(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("CoerceText ok = %v, want %v (text %q)", ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Errorf("CoerceText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoerceText_DepthCap(t *testing.T) {
	var value any = "bottom"
	for i := 0; i < maxCoerceDepth+5; i++ {
		value = map[string]any{"content": value}
	}
	got, ok := CoerceText(value)
	if !ok {
		t.Fatal("expected generic rendering once the depth cap is reached")
	}
	if got == "bottom" {
		t.Error("expected recursion to stop before reaching the innermost value")
	}
	if !strings.Contains(got, "bottom") {
		t.Errorf("expected generic rendering to include the remaining payload, got %q", got)
	}
}

func TestCoerceText_SelfReferentialMap(t *testing.T) {
	m := map[string]any{}
	m["value"] = m
	got, ok := CoerceText(m)
	if ok || got != "" {
		t.Errorf("expected no text from a cyclic map, got %q (ok=%v)", got, ok)
	}

	withText := map[string]any{"text": "  "}
	withText["content"] = withText
	if got, ok := CoerceText(withText); ok {
		t.Errorf("expected no text from a cyclic map without usable text, got %q", got)
	}
}

func TestCoerceText_ShallowNestingResolves(t *testing.T) {
	var value any = "bottom"
	for i := 0; i < 5; i++ {
		value = map[string]any{"content": value}
	}
	got, ok := CoerceText(value)
	if !ok || got != "bottom" {
		t.Errorf("expected nested value to resolve, got %q (ok=%v)", got, ok)
	}
}

func TestField(t *testing.T) {
	if _, ok := field(nil, "text"); ok {
		t.Error("expected nil object to have no fields")
	}
	if _, ok := field(map[string]any{"text": nil}, "text"); ok {
		t.Error("expected nil map value to count as missing")
	}
	if v, ok := field(map[string]string{"type": "message"}, "type"); !ok || v != "message" {
		t.Errorf("expected typed map lookup, got %v (ok=%v)", v, ok)
	}
	if v, ok := field(textPart{Type: "text"}, "type"); !ok || v != "text" {
		t.Errorf("expected struct lookup by json tag, got %v (ok=%v)", v, ok)
	}
	if _, ok := field(textPart{}, "text"); ok {
		t.Error("expected nil interface field to count as missing")
	}
	if _, ok := field(42, "text"); ok {
		t.Error("expected scalar to have no fields")
	}
}

func TestAsList(t *testing.T) {
	if got := asList(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if got := asList("single"); len(got) != 1 || got[0] != "single" {
		t.Errorf("expected scalar to be wrapped, got %v", got)
	}
	if got := asList([]string{"a", "b"}); len(got) != 2 {
		t.Errorf("expected typed slice to convert, got %v", got)
	}
}
