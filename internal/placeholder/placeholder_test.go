package placeholder

import (
	"reflect"
	"testing"
)

func strptr(s string) *string { return &s }

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "dedupes_and_sorts",
			text: "A {X} B {Y} {X}",
			want: []string{"X", "Y"},
		},
		{
			name: "no_placeholders",
			text: "^XA^FDplain label^FS^XZ",
			want: []string{},
		},
		{
			name: "empty_text",
			text: "",
			want: []string{},
		},
		{
			name: "underscores_and_digits",
			text: "{LOT_NO_2}{QTY}{LOT_NO_2}",
			want: []string{"LOT_NO_2", "QTY"},
		},
		{
			name: "case_sensitive",
			text: "{qty} {QTY}",
			want: []string{"QTY", "qty"},
		},
		{
			name: "ignores_malformed_tokens",
			text: "{} {A B} {OK} {bad-name} {{NESTED}}",
			want: []string{"NESTED", "OK"},
		},
		{
			name: "adjacent_tokens",
			text: "{A}{B}{A}",
			want: []string{"A", "B"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Extract(%q)=%v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestFill(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		fields map[string]*string
		want   string
	}{
		{
			name:   "round_trip",
			text:   "Hello {NAME}, qty {QTY}",
			fields: map[string]*string{"NAME": strptr("Box"), "QTY": strptr("5")},
			want:   "Hello Box, qty 5",
		},
		{
			name:   "unbound_token_preserved",
			text:   "{NAME}",
			fields: map[string]*string{},
			want:   "{NAME}",
		},
		{
			name:   "longest_name_first",
			text:   "{AB}-{A}",
			fields: map[string]*string{"A": strptr("1"), "AB": strptr("2")},
			want:   "2-1",
		},
		{
			name:   "prefix_token_untouched",
			text:   "{ABC} {ABCD}",
			fields: map[string]*string{"ABC": strptr("x")},
			want:   "x {ABCD}",
		},
		{
			name:   "nil_value_renders_empty",
			text:   "lot:{LOT};",
			fields: map[string]*string{"LOT": nil},
			want:   "lot:;",
		},
		{
			name:   "unused_fields_ignored",
			text:   "static",
			fields: map[string]*string{"QTY": strptr("9")},
			want:   "static",
		},
		{
			name:   "repeated_token_replaced_everywhere",
			text:   "{X}+{X}+{X}",
			fields: map[string]*string{"X": strptr("1")},
			want:   "1+1+1",
		},
		{
			name:   "value_containing_braces_is_literal",
			text:   "{A}{B}",
			fields: map[string]*string{"A": strptr("{Z}"), "B": strptr("2")},
			want:   "{Z}2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Fill(tc.text, tc.fields)
			if got != tc.want {
				t.Fatalf("Fill(%q)=%q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	got := Match("^FD{SKU}^FS ^FD{LOT}^FS", []string{"SKU", "LOT", "QTY"})
	want := map[string]bool{"SKU": true, "LOT": true, "QTY": false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Match=%v, want %v", got, want)
	}
}
