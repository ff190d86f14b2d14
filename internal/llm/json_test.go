package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "Here you go:\n```json\n{\"attention\": 72}\n```\nThanks", want: `{"attention": 72}`},
		{name: "array", in: `topics: [{"c":"x"},{"c":"y"}] done`, want: `[{"c":"x"},{"c":"y"}]`},
		{name: "braces in strings", in: `{"q":"Will {X} win?","n":[1]}`, want: `{"q":"Will {X} win?","n":[1]}`},
		{name: "skips invalid prefix", in: `{not json} then {"ok":true}`, want: `{"ok":true}`},
		{name: "escaped quote", in: `{"s":"say \"hi\" }"}`, want: `{"s":"say \"hi\" }"}`},
		{name: "none", in: "no json here", err: ErrNoJSON},
		{name: "unbalanced", in: `{"a": [1, 2}`, err: ErrNoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Attention float64 `json:"attention"`
	}
	if err := DecodeJSON("```json\n{\"attention\": 81.5}\n```", &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out.Attention != 81.5 {
		t.Errorf("Attention = %v", out.Attention)
	}
}
