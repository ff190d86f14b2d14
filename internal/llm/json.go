package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when model output contains no JSON value.
var ErrNoJSON = errors.New("llm: no json in response")

// ExtractJSON returns the first balanced JSON object or array in text. Code
// fences and surrounding prose are ignored.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexAny(text, "{[")
	for start >= 0 {
		if end := matchClose(text, start); end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexAny(text[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts the first JSON value in text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("llm: decode json: %w", err)
	}
	return nil
}

// matchClose finds the index of the bracket closing the one at open, skipping
// brackets inside string literals. It returns -1 when unbalanced.
func matchClose(s string, open int) int {
	var stack []byte
	inStr, esc := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
