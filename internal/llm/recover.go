package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ParseFailureMessage is the error text carried by the sentinel value.
const ParseFailureMessage = "Could not parse JSON"

// ErrUnparseable is returned by Value.Decode when the completion held no JSON.
var ErrUnparseable = errors.New("completion did not contain parseable JSON")

var (
	// The optional group swallows a language tag only when a newline follows it,
	// so "```true```" still yields "true".
	fencePattern     = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+\\-]*[ \\t]*\\r?\\n)?(.*?)```")
	fenceMarkPattern = regexp.MustCompile("```[A-Za-z0-9_+\\-]*")
	// Greedy to the last closing bracket: favours one top-level structure over nested fragments.
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// Value is the result of recovering JSON from a completion.
// When Failed is true, Data holds the sentinel {"error": ..., "raw": ...}.
type Value struct {
	Data   any
	Raw    string
	Failed bool
}

// ExtractJSON recovers a JSON array or object from free-form model output.
// It never panics and never returns an error: unparseable text yields the sentinel value.
func ExtractJSON(text string) Value {
	candidate := stripFence(text)

	if data, ok := tryParse(candidate); ok {
		return Value{Data: data, Raw: text}
	}

	for _, pattern := range []*regexp.Regexp{arrayPattern, objectPattern} {
		match := pattern.FindString(candidate)
		if match == "" {
			continue
		}
		if data, ok := tryParse(match); ok {
			return Value{Data: data, Raw: text}
		}
	}

	return Value{
		Data:   map[string]any{"error": ParseFailureMessage, "raw": text},
		Raw:    text,
		Failed: true,
	}
}

// stripFence returns the body of the first fenced block, or the trimmed text if there is none.
func stripFence(text string) string {
	if !strings.Contains(text, "```") {
		return strings.TrimSpace(text)
	}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence: drop the markers and hope the rest parses.
	return strings.TrimSpace(fenceMarkPattern.ReplaceAllString(text, ""))
}

func tryParse(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var data any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, false
	}
	return data, true
}

// IsSentinel reports whether the value is the parse-failure sentinel.
func (v Value) IsSentinel() bool {
	return v.Failed
}

// Array returns the value as a JSON array.
func (v Value) Array() ([]any, bool) {
	if v.Failed {
		return nil, false
	}
	arr, ok := v.Data.([]any)
	return arr, ok
}

// Object returns the value as a JSON object. The sentinel is not reported as an object.
func (v Value) Object() (map[string]any, bool) {
	if v.Failed {
		return nil, false
	}
	obj, ok := v.Data.(map[string]any)
	return obj, ok
}

// Unwrap returns the array stored under key when the model wrapped its list in an
// object, e.g. {"roles": [...]}. Bare arrays are returned as-is.
func (v Value) Unwrap(key string) ([]any, bool) {
	if arr, ok := v.Array(); ok {
		return arr, true
	}
	obj, ok := v.Object()
	if !ok {
		return nil, false
	}
	arr, ok := obj[key].([]any)
	return arr, ok
}

// Decode re-encodes the recovered data into out.
func (v Value) Decode(out any) error {
	if v.Failed {
		return ErrUnparseable
	}
	return DecodeInto(v.Data, out)
}

// DecodeInto converts generic JSON data into a typed value.
func DecodeInto(data any, out any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Preview shortens raw model output for logs and error messages.
func Preview(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

// Sentinel returns the parse-failure object, or nil when recovery succeeded.
func (v Value) Sentinel() map[string]any {
	if !v.Failed {
		return nil
	}
	obj, _ := v.Data.(map[string]any)
	return obj
}
