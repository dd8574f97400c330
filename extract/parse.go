package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/internal/util"
)

// placeholders are values models emit instead of leaving a field unknown
var placeholders = map[string]bool{
	"unknown":        true,
	"n/a":            true,
	"na":             true,
	"none":           true,
	"null":           true,
	"not specified":  true,
	"not mentioned":  true,
	"not provided":   true,
	"not available":  true,
	"not stated":     true,
	"not applicable": true,
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ParseResponse runs the fallback chain over a raw model response:
// strict JSON, then repair, then field validation. A response with no
// recoverable JSON object fails with ErrExtractionParse.
func ParseResponse(raw string, maxDescription int) (*Result, error) {
	obj, outcome, ok := decodeObject(raw)
	if !ok {
		return &Result{Outcome: OutcomeFailed}, errors.WithDetailf(
			errors.Wrap(errors.ErrExtractionParse, "model response contains no JSON object"),
			"response length: %d", len(raw))
	}

	res := validateFields(obj, maxDescription)
	res.Outcome = outcome
	if len(res.Missing()) > 0 {
		res.Outcome = OutcomePartial
	}
	return res, nil
}

// decodeObject returns the first JSON object found in raw and the step that found it
func decodeObject(raw string) (map[string]interface{}, Outcome, bool) {
	trimmed := strings.TrimSpace(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return obj, OutcomeStrict, true
	}

	candidate := stripFences(trimmed)
	for start := 0; start < len(candidate); {
		block, end, found := firstBalancedObject(candidate, start)
		if !found {
			break
		}
		for _, attempt := range []string{block, removeTrailingCommas(block)} {
			obj = nil
			if err := json.Unmarshal([]byte(attempt), &obj); err == nil && obj != nil {
				return obj, OutcomeRepaired, true
			}
		}
		start = end
	}

	return nil, OutcomeFailed, false
}

var fence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// stripFences returns the body of the first markdown code fence, or s unchanged
func stripFences(s string) string {
	if m := fence.FindStringSubmatch(s); m != nil && strings.Contains(m[1], "{") {
		return m[1]
	}
	return s
}

// firstBalancedObject finds the first {...} block at or after from, matching
// braces outside JSON string literals. end is the index just past the block,
// or past the opening brace when the block never closes.
func firstBalancedObject(s string, from int) (block string, end int, found bool) {
	open := strings.IndexByte(s[from:], '{')
	if open < 0 {
		return "", len(s), false
	}
	open += from

	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[open : i+1], i + 1, true
			}
		}
	}
	// Unbalanced: retry from the next brace
	return "", open + 1, true
}

// removeTrailingCommas drops commas that directly precede } or ] outside strings
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// validateFields checks each expected key for a usable string. Required fields
// fall back to Unknown and optional fields to empty.
func validateFields(obj map[string]interface{}, maxDescription int) *Result {
	res := &Result{Present: make(map[Field]bool, len(RequiredFields)+len(OptionalFields))}

	// Keys are matched case-insensitively; models sometimes emit "Title"
	lowered := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	for _, f := range RequiredFields {
		v, ok := usableString(lowered[string(f)])
		res.Present[f] = ok
		if !ok {
			v = Unknown
		}
		res.Fields.set(f, v)
	}
	for _, f := range OptionalFields {
		v, ok := usableString(lowered[string(f)])
		res.Present[f] = ok
		res.Fields.set(f, v)
	}

	if res.Present[FieldDescription] {
		res.Fields.Description = capDescription(res.Fields.Description, maxDescription)
	}
	return res
}

// usableString returns v trimmed and single-spaced when it is a non-placeholder string
func usableString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if s == "" || placeholders[strings.ToLower(strings.Trim(s, "."))] {
		return "", false
	}
	return s, true
}

// capDescription truncates to max runes, marking the cut with "..."
func capDescription(s string, max int) string {
	return util.Ellipsize(s, max, "...")
}
