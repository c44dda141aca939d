package diagnose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"kisan-mitra/api/internal/logger"
)

// ErrUnparsable is returned by Parse when the model text is not a diagnosis.
var ErrUnparsable = errors.New("unparsable diagnosis")

// StripCodeFences removes a surrounding ```json ... ``` block and whitespace.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		// info string such as "json" up to the first newline
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		} else if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// fencedBlock returns the contents of the first ``` block anywhere in s.
func fencedBlock(s string) (string, bool) {
	i := strings.Index(s, "```")
	if i < 0 {
		return "", false
	}
	rest := s[i+3:]
	if j := strings.Index(rest, "```"); j >= 0 {
		rest = rest[:j]
	}
	return StripCodeFences("```" + rest), true
}

// candidates lists the texts that may hold the diagnosis object, best first:
// a fenced block, the fence-stripped text, then every JSON object that
// decodes starting at a '{'.
func candidates(raw string) []string {
	var out []string
	if block, ok := fencedBlock(raw); ok {
		out = append(out, block)
	}
	s := StripCodeFences(raw)
	out = append(out, s)
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var obj map[string]json.RawMessage
		if dec.Decode(&obj) == nil && obj != nil {
			out = append(out, s[i:i+int(dec.InputOffset())])
		}
	}
	return out
}

// Parse strictly decodes model output into a Result. Every key except
// treatment and prevention is required and must have the right JSON type.
// Confidence is clamped to [0,1]. Prose around the object may contain braces;
// the first candidate object that is a valid diagnosis wins.
func Parse(raw string) (Result, error) {
	var first error
	for _, c := range candidates(raw) {
		r, err := parseObject(c)
		if err == nil {
			return r, nil
		}
		if first == nil {
			first = err
		}
	}
	return Result{}, first
}

func parseObject(body string) (Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if fields == nil {
		return Result{}, fmt.Errorf("%w: not an object", ErrUnparsable)
	}

	var r Result
	for _, f := range []struct {
		key string
		dst any
	}{
		{"isHealthy", &r.IsHealthy},
		{"issueName", &r.IssueName},
		{"issueType", &r.IssueType},
		{"confidence", &r.Confidence},
		{"description", &r.Description},
		{"diyTip", &r.DIYTip},
	} {
		if err := requiredField(fields, f.key, f.dst); err != nil {
			return Result{}, err
		}
	}

	var err error
	if r.Treatment, err = listField(fields, "treatment"); err != nil {
		return Result{}, err
	}
	if r.Prevention, err = listField(fields, "prevention"); err != nil {
		return Result{}, err
	}
	r.Confidence = clamp01(r.Confidence)
	return r, nil
}

// Normalize never fails: unparsable text yields Fallback().
func Normalize(raw string) Result {
	r, err := Parse(raw)
	if err != nil {
		logger.Debugf("diagnosis normalized to fallback: %v", err)
		return Fallback()
	}
	return r
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func requiredField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return fmt.Errorf("%w: missing %q", ErrUnparsable, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrUnparsable, key, err)
	}
	return nil
}

func listField(fields map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrUnparsable, key, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
