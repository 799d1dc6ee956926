package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when model output contains no JSON object
var ErrNoJSONObject = errors.New("no JSON object found in model output")

var codeFenceRe = regexp.MustCompile("(?im)^```(?:json)?\\s*|\\s*```$")

// StripCodeFences removes markdown code fences around model output
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
}

// ExtractJSONObject decodes the outermost {...} span of model output
func ExtractJSONObject(raw string) (map[string]interface{}, error) {
	s := StripCodeFences(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, ErrNoJSONObject
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
