package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that model output could not be converted to the
// expected structured shape. Raw carries the full model text so callers
// can attach it to the response for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSON locates a JSON object embedded in free-form model text and
// unmarshals it into v.
//
// The match is the greedy outer span: from the first '{' to the last '}'
// in the text. A narrower embedded block is never tried first, so prose
// containing stray braces around the object defeats the extraction and
// falls through to parsing the whole text. This latitude mirrors real
// model output patterns and is kept as documented behavior.
func ExtractJSON(text string, v interface{}) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), v); err == nil {
			return nil
		}
	}

	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &ParseError{Raw: text, Err: err}
	}
	return nil
}
