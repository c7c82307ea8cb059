package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSON writes data as indented JSON to the given writer.
func JSON(w io.Writer, data any) error {
	return encode(w, data, true)
}

// JSONLine writes data as a single line of JSON. Watch modes emit one line
// per render so consumers can stream the output.
func JSONLine(w io.Writer, data any) error {
	return encode(w, data, false)
}

// ErrorResponse is the JSON envelope for structured error output.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// JSONError writes a structured error to the given writer as JSON.
// Write failures are ignored: there is nowhere left to report them.
func JSONError(w io.Writer, code, msg string, details map[string]any) {
	_ = encode(w, ErrorResponse{Error: msg, Code: code, Details: details}, true)
}

func encode(w io.Writer, data any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
