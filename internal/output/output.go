// Package output renders CLI results as tables, compact lines, JSON or
// terminal markdown.
package output

import (
	"os"
	"strings"
)

// EnvVar selects the output format when no flag is given.
const EnvVar = "TASKWATCH_OUTPUT"

// Format represents an output format.
type Format int

const (
	// FormatTable outputs a human-readable table. It is the default.
	FormatTable Format = iota
	// FormatJSON outputs JSON.
	FormatJSON
	// FormatCompact outputs one-line-per-record compact format.
	FormatCompact
)

var formatNames = map[string]Format{
	"table":   FormatTable,
	"json":    FormatJSON,
	"compact": FormatCompact,
	"oneline": FormatCompact,
}

// String returns the canonical format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCompact:
		return "compact"
	default:
		return "table"
	}
}

// ParseFormat looks up a format by name, ignoring case.
func ParseFormat(name string) (Format, bool) {
	f, ok := formatNames[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Detect returns the format selected by flags, then by EnvVar. Flags win
// in the order json, compact, table.
func Detect(jsonFlag, tableFlag, compactFlag bool) Format {
	switch {
	case jsonFlag:
		return FormatJSON
	case compactFlag:
		return FormatCompact
	case tableFlag:
		return FormatTable
	}
	if f, ok := ParseFormat(os.Getenv(EnvVar)); ok {
		return f
	}
	return FormatTable
}
