// Package logx is the engine's structured logging idiom, carried over from
// the pack's magda-api logger.go: a Fields map plus Info/Warn/Error funcs
// over log.Printf. The request-scoping (gin context, Sentry breadcrumbs) is
// stripped since the engine's tick loop has no HTTP request to attach to;
// the field-map shape and log.Printf backend survive because spec.md §7
// requires every invariant-violation warning to be logged, never panicked.
package logx

import (
	"fmt"
	"log"
)

// Fields represents structured log fields.
type Fields map[string]interface{}

// Info logs an informational message with structured fields.
func Info(msg string, fields Fields) {
	log.Printf("[INFO] %s %s", msg, formatFields(fields))
}

// Warn logs a warning message with structured fields. It is reached through
// Warner for clamped subtraction and transport rewind, and called directly
// for lanes skipped on load. Dropped redundant stitches are not logged.
func Warn(msg string, fields Fields) {
	log.Printf("[WARN] %s %s", msg, formatFields(fields))
}

// Error logs an error message with structured fields.
func Error(msg string, err error, fields Fields) {
	log.Printf("[ERROR] %s: %v %s", msg, err, formatFields(fields))
}

// Debug logs a debug message with structured fields.
func Debug(msg string, fields Fields) {
	log.Printf("[DEBUG] %s %s", msg, formatFields(fields))
}

func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	result := "{"
	first := true
	for k, v := range fields {
		if !first {
			result += ", "
		}
		result += k + "=" + fmt.Sprintf("%v", v)
		first = false
	}
	result += "}"
	return result
}
