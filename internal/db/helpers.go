package db

import (
	"fmt"

	"github.com/google/uuid"
)

// newID generates a prefixed row ID (e.g. "rule_6f1c...").
func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}

// nilIfEmpty converts an empty string to a nil pointer for nullable columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
