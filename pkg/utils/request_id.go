package utils

import (
	"github.com/google/uuid"
)

var newUUIDv7 = uuid.NewV7

// NewRequestID returns a time-ordered id for correlating log lines
func NewRequestID() string {
	id, err := newUUIDv7()
	if err != nil {
		// Fallback to v4 if v7 fails (highly unlikely)
		return uuid.New().String()
	}
	return id.String()
}
