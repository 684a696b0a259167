package utils

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// GenerateID returns a random identifier for rooms and players.
func GenerateID() string {
	return uuid.NewString()
}

// DeadlineMs converts a start time and duration to a unix-millisecond deadline.
func DeadlineMs(start time.Time, d time.Duration) int64 {
	return start.Add(d).UnixMilli()
}
