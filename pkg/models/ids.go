package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new opaque identifier suitable for chat IDs, message
// IDs, and tool call IDs.
func NewID() string {
	return uuid.NewString()
}

// NowStamps returns the paired ISO-8601 and unix-millisecond timestamps
// the data model requires on every Message: both are recorded because
// ordering uses the unix value while display uses the ISO-8601 one.
func NowStamps() (iso8601 string, unixMillis int64) {
	now := time.Now().UTC()
	return now.Format(time.RFC3339Nano), now.UnixMilli()
}
