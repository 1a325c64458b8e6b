package model

import "time"

// Marker is a catch-up gate row: one entry per (cadence, owner, scope),
// recording the last calendar day a materialization pass completed. The row
// is written only after the whole gated batch succeeds, so re-running the
// pass within the same day is a no-op.
type Marker struct {
	Key       string `gorm:"primaryKey"`
	Date      string
	Done      bool
	UpdatedAt time.Time
}
