package buffer

import "time"

// GpsPoint is one captured position sample. Points are append-only: nothing
// besides the synced flag is ever updated once a point is written.
type GpsPoint struct {
	ID             string    `json:"id"`
	TripID         string    `json:"trip_id"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	SpeedMps       float64   `json:"speed_mps"`
	DistanceDeltaM float64   `json:"distance_delta_m"`
	RecordedAt     time.Time `json:"recorded_at"`
	Synced         bool      `json:"synced"`
}

// SyncStatus reports the buffer state for one trip, surfaced to the UI as
// the "unsynced data present" indicator.
type SyncStatus struct {
	TripID   string `json:"trip_id"`
	Synced   int    `json:"synced"`
	Unsynced int    `json:"unsynced"`
}
