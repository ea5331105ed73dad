package remote

import (
	"context"
	"net/http"
	"time"
)

// UploadPoint is one GPS sample in an upload batch. The server deduplicates
// by trip id plus point id, so replaying an already-synced point is safe.
type UploadPoint struct {
	ID             string    `json:"id"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	SpeedMps       float64   `json:"speed_mps"`
	DistanceDeltaM float64   `json:"distance_delta_m"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type uploadBatchRequest struct {
	TripID string        `json:"trip_id"`
	Points []UploadPoint `json:"points"`
}

// UploadBatch sends one batch of points. The server answers 406 when every
// point in the batch is already known; that counts as success.
func (c *Client) UploadBatch(ctx context.Context, tripID string, points []UploadPoint) error {
	status, err := c.doJSON(ctx, http.MethodPost, "/gps/batch", uploadBatchRequest{
		TripID: tripID,
		Points: points,
	}, nil)
	if status == http.StatusNotAcceptable {
		return nil
	}
	return err
}
