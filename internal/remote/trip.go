package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Trip is the dispatch server's wire representation of a trip.
type Trip struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	SiteID        string    `json:"site_id"`
	ProjectID     string    `json:"project_id"`
	Material      string    `json:"material"`
	DriverID      string    `json:"driver_id"`
	StartTime     time.Time `json:"start_time"`
	DistanceM     float64   `json:"distance_m"`
	LoadingArea   Area      `json:"loading_area"`
	UnloadingArea Area      `json:"unloading_area"`
}

type Area struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radius_m"`
}

type CreateTripRequest struct {
	SiteID          string `json:"site_id"`
	ProjectID       string `json:"project_id"`
	Material        string `json:"material"`
	DriverID        string `json:"driver_id"`
	LoadingAreaID   string `json:"loading_area_id"`
	UnloadingAreaID string `json:"unloading_area_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (c *Client) CreateTrip(ctx context.Context, req CreateTripRequest) (Trip, error) {
	var trip Trip
	if _, err := c.doJSON(ctx, http.MethodPost, "/trips", req, &trip); err != nil {
		return Trip{}, err
	}
	return trip, nil
}

func (c *Client) UpdateTrip(ctx context.Context, tripID string, req CreateTripRequest) (Trip, error) {
	var trip Trip
	if _, err := c.doJSON(ctx, http.MethodPut, "/trips/"+tripID, req, &trip); err != nil {
		return Trip{}, err
	}
	return trip, nil
}

func (c *Client) GetStatus(ctx context.Context, tripID string) (string, error) {
	var resp statusResponse
	if _, err := c.doJSON(ctx, http.MethodGet, "/trips/"+tripID+"/status", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) Complete(ctx context.Context, tripID string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/trips/"+tripID+"/complete", nil, nil)
	return err
}

type forceEndRequest struct {
	Reason          string `json:"reason"`
	UnloadingAreaID string `json:"unloading_area_id"`
}

func (c *Client) ForceEnd(ctx context.Context, tripID, reason, unloadingAreaID string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/trips/"+tripID+"/force-end", forceEndRequest{
		Reason:          reason,
		UnloadingAreaID: unloadingAreaID,
	}, nil)
	return err
}

// LatestUncompleted returns the driver's open trip, or false when the server
// has none.
func (c *Client) LatestUncompleted(ctx context.Context, driverID string) (Trip, bool, error) {
	var trip Trip
	status, err := c.doJSON(ctx, http.MethodGet, "/drivers/"+driverID+"/trips/latest-uncompleted", nil, &trip)
	if status == http.StatusNotFound {
		return Trip{}, false, nil
	}
	if err != nil {
		return Trip{}, false, err
	}
	return trip, true, nil
}

func (c *Client) ListHistory(ctx context.Context, driverID string, date time.Time) ([]Trip, error) {
	path := fmt.Sprintf("/drivers/%s/trips?date=%s", driverID, date.Format("2006-01-02"))
	var trips []Trip
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
