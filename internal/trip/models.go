package trip

import "time"

// Status is the server-side trip status.
type Status string

const (
	StatusUncompleted Status = "UNCOMPLETED"
	StatusCompleted   Status = "COMPLETED"
	StatusForce       Status = "FORCE"
	StatusCancel      Status = "CANCEL"
)

// Terminated reports whether the server has unilaterally closed the trip.
func (s Status) Terminated() bool {
	return s == StatusForce || s == StatusCancel
}

// State is the local lifecycle state of the machine.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateEnding State = "ending"
)

// DriveMode selects how arrival at the unloading area is handled. In smart
// mode the agent ends the trip on its own when the vehicle arrives.
type DriveMode string

const (
	ModeNormal DriveMode = "normal"
	ModeSmart  DriveMode = "smart"
)

func (m DriveMode) Valid() bool {
	return m == ModeNormal || m == ModeSmart
}

// Area is a loading or unloading zone with its arrival radius.
type Area struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radius_m"`
}

// Trip is one transport operation from loading to unloading.
type Trip struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	SiteID    string    `json:"site_id"`
	ProjectID string    `json:"project_id"`
	Material  string    `json:"material"`
	DriverID  string    `json:"driver_id"`
	StartTime time.Time `json:"start_time"`
	DistanceM float64   `json:"distance_m"`
	Loading   Area      `json:"loading_area"`
	Unloading Area      `json:"unloading_area"`
}

// Snapshot is the read-only view exposed to the UI layer.
type Snapshot struct {
	State                State     `json:"state"`
	Trip                 *Trip     `json:"trip,omitempty"`
	DistanceM            float64   `json:"distance_m"`
	DistanceToLoadingM   float64   `json:"distance_to_loading_m"`
	DistanceToUnloadingM float64   `json:"distance_to_unloading_m"`
	Mode                 DriveMode `json:"drive_mode"`
	IsEnding             bool      `json:"is_ending"`
}

// CreateRequest carries the parameters of a new trip.
type CreateRequest struct {
	SiteID        string `json:"site_id"`
	ProjectID     string `json:"project_id"`
	Material      string `json:"material"`
	LoadingArea   Area   `json:"loading_area"`
	UnloadingArea Area   `json:"unloading_area"`
}
