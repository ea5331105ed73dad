package position

import (
	"context"
	"errors"
	"time"
)

// Failure modes a source start must distinguish. They surface to the caller
// of tracking start and are never auto-retried.
var (
	ErrServiceDisabled   = errors.New("location service disabled")
	ErrPermissionDenied  = errors.New("location permission denied")
	ErrPermissionTimeout = errors.New("location permission request timed out")
	ErrNoFix             = errors.New("no position fix available")
)

// Position is one raw sample from the device.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	SpeedMps  float64   `json:"speed_mps"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription owns one live position stream.
type Subscription interface {
	Cancel()
}

// Source produces live positions. The tracking loop holds at most one
// subscription at a time.
type Source interface {
	Subscribe(onUpdate func(Position), onError func(error)) (Subscription, error)
	GetOnce(ctx context.Context) (Position, error)
	ServiceEnabled(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) error
}
