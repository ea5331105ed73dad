package position

import (
	"context"
	"sync"
)

// DeviceSource is fed by the device over the agent's ingest endpoint. It
// fans pushed samples out to the single active subscription and remembers
// the last fix for single-shot reads.
type DeviceSource struct {
	mu       sync.Mutex
	onUpdate func(Position)
	onError  func(error)
	last     Position
	hasFix   bool
	enabled  bool
}

func NewDeviceSource() *DeviceSource {
	return &DeviceSource{enabled: true}
}

// Push delivers one sample from the device.
func (d *DeviceSource) Push(p Position) {
	d.mu.Lock()
	d.last = p
	d.hasFix = true
	handler := d.onUpdate
	d.mu.Unlock()

	if handler != nil {
		handler(p)
	}
}

// Fail reports a stream failure to the subscriber, mirroring a platform
// location-stream error.
func (d *DeviceSource) Fail(err error) {
	d.mu.Lock()
	handler := d.onError
	d.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}

// SetEnabled toggles the simulated location-service availability.
func (d *DeviceSource) SetEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
}

type deviceSubscription struct {
	source *DeviceSource
}

func (s *deviceSubscription) Cancel() {
	s.source.mu.Lock()
	s.source.onUpdate = nil
	s.source.onError = nil
	s.source.mu.Unlock()
}

func (d *DeviceSource) Subscribe(onUpdate func(Position), onError func(error)) (Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return nil, ErrServiceDisabled
	}
	d.onUpdate = onUpdate
	d.onError = onError
	return &deviceSubscription{source: d}, nil
}

func (d *DeviceSource) GetOnce(_ context.Context) (Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasFix {
		return Position{}, ErrNoFix
	}
	return d.last, nil
}

func (d *DeviceSource) ServiceEnabled(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled, nil
}

func (d *DeviceSource) RequestPermission(_ context.Context) error {
	// the device grants access by pushing samples; nothing to request here
	return nil
}
