package position

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDeviceSourcePushAndGetOnce(t *testing.T) {
	src := NewDeviceSource()

	if _, err := src.GetOnce(context.Background()); !errors.Is(err, ErrNoFix) {
		t.Fatalf("expected ErrNoFix, got %v", err)
	}

	var got []Position
	sub, err := src.Subscribe(func(p Position) { got = append(got, p) }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	p := Position{Lat: 37.5, Lng: 127.0, SpeedMps: 3, Timestamp: time.Now()}
	src.Push(p)
	if len(got) != 1 || got[0] != p {
		t.Fatalf("unexpected updates: %+v", got)
	}

	last, err := src.GetOnce(context.Background())
	if err != nil || last != p {
		t.Fatalf("get once: %+v, %v", last, err)
	}
}

func TestDeviceSourceCancelStopsDelivery(t *testing.T) {
	src := NewDeviceSource()
	count := 0
	sub, err := src.Subscribe(func(Position) { count++ }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	src.Push(Position{})
	sub.Cancel()
	src.Push(Position{})

	if count != 1 {
		t.Fatalf("expected 1 delivery after cancel, got %d", count)
	}
}

func TestDeviceSourceDisabled(t *testing.T) {
	src := NewDeviceSource()
	src.SetEnabled(false)

	if _, err := src.Subscribe(func(Position) {}, nil); !errors.Is(err, ErrServiceDisabled) {
		t.Fatalf("expected ErrServiceDisabled, got %v", err)
	}
	enabled, err := src.ServiceEnabled(context.Background())
	if err != nil || enabled {
		t.Fatalf("expected disabled")
	}
}

func TestDeviceSourceFail(t *testing.T) {
	src := NewDeviceSource()
	var streamErr error
	sub, err := src.Subscribe(func(Position) {}, func(e error) { streamErr = e })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	src.Fail(errors.New("gps glitch"))
	if streamErr == nil {
		t.Fatalf("expected stream error delivered")
	}
}
