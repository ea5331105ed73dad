package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/buffer"
	"github.com/JINHEE420/ShineDump-sub000/internal/notify"
	"github.com/JINHEE420/ShineDump-sub000/internal/position"
	"github.com/JINHEE420/ShineDump-sub000/internal/retry"
	"github.com/JINHEE420/ShineDump-sub000/internal/shared/geo"
	"github.com/JINHEE420/ShineDump-sub000/internal/stream"
	"github.com/JINHEE420/ShineDump-sub000/internal/track"
	"github.com/JINHEE420/ShineDump-sub000/internal/trip"
)

// ErrAlreadyTracking is returned when Start is called with a session open.
var ErrAlreadyTracking = errors.New("tracking already running")

// Config holds the loop's timing knobs. Tests shrink them.
type Config struct {
	WatchdogPeriod  time.Duration
	StaleAfter      time.Duration
	RefetchAfter    time.Duration
	ResubscribeWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		WatchdogPeriod:  30 * time.Second,
		StaleAfter:      30 * time.Second,
		RefetchAfter:    120 * time.Second,
		ResubscribeWait: 5 * time.Second,
	}
}

// PointStore is the slice of the durable buffer the loop needs.
// *buffer.Store satisfies it.
type PointStore interface {
	Insert(ctx context.Context, p buffer.GpsPoint) (buffer.GpsPoint, error)
	Points(ctx context.Context, tripID string) ([]buffer.GpsPoint, error)
}

// SyncTrigger is the sync protocol surface the loop drives. *syncer.Syncer
// satisfies it.
type SyncTrigger interface {
	MaybeSync(ctx context.Context, tripID string) error
	FinalSyncWith(ctx context.Context, tripID string, policy retry.Policy) error
}

// Tracker owns the single live position subscription for the active trip
// and turns raw samples into persisted points, accumulated distance, sync
// triggers and proximity events.
type Tracker struct {
	cfg    Config
	source position.Source
	store  PointStore
	sync   SyncTrigger
	sink   notify.Sink
	hub    *stream.Hub
	guard  Guard

	// modeFn reads the current drive mode; onAutoEnd fires when smart mode
	// detects unloading arrival.
	modeFn    func(context.Context) trip.DriveMode
	onAutoEnd func(tripID string)

	mu         sync.Mutex
	active     bool
	tripID     string
	targets    []*Target
	lastPoint  *buffer.GpsPoint
	lastUpdate time.Time
	distanceM  float64
	autoEnded  bool
	sub        position.Subscription
	stopWatch  context.CancelFunc
}

func NewTracker(cfg Config, source position.Source, store PointStore, syncTrigger SyncTrigger, sink notify.Sink, hub *stream.Hub, guard Guard) *Tracker {
	if sink == nil {
		sink = notify.LogSink{}
	}
	if guard == nil {
		guard = NopGuard{}
	}
	return &Tracker{
		cfg:    cfg,
		source: source,
		store:  store,
		sync:   syncTrigger,
		sink:   sink,
		hub:    hub,
		guard:  guard,
		modeFn: func(context.Context) trip.DriveMode { return trip.ModeNormal },
	}
}

// SetDriveModeFn installs the drive-mode reader.
func (t *Tracker) SetDriveModeFn(fn func(context.Context) trip.DriveMode) {
	if fn != nil {
		t.modeFn = fn
	}
}

// SetAutoEnd installs the smart-mode trip-end hook.
func (t *Tracker) SetAutoEnd(fn func(tripID string)) {
	t.onAutoEnd = fn
}

// Start verifies the position source, takes the tracking lease, subscribes
// to the stream and launches the watchdog. Location failures surface to the
// caller and are not retried here.
func (t *Tracker) Start(ctx context.Context, tripID string, loading, unloading trip.Area) error {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return ErrAlreadyTracking
	}
	t.mu.Unlock()

	enabled, err := t.source.ServiceEnabled(ctx)
	if err != nil {
		return fmt.Errorf("location service check: %w", err)
	}
	if !enabled {
		return position.ErrServiceDisabled
	}
	if err := t.source.RequestPermission(ctx); err != nil {
		return err
	}

	if err := t.guard.Acquire(ctx, tripID); err != nil {
		return err
	}

	t.mu.Lock()
	t.active = true
	t.tripID = tripID
	t.targets = newTargets(loading, unloading)
	t.lastPoint = nil
	t.distanceM = 0
	t.autoEnded = false
	t.lastUpdate = time.Now()
	t.mu.Unlock()

	// pick up where a recovered trip left off
	if points, err := t.store.Points(ctx, tripID); err == nil && len(points) > 0 {
		last := points[len(points)-1]
		t.mu.Lock()
		t.lastPoint = &last
		t.distanceM = track.OptimizedDistanceM(toTrackPoints(points))
		t.mu.Unlock()
	}

	if err := t.subscribe(); err != nil {
		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
		t.guard.Release(ctx)
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.stopWatch = cancel
	t.mu.Unlock()
	go t.watchdog(watchCtx)

	return nil
}

// Stop cancels the subscription and watchdog, silences any arrival cue,
// releases the lease and runs the blocking final sync under the given
// policy. Safe to call twice.
func (t *Tracker) Stop(ctx context.Context, final retry.Policy) error {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil
	}
	t.active = false
	tripID := t.tripID
	sub := t.sub
	stopWatch := t.stopWatch
	t.sub = nil
	t.stopWatch = nil
	t.lastPoint = nil
	t.targets = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if stopWatch != nil {
		stopWatch()
	}
	t.sink.StopCue()
	t.guard.Release(ctx)

	return t.sync.FinalSyncWith(ctx, tripID, final)
}

// Active reports whether a tracking session is open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// DistanceM is the optimizer-computed total distance of the current trip.
func (t *Tracker) DistanceM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.distanceM
}

// TargetDistances returns the current distance to the loading and unloading
// areas; ok is false until the first fix arrives.
func (t *Tracker) TargetDistances() (loadingM, unloadingM float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastPoint == nil || len(t.targets) != 2 {
		return 0, 0, false
	}
	return t.targets[0].DistanceM(t.lastPoint.Lat, t.lastPoint.Lng),
		t.targets[1].DistanceM(t.lastPoint.Lat, t.lastPoint.Lng),
		true
}

func (t *Tracker) subscribe() error {
	sub, err := t.source.Subscribe(t.HandleUpdate, t.handleStreamError)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()
	return nil
}

func (t *Tracker) handleStreamError(streamErr error) {
	log.Printf("position stream failed, resubscribing in %v: %v", t.cfg.ResubscribeWait, streamErr)
	time.AfterFunc(t.cfg.ResubscribeWait, func() {
		t.mu.Lock()
		active := t.active
		anchor := t.lastPoint
		t.mu.Unlock()
		if !active {
			return
		}
		if err := t.subscribe(); err != nil {
			log.Printf("resubscribe failed: %v", err)
			return
		}
		// the last accepted point anchors continuity across the gap
		if anchor != nil {
			t.HandleUpdate(position.Position{
				Lat:       anchor.Lat,
				Lng:       anchor.Lng,
				SpeedMps:  anchor.SpeedMps,
				Timestamp: time.Now(),
			})
		}
	})
}

// HandleUpdate processes one accepted position sample. It is the single
// write path for tracking state; the stream, the watchdog refetch and the
// resubscribe anchor all funnel through it.
func (t *Tracker) HandleUpdate(pos position.Position) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	tripID := t.tripID

	delta := 0.0
	if t.lastPoint != nil {
		delta = geo.HaversineM(t.lastPoint.Lat, t.lastPoint.Lng, pos.Lat, pos.Lng)
	}
	t.mu.Unlock()

	ctx := context.Background()
	recorded := pos.Timestamp.Truncate(time.Second)
	if recorded.IsZero() {
		recorded = time.Now().Truncate(time.Second)
	}
	point, err := t.store.Insert(ctx, buffer.GpsPoint{
		TripID:         tripID,
		Lat:            pos.Lat,
		Lng:            pos.Lng,
		SpeedMps:       pos.SpeedMps,
		DistanceDeltaM: delta,
		RecordedAt:     recorded,
	})
	if err != nil {
		log.Printf("point persist failed for trip %s: %v", tripID, err)
		return
	}

	// full-history recompute keeps the total immune to noisy or duplicate
	// samples at the cost of CPU
	distance, recomputed := 0.0, false
	if points, err := t.store.Points(ctx, tripID); err == nil {
		distance = track.OptimizedDistanceM(toTrackPoints(points))
		recomputed = true
	} else {
		log.Printf("distance recompute failed for trip %s: %v", tripID, err)
	}

	t.mu.Lock()
	if !t.active || t.tripID != tripID {
		t.mu.Unlock()
		return
	}
	t.lastPoint = &point
	t.lastUpdate = time.Now()
	if recomputed {
		t.distanceM = distance
	}
	targets := t.targets
	t.mu.Unlock()

	if err := t.sync.MaybeSync(ctx, tripID); err != nil {
		log.Printf("threshold sync check failed for trip %s: %v", tripID, err)
	}

	t.checkProximity(ctx, tripID, targets, pos)

	if t.hub != nil {
		t.hub.Publish(stream.Event{Type: "point", TripID: tripID, Data: point})
	}
}

func (t *Tracker) checkProximity(ctx context.Context, tripID string, targets []*Target, pos position.Position) {
	for _, target := range targets {
		if target == nil || !target.Within(pos.Lat, pos.Lng) {
			continue
		}

		t.mu.Lock()
		fresh := !target.Notified
		target.Notified = true
		t.mu.Unlock()

		if fresh {
			t.sink.Notify(fmt.Sprintf("arrived at %s area %s", target.Kind, target.Area.Name))
			t.sink.PlayCue()
			t.sink.Vibrate()
			if t.hub != nil {
				t.hub.Publish(stream.Event{Type: "proximity", TripID: tripID, Data: map[string]string{
					"target": target.Kind,
					"area":   target.Area.ID,
				}})
			}
		}

		// the smart check has its own one-shot so a mode switch after the
		// arrival notification still ends the trip
		if target.Kind == "unloading" && t.onAutoEnd != nil && t.modeFn(ctx) == trip.ModeSmart {
			t.mu.Lock()
			fire := !t.autoEnded
			t.autoEnded = true
			t.mu.Unlock()
			if fire {
				// end runs on its own goroutine; it will call back into Stop
				go t.onAutoEnd(tripID)
			}
		}
	}
}

// watchdog recovers a stalled platform stream: a diagnostic after
// StaleAfter, and a single-shot refetch through the normal update path
// after RefetchAfter.
func (t *Tracker) watchdog(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.WatchdogPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if !t.active {
			t.mu.Unlock()
			return
		}
		stale := time.Since(t.lastUpdate)
		tripID := t.tripID
		t.mu.Unlock()

		switch {
		case stale >= t.cfg.RefetchAfter:
			pos, err := t.source.GetOnce(ctx)
			if err != nil {
				log.Printf("watchdog refetch failed for trip %s: %v", tripID, err)
				continue
			}
			t.HandleUpdate(pos)
		case stale >= t.cfg.StaleAfter:
			log.Printf("position stream stale for %v on trip %s", stale.Truncate(time.Second), tripID)
			if t.hub != nil {
				t.hub.Publish(stream.Event{Type: "stale", TripID: tripID, Data: stale.Seconds()})
			}
		}
	}
}

func toTrackPoints(points []buffer.GpsPoint) []track.Point {
	out := make([]track.Point, len(points))
	for i, p := range points {
		out[i] = track.Point{Lat: p.Lat, Lng: p.Lng, SpeedMps: p.SpeedMps}
	}
	return out
}
