package trip

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/notify"
	"github.com/JINHEE420/ShineDump-sub000/internal/remote"
	"github.com/JINHEE420/ShineDump-sub000/internal/retry"
	"github.com/JINHEE420/ShineDump-sub000/internal/stream"
	"github.com/JINHEE420/ShineDump-sub000/internal/telemetry"
)

// Dispatch is the dispatch-server surface the lifecycle needs.
// *remote.Client satisfies it.
type Dispatch interface {
	CreateTrip(ctx context.Context, req remote.CreateTripRequest) (remote.Trip, error)
	UpdateTrip(ctx context.Context, tripID string, req remote.CreateTripRequest) (remote.Trip, error)
	GetStatus(ctx context.Context, tripID string) (string, error)
	Complete(ctx context.Context, tripID string) error
	ForceEnd(ctx context.Context, tripID, reason, unloadingAreaID string) error
	LatestUncompleted(ctx context.Context, driverID string) (remote.Trip, bool, error)
	ListHistory(ctx context.Context, driverID string, date time.Time) ([]remote.Trip, error)
	Online(ctx context.Context) bool
}

// Tracker is the tracking loop as the lifecycle sees it. *tracking.Tracker
// satisfies it.
type Tracker interface {
	Start(ctx context.Context, tripID string, loading, unloading Area) error
	Stop(ctx context.Context, final retry.Policy) error
	DistanceM() float64
	TargetDistances() (loadingM, unloadingM float64, ok bool)
}

// Events receives lifecycle telemetry. *telemetry.Publisher satisfies it.
type Events interface {
	RemoteTermination(tripID, status string)
	TripEvent(name, tripID string)
}

// ManagerConfig carries the lifecycle timing and retry knobs.
type ManagerConfig struct {
	DriverID       string
	PollInterval   time.Duration
	RecoveryWindow time.Duration

	// EndPolicy retries the remote completion call; FinalSyncPolicy drives
	// the blocking point upload on teardown.
	EndPolicy       retry.Policy
	FinalSyncPolicy retry.Policy

	// ForceEndFinalSync switches the force-end path from a single upload
	// attempt to the full final-sync schedule.
	ForceEndFinalSync bool
}

func DefaultManagerConfig(driverID string) ManagerConfig {
	return ManagerConfig{
		DriverID:        driverID,
		PollInterval:    5 * time.Second,
		RecoveryWindow:  12 * time.Hour,
		EndPolicy:       retry.Fixed(3, 2*time.Second),
		FinalSyncPolicy: retry.Schedule(2*time.Second, 4*time.Second, 6*time.Second, 8*time.Second),
	}
}

// Manager is the trip lifecycle state machine. It owns the single active
// trip, drives the tracker, polls the server for unilateral terminations
// and survives restarts through the cache.
type Manager struct {
	cfg     ManagerConfig
	remote  Dispatch
	cache   *Cache
	tracker Tracker
	events  Events
	sink    notify.Sink
	hub     *stream.Hub

	mu         sync.Mutex
	current    *Trip
	state      State
	isEnding   bool
	stopPoller context.CancelFunc
}

func NewManager(cfg ManagerConfig, dispatch Dispatch, cache *Cache, tracker Tracker, events Events, sink notify.Sink, hub *stream.Hub) *Manager {
	if cache == nil {
		cache = NewCache(nil)
	}
	if events == nil {
		events = (*telemetry.Publisher)(nil)
	}
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Manager{
		cfg:     cfg,
		remote:  dispatch,
		cache:   cache,
		tracker: tracker,
		events:  events,
		sink:    sink,
		hub:     hub,
		state:   StateIdle,
	}
}

// Start registers the trip with the server, launches tracking and begins
// status polling. Server failure leaves no local trip behind.
func (m *Manager) Start(ctx context.Context, req CreateRequest) (Trip, error) {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return Trip{}, ErrTripActive
	}
	m.mu.Unlock()

	wire, err := m.remote.CreateTrip(ctx, remote.CreateTripRequest{
		SiteID:          req.SiteID,
		ProjectID:       req.ProjectID,
		Material:        req.Material,
		DriverID:        m.cfg.DriverID,
		LoadingAreaID:   req.LoadingArea.ID,
		UnloadingAreaID: req.UnloadingArea.ID,
	})
	if err != nil {
		return Trip{}, fmt.Errorf("%w: %v", ErrCreation, err)
	}

	t := fromWire(wire)
	if t.Loading.ID == "" {
		t.Loading = req.LoadingArea
	}
	if t.Unloading.ID == "" {
		t.Unloading = req.UnloadingArea
	}

	if err := m.adopt(ctx, t); err != nil {
		// the server already has the trip; close it so the driver can retry
		if ferr := m.remote.ForceEnd(ctx, t.ID, "tracking start failed", t.Unloading.ID); ferr != nil {
			log.Printf("rollback force-end failed for trip %s: %v", t.ID, ferr)
		}
		return Trip{}, err
	}

	m.events.TripEvent("started", t.ID)
	return t, nil
}

// adopt makes the trip the active one: tracking, cache, poller.
func (m *Manager) adopt(ctx context.Context, t Trip) error {
	if err := m.tracker.Start(ctx, t.ID, t.Loading, t.Unloading); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.current = &t
	m.state = StateActive
	m.isEnding = false
	m.stopPoller = cancel
	m.mu.Unlock()

	m.cache.SaveTrip(ctx, t)
	m.cache.InvalidateHistory(ctx, m.cfg.DriverID)
	go m.poll(pollCtx, t.ID)

	if m.hub != nil {
		m.hub.Publish(stream.Event{Type: "trip_started", TripID: t.ID, Data: t})
	}
	return nil
}

// End finishes the active trip: the remote completion call under the end
// policy first, then tracking teardown with the blocking final sync. A
// completion failure keeps the trip, and tracking, running so the driver can
// retry; concurrent calls are rejected.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrNoActiveTrip
	}
	if m.isEnding {
		m.mu.Unlock()
		return ErrEndInProgress
	}
	m.isEnding = true
	m.state = StateEnding
	t := *m.current
	m.mu.Unlock()

	err := m.cfg.EndPolicy.Do(ctx, func(ctx context.Context) error {
		return m.remote.Complete(ctx, t.ID)
	})
	if err != nil {
		// the trip stays active and tracking keeps recording until the
		// manual retry; a racing termination may already have cleared it
		m.mu.Lock()
		m.isEnding = false
		if m.current != nil {
			m.state = StateActive
		}
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	// tracking stops only once the server accepted the completion; unsynced
	// points ride the final sync and are retained in the buffer if it gives
	// up
	if err := m.tracker.Stop(ctx, m.cfg.FinalSyncPolicy); err != nil {
		log.Printf("final sync incomplete for trip %s: %v", t.ID, err)
	}

	if m.teardown(ctx, t.ID) {
		m.events.TripEvent("completed", t.ID)
		if m.hub != nil {
			m.hub.Publish(stream.Event{Type: "trip_completed", TripID: t.ID})
		}
	}
	return nil
}

// ForceEnd abandons the trip no matter what: a single best-effort server
// call and, by default, a single upload attempt instead of the full final
// sync. Local state is always cleared.
func (m *Manager) ForceEnd(ctx context.Context, reason string) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrNoActiveTrip
	}
	if m.isEnding {
		m.mu.Unlock()
		return ErrEndInProgress
	}
	m.isEnding = true
	m.state = StateEnding
	t := *m.current
	m.mu.Unlock()

	final := retry.Policy{MaxAttempts: 1}
	if m.cfg.ForceEndFinalSync {
		final = m.cfg.FinalSyncPolicy
	}
	if err := m.tracker.Stop(ctx, final); err != nil {
		log.Printf("force-end sync incomplete for trip %s: %v", t.ID, err)
	}

	if err := m.remote.ForceEnd(ctx, t.ID, reason, t.Unloading.ID); err != nil {
		log.Printf("force-end not acknowledged for trip %s: %v", t.ID, err)
	}

	if m.teardown(ctx, t.ID) {
		m.events.TripEvent("force_ended", t.ID)
		if m.hub != nil {
			m.hub.Publish(stream.Event{Type: "trip_force_ended", TripID: t.ID, Data: reason})
		}
	}
	return nil
}

// AutoEnd is the smart-mode hook: arrival at the unloading area ends the
// trip without the driver. Wire it to tracking with SetAutoEnd.
func (m *Manager) AutoEnd(tripID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	m.mu.Lock()
	active := m.current != nil && m.current.ID == tripID
	m.mu.Unlock()
	if !active {
		return
	}

	m.sink.Notify("arrived at unloading area, ending trip")
	if err := m.End(ctx); err != nil {
		log.Printf("smart-mode end failed for trip %s: %v", tripID, err)
	}
}

// Update pushes changed trip parameters to the server and refreshes the
// local copy. Tracking keeps its original targets until the next trip.
func (m *Manager) Update(ctx context.Context, req CreateRequest) (Trip, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return Trip{}, ErrNoActiveTrip
	}
	t := *m.current
	m.mu.Unlock()

	wire, err := m.remote.UpdateTrip(ctx, t.ID, remote.CreateTripRequest{
		SiteID:          req.SiteID,
		ProjectID:       req.ProjectID,
		Material:        req.Material,
		DriverID:        m.cfg.DriverID,
		LoadingAreaID:   req.LoadingArea.ID,
		UnloadingAreaID: req.UnloadingArea.ID,
	})
	if err != nil {
		return Trip{}, err
	}

	updated := fromWire(wire)
	m.mu.Lock()
	if m.current != nil && m.current.ID == updated.ID {
		m.current.SiteID = updated.SiteID
		m.current.ProjectID = updated.ProjectID
		m.current.Material = updated.Material
		updated = *m.current
	}
	m.mu.Unlock()

	m.cache.SaveTrip(ctx, updated)
	return updated, nil
}

// ResumeLatest recovers an interrupted trip after a restart. The server's
// open trip wins; the cache covers the offline case. Trips older than the
// recovery window are abandoned rather than resumed.
func (m *Manager) ResumeLatest(ctx context.Context) (Trip, bool, error) {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return Trip{}, false, ErrTripActive
	}
	m.mu.Unlock()

	if m.remote.Online(ctx) {
		wire, found, err := m.remote.LatestUncompleted(ctx, m.cfg.DriverID)
		if err == nil {
			if !found {
				m.cache.ClearTrip(ctx)
				return Trip{}, false, nil
			}
			return m.resume(ctx, fromWire(wire))
		}
		log.Printf("recovery lookup failed, falling back to cache: %v", err)
	}

	cached, ok := m.cache.LoadTrip(ctx)
	if !ok {
		return Trip{}, false, nil
	}
	return m.resume(ctx, cached)
}

func (m *Manager) resume(ctx context.Context, t Trip) (Trip, bool, error) {
	if time.Since(t.StartTime) > m.cfg.RecoveryWindow {
		log.Printf("trip %s too old to resume, abandoning", t.ID)
		if err := m.remote.ForceEnd(ctx, t.ID, "stale after restart", t.Unloading.ID); err != nil {
			log.Printf("stale trip force-end failed for %s: %v", t.ID, err)
		}
		m.cache.ClearTrip(ctx)
		return Trip{}, false, nil
	}

	if err := m.adopt(ctx, t); err != nil {
		return Trip{}, false, err
	}
	m.events.TripEvent("recovered", t.ID)
	return t, true, nil
}

// poll watches the server for a unilateral termination of the trip.
func (m *Manager) poll(ctx context.Context, tripID string) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !m.remote.Online(ctx) {
			continue
		}
		status, err := m.remote.GetStatus(ctx, tripID)
		if err != nil {
			log.Printf("status poll failed for trip %s: %v", tripID, err)
			continue
		}
		if Status(status).Terminated() {
			m.handleTermination(ctx, tripID, Status(status))
			return
		}
	}
}

// handleTermination clears the trip the server closed out from under us.
// The nil check under the lock makes the teardown exactly-once against a
// racing End or ForceEnd.
func (m *Manager) handleTermination(ctx context.Context, tripID string, status Status) {
	m.mu.Lock()
	if m.current == nil || m.current.ID != tripID {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.tracker.Stop(ctx, retry.Policy{MaxAttempts: 1}); err != nil {
		log.Printf("tracker stop after termination failed for trip %s: %v", tripID, err)
	}

	if !m.teardown(ctx, tripID) {
		return
	}
	m.events.RemoteTermination(tripID, string(status))
	m.sink.Notify(fmt.Sprintf("trip ended by dispatcher (%s)", status))
	if m.hub != nil {
		m.hub.Publish(stream.Event{Type: "trip_terminated", TripID: tripID, Data: string(status)})
	}
}

// teardown clears all local traces of the trip. Idempotent; reports whether
// this call did the clearing, so only one of a racing End, ForceEnd and
// termination announces the outcome.
func (m *Manager) teardown(ctx context.Context, tripID string) bool {
	m.mu.Lock()
	if m.current == nil || m.current.ID != tripID {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	m.state = StateIdle
	m.isEnding = false
	stopPoller := m.stopPoller
	m.stopPoller = nil
	m.mu.Unlock()

	if stopPoller != nil {
		stopPoller()
	}
	m.cache.ClearTrip(ctx)
	m.cache.InvalidateHistory(ctx, m.cfg.DriverID)
	return true
}

// Snapshot is the current lifecycle view for the status endpoint.
func (m *Manager) Snapshot(ctx context.Context) Snapshot {
	m.mu.Lock()
	snap := Snapshot{State: m.state, IsEnding: m.isEnding}
	if m.current != nil {
		t := *m.current
		snap.Trip = &t
	}
	m.mu.Unlock()

	snap.Mode = m.cache.LoadDriveMode(ctx)
	if snap.Trip != nil {
		snap.DistanceM = m.tracker.DistanceM()
		if loadingM, unloadingM, ok := m.tracker.TargetDistances(); ok {
			snap.DistanceToLoadingM = loadingM
			snap.DistanceToUnloadingM = unloadingM
		}
	}
	return snap
}

// History lists the driver's trips for a day, server-first with a cached
// fallback for offline reads.
func (m *Manager) History(ctx context.Context, day time.Time) ([]Trip, error) {
	wire, err := m.remote.ListHistory(ctx, m.cfg.DriverID, day)
	if err == nil {
		trips := make([]Trip, len(wire))
		for i, w := range wire {
			trips[i] = fromWire(w)
		}
		m.cache.SaveHistory(ctx, m.cfg.DriverID, day, trips)
		return trips, nil
	}

	if cached, ok := m.cache.LoadHistory(ctx, m.cfg.DriverID, day); ok {
		return cached, nil
	}
	return nil, err
}

// SetDriveMode persists the arrival behavior choice.
func (m *Manager) SetDriveMode(ctx context.Context, mode DriveMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid drive mode %q", mode)
	}
	m.cache.SaveDriveMode(ctx, mode)
	return nil
}

// DriveMode reads the persisted arrival behavior, defaulting to normal.
func (m *Manager) DriveMode(ctx context.Context) DriveMode {
	return m.cache.LoadDriveMode(ctx)
}

func fromWire(w remote.Trip) Trip {
	return Trip{
		ID:        w.ID,
		Status:    Status(w.Status),
		SiteID:    w.SiteID,
		ProjectID: w.ProjectID,
		Material:  w.Material,
		DriverID:  w.DriverID,
		StartTime: w.StartTime,
		DistanceM: w.DistanceM,
		Loading:   fromWireArea(w.LoadingArea),
		Unloading: fromWireArea(w.UnloadingArea),
	}
}

func fromWireArea(a remote.Area) Area {
	return Area{ID: a.ID, Name: a.Name, Lat: a.Lat, Lng: a.Lng, RadiusM: a.RadiusM}
}
