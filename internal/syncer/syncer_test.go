package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/buffer"
	"github.com/JINHEE420/ShineDump-sub000/internal/remote"
	"github.com/JINHEE420/ShineDump-sub000/internal/retry"
)

type fakeStore struct {
	mu     sync.Mutex
	points map[string][]buffer.GpsPoint
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: map[string][]buffer.GpsPoint{}}
}

func (f *fakeStore) add(tripID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := len(f.points[tripID])
	for i := 0; i < n; i++ {
		f.points[tripID] = append(f.points[tripID], buffer.GpsPoint{
			ID:         fmt.Sprintf("p%d", base+i),
			TripID:     tripID,
			RecordedAt: time.Now(),
		})
	}
}

func (f *fakeStore) CountUnsynced(_ context.Context, tripID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.points[tripID] {
		if !p.Synced {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Unsynced(_ context.Context, tripID string) ([]buffer.GpsPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []buffer.GpsPoint
	for _, p := range f.points[tripID] {
		if !p.Synced {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSynced(_ context.Context, tripID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := map[string]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i, p := range f.points[tripID] {
		if _, ok := set[p.ID]; ok {
			f.points[tripID][i].Synced = true
		}
	}
	return nil
}

func (f *fakeStore) DeleteTrip(_ context.Context, tripID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, tripID)
	return nil
}

func (f *fakeStore) countSynced(tripID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.points[tripID] {
		if p.Synced {
			n++
		}
	}
	return n
}

type fakeUploader struct {
	mu      sync.Mutex
	calls   int
	batches [][]remote.UploadPoint
	fail    int // fail this many calls before succeeding
	online  bool
}

func (f *fakeUploader) UploadBatch(_ context.Context, _ string, points []remote.UploadPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return errors.New("upload failed")
	}
	f.batches = append(f.batches, points)
	return nil
}

func (f *fakeUploader) Online(context.Context) bool { return f.online }

type fakeEvents struct {
	exhausted int
	remaining int
}

func (f *fakeEvents) SyncExhausted(_ string, remaining int) {
	f.exhausted++
	f.remaining = remaining
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Fixed(attempts, time.Millisecond)
}

func TestThresholdBelowBatchNoCall(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true}
	s := New(store, up, nil)

	store.add("trip-1", 9)
	if err := s.MaybeSync(context.Background(), "trip-1"); err != nil {
		t.Fatalf("maybe sync: %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("expected no upload below threshold, got %d", up.calls)
	}
}

func TestThresholdAtBatchOneCall(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true}
	s := New(store, up, nil)

	store.add("trip-1", 10)
	if err := s.MaybeSync(context.Background(), "trip-1"); err != nil {
		t.Fatalf("maybe sync: %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("expected exactly one upload, got %d", up.calls)
	}
	if store.countSynced("trip-1") != 10 {
		t.Fatalf("expected all 10 synced, got %d", store.countSynced("trip-1"))
	}
}

func TestThresholdFailureLeavesUnsynced(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true, fail: 1}
	s := New(store, up, nil)

	store.add("trip-1", 10)
	if err := s.MaybeSync(context.Background(), "trip-1"); err != nil {
		t.Fatalf("maybe sync must swallow upload failure: %v", err)
	}
	if store.countSynced("trip-1") != 0 {
		t.Fatalf("points must stay unsynced on failure")
	}
	if up.calls != 1 {
		t.Fatalf("no immediate retry expected, got %d calls", up.calls)
	}
}

func TestAtLeastOnceAcrossInterleavedFailures(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true, fail: 2}
	s := New(store, up, nil).WithBatchSize(5).WithFinalPolicy(fastPolicy(5))

	store.add("trip-1", 5)
	_ = s.MaybeSync(context.Background(), "trip-1") // fails
	store.add("trip-1", 3)
	_ = s.MaybeSync(context.Background(), "trip-1") // 8 unsynced, fails again
	if store.countSynced("trip-1") != 0 {
		t.Fatalf("nothing should be synced yet")
	}

	if err := s.FinalSync(context.Background(), "trip-1"); err != nil {
		t.Fatalf("final sync: %v", err)
	}

	// all 8 points delivered exactly once in the successful batch
	total := 0
	for _, b := range up.batches {
		total += len(b)
	}
	if total != 8 {
		t.Fatalf("expected 8 points delivered once, got %d", total)
	}
}

func TestFinalSyncTriviallySucceedsWhenDrained(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true}
	s := New(store, up, nil).WithFinalPolicy(fastPolicy(5))

	store.add("trip-1", 12)
	_ = s.MaybeSync(context.Background(), "trip-1")
	if store.countSynced("trip-1") != 12 {
		t.Fatalf("expected 12 synced after threshold sync")
	}

	if err := s.FinalSync(context.Background(), "trip-1"); err != nil {
		t.Fatalf("final sync: %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("drained buffer needs no further upload, got %d calls", up.calls)
	}
	if n, _ := store.CountUnsynced(context.Background(), "trip-1"); n != 0 {
		t.Fatalf("expected cleaned buffer")
	}
}

func TestFinalSyncExhaustionRetainsPoints(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true, fail: 100}
	events := &fakeEvents{}
	s := New(store, up, events).WithFinalPolicy(fastPolicy(5))

	store.add("trip-1", 7)
	if err := s.FinalSync(context.Background(), "trip-1"); err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if up.calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", up.calls)
	}
	if n, _ := store.CountUnsynced(context.Background(), "trip-1"); n != 7 {
		t.Fatalf("points must be retained, got %d unsynced", n)
	}
	if events.exhausted != 1 || events.remaining != 7 {
		t.Fatalf("expected telemetry event with 7 remaining, got %+v", events)
	}
}

func TestFinalSyncSkipsAttemptsWhileOffline(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: false}
	s := New(store, up, nil).WithFinalPolicy(fastPolicy(3))

	store.add("trip-1", 3)
	if err := s.FinalSync(context.Background(), "trip-1"); !errors.Is(err, retry.ErrOffline) {
		t.Fatalf("expected offline error, got %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("no upload may run while offline")
	}
}

func TestManualRetry(t *testing.T) {
	store := newFakeStore()
	up := &fakeUploader{online: true}
	s := New(store, up, nil)

	store.add("trip-1", 4)
	if err := s.Retry(context.Background(), "trip-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if store.countSynced("trip-1") != 4 {
		t.Fatalf("expected manual retry to drain buffer")
	}
}
