package syncer

import (
	"context"
	"log"
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/buffer"
	"github.com/JINHEE420/ShineDump-sub000/internal/remote"
	"github.com/JINHEE420/ShineDump-sub000/internal/retry"
)

// DefaultBatchSize is the unsynced-point count that triggers an upload.
const DefaultBatchSize = 10

// DefaultFinalPolicy is the retry schedule for the blocking final sync on
// trip teardown: five attempts with growing delays.
var DefaultFinalPolicy = retry.Schedule(2*time.Second, 4*time.Second, 6*time.Second, 8*time.Second)

// PointStore is the slice of the durable buffer the syncer needs.
// *buffer.Store satisfies it.
type PointStore interface {
	CountUnsynced(ctx context.Context, tripID string) (int, error)
	Unsynced(ctx context.Context, tripID string) ([]buffer.GpsPoint, error)
	MarkSynced(ctx context.Context, tripID string, ids []string) error
	DeleteTrip(ctx context.Context, tripID string) error
}

// Uploader is the remote GPS service surface. *remote.Client satisfies it.
type Uploader interface {
	UploadBatch(ctx context.Context, tripID string, points []remote.UploadPoint) error
	Online(ctx context.Context) bool
}

// Events receives telemetry for sync outcomes that need operator attention.
type Events interface {
	SyncExhausted(tripID string, remaining int)
}

// Syncer implements the batched upload protocol: at-least-once delivery with
// local dedup via the synced flag, and never discarding local data on
// failure.
type Syncer struct {
	store       PointStore
	uploader    Uploader
	events      Events
	batchSize   int
	finalPolicy retry.Policy
}

func New(store PointStore, uploader Uploader, events Events) *Syncer {
	return &Syncer{
		store:       store,
		uploader:    uploader,
		events:      events,
		batchSize:   DefaultBatchSize,
		finalPolicy: DefaultFinalPolicy,
	}
}

// WithBatchSize overrides the threshold trigger count.
func (s *Syncer) WithBatchSize(n int) *Syncer {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithFinalPolicy overrides the final-sync retry schedule. Force-end
// teardown passes a single-attempt policy here.
func (s *Syncer) WithFinalPolicy(p retry.Policy) *Syncer {
	s.finalPolicy = p
	return s
}

// MaybeSync issues one upload attempt when the unsynced count has reached
// the batch size. Failures are left for the next trigger; there is no
// immediate retry.
func (s *Syncer) MaybeSync(ctx context.Context, tripID string) error {
	n, err := s.store.CountUnsynced(ctx, tripID)
	if err != nil {
		return err
	}
	if n < s.batchSize {
		return nil
	}
	if err := s.uploadUnsynced(ctx, tripID); err != nil {
		log.Printf("threshold sync deferred for trip %s: %v", tripID, err)
	}
	return nil
}

// FinalSync drains the trip's unsynced points with the configured final
// retry policy and deletes the trip's points once everything is confirmed
// synced. On exhaustion the points stay in the buffer for a later manual
// retry.
func (s *Syncer) FinalSync(ctx context.Context, tripID string) error {
	return s.FinalSyncWith(ctx, tripID, s.finalPolicy)
}

// FinalSyncWith is FinalSync under a caller-chosen policy; force-end
// teardown passes a single-attempt policy for its best-effort sync.
func (s *Syncer) FinalSyncWith(ctx context.Context, tripID string, policy retry.Policy) error {
	err := policy.DoWithGate(ctx, s.uploader.Online, func(ctx context.Context) error {
		return s.uploadUnsynced(ctx, tripID)
	})
	if err != nil {
		remaining, countErr := s.store.CountUnsynced(ctx, tripID)
		if countErr != nil {
			remaining = -1
		}
		log.Printf("final sync exhausted for trip %s, %d points retained: %v", tripID, remaining, err)
		if s.events != nil {
			s.events.SyncExhausted(tripID, remaining)
		}
		return err
	}
	return s.store.DeleteTrip(ctx, tripID)
}

// Retry is the operator-visible manual resync: one upload attempt for
// whatever is still unsynced.
func (s *Syncer) Retry(ctx context.Context, tripID string) error {
	return s.uploadUnsynced(ctx, tripID)
}

func (s *Syncer) uploadUnsynced(ctx context.Context, tripID string) error {
	points, err := s.store.Unsynced(ctx, tripID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	batch := make([]remote.UploadPoint, len(points))
	ids := make([]string, len(points))
	for i, p := range points {
		batch[i] = remote.UploadPoint{
			ID:             p.ID,
			Lat:            p.Lat,
			Lng:            p.Lng,
			SpeedMps:       p.SpeedMps,
			DistanceDeltaM: p.DistanceDeltaM,
			RecordedAt:     p.RecordedAt,
		}
		ids[i] = p.ID
	}

	if err := s.uploader.UploadBatch(ctx, tripID, batch); err != nil {
		return err
	}
	return s.store.MarkSynced(ctx, tripID, ids)
}
