package buffer

import (
	"context"
	"errors"

	"github.com/JINHEE420/ShineDump-sub000/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store is the durable buffer of captured points. It is the authoritative
// record of what must eventually reach the server: a point is only deleted
// after its trip is torn down and the point is confirmed synced.
type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, p GpsPoint) (GpsPoint, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO gps_points (id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced)
		VALUES ($1,$2,$3,$4,$5,$6,$7,false)
	`, p.ID, p.TripID, p.Lat, p.Lng, p.SpeedMps, p.DistanceDeltaM, p.RecordedAt)
	if err != nil {
		return GpsPoint{}, err
	}
	return p, nil
}

// Points returns every point of a trip ordered by capture time, which is the
// input the track optimizer expects.
func (s *Store) Points(ctx context.Context, tripID string) ([]GpsPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced
		FROM gps_points WHERE trip_id=$1
		ORDER BY recorded_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []GpsPoint
	for rows.Next() {
		var p GpsPoint
		if err := rows.Scan(&p.ID, &p.TripID, &p.Lat, &p.Lng, &p.SpeedMps, &p.DistanceDeltaM, &p.RecordedAt, &p.Synced); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (s *Store) Unsynced(ctx context.Context, tripID string) ([]GpsPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced
		FROM gps_points WHERE trip_id=$1 AND synced=false
		ORDER BY recorded_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []GpsPoint
	for rows.Next() {
		var p GpsPoint
		if err := rows.Scan(&p.ID, &p.TripID, &p.Lat, &p.Lng, &p.SpeedMps, &p.DistanceDeltaM, &p.RecordedAt, &p.Synced); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (s *Store) CountUnsynced(ctx context.Context, tripID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM gps_points WHERE trip_id=$1 AND synced=false
	`, tripID).Scan(&n)
	return n, err
}

// MarkSynced flips the synced flag for the given point ids. Points are keyed
// by id rather than timestamp so sub-second collisions cannot mark a point
// that was never uploaded.
func (s *Store) MarkSynced(ctx context.Context, tripID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE gps_points SET synced=true WHERE trip_id=$1 AND id = ANY($2)
	`, tripID, ids)
	return err
}

func (s *Store) DeleteTrip(ctx context.Context, tripID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM gps_points WHERE trip_id=$1`, tripID)
	return err
}

func (s *Store) Status(ctx context.Context, tripID string) (SyncStatus, error) {
	status := SyncStatus{TripID: tripID}
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE synced), COUNT(*) FILTER (WHERE NOT synced)
		FROM gps_points WHERE trip_id=$1
	`, tripID).Scan(&status.Synced, &status.Unsynced)
	if err != nil {
		return SyncStatus{}, err
	}
	return status, nil
}

// Last returns the most recent point of a trip, or false when the trip has
// no points yet.
func (s *Store) Last(ctx context.Context, tripID string) (GpsPoint, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced
		FROM gps_points WHERE trip_id=$1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, tripID)
	var p GpsPoint
	err := row.Scan(&p.ID, &p.TripID, &p.Lat, &p.Lng, &p.SpeedMps, &p.DistanceDeltaM, &p.RecordedAt, &p.Synced)
	if errors.Is(err, pgx.ErrNoRows) {
		return GpsPoint{}, false, nil
	}
	if err != nil {
		return GpsPoint{}, false, err
	}
	return p, true, nil
}
