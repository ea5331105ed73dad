package buffer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errQuery = errors.New("query error")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestInsertAssignsID(t *testing.T) {
	mock := newMock(t)
	recorded := time.Now().Truncate(time.Second)

	mock.ExpectExec(`INSERT INTO gps_points`).
		WithArgs(pgxmock.AnyArg(), "trip-1", 37.5, 127.0, 4.2, 12.5, recorded).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	p, err := store.Insert(context.Background(), GpsPoint{
		TripID:         "trip-1",
		Lat:            37.5,
		Lng:            127.0,
		SpeedMps:       4.2,
		DistanceDeltaM: 12.5,
		RecordedAt:     recorded,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected generated id")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO gps_points`).
		WithArgs(pgxmock.AnyArg(), "trip-1", 0.0, 0.0, 0.0, 0.0, pgxmock.AnyArg()).
		WillReturnError(errQuery)

	store := NewStore(mock)
	_, err := store.Insert(context.Background(), GpsPoint{TripID: "trip-1", RecordedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUnsyncedAndCount(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "trip_id", "lat", "lng", "speed_mps", "distance_delta_m", "recorded_at", "synced"}).
			AddRow("p1", "trip-1", 37.5, 127.0, 4.0, 0.0, now, false).
			AddRow("p2", "trip-1", 37.51, 127.01, 5.0, 100.0, now.Add(time.Second), false))

	store := NewStore(mock)
	points, err := store.Unsynced(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(points) != 2 || points[0].ID != "p1" {
		t.Fatalf("unexpected points: %+v", points)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM gps_points`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountUnsynced(context.Background(), "trip-1")
	if err != nil || n != 2 {
		t.Fatalf("count unsynced: %d, %v", n, err)
	}
}

func TestMarkSynced(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`UPDATE gps_points SET synced=true`).
		WithArgs("trip-1", []string{"p1", "p2"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	store := NewStore(mock)
	if err := store.MarkSynced(context.Background(), "trip-1", []string{"p1", "p2"}); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	// empty id set is a no-op without touching the database
	if err := store.MarkSynced(context.Background(), "trip-1", nil); err != nil {
		t.Fatalf("empty mark synced: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteTrip(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM gps_points`).
		WithArgs("trip-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	store := NewStore(mock)
	if err := store.DeleteTrip(context.Background(), "trip-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestStatus(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FILTER`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"synced", "unsynced"}).AddRow(12, 0))

	store := NewStore(mock)
	status, err := store.Status(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Synced != 12 || status.Unsynced != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestLastNoRows(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced`).
		WithArgs("trip-1").
		WillReturnError(pgx.ErrNoRows)

	store := NewStore(mock)
	_, ok, err := store.Last(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if ok {
		t.Fatalf("expected no point")
	}
}

func TestPointsQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, trip_id, lat, lng, speed_mps, distance_delta_m, recorded_at, synced`).
		WithArgs("trip-err").
		WillReturnError(errQuery)

	store := NewStore(mock)
	if _, err := store.Points(context.Background(), "trip-err"); err == nil {
		t.Fatalf("expected error")
	}
}
