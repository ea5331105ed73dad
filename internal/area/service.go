package area

import (
	"context"
	"errors"

	"github.com/JINHEE420/ShineDump-sub000/internal/db"

	"github.com/google/uuid"
)

var ErrInvalidKind = errors.New("kind must be loading or unloading")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, input Area) (Area, error) {
	if !validKind(input.Kind) {
		return Area{}, ErrInvalidKind
	}
	input.ID = uuid.NewString()
	if input.RadiusM <= 0 {
		input.RadiusM = 100
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO areas (id, site_id, name, kind, address, location, radius_m)
		VALUES ($1,$2,$3,$4,$5, ST_SetSRID(ST_MakePoint($6,$7), 4326)::geography, $8)
		RETURNING created_at
	`, input.ID, input.SiteID, input.Name, input.Kind, input.Address, input.Lng, input.Lat, input.RadiusM)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Area{}, err
	}
	return input, nil
}

func (s *Service) Update(ctx context.Context, id string, patch Area) (Area, error) {
	area, err := s.Get(ctx, id)
	if err != nil {
		return Area{}, err
	}
	if patch.Name != "" {
		area.Name = patch.Name
	}
	if patch.Address != "" {
		area.Address = patch.Address
	}
	if patch.Kind != "" {
		if !validKind(patch.Kind) {
			return Area{}, ErrInvalidKind
		}
		area.Kind = patch.Kind
	}
	if patch.Lat != 0 {
		area.Lat = patch.Lat
	}
	if patch.Lng != 0 {
		area.Lng = patch.Lng
	}
	if patch.RadiusM != 0 {
		area.RadiusM = patch.RadiusM
	}

	_, err = s.db.Exec(ctx, `
		UPDATE areas
		SET name=$2, kind=$3, address=$4,
		    location=ST_SetSRID(ST_MakePoint($5,$6), 4326)::geography,
		    radius_m=$7
		WHERE id=$1
	`, area.ID, area.Name, area.Kind, area.Address, area.Lng, area.Lat, area.RadiusM)
	if err != nil {
		return Area{}, err
	}
	return area, nil
}

func (s *Service) Get(ctx context.Context, id string) (Area, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, site_id, name, kind, address, ST_Y(location::geometry), ST_X(location::geometry),
		       radius_m, created_at
		FROM areas WHERE id=$1
	`, id)
	var area Area
	if err := row.Scan(&area.ID, &area.SiteID, &area.Name, &area.Kind, &area.Address, &area.Lat, &area.Lng, &area.RadiusM, &area.CreatedAt); err != nil {
		return Area{}, err
	}
	return area, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM areas WHERE id=$1`, id)
	return err
}

// BySite lists a site's areas, loading zones first.
func (s *Service) BySite(ctx context.Context, siteID string) ([]Area, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, site_id, name, kind, address, ST_Y(location::geometry), ST_X(location::geometry),
		       radius_m, created_at
		FROM areas WHERE site_id=$1
		ORDER BY kind, name
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAreas(rows)
}

// Nearby finds areas within radiusKm of a point, for suggesting targets to
// a driver at the yard.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]Area, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, site_id, name, kind, address, ST_Y(location::geometry), ST_X(location::geometry),
		       radius_m, created_at
		FROM areas
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
		ORDER BY created_at DESC
	`, lng, lat, radiusKm*1000)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAreas(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
}

func scanAreas(rows rowScanner) ([]Area, error) {
	var areas []Area
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.ID, &a.SiteID, &a.Name, &a.Kind, &a.Address, &a.Lat, &a.Lng, &a.RadiusM, &a.CreatedAt); err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, nil
}
