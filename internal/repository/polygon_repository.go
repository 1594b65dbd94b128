package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/subsoil/internal/database"
	"github.com/stwalsh4118/subsoil/internal/models"
)

// PolygonRepository persists loaded company parcels so a restart can serve the
// previous map while the loader runs again.
type PolygonRepository interface {
	// Upsert stores one parcel, replacing the row for the same location.
	Upsert(ctx context.Context, cp models.CompanyPolygon) error

	// UpsertBatch stores parcels in a single round trip.
	UpsertBatch(ctx context.Context, cps []models.CompanyPolygon) error

	// Get returns the parcel stored for location.
	// Returns nil, nil if there is none.
	Get(ctx context.Context, location string) (*models.CompanyPolygon, error)

	// List returns every stored parcel ordered by location.
	// Returns an empty slice if the store is empty.
	List(ctx context.Context) ([]models.CompanyPolygon, error)
}

// polygonRepository is the concrete implementation of PolygonRepository.
type polygonRepository struct {
	db *database.Database
}

// NewPolygonRepository creates a new instance of PolygonRepository.
func NewPolygonRepository(db *database.Database) PolygonRepository {
	return &polygonRepository{
		db: db,
	}
}

const upsertQuery = `
	INSERT INTO company_polygons (location, company_title, company_type, category, geometry, license, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (location) DO UPDATE SET
		company_title = EXCLUDED.company_title,
		company_type  = EXCLUDED.company_type,
		category      = EXCLUDED.category,
		geometry      = EXCLUDED.geometry,
		license       = EXCLUDED.license,
		updated_at    = now()
`

const selectColumns = `location, company_title, company_type, category, geometry, license`

// row holds the column values of one company_polygons row.
type row struct {
	Location string
	Title    string
	Type     string
	Category string
	Geometry []byte
	License  []byte
}

// encodeRow converts a parcel into column values. The polygon is stored as a
// closed lon-first GeoJSON ring.
func encodeRow(cp models.CompanyPolygon) (row, error) {
	if cp.Company.Location == "" {
		return row{}, fmt.Errorf("company polygon has no location")
	}
	if err := cp.Polygon.Validate("store " + cp.Company.Location); err != nil {
		return row{}, err
	}

	geom, err := models.NewGeoJSONPolygon(cp.Polygon).MarshalJSON()
	if err != nil {
		return row{}, err
	}

	var license []byte
	if cp.License != nil {
		license, err = json.Marshal(cp.License)
		if err != nil {
			return row{}, fmt.Errorf("failed to marshal license for %s: %w", cp.Company.Location, err)
		}
	}

	return row{
		Location: cp.Company.Location,
		Title:    cp.Company.CompanyTitle,
		Type:     string(cp.Company.Type),
		Category: cp.Company.Category,
		Geometry: geom,
		License:  license,
	}, nil
}

// decodeRow converts column values back into a parcel.
func decodeRow(r row) (models.CompanyPolygon, error) {
	var geom models.GeoJSONPolygon
	if err := geom.Scan(r.Geometry); err != nil {
		return models.CompanyPolygon{}, fmt.Errorf("failed to parse geometry for %s: %w", r.Location, err)
	}
	polygon, err := geom.Polygon()
	if err != nil {
		return models.CompanyPolygon{}, fmt.Errorf("failed to parse geometry for %s: %w", r.Location, err)
	}

	cp := models.CompanyPolygon{
		Company: models.Company{
			Location:     r.Location,
			CompanyTitle: r.Title,
			Type:         models.ParseCompanyType(r.Type),
			Category:     r.Category,
		},
		Polygon: polygon,
	}

	if len(r.License) > 0 {
		var license models.LicenseInfo
		if err := json.Unmarshal(r.License, &license); err != nil {
			return models.CompanyPolygon{}, fmt.Errorf("failed to parse license for %s: %w", r.Location, err)
		}
		cp.License = &license
	}

	return cp, nil
}

func (r *polygonRepository) Upsert(ctx context.Context, cp models.CompanyPolygon) error {
	values, err := encodeRow(cp)
	if err != nil {
		return err
	}

	_, err = r.db.Pool.Exec(ctx, upsertQuery,
		values.Location, values.Title, values.Type, values.Category, values.Geometry, values.License)
	if err != nil {
		return fmt.Errorf("failed to upsert polygon %s: %w", values.Location, err)
	}
	return nil
}

func (r *polygonRepository) UpsertBatch(ctx context.Context, cps []models.CompanyPolygon) error {
	if len(cps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, cp := range cps {
		values, err := encodeRow(cp)
		if err != nil {
			return err
		}
		batch.Queue(upsertQuery,
			values.Location, values.Title, values.Type, values.Category, values.Geometry, values.License)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range cps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert polygon %s: %w", cps[i].Company.Location, err)
		}
	}
	return nil
}

func (r *polygonRepository) Get(ctx context.Context, location string) (*models.CompanyPolygon, error) {
	query := `SELECT ` + selectColumns + ` FROM company_polygons WHERE location = $1`

	var values row
	err := r.db.Pool.QueryRow(ctx, query, location).Scan(
		&values.Location,
		&values.Title,
		&values.Type,
		&values.Category,
		&values.Geometry,
		&values.License,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query polygon %s: %w", location, err)
	}

	cp, err := decodeRow(values)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *polygonRepository) List(ctx context.Context) ([]models.CompanyPolygon, error) {
	query := `SELECT ` + selectColumns + ` FROM company_polygons ORDER BY location`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query polygons: %w", err)
	}
	defer rows.Close()

	results := []models.CompanyPolygon{}
	for rows.Next() {
		var values row
		if err := rows.Scan(
			&values.Location,
			&values.Title,
			&values.Type,
			&values.Category,
			&values.Geometry,
			&values.License,
		); err != nil {
			return nil, fmt.Errorf("failed to scan polygon row: %w", err)
		}

		cp, err := decodeRow(values)
		if err != nil {
			return nil, err
		}
		results = append(results, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polygon rows: %w", err)
	}

	return results, nil
}
