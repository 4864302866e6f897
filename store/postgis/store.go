// Package postgis writes imported entities into PostGIS tables. The schema
// is managed outside of this module.
package postgis

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/segment"
)

const srid = 4326

type Store struct {
	db         *sql.DB
	maxWriters int
	log        *slog.Logger
}

// Open connects to the database and checks the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	s := New(db, cfg.MaxConns)
	s.log.InfoContext(ctx, "connected", "host", cfg.Host, "database", cfg.Database, "max_conns", cfg.MaxConns)
	return s, nil
}

// New wraps an open database. maxWriters is the pool size, 0 when unbounded.
func New(db *sql.DB, maxWriters int) *Store {
	return &Store{
		db:         db,
		maxWriters: maxWriters,
		log:        slog.Default().With("component", "postgis"),
	}
}

// MaxWriters is the number of batches that can be written concurrently.
func (s *Store) MaxWriters() int {
	return s.maxWriters
}

func (s *Store) Close() error {
	return s.db.Close()
}

// upsert writes a batch in one transaction with a prepared statement.
func upsert[T any](ctx context.Context, db *sql.DB, query string, batch []T, args func(T) ([]any, error)) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, v := range batch {
		a, err := args(v)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, a...)
		if err != nil {
			return 0, fmt.Errorf("exec: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		written += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func geometry(g orb.Geometry) driver.Valuer {
	return ewkb.Value(g, srid)
}

// jsonb returns nil for empty values so the column is NULL.
func jsonb[T any](v T, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func (s *Store) UpsertRoads(ctx context.Context, batch []geomodel.Road) (int, error) {
	n, err := upsert(ctx, s.db, upsertRoadSQL, batch, func(r geomodel.Road) ([]any, error) {
		tags, err := jsonb(r.Tags, len(r.Tags) == 0)
		if err != nil {
			return nil, err
		}
		surface := segment.SurfaceFactor(r.Surface)
		smoothness := segment.SmoothnessFactor(r.Smoothness)
		return []any{
			r.ID,
			geometry(r.Geometry),
			r.Type.String(),
			r.Surface.String(),
			r.Smoothness.String(),
			nullString(r.Name),
			r.Lanes,
			r.Oneway,
			nullInt(int64(r.MaxSpeed)),
			geo.LengthHaversine(r.Geometry),
			surface,
			smoothness,
			segment.BaseSpeed(r.Type, r.MaxSpeed) * surface * smoothness,
			tags,
		}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert roads: %w", err)
	}
	return n, nil
}

func (s *Store) UpsertSegments(ctx context.Context, batch []geomodel.Segment) (int, error) {
	n, err := upsert(ctx, s.db, upsertSegmentSQL, batch, func(sg geomodel.Segment) ([]any, error) {
		return []any{
			sg.ID,
			sg.RoadID,
			geometry(sg.Geometry),
			geometry(sg.Start),
			geometry(sg.End),
			sg.LengthM,
			sg.SurfaceFactor,
			sg.SmoothnessFactor,
			sg.SeasonFactor,
			sg.Oneway,
			sg.BaseSpeed,
			sg.EffectiveSpeed,
			sg.TravelTimeS,
			sg.Cost(),
		}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert segments: %w", err)
	}
	return n, nil
}

type addressJSON struct {
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"housenumber,omitempty"`
	City        string `json:"city,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	District    string `json:"district,omitempty"`
	Province    string `json:"province,omitempty"`
}

func (s *Store) UpsertPOIs(ctx context.Context, batch []geomodel.POI) (int, error) {
	n, err := upsert(ctx, s.db, upsertPOISQL, batch, func(p geomodel.POI) ([]any, error) {
		address, err := jsonb(addressJSON(p.Address), p.Address.IsZero())
		if err != nil {
			return nil, err
		}
		tags, err := jsonb(p.Tags, len(p.Tags) == 0)
		if err != nil {
			return nil, err
		}

		var hours sql.NullString
		alwaysOn := false
		if p.Hours != nil {
			hours = nullString(p.Hours.Raw)
			alwaysOn = p.Hours.AlwaysOn
		}

		return []any{
			p.ID,
			geometry(p.Location),
			p.Category.String(),
			p.Subcategory,
			nullString(p.Name),
			address,
			nullString(p.Phone),
			hours,
			nullString(p.Website),
			alwaysOn,
			nullString(p.Address.String()),
			nullString(p.NameNormalized()),
			p.SearchText(),
			p.Name != "",
			tags,
		}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert pois: %w", err)
	}
	return n, nil
}

func (s *Store) UpsertZones(ctx context.Context, batch []geomodel.Zone) (int, error) {
	n, err := upsert(ctx, s.db, upsertZoneSQL, batch, func(z geomodel.Zone) ([]any, error) {
		tags, err := jsonb(z.Tags, len(z.Tags) == 0)
		if err != nil {
			return nil, err
		}
		centroid, _ := planar.CentroidArea(z.Geometry)
		return []any{
			z.ID,
			geometry(z.Geometry),
			z.Type.String(),
			z.Name,
			z.Level,
			nullInt(z.ParentID),
			nullString(z.ISOCode),
			nullInt(z.Population),
			geo.Area(z.Geometry),
			geometry(centroid),
			tags,
		}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert zones: %w", err)
	}
	return n, nil
}

// ComputeZoneHierarchy links every zone to the smallest zone one level up
// containing its centroid, from the deepest level up to districts. It
// returns the number of zones updated.
func (s *Store) ComputeZoneHierarchy(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	updated := 0
	for level := geomodel.MaxZoneLevel; level >= geomodel.MinLinkedZoneLevel; level-- {
		res, err := tx.ExecContext(ctx, linkZoneLevelSQL, level-1, level)
		if err != nil {
			return 0, fmt.Errorf("link zone level %d: %w", level, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += int(n)
		s.log.InfoContext(ctx, "zone level linked", "level", level, "zones", n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}
