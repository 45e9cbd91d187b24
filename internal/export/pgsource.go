package export

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
)

// PgDataSource is a read-only data source over the hotel-content tables. The
// content CRUD itself is owned elsewhere; this only runs the export selects.
type PgDataSource struct {
	pool *pgxpool.Pool
}

func NewPgDataSource(pool *pgxpool.Pool) *PgDataSource {
	return &PgDataSource{pool: pool}
}

func (s *PgDataSource) Rows(ctx context.Context, exportType model.ExportType, filters model.ExportFilters) (*Dataset, error) {
	switch exportType {
	case model.ExportTypeHotels:
		return s.hotelRows(ctx, filters.Hotels)
	case model.ExportTypeMappings:
		return s.mappingRows(ctx, filters.Mappings)
	case model.ExportTypeSupplierSummary:
		return s.supplierSummaryRows(ctx, filters.SupplierSummary)
	default:
		return nil, errors.New("unsupported export type "+string(exportType),
			errors.WithID("exporter.export.source.unsupported_type"))
	}
}

func (s *PgDataSource) hotelRows(ctx context.Context, f *model.HotelFilters) (*Dataset, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query := psql.
		Select("id", "name", "city_code", "country_code", "star_rating", "supplier_id", "active").
		From("hotel_exporter.hotels").
		OrderBy("id")
	if f != nil {
		if len(f.CityCodes) > 0 {
			query = query.Where(sq.Eq{"city_code": f.CityCodes})
		}
		if len(f.SupplierIDs) > 0 {
			query = query.Where(sq.Eq{"supplier_id": f.SupplierIDs})
		}
		if f.ActiveOnly {
			query = query.Where(sq.Eq{"active": true})
		}
	}
	return s.run(ctx, query,
		[]string{"id", "name", "city_code", "country_code", "star_rating", "supplier_id", "active"})
}

func (s *PgDataSource) mappingRows(ctx context.Context, f *model.MappingFilters) (*Dataset, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query := psql.
		Select("hotel_id", "supplier_id", "supplier_hotel_code", "confidence", "mapped_at").
		From("hotel_exporter.supplier_mappings").
		OrderBy("hotel_id", "supplier_id")
	if f != nil {
		if len(f.SupplierIDs) > 0 {
			query = query.Where(sq.Eq{"supplier_id": f.SupplierIDs})
		}
		if f.MinConfidence > 0 {
			query = query.Where(sq.GtOrEq{"confidence": f.MinConfidence})
		}
		if f.UnmappedOnly {
			query = query.Where(sq.Eq{"hotel_id": nil})
		}
	}
	return s.run(ctx, query,
		[]string{"hotel_id", "supplier_id", "supplier_hotel_code", "confidence", "mapped_at"})
}

func (s *PgDataSource) supplierSummaryRows(ctx context.Context, f *model.SupplierSummaryFilters) (*Dataset, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query := psql.
		Select("supplier_id", "COUNT(*) AS hotel_count",
			"COUNT(*) FILTER (WHERE hotel_id IS NOT NULL) AS mapped_count",
			"MAX(mapped_at) AS last_mapped_at").
		From("hotel_exporter.supplier_mappings").
		GroupBy("supplier_id").
		OrderBy("supplier_id")
	if f != nil {
		if len(f.SupplierIDs) > 0 {
			query = query.Where(sq.Eq{"supplier_id": f.SupplierIDs})
		}
		if f.Since != nil {
			query = query.Where(sq.GtOrEq{"mapped_at": *f.Since})
		}
	}
	return s.run(ctx, query,
		[]string{"supplier_id", "hotel_count", "mapped_count", "last_mapped_at"})
}

func (s *PgDataSource) run(ctx context.Context, query sq.SelectBuilder, header []string) (*Dataset, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := &Dataset{Header: header}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			rec[i] = fmt.Sprint(v)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}
