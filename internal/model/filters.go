package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/traveldata/hotel-exporter/internal/errors"
)

// ExportFilters is a tagged union over the per-type filter payloads. Exactly
// one branch matching the job's export type must be set; malformed payloads
// are rejected when the job is created, not when a worker picks it up.
type ExportFilters struct {
	Hotels          *HotelFilters           `json:"hotels,omitempty"`
	Mappings        *MappingFilters         `json:"mappings,omitempty"`
	SupplierSummary *SupplierSummaryFilters `json:"supplier_summary,omitempty"`
}

type HotelFilters struct {
	CityCodes   []string `json:"city_codes,omitempty"`
	SupplierIDs []int64  `json:"supplier_ids,omitempty"`
	ActiveOnly  bool     `json:"active_only,omitempty"`
}

type MappingFilters struct {
	SupplierIDs   []int64 `json:"supplier_ids,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	UnmappedOnly  bool    `json:"unmapped_only,omitempty"`
}

type SupplierSummaryFilters struct {
	SupplierIDs []int64    `json:"supplier_ids,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
}

// ParseExportFilters decodes raw filter JSON for the given export type. An
// empty payload yields zero-value filters for the type; a payload carrying a
// branch for a different type is rejected.
func ParseExportFilters(exportType ExportType, raw []byte) (ExportFilters, error) {
	var f ExportFilters
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return ExportFilters{}, errors.New("malformed export filters",
				errors.WithID("exporter.model.filters.malformed"),
				errors.WithCause(err))
		}
	}
	if err := f.Validate(exportType); err != nil {
		return ExportFilters{}, err
	}
	if !f.branchFor(exportType) {
		// Fill in the empty branch so downstream code never sees a nil union.
		switch exportType {
		case ExportTypeHotels:
			f.Hotels = &HotelFilters{}
		case ExportTypeMappings:
			f.Mappings = &MappingFilters{}
		case ExportTypeSupplierSummary:
			f.SupplierSummary = &SupplierSummaryFilters{}
		}
	}
	return f, nil
}

// Validate checks that no branch other than the export type's own is set and
// that branch values are in range.
func (f ExportFilters) Validate(exportType ExportType) error {
	set := 0
	if f.Hotels != nil {
		set++
		if exportType != ExportTypeHotels {
			return filterMismatch(exportType)
		}
	}
	if f.Mappings != nil {
		set++
		if exportType != ExportTypeMappings {
			return filterMismatch(exportType)
		}
		if f.Mappings.MinConfidence < 0 || f.Mappings.MinConfidence > 1 {
			return errors.New("mapping filter min_confidence must be within [0,1]",
				errors.WithID("exporter.model.filters.confidence_range"))
		}
	}
	if f.SupplierSummary != nil {
		set++
		if exportType != ExportTypeSupplierSummary {
			return filterMismatch(exportType)
		}
	}
	if set > 1 {
		return errors.New("export filters must carry a single branch",
			errors.WithID("exporter.model.filters.multiple_branches"))
	}
	return nil
}

func (f ExportFilters) branchFor(exportType ExportType) bool {
	switch exportType {
	case ExportTypeHotels:
		return f.Hotels != nil
	case ExportTypeMappings:
		return f.Mappings != nil
	case ExportTypeSupplierSummary:
		return f.SupplierSummary != nil
	}
	return false
}

func filterMismatch(exportType ExportType) error {
	return errors.New("export filters do not match export type "+string(exportType),
		errors.WithID("exporter.model.filters.type_mismatch"))
}
