// Package artifacts reads the artifacts workbook: the functional and
// technical metadata catalogs and the requirement and location dimensions.
//
// Import Path: catalogo.cali.gov.co/etl/internal/artifacts
package artifacts

import (
	"errors"
	"fmt"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/normalize"
	"catalogo.cali.gov.co/etl/internal/refdata"
	"catalogo.cali.gov.co/etl/internal/spreadsheet"
)

// Stage names the diagnostics this package emits.
const Stage = "artifacts"

// ErrNoLayout is returned for a profile without artifact sheets.
var ErrNoLayout = errors.New("profile has no artifacts layout")

// Header names of the requirement and location sheets.
const (
	colCode            = "CODIGO"
	colRequirementName = "NOMBRE_REQUISITO"
	colDetail          = "DETALLE"
	colSiteName        = "NOMBRE_SEDE"
	colAddress         = "DIRECCION"
	colSchedule        = "HORARIO"
	colPhone           = "TELEFONO"
	colEmail           = "CORREO_ELECT"
	colNeighborhood    = "BARRIO"
	colDistrict        = "COMUNA"
	colSiteType        = "TIPO_SEDE"
	colState           = "ESTADO"
)

// Metadata sheets are read by position.
const (
	functionalWidth = 11
	technicalWidth  = 14
)

// Result is the parsed workbook.
type Result struct {
	Functional   []domain.FunctionalTerm
	Technical    []domain.TechnicalField
	Requirements []domain.Requirement
	Locations    []domain.Location
	Diagnostics  []domain.Diagnostic

	// Failures lists the sheets that could not be read. Their slices above
	// are empty; the other sheets are unaffected.
	Failures []*SheetError
}

// Err joins the sheet failures, or returns nil when every sheet was read.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// SheetError is an artifact sheet that is missing or lacks a column.
type SheetError struct {
	Sheet string
	Err   error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.Sheet, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// Reader parses artifact sheets with one profile.
type Reader struct {
	layout  *refdata.ArtifactSheets
	extra   []domain.Requirement
	cleaner *normalize.Cleaner
}

// NewReader creates a Reader, or fails when the profile has no artifacts.
func NewReader(profile *refdata.Profile) (*Reader, error) {
	if !profile.HasArtifacts() {
		return nil, fmt.Errorf("%w: %s", ErrNoLayout, profile.Version)
	}
	return &Reader{
		layout:  profile.Artifact,
		extra:   profile.ExtraRequirements,
		cleaner: normalize.NewCleaner(profile.Sentinels),
	}, nil
}

// Read parses every artifact sheet of wb independently. A missing sheet or
// header fails only that sheet and is listed in Result.Failures; the
// returned error joins those failures. Bad rows are dropped with a
// diagnostic.
func (r *Reader) Read(wb *spreadsheet.Workbook) (Result, error) {
	var res Result

	l := r.layout
	if t := r.sheet(&res, l.FunctionalMetadata, wb.FormattedSheet, l.FunctionalMetadata.KeyColumn); t != nil {
		res.Functional = r.functional(t, &res)
	}
	if t := r.sheet(&res, l.TechnicalMetadata, wb.FormattedSheet, l.TechnicalMetadata.KeyColumn); t != nil {
		res.Technical = r.technical(t, &res)
	}
	if t := r.sheet(&res, l.Requirements, wb.Sheet,
		r.keyColumn(l.Requirements), colRequirementName, colDetail); t != nil {
		res.Requirements = r.requirements(t, &res)
	}
	if t := r.sheet(&res, l.Locations, wb.Sheet,
		r.keyColumn(l.Locations), colSiteName, colAddress, colSchedule, colState); t != nil {
		res.Locations = r.locations(t, &res)
	}
	return res, res.Err()
}

type sheetReader func(name string, skipRows int) (*spreadsheet.Table, error)

// sheet reads one layout and checks its header. On failure it records a
// SheetError in res and returns nil.
func (r *Reader) sheet(res *Result, l refdata.SheetLayout, read sheetReader, columns ...string) *spreadsheet.Table {
	table, err := read(l.Sheet, l.SkipRows)
	if err == nil {
		if missing := table.Missing(columns); len(missing) > 0 {
			err = fmt.Errorf("missing columns %v", missing)
		}
	}
	if err != nil {
		res.Failures = append(res.Failures, &SheetError{Sheet: l.Sheet, Err: err})
		return nil
	}
	return table
}

func (r *Reader) keyColumn(l refdata.SheetLayout) string {
	if l.KeyColumn != "" {
		return l.KeyColumn
	}
	return colCode
}

// keyed yields rows whose key column is present and not yet seen.
func (r *Reader) keyed(table *spreadsheet.Table, keyColumn string, res *Result, fn func(key string, row spreadsheet.Row)) {
	seen := make(map[string]int, len(table.Rows))
	for _, row := range table.Rows {
		key, ok := r.cleaner.Clean(row.Get(keyColumn))
		if !ok {
			res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
				Stage: Stage, Code: domain.DiagMissingKey, Row: row.Number, Key: table.Sheet,
				Reason: fmt.Sprintf("row has no %s", keyColumn),
			})
			continue
		}
		if first, dup := seen[key]; dup {
			res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
				Stage: Stage, Code: domain.DiagDuplicateCode, Row: row.Number, Key: table.Sheet + "/" + key,
				Reason: fmt.Sprintf("%s already used by row %d", keyColumn, first),
			})
			continue
		}
		seen[key] = row.Number
		fn(key, row)
	}
}

func (r *Reader) functional(table *spreadsheet.Table, res *Result) []domain.FunctionalTerm {
	var terms []domain.FunctionalTerm
	r.keyed(table, r.layout.FunctionalMetadata.KeyColumn, res, func(key string, row spreadsheet.Row) {
		at := func(i int) *string { return r.cleaner.Ptr(row.At(i)) }
		terms = append(terms, domain.FunctionalTerm{
			ID:            key,
			Term:          at(1),
			Definition:    at(2),
			SourceField:   at(3),
			Examples:      at(4),
			Owner:         at(5),
			BusinessRules: at(6),
			Category:      at(7),
			UpdatedAt:     at(8),
			Version:       at(9),
			State:         at(functionalWidth - 1),
		})
	})
	return terms
}

func (r *Reader) technical(table *spreadsheet.Table, res *Result) []domain.TechnicalField {
	var fields []domain.TechnicalField
	r.keyed(table, r.layout.TechnicalMetadata.KeyColumn, res, func(key string, row spreadsheet.Row) {
		at := func(i int) *string { return r.cleaner.Ptr(row.At(i)) }
		fields = append(fields, domain.TechnicalField{
			ID:               key,
			Table:            at(1),
			Field:            at(2),
			DataType:         at(3),
			Length:           normalize.OptionalInt(row.At(4)),
			Nullable:         at(5),
			Key:              at(6),
			Default:          at(7),
			Description:      at(8),
			MatrixMapping:    at(9),
			FunctionalTermID: at(10),
			UpdatedAt:        at(11),
			Version:          at(12),
			State:            at(technicalWidth - 1),
		})
	})
	return fields
}

func (r *Reader) requirements(table *spreadsheet.Table, res *Result) []domain.Requirement {
	var reqs []domain.Requirement
	seen := make(map[string]struct{})
	r.keyed(table, r.keyColumn(r.layout.Requirements), res, func(key string, row spreadsheet.Row) {
		name, _ := r.cleaner.Clean(row.Get(colRequirementName))
		reqs = append(reqs, domain.Requirement{
			ID:     key,
			Code:   key,
			Name:   name,
			Detail: r.cleaner.Ptr(row.Get(colDetail)),
		})
		seen[key] = struct{}{}
	})
	for _, extra := range r.extra {
		if _, dup := seen[extra.Code]; dup {
			continue
		}
		reqs = append(reqs, extra)
	}
	return reqs
}

func (r *Reader) locations(table *spreadsheet.Table, res *Result) []domain.Location {
	var locs []domain.Location
	r.keyed(table, r.keyColumn(r.layout.Locations), res, func(key string, row spreadsheet.Row) {
		site, _ := r.cleaner.Clean(row.Get(colSiteName))
		state, _ := r.cleaner.Clean(row.Get(colState))
		schedule := r.cleaner.Ptr(row.Get(colSchedule))
		locs = append(locs, domain.Location{
			Code:            key,
			SiteName:        site,
			Address:         r.cleaner.Ptr(row.Get(colAddress)),
			Schedule:        schedule,
			GeneralSchedule: schedule,
			Phone:           r.cleaner.Ptr(row.Get(colPhone)),
			Email:           r.cleaner.Ptr(row.Get(colEmail)),
			Neighborhood:    r.cleaner.Ptr(row.Get(colNeighborhood)),
			District:        r.cleaner.Ptr(row.Get(colDistrict)),
			SiteType:        r.cleaner.Ptr(row.Get(colSiteType)),
			State:           state,
		})
	})
	return locs
}
