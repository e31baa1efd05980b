// Package transform maps services-matrix rows to fact rows and provisional
// relationship rows keyed by natural codes.
//
// Import Path: catalogo.cali.gov.co/etl/internal/transform
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/normalize"
	"catalogo.cali.gov.co/etl/internal/refdata"
	"catalogo.cali.gov.co/etl/internal/spreadsheet"
)

// Stage names the diagnostics this package emits.
const Stage = "transform"

// Result is everything derived from the matrix.
type Result struct {
	Services         []domain.Service
	RequirementLinks []domain.RequirementLink
	LocationLinks    []domain.LocationLink
	Diagnostics      []domain.Diagnostic
}

// Transformer converts matrix rows using one reference profile.
type Transformer struct {
	profile *refdata.Profile
	cleaner *normalize.Cleaner
	domains *refdata.Resolver
	areas   *refdata.Resolver
}

// New creates a Transformer for profile.
func New(profile *refdata.Profile) *Transformer {
	return &Transformer{
		profile: profile,
		cleaner: normalize.NewCleaner(profile.Sentinels),
		domains: profile.DomainResolver(),
		areas:   profile.AreaResolver(),
	}
}

// Transform walks the matrix in row order. Rows without a service code or
// name are skipped, and so is any row repeating an earlier code. Names that
// map to no domain or area fall back to the profile defaults and are
// reported.
func (t *Transformer) Transform(table *spreadsheet.Table) Result {
	var res Result
	seen := make(map[string]int, len(table.Rows))

	for _, row := range table.Rows {
		svc, ok := t.service(row, seen, &res)
		if !ok {
			continue
		}
		seen[svc.Code] = row.Number

		res.Services = append(res.Services, svc)
		res.RequirementLinks = append(res.RequirementLinks, t.requirementLinks(row, svc.Code, &res)...)
		res.LocationLinks = append(res.LocationLinks, t.locationLinks(row, svc, &res)...)
	}
	return res
}

func (t *Transformer) service(row spreadsheet.Row, seen map[string]int, res *Result) (domain.Service, bool) {
	cols := t.profile.Matrix.Columns
	skip := func(code, key, reason string) (domain.Service, bool) {
		res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
			Stage: Stage, Code: code, Row: row.Number, Key: key, Reason: reason,
		})
		return domain.Service{}, false
	}

	org, _ := t.cleaner.Clean(row.Get(cols.Organization))
	domainKey, domainOK := t.domains.Resolve(org)

	code, ok := t.serviceCode(row, domainKey, domainOK)
	if !ok {
		return skip(domain.DiagMissingCode, "", "row has no service code")
	}
	name, ok := t.cleaner.Clean(row.Get(cols.Name))
	if !ok {
		return skip(domain.DiagMissingName, code, "row has no service name")
	}
	if first, dup := seen[code]; dup {
		return skip(domain.DiagDuplicateCode, code, fmt.Sprintf("service code already used by row %d", first))
	}

	if !domainOK {
		res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
			Stage: Stage, Code: domain.DiagUnmappedDomain, Row: row.Number, Key: code,
			Reason: fmt.Sprintf("organization %q mapped to fallback domain %d", org, domainKey),
		})
	}

	areaName, _ := t.cleaner.Clean(row.Get(cols.Area))
	areaKey, areaOK := t.areas.Resolve(areaName)
	if !areaOK {
		res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
			Stage: Stage, Code: domain.DiagUnmappedArea, Row: row.Number, Key: code,
			Reason: fmt.Sprintf("area %q mapped to fallback area %d", areaName, areaKey),
		})
	}

	volumeText, _ := t.cleaner.Clean(row.Get(cols.Volume))
	volume, ok := normalize.Volume(volumeText)
	if !ok {
		res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
			Stage: Stage, Code: domain.DiagVolumeDefaulted, Row: row.Number, Key: code,
			Reason: fmt.Sprintf("monthly volume %q is not a whole number, stored as 0", volumeText),
		})
	}

	d := t.profile.Defaults
	return domain.Service{
		Code:             code,
		DomainKey:        domainKey,
		AreaKey:          areaKey,
		ToolKey:          d.Tool,
		StatusKey:        d.Status,
		ChannelKey:       d.Channel,
		Name:             name,
		Description:      t.cleaner.Ptr(row.Get(cols.Description)),
		Purpose:          t.cleaner.Ptr(row.Get(cols.Purpose)),
		Audience:         t.cleaner.Ptr(row.Get(cols.Audience)),
		ExpectedResponse: t.cleaner.Ptr(row.Get(cols.ExpectedResponse)),
		ResponseTime:     t.cleaner.Ptr(row.Get(cols.ResponseTime)),
		LegalBasis:       t.cleaner.Ptr(row.Get(cols.LegalBasis)),
		CostInfo:         t.cleaner.Ptr(row.Get(cols.CostInfo)),
		ProcedureDocs:    t.cleaner.Ptr(row.Get(cols.ProcedureDocs)),
		MonthlyVolume:    volume,
		SourceRow:        row.Number,
	}, true
}

// serviceCode reads the code column, or builds PREFIX-NNN from the service
// number when the matrix has no code column.
func (t *Transformer) serviceCode(row spreadsheet.Row, domainKey int, domainOK bool) (string, bool) {
	cols := t.profile.Matrix.Columns
	if cols.ServiceCode != "" {
		return t.cleaner.Clean(row.Get(cols.ServiceCode))
	}

	num, ok := t.cleaner.Clean(row.Get(cols.ServiceNumber))
	if !ok {
		return "", false
	}
	prefix := t.profile.Fallback.ServicePrefix
	if domainOK {
		if d, found := t.profile.Domain(domainKey); found && d.ServicePrefix != "" {
			prefix = d.ServicePrefix
		}
	}
	return prefix + "-" + padNumber(num), true
}

// padNumber zero-pads a service number to three digits. Whole floats such
// as "7.0" are written as integers.
func padNumber(num string) string {
	if f, err := strconv.ParseFloat(num, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		if f >= 0 {
			return fmt.Sprintf("%03d", int64(f))
		}
	}
	if len(num) >= 3 {
		return num
	}
	return strings.Repeat("0", 3-len(num)) + num
}

func (t *Transformer) requirementLinks(row spreadsheet.Row, serviceCode string, res *Result) []domain.RequirementLink {
	col := t.profile.Matrix.Columns.Requirements
	if col == "" {
		return nil
	}
	raw, ok := t.cleaner.Clean(row.Get(col))
	if !ok {
		return nil
	}

	codes := dedupe(normalize.SplitCodes(raw), row.Number, serviceCode, res)
	links := make([]domain.RequirementLink, 0, len(codes))
	for i, code := range codes {
		links = append(links, domain.RequirementLink{
			ServiceCode:     serviceCode,
			RequirementCode: code,
			Mandatory:       true,
			Order:           i + 1,
			SourceRow:       row.Number,
		})
	}
	return links
}

func (t *Transformer) locationLinks(row spreadsheet.Row, svc domain.Service, res *Result) []domain.LocationLink {
	var codes []string
	if col := t.profile.Matrix.Columns.Locations; col != "" {
		if raw, ok := t.cleaner.Clean(row.Get(col)); ok {
			codes = dedupe(normalize.SplitCodes(raw), row.Number, svc.Code, res)
		}
	} else if code := t.defaultLocation(svc.DomainKey); code != "" {
		codes = []string{code}
	}

	links := make([]domain.LocationLink, 0, len(codes))
	for _, code := range codes {
		links = append(links, domain.LocationLink{
			ServiceCode:  svc.Code,
			LocationCode: code,
			Primary:      true,
			SourceRow:    row.Number,
		})
	}
	return links
}

func (t *Transformer) defaultLocation(domainKey int) string {
	if d, ok := t.profile.Domain(domainKey); ok && d.DefaultLocation != "" {
		return d.DefaultLocation
	}
	return t.profile.Fallback.Location
}

// dedupe keeps the first occurrence of each code in a cell.
func dedupe(codes []string, rowNum int, serviceCode string, res *Result) []string {
	seen := make(map[string]struct{}, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			res.Diagnostics = append(res.Diagnostics, domain.Diagnostic{
				Stage: Stage, Code: domain.DiagDuplicateLink, Row: rowNum, Key: serviceCode + "/" + c,
				Reason: "code listed more than once in the same cell",
			})
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
