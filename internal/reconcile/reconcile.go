// Package reconcile joins provisional links, keyed by natural codes, with the
// surrogate keys the database assigned.
//
// Links whose service or target code has no persisted key are excluded from
// the result and reported, never silently lost.
//
// Import Path: catalogo.cali.gov.co/etl/internal/reconcile
package reconcile

import (
	"fmt"

	"catalogo.cali.gov.co/etl/internal/domain"
)

// Stage names the diagnostics this package emits.
const Stage = "links"

// Keys holds the persisted natural-key → surrogate-key maps.
type Keys struct {
	Services     map[string]int64
	Requirements map[string]string
	Locations    map[string]int64
}

// Result is the outcome of one reconciliation.
type Result struct {
	Requirements []domain.ResolvedRequirementLink
	Locations    []domain.ResolvedLocationLink

	DroppedRequirements int
	DroppedLocations    int
	Diagnostics         []domain.Diagnostic
}

// Dropped is the total number of excluded links.
func (r Result) Dropped() int {
	return r.DroppedRequirements + r.DroppedLocations
}

// Links resolves both link sets against keys, preserving input order.
func Links(reqs []domain.RequirementLink, locs []domain.LocationLink, keys Keys) Result {
	var res Result

	for _, l := range reqs {
		serviceID, ok := keys.Services[l.ServiceCode]
		if !ok {
			res.DroppedRequirements++
			res.drop(domain.DiagUnmatchedService, l.SourceRow, l.ServiceCode+"/"+l.RequirementCode,
				fmt.Sprintf("service %s was not persisted", l.ServiceCode))
			continue
		}
		reqID, ok := keys.Requirements[l.RequirementCode]
		if !ok {
			res.DroppedRequirements++
			res.drop(domain.DiagUnknownRequirement, l.SourceRow, l.ServiceCode+"/"+l.RequirementCode,
				fmt.Sprintf("requirement %s is not in %s", l.RequirementCode, "dim_requisito"))
			continue
		}
		res.Requirements = append(res.Requirements, domain.ResolvedRequirementLink{
			ServiceID:       serviceID,
			RequirementID:   reqID,
			ServiceCode:     l.ServiceCode,
			RequirementCode: l.RequirementCode,
			Mandatory:       l.Mandatory,
			Order:           l.Order,
		})
	}

	for _, l := range locs {
		serviceID, ok := keys.Services[l.ServiceCode]
		if !ok {
			res.DroppedLocations++
			res.drop(domain.DiagUnmatchedService, l.SourceRow, l.ServiceCode+"/"+l.LocationCode,
				fmt.Sprintf("service %s was not persisted", l.ServiceCode))
			continue
		}
		locID, ok := keys.Locations[l.LocationCode]
		if !ok {
			res.DroppedLocations++
			res.drop(domain.DiagUnknownLocation, l.SourceRow, l.ServiceCode+"/"+l.LocationCode,
				fmt.Sprintf("location %s is not in %s", l.LocationCode, "dim_ubicacion"))
			continue
		}
		res.Locations = append(res.Locations, domain.ResolvedLocationLink{
			ServiceID:   serviceID,
			LocationID:  locID,
			ServiceCode: l.ServiceCode,
			Primary:     l.Primary,
		})
	}
	return res
}

func (r *Result) drop(code string, row int, key, reason string) {
	r.Diagnostics = append(r.Diagnostics, domain.Diagnostic{
		Stage: Stage, Code: code, Row: row, Key: key, Reason: reason,
	})
}
