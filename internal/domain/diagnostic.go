package domain

import "fmt"

// Diagnostic codes. Each one is a row or link that was dropped, defaulted or
// failed without stopping the run.
const (
	DiagMissingCode        = "missing_code"
	DiagMissingName        = "missing_name"
	DiagMissingKey         = "missing_key"
	DiagDuplicateCode      = "duplicate_code"
	DiagDuplicateLink      = "duplicate_link"
	DiagUnmappedDomain     = "unmapped_domain"
	DiagUnmappedArea       = "unmapped_area"
	DiagVolumeDefaulted    = "volume_defaulted"
	DiagUnmatchedService   = "unmatched_service"
	DiagUnknownRequirement = "unknown_requirement"
	DiagUnknownLocation    = "unknown_location"
	DiagRowFailed          = "row_failed"
	DiagStageFailed        = "stage_failed"
)

// Diagnostic records one data-quality event.
type Diagnostic struct {
	Stage string `json:"stage"`
	Code  string `json:"code"`
	// Row is the 1-based sheet row, 0 when the event is not tied to a row.
	Row int `json:"row,omitempty"`
	// Key is the natural key involved (service code, link pair, table).
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// String renders the diagnostic for logs and the summary.
func (d Diagnostic) String() string {
	s := d.Stage + "/" + d.Code
	if d.Row > 0 {
		s += fmt.Sprintf(" row %d", d.Row)
	}
	if d.Key != "" {
		s += " [" + d.Key + "]"
	}
	return s + ": " + d.Reason
}
