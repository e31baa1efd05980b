// Package domain contains the service catalog entities.
//
// Dimension rows come from reference data or the artifacts workbook; Service
// rows and links come from the services matrix. Links are keyed by natural
// codes until the fact load assigns surrogate ids.
//
// Import Path: catalogo.cali.gov.co/etl/internal/domain
package domain

// Domain is a top-level organizational unit (a secretariat).
type Domain struct {
	// Key is the surrogate id the row receives after an identity restart.
	Key          int      `yaml:"key"`
	Code         string   `yaml:"code"`
	Name         string   `yaml:"name"`
	Abbreviation string   `yaml:"abbreviation"`
	Aliases      []string `yaml:"aliases,omitempty"`
	// ServicePrefix builds generated service codes (PREFIX-NNN).
	ServicePrefix string `yaml:"service_prefix,omitempty"`
	// DefaultLocation is used when the matrix has no location column.
	DefaultLocation string `yaml:"default_location,omitempty"`
}

// Area is a sub-unit of a Domain.
type Area struct {
	Key       int      `yaml:"key"`
	Code      string   `yaml:"code"`
	DomainKey int      `yaml:"domain"`
	Name      string   `yaml:"name"`
	Aliases   []string `yaml:"aliases,omitempty"`
}

// Channel is a citizen contact channel.
type Channel struct {
	Code        string  `yaml:"code"`
	Name        string  `yaml:"name"`
	Description *string `yaml:"description,omitempty"`
}

// Tool is a supporting IT system.
type Tool struct {
	Code        string  `yaml:"code"`
	Name        string  `yaml:"name"`
	Description *string `yaml:"description,omitempty"`
	URL         *string `yaml:"url,omitempty"`
}

// Status is a service lifecycle state.
type Status struct {
	Code        string  `yaml:"code"`
	Name        string  `yaml:"name"`
	Description *string `yaml:"description,omitempty"`
}

// Location is a physical or virtual service point.
type Location struct {
	Code            string  `yaml:"code"`
	SiteName        string  `yaml:"site_name"`
	Address         *string `yaml:"address,omitempty"`
	Schedule        *string `yaml:"schedule,omitempty"`
	GeneralSchedule *string `yaml:"general_schedule,omitempty"`
	Phone           *string `yaml:"phone,omitempty"`
	Email           *string `yaml:"email,omitempty"`
	Neighborhood    *string `yaml:"neighborhood,omitempty"`
	District        *string `yaml:"district,omitempty"`
	SiteType        *string `yaml:"site_type,omitempty"`
	State           string  `yaml:"state"`
	DomainKey       *int    `yaml:"domain,omitempty"`
}

// Requirement is a documented prerequisite. ID and Code carry the same value.
type Requirement struct {
	ID          string  `yaml:"id"`
	Code        string  `yaml:"code"`
	Name        string  `yaml:"name"`
	Detail      *string `yaml:"detail,omitempty"`
	SupportType *string `yaml:"support_type,omitempty"`
	Category    *string `yaml:"category,omitempty"`
}

// FunctionalTerm is a business-glossary entry.
type FunctionalTerm struct {
	ID            string
	Term          *string
	Definition    *string
	SourceField   *string
	Examples      *string
	Owner         *string
	BusinessRules *string
	Category      *string
	UpdatedAt     *string
	Version       *string
	State         *string
}

// TechnicalField is a technical data-dictionary entry.
type TechnicalField struct {
	ID               string
	Table            *string
	Field            *string
	DataType         *string
	Length           *int64
	Nullable         *string
	Key              *string
	Default          *string
	Description      *string
	MatrixMapping    *string
	FunctionalTermID *string
	UpdatedAt        *string
	Version          *string
	State            *string
}

// Service is one fact row.
type Service struct {
	Code             string
	DomainKey        int
	AreaKey          int
	ToolKey          int
	StatusKey        int
	ChannelKey       int
	Name             string
	Description      *string
	Purpose          *string
	Audience         *string
	ExpectedResponse *string
	ResponseTime     *string
	LegalBasis       *string
	CostInfo         *string
	ProcedureDocs    *string
	MonthlyVolume    int64

	// SourceRow is the 1-based spreadsheet row the service came from.
	SourceRow int
}

// RequirementLink is a provisional service↔requirement row keyed by codes.
type RequirementLink struct {
	ServiceCode     string
	RequirementCode string
	Mandatory       bool
	Order           int
	SourceRow       int
}

// LocationLink is a provisional service↔location row keyed by codes.
type LocationLink struct {
	ServiceCode  string
	LocationCode string
	Primary      bool
	SourceRow    int
}

// ResolvedRequirementLink is ready for rel_servicio_requisito.
type ResolvedRequirementLink struct {
	ServiceID       int64
	RequirementID   string
	ServiceCode     string
	RequirementCode string
	Mandatory       bool
	Order           int
}

// ResolvedLocationLink is ready for rel_servicio_ubicacion.
type ResolvedLocationLink struct {
	ServiceID   int64
	LocationID  int64
	ServiceCode string
	Primary     bool
}
