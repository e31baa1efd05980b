// Package refdata loads the versioned reference-data profiles that drive a
// catalog load: static dimensions, name-to-key mappings, fallbacks and the
// spreadsheet layouts.
//
// Embedded profiles ship with the binary; operators can point
// reference.path at an edited copy without a rebuild.
//
// Import Path: catalogo.cali.gov.co/etl/internal/refdata
package refdata

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"catalogo.cali.gov.co/etl/internal/domain"
)

//go:embed profiles/*.yaml
var embedded embed.FS

// ErrUnknownProfile is returned for a profile name with no embedded file.
var ErrUnknownProfile = errors.New("unknown reference profile")

// Profile is one version of the catalog reference data.
type Profile struct {
	Version   string   `yaml:"version"`
	Title     string   `yaml:"title"`
	Sentinels []string `yaml:"sentinels"`

	Domains  []domain.Domain  `yaml:"domains"`
	Areas    []domain.Area    `yaml:"areas"`
	Channels []domain.Channel `yaml:"channels"`
	Tools    []domain.Tool    `yaml:"tools"`
	Statuses []domain.Status  `yaml:"statuses"`

	// Inline dimensions, for profiles without an artifacts workbook.
	Requirements []domain.Requirement `yaml:"requirements,omitempty"`
	Locations    []domain.Location    `yaml:"locations,omitempty"`

	// ExtraRequirements are appended after the artifacts requirement sheet.
	ExtraRequirements []domain.Requirement `yaml:"extra_requirements,omitempty"`

	Fallback Fallback        `yaml:"fallback"`
	Defaults Defaults        `yaml:"defaults"`
	Matrix   MatrixLayout    `yaml:"matrix"`
	Artifact *ArtifactSheets `yaml:"artifacts,omitempty"`
}

// Fallback holds the keys used when the matrix text matches nothing.
type Fallback struct {
	Domain        int    `yaml:"domain"`
	Area          int    `yaml:"area"`
	ServicePrefix string `yaml:"service_prefix,omitempty"`
	Location      string `yaml:"location,omitempty"`
}

// Defaults are the fact keys the matrix has no column for.
type Defaults struct {
	Tool    int `yaml:"tool"`
	Status  int `yaml:"status"`
	Channel int `yaml:"channel"`
}

// MatrixLayout describes the services matrix sheet.
type MatrixLayout struct {
	Sheet           string        `yaml:"sheet"`
	SkipRows        int           `yaml:"skip_rows"`
	RequiredColumns []string      `yaml:"required_columns"`
	Columns         MatrixColumns `yaml:"columns"`
}

// MatrixColumns names the header of each source column. Empty means the
// column does not exist in this matrix version.
type MatrixColumns struct {
	ServiceCode      string `yaml:"service_code,omitempty"`
	ServiceNumber    string `yaml:"service_number,omitempty"`
	Name             string `yaml:"name"`
	Organization     string `yaml:"organization"`
	Area             string `yaml:"area"`
	Description      string `yaml:"description,omitempty"`
	Purpose          string `yaml:"purpose,omitempty"`
	Audience         string `yaml:"audience,omitempty"`
	ExpectedResponse string `yaml:"expected_response,omitempty"`
	ResponseTime     string `yaml:"response_time,omitempty"`
	LegalBasis       string `yaml:"legal_basis,omitempty"`
	CostInfo         string `yaml:"cost_info,omitempty"`
	ProcedureDocs    string `yaml:"procedure_docs,omitempty"`
	Volume           string `yaml:"volume,omitempty"`
	Requirements     string `yaml:"requirements,omitempty"`
	Locations        string `yaml:"locations,omitempty"`
}

// ArtifactSheets locates the sheets of the artifacts workbook.
type ArtifactSheets struct {
	FunctionalMetadata SheetLayout `yaml:"functional_metadata"`
	TechnicalMetadata  SheetLayout `yaml:"technical_metadata"`
	Requirements       SheetLayout `yaml:"requirements"`
	Locations          SheetLayout `yaml:"locations"`
}

// SheetLayout is a named sheet whose header sits after SkipRows banner rows.
type SheetLayout struct {
	Sheet     string `yaml:"sheet"`
	SkipRows  int    `yaml:"skip_rows"`
	KeyColumn string `yaml:"key_column"`
}

// Available lists the embedded profile names.
func Available() []string {
	entries, err := embedded.ReadDir("profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load returns the embedded profile with the given name.
func Load(name string) (*Profile, error) {
	data, err := embedded.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProfile, name, strings.Join(Available(), ", "))
	}
	return Parse(data)
}

// LoadFile reads a profile from disk.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a profile document.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode reference profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate reference profile %q: %w", p.Version, err)
	}
	return &p, nil
}

// Validate checks the invariants the loader relies on.
func (p *Profile) Validate() error {
	if p.Version == "" {
		return errors.New("version must not be empty")
	}
	if len(p.Domains) == 0 || len(p.Areas) == 0 {
		return errors.New("domains and areas must not be empty")
	}
	// Identity restart numbers rows in insertion order.
	for i, d := range p.Domains {
		if d.Key != i+1 {
			return fmt.Errorf("domain %q has key %d, want %d", d.Code, d.Key, i+1)
		}
	}
	for i, a := range p.Areas {
		if a.Key != i+1 {
			return fmt.Errorf("area %q has key %d, want %d", a.Code, a.Key, i+1)
		}
		if a.DomainKey < 1 || a.DomainKey > len(p.Domains) {
			return fmt.Errorf("area %q references unknown domain %d", a.Code, a.DomainKey)
		}
	}
	if err := inRange("fallback.domain", p.Fallback.Domain, len(p.Domains)); err != nil {
		return err
	}
	if err := inRange("fallback.area", p.Fallback.Area, len(p.Areas)); err != nil {
		return err
	}
	if err := inRange("defaults.tool", p.Defaults.Tool, len(p.Tools)); err != nil {
		return err
	}
	if err := inRange("defaults.status", p.Defaults.Status, len(p.Statuses)); err != nil {
		return err
	}
	if err := inRange("defaults.channel", p.Defaults.Channel, len(p.Channels)); err != nil {
		return err
	}

	if err := uniqueCodes("domain", len(p.Domains), func(i int) string { return p.Domains[i].Code }); err != nil {
		return err
	}
	if err := uniqueCodes("area", len(p.Areas), func(i int) string { return p.Areas[i].Code }); err != nil {
		return err
	}
	if err := uniqueCodes("channel", len(p.Channels), func(i int) string { return p.Channels[i].Code }); err != nil {
		return err
	}
	if err := uniqueCodes("tool", len(p.Tools), func(i int) string { return p.Tools[i].Code }); err != nil {
		return err
	}
	if err := uniqueCodes("status", len(p.Statuses), func(i int) string { return p.Statuses[i].Code }); err != nil {
		return err
	}
	reqs := append(append([]domain.Requirement{}, p.Requirements...), p.ExtraRequirements...)
	if err := uniqueCodes("requirement", len(reqs), func(i int) string { return reqs[i].Code }); err != nil {
		return err
	}
	if err := uniqueCodes("location", len(p.Locations), func(i int) string { return p.Locations[i].Code }); err != nil {
		return err
	}

	cols := p.Matrix.Columns
	if cols.Name == "" {
		return errors.New("matrix.columns.name must be set")
	}
	if cols.ServiceCode == "" && cols.ServiceNumber == "" {
		return errors.New("matrix.columns needs service_code or service_number")
	}
	if p.Matrix.SkipRows < 0 {
		return errors.New("matrix.skip_rows must not be negative")
	}
	return nil
}

// HasArtifacts reports whether requirements and locations come from the
// artifacts workbook.
func (p *Profile) HasArtifacts() bool {
	return p.Artifact != nil
}

// DomainResolver maps organization names to domain keys.
func (p *Profile) DomainResolver() *Resolver {
	entries := make([]Entry, 0, len(p.Domains))
	for _, d := range p.Domains {
		entries = append(entries, Entry{Key: d.Key, Names: append([]string{d.Name}, d.Aliases...)})
	}
	return NewResolver(entries, p.Fallback.Domain)
}

// AreaResolver maps area names to area keys.
func (p *Profile) AreaResolver() *Resolver {
	entries := make([]Entry, 0, len(p.Areas))
	for _, a := range p.Areas {
		entries = append(entries, Entry{Key: a.Key, Names: append([]string{a.Name}, a.Aliases...)})
	}
	return NewResolver(entries, p.Fallback.Area)
}

// Domain returns the domain with the given key.
func (p *Profile) Domain(key int) (domain.Domain, bool) {
	if key < 1 || key > len(p.Domains) {
		return domain.Domain{}, false
	}
	return p.Domains[key-1], true
}

func inRange(field string, v, n int) error {
	if v < 1 || v > n {
		return fmt.Errorf("%s = %d is outside 1..%d", field, v, n)
	}
	return nil
}

func uniqueCodes(kind string, n int, code func(int) string) error {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		c := code(i)
		if c == "" {
			return fmt.Errorf("%s #%d has an empty code", kind, i+1)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate %s code %q", kind, c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
