package pipeline

import (
	"context"
	"fmt"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/repository"
)

// memStore is an in-memory Store with the constraints the pipeline relies
// on: identities restart on reset, natural keys are unique, fact foreign
// keys must exist, and every method is all-or-nothing.
type memStore struct {
	domains, areas, channels, tools, statuses int
	functional, technical                     int

	requirements map[string]string
	locations    map[string]int64
	nextLocation int64

	services    map[string]int64
	nextService int64

	reqLinks map[[2]string]domain.ResolvedRequirementLink
	locLinks map[string]domain.ResolvedLocationLink

	// Injected failures, keyed by stage ("static", "facts", ...) or by
	// "<stage>:<table>" for a single dimension table.
	fail        map[string]error
	rejectCodes map[string]bool
	resets      int
}

func newMemStore() *memStore {
	m := &memStore{fail: map[string]error{}, rejectCodes: map[string]bool{}}
	m.clear()
	return m
}

func (m *memStore) clear() {
	m.domains, m.areas, m.channels, m.tools, m.statuses = 0, 0, 0, 0, 0
	m.functional, m.technical = 0, 0
	m.requirements = map[string]string{}
	m.locations = map[string]int64{}
	m.nextLocation = 0
	m.services = map[string]int64{}
	m.nextService = 0
	m.reqLinks = map[[2]string]domain.ResolvedRequirementLink{}
	m.locLinks = map[string]domain.ResolvedLocationLink{}
}

func (m *memStore) Reset(context.Context) error {
	if err := m.fail["reset"]; err != nil {
		return err
	}
	m.resets++
	m.clear()
	return nil
}

// loadTables applies each table unless a failure is injected for
// "<stage>:<table>" or its rows break a constraint, mirroring the per-table
// savepoints of the real store.
func (m *memStore) loadTables(stage string, tables []memTable) repository.DimensionLoad {
	load := repository.DimensionLoad{Rows: map[string]int64{}}
	for _, t := range tables {
		err := m.fail[stage+":"+t.name]
		if err == nil && t.check != nil {
			err = t.check()
		}
		if err != nil {
			load.Failures = append(load.Failures, repository.TableFailure{Table: t.name, Err: err})
			continue
		}
		t.apply()
		load.Rows[t.name] = int64(t.rows)
	}
	return load
}

type memTable struct {
	name  string
	rows  int
	check func() error
	apply func()
}

func (m *memStore) LoadStaticDimensions(_ context.Context, dims repository.StaticDimensions) (repository.DimensionLoad, error) {
	if err := m.fail["static"]; err != nil {
		return repository.DimensionLoad{}, err
	}
	tables := []memTable{
		{name: repository.TableDomain, rows: len(dims.Domains),
			check: func() error {
				for i, d := range dims.Domains {
					if d.Key != m.domains+i+1 {
						return fmt.Errorf("domain %s: %w", d.Code, repository.ErrKeyDrift)
					}
				}
				return nil
			},
			apply: func() { m.domains += len(dims.Domains) }},
		{name: repository.TableArea, rows: len(dims.Areas),
			check: func() error {
				for _, a := range dims.Areas {
					if a.DomainKey < 1 || a.DomainKey > m.domains {
						return fmt.Errorf("area %s: foreign key violation", a.Code)
					}
				}
				return nil
			},
			apply: func() { m.areas += len(dims.Areas) }},
		{name: repository.TableChannel, rows: len(dims.Channels), apply: func() { m.channels += len(dims.Channels) }},
		{name: repository.TableTool, rows: len(dims.Tools), apply: func() { m.tools += len(dims.Tools) }},
		{name: repository.TableStatus, rows: len(dims.Statuses), apply: func() { m.statuses += len(dims.Statuses) }},
	}
	if len(dims.Requirements) > 0 {
		tables = append(tables, m.requirementTable(dims.Requirements))
	}
	if len(dims.Locations) > 0 {
		tables = append(tables, m.locationTable(dims.Locations))
	}
	return m.loadTables("static", tables), nil
}

func (m *memStore) LoadArtifactDimensions(_ context.Context, dims repository.ArtifactDimensions) (repository.DimensionLoad, error) {
	if err := m.fail["artifacts"]; err != nil {
		return repository.DimensionLoad{}, err
	}
	return m.loadTables("artifacts", []memTable{
		{name: repository.TableFunctionalMD, rows: len(dims.Functional), apply: func() { m.functional += len(dims.Functional) }},
		{name: repository.TableTechnicalMD, rows: len(dims.Technical), apply: func() { m.technical += len(dims.Technical) }},
		m.requirementTable(dims.Requirements),
		m.locationTable(dims.Locations),
	}), nil
}

func (m *memStore) requirementTable(reqs []domain.Requirement) memTable {
	return memTable{
		name:  repository.TableRequirement,
		rows:  len(reqs),
		check: func() error {
			seen := map[string]bool{}
			for _, r := range reqs {
				if _, dup := m.requirements[r.Code]; dup || seen[r.Code] {
					return fmt.Errorf("duplicate requirement %s", r.Code)
				}
				seen[r.Code] = true
			}
			return nil
		},
		apply: func() {
			for _, r := range reqs {
				id := r.ID
				if id == "" {
					id = r.Code
				}
				m.requirements[r.Code] = id
			}
		},
	}
}

func (m *memStore) locationTable(locs []domain.Location) memTable {
	return memTable{
		name:  repository.TableLocation,
		rows:  len(locs),
		check: func() error {
			seen := map[string]bool{}
			for _, l := range locs {
				if _, dup := m.locations[l.Code]; dup || seen[l.Code] {
					return fmt.Errorf("duplicate location %s", l.Code)
				}
				seen[l.Code] = true
			}
			return nil
		},
		apply: func() {
			for _, l := range locs {
				m.nextLocation++
				m.locations[l.Code] = m.nextLocation
			}
		},
	}
}

func (m *memStore) InsertServices(_ context.Context, services []domain.Service, returning bool) (repository.ServiceLoad, error) {
	if err := m.fail["facts"]; err != nil {
		return repository.ServiceLoad{}, err
	}
	load := repository.ServiceLoad{}
	if returning {
		load.Keys = map[string]int64{}
	}
	for _, s := range services {
		var err error
		switch {
		case m.rejectCodes[s.Code]:
			err = fmt.Errorf("rejected %s", s.Code)
		case s.DomainKey < 1 || s.DomainKey > m.domains, s.AreaKey < 1 || s.AreaKey > m.areas:
			err = fmt.Errorf("foreign key violation for %s", s.Code)
		default:
			if _, dup := m.services[s.Code]; dup {
				err = fmt.Errorf("duplicate key codigo_servicio %s", s.Code)
			}
		}
		if err != nil {
			load.Failures = append(load.Failures, repository.RowFailure{Row: s.SourceRow, Code: s.Code, Err: err})
			continue
		}
		m.nextService++
		m.services[s.Code] = m.nextService
		load.Inserted++
		if returning {
			load.Keys[s.Code] = m.nextService
		}
	}
	return load, nil
}

func (m *memStore) ServiceKeys(context.Context) (map[string]int64, error) {
	if err := m.fail["service_keys"]; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(m.services))
	for k, v := range m.services {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) LocationKeys(context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(m.locations))
	for k, v := range m.locations {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) RequirementKeys(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.requirements))
	for k, v := range m.requirements {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) LoadLinks(_ context.Context, reqs []domain.ResolvedRequirementLink, locs []domain.ResolvedLocationLink) (repository.LinkLoad, error) {
	if err := m.fail["links"]; err != nil {
		return repository.LinkLoad{}, err
	}
	newReqs := map[[2]string]domain.ResolvedRequirementLink{}
	for _, l := range reqs {
		k := [2]string{fmt.Sprint(l.ServiceID), l.RequirementID}
		if _, dup := m.reqLinks[k]; dup {
			return repository.LinkLoad{}, fmt.Errorf("duplicate requirement link %v", k)
		}
		if _, dup := newReqs[k]; dup {
			return repository.LinkLoad{}, fmt.Errorf("duplicate requirement link %v", k)
		}
		newReqs[k] = l
	}
	newLocs := map[string]domain.ResolvedLocationLink{}
	for _, l := range locs {
		k := fmt.Sprintf("%d/%d", l.ServiceID, l.LocationID)
		if _, dup := m.locLinks[k]; dup {
			return repository.LinkLoad{}, fmt.Errorf("duplicate location link %s", k)
		}
		if _, dup := newLocs[k]; dup {
			return repository.LinkLoad{}, fmt.Errorf("duplicate location link %s", k)
		}
		newLocs[k] = l
	}
	for k, v := range newReqs {
		m.reqLinks[k] = v
	}
	for k, v := range newLocs {
		m.locLinks[k] = v
	}
	return repository.LinkLoad{Requirements: int64(len(reqs)), Locations: int64(len(locs))}, nil
}

func (m *memStore) Counts(context.Context) ([]repository.TableCount, error) {
	rows := map[string]int64{
		repository.TableService:      int64(len(m.services)),
		repository.TableDomain:       int64(m.domains),
		repository.TableArea:         int64(m.areas),
		repository.TableChannel:      int64(m.channels),
		repository.TableTool:         int64(m.tools),
		repository.TableStatus:       int64(m.statuses),
		repository.TableRequirement:  int64(len(m.requirements)),
		repository.TableLocation:     int64(len(m.locations)),
		repository.TableServiceReq:   int64(len(m.reqLinks)),
		repository.TableServiceLoc:   int64(len(m.locLinks)),
		repository.TableFunctionalMD: int64(m.functional),
		repository.TableTechnicalMD:  int64(m.technical),
	}
	counts := make([]repository.TableCount, 0, len(repository.SummaryTables))
	for _, t := range repository.SummaryTables {
		counts = append(counts, repository.TableCount{Table: t.Table, Label: t.Label, Rows: rows[t.Table]})
	}
	return counts, nil
}

// requirementOrder returns the presentation order of a stored link.
func (m *memStore) requirementOrder(serviceCode, reqCode string) (int, bool) {
	for _, l := range m.reqLinks {
		if l.ServiceCode == serviceCode && l.RequirementCode == reqCode {
			return l.Order, true
		}
	}
	return 0, false
}
