package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/infrastructure"
	"catalogo.cali.gov.co/etl/internal/testutil"
)

func newTestStore(t *testing.T, prefix string) (*CatalogStore, *pgxpool.Pool) {
	t.Helper()
	pool, schema := testutil.OpenPGXPool(t, prefix)
	_, err := pool.Exec(context.Background(), infrastructure.CatalogDDL(schema))
	require.NoError(t, err)
	return NewCatalogStore(pool, schema), pool
}

func strPtr(s string) *string { return &s }

func testStatic() StaticDimensions {
	return StaticDimensions{
		Domains: []domain.Domain{
			{Key: 1, Code: "DOM-001", Name: "Secretaría de Cultura", Abbreviation: "SC"},
			{Key: 2, Code: "DOM-002", Name: "Secretaría de Salud", Abbreviation: "SS"},
		},
		Areas: []domain.Area{
			{Key: 1, Code: "AREA-001", DomainKey: 1, Name: "Artes"},
			{Key: 2, Code: "AREA-002", DomainKey: 2, Name: "Salud Pública"},
		},
		Channels: []domain.Channel{{Code: "CAN-001", Name: "Presencial"}},
		Tools:    []domain.Tool{{Code: "TIC-001", Name: "Portal", URL: strPtr("https://www.cali.gov.co")}},
		Statuses: []domain.Status{{Code: "EST-001", Name: "Activo"}},
	}
}

func testArtifacts() ArtifactDimensions {
	length := int64(20)
	return ArtifactDimensions{
		Functional: []domain.FunctionalTerm{{ID: "TF-001", Term: strPtr("Servicio")}},
		Technical:  []domain.TechnicalField{{ID: "TC-001", Table: strPtr("fact_servicio"), Length: &length}},
		Requirements: []domain.Requirement{
			{ID: "R001", Code: "R001", Name: "Cédula", Detail: strPtr("Original")},
			{ID: "R002", Code: "R002", Name: "Formulario"},
		},
		Locations: []domain.Location{
			{Code: "UBI-001", SiteName: "CAM", Address: strPtr("Av 2N"), State: "Activo"},
		},
	}
}

func testServices() []domain.Service {
	return []domain.Service{
		{Code: "SRV-001", DomainKey: 1, AreaKey: 1, ToolKey: 1, StatusKey: 1, ChannelKey: 1, Name: "Préstamo de escenarios", MonthlyVolume: 10, SourceRow: 2},
		{Code: "SRV-002", DomainKey: 2, AreaKey: 2, ToolKey: 1, StatusKey: 1, ChannelKey: 1, Name: "Vacunación", SourceRow: 3},
	}
}

func countOf(t *testing.T, counts []TableCount, table string) int64 {
	t.Helper()
	for _, c := range counts {
		if c.Table == table {
			return c.Rows
		}
	}
	t.Fatalf("table %s missing from counts", table)
	return 0
}

func loadAll(t *testing.T, ctx context.Context, s *CatalogStore) {
	t.Helper()
	require.NoError(t, s.Reset(ctx))
	static, err := s.LoadStaticDimensions(ctx, testStatic())
	require.NoError(t, err)
	require.Empty(t, static.Failures)
	require.EqualValues(t, 7, static.Total())
	copied, err := s.LoadArtifactDimensions(ctx, testArtifacts())
	require.NoError(t, err)
	require.Empty(t, copied.Failures)
	require.EqualValues(t, 2, copied.Rows[TableRequirement])

	load, err := s.InsertServices(ctx, testServices(), true)
	require.NoError(t, err)
	require.Empty(t, load.Failures)

	locKeys, err := s.LocationKeys(ctx)
	require.NoError(t, err)
	reqKeys, err := s.RequirementKeys(ctx)
	require.NoError(t, err)

	_, err = s.LoadLinks(ctx,
		[]domain.ResolvedRequirementLink{
			{ServiceID: load.Keys["SRV-001"], RequirementID: reqKeys["R001"], ServiceCode: "SRV-001", RequirementCode: "R001", Mandatory: true, Order: 1},
			{ServiceID: load.Keys["SRV-001"], RequirementID: reqKeys["R002"], ServiceCode: "SRV-001", RequirementCode: "R002", Mandatory: true, Order: 2},
		},
		[]domain.ResolvedLocationLink{
			{ServiceID: load.Keys["SRV-002"], LocationID: locKeys["UBI-001"], ServiceCode: "SRV-002", Primary: true},
		},
	)
	require.NoError(t, err)
}

func TestCatalogStore_FullLoad(t *testing.T) {
	ctx := context.Background()
	s, pool := newTestStore(t, "store_full_load")

	loadAll(t, ctx, s)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, len(SummaryTables))
	require.EqualValues(t, 2, countOf(t, counts, TableService))
	require.EqualValues(t, 2, countOf(t, counts, TableDomain))
	require.EqualValues(t, 2, countOf(t, counts, TableServiceReq))
	require.EqualValues(t, 1, countOf(t, counts, TableServiceLoc))
	require.EqualValues(t, 1, countOf(t, counts, TableTechnicalMD))

	var order int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT orden_presentacion FROM rel_servicio_requisito WHERE codigo_requisito = 'R002'`).Scan(&order))
	require.Equal(t, 2, order)
}

func TestCatalogStore_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "store_rerun")

	loadAll(t, ctx, s)
	first, err := s.Counts(ctx)
	require.NoError(t, err)

	loadAll(t, ctx, s)
	second, err := s.Counts(ctx)
	require.NoError(t, err)

	require.Equal(t, first, second)

	keys, err := s.ServiceKeys(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, keys["SRV-001"], "identity restarts on reset")
}

func TestCatalogStore_InsertServicesIsolatesRowFailures(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "store_row_failure")

	require.NoError(t, s.Reset(ctx))
	_, err := s.LoadStaticDimensions(ctx, testStatic())
	require.NoError(t, err)

	services := testServices()
	bad := services[0]
	bad.Code = "SRV-BAD"
	bad.AreaKey = 99
	bad.SourceRow = 9
	services = append(services, bad)

	load, err := s.InsertServices(ctx, services, false)
	require.NoError(t, err)
	require.Equal(t, 2, load.Inserted)
	require.Nil(t, load.Keys)
	require.Len(t, load.Failures, 1)
	require.Equal(t, "SRV-BAD", load.Failures[0].Code)
	require.Equal(t, 9, load.Failures[0].Row)

	keys, err := s.ServiceKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Contains(t, keys, "SRV-002")
}

func TestCatalogStore_KeyDrift(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "store_key_drift")

	require.NoError(t, s.Reset(ctx))
	dims := testStatic()
	dims.Domains[0].Key = 5
	load, err := s.LoadStaticDimensions(ctx, dims)
	require.NoError(t, err)

	failed := make(map[string]error)
	for _, f := range load.Failures {
		failed[f.Table] = f.Err
	}
	require.ErrorIs(t, failed[TableDomain], ErrKeyDrift)
	require.Contains(t, failed, TableArea, "areas reference the rolled back domains")
	require.EqualValues(t, 1, load.Rows[TableChannel])

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, countOf(t, counts, TableDomain), "failed table is rolled back")
	require.Zero(t, countOf(t, counts, TableArea))
	require.EqualValues(t, 1, countOf(t, counts, TableChannel))
	require.EqualValues(t, 1, countOf(t, counts, TableTool))
	require.EqualValues(t, 1, countOf(t, counts, TableStatus))
}

func TestCatalogStore_ArtifactTablesLoadIndependently(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "store_artifact_tables")

	require.NoError(t, s.Reset(ctx))
	dims := testArtifacts()
	dims.Requirements = append(dims.Requirements, dims.Requirements[0])

	load, err := s.LoadArtifactDimensions(ctx, dims)
	require.NoError(t, err)
	require.Len(t, load.Failures, 1)
	require.Equal(t, TableRequirement, load.Failures[0].Table)
	require.NotContains(t, load.Rows, TableRequirement)
	require.EqualValues(t, 3, load.Total())

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, countOf(t, counts, TableRequirement))
	require.EqualValues(t, 1, countOf(t, counts, TableFunctionalMD))
	require.EqualValues(t, 1, countOf(t, counts, TableTechnicalMD))
	require.EqualValues(t, 1, countOf(t, counts, TableLocation))
}
