// Package repository persists the catalog star schema with pgx.
//
// Every public method runs in its own transaction, so a method's writes are
// committed and visible before it returns. Dimension tables and fact rows
// load under savepoints so one bad table or row does not roll back the rest. Table names are qualified with
// the configured schema.
//
// Import Path: catalogo.cali.gov.co/etl/internal/repository
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalogo.cali.gov.co/etl/internal/domain"
)

// ErrKeyDrift means a dimension row did not receive the surrogate id the
// reference data expects, usually because the identity was not restarted.
var ErrKeyDrift = errors.New("dimension key drift")

// CatalogStore reads and writes the catalog tables.
type CatalogStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewCatalogStore creates a store for the tables in schema.
func NewCatalogStore(pool *pgxpool.Pool, schema string) *CatalogStore {
	return &CatalogStore{pool: pool, schema: schema}
}

// StaticDimensions are the dimensions defined by reference data.
type StaticDimensions struct {
	Domains  []domain.Domain
	Areas    []domain.Area
	Channels []domain.Channel
	Tools    []domain.Tool
	Statuses []domain.Status

	// Inline requirements and locations, for profiles without an artifacts
	// workbook.
	Requirements []domain.Requirement
	Locations    []domain.Location
}

// ArtifactDimensions are the dimensions read from the artifacts workbook.
type ArtifactDimensions struct {
	Functional   []domain.FunctionalTerm
	Technical    []domain.TechnicalField
	Requirements []domain.Requirement
	Locations    []domain.Location
}

// TableFailure is a dimension table whose rows were rolled back.
type TableFailure struct {
	Table string
	Err   error
}

// DimensionLoad is the outcome of a dimension stage. Each table loads under
// its own savepoint, so a failed table is rolled back alone and the others
// commit.
type DimensionLoad struct {
	// Rows maps each loaded table to the rows written.
	Rows     map[string]int64
	Failures []TableFailure
}

// Total is the number of rows written across tables.
func (l DimensionLoad) Total() int64 {
	var n int64
	for _, rows := range l.Rows {
		n += rows
	}
	return n
}

// RowFailure is a fact row the database rejected.
type RowFailure struct {
	Row  int
	Code string
	Err  error
}

// ServiceLoad is the outcome of InsertServices.
type ServiceLoad struct {
	Inserted int
	// Keys maps codigo_servicio to id_servicio. It is only filled when the
	// insert used RETURNING.
	Keys     map[string]int64
	Failures []RowFailure
}

// LinkLoad counts the relationship rows written.
type LinkLoad struct {
	Requirements int64
	Locations    int64
}

// TableCount is the row count of one catalog table.
type TableCount struct {
	Table string
	Label string
	Rows  int64
}

func (s *CatalogStore) qualified(table string) string {
	return pgx.Identifier{s.schema, table}.Sanitize()
}

func (s *CatalogStore) inTx(ctx context.Context, what string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", what, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s tx: %w", what, err)
	}
	return nil
}

// Reset empties every catalog table and restarts their identities in a
// single statement.
func (s *CatalogStore) Reset(ctx context.Context) error {
	names := make([]string, len(truncateOrder))
	for i, t := range truncateOrder {
		names[i] = s.qualified(t)
	}
	sql := "TRUNCATE TABLE " + strings.Join(names, ", ") + " RESTART IDENTITY CASCADE"

	return s.inTx(ctx, "reset", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("truncate catalog tables: %w", err)
		}
		return nil
	})
}

// dimensionStep writes one table.
type dimensionStep struct {
	table string
	load  func(tx pgx.Tx) (int64, error)
}

// loadDimensions runs every step in one transaction, each under its own
// savepoint. A failing step is rolled back and recorded; the error return is
// reserved for the transaction itself.
func (s *CatalogStore) loadDimensions(ctx context.Context, what string, steps []dimensionStep) (DimensionLoad, error) {
	load := DimensionLoad{Rows: make(map[string]int64, len(steps))}
	err := s.inTx(ctx, what, func(tx pgx.Tx) error {
		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}

			sp, err := tx.Begin(ctx)
			if err != nil {
				return fmt.Errorf("savepoint for %s: %w", step.table, err)
			}
			n, err := step.load(sp)
			if err != nil {
				_ = sp.Rollback(ctx)
				load.Failures = append(load.Failures, TableFailure{Table: step.table, Err: err})
				continue
			}
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release savepoint for %s: %w", step.table, err)
			}
			load.Rows[step.table] = n
		}
		return nil
	})
	if err != nil {
		return DimensionLoad{}, err
	}
	return load, nil
}

func batchStep(ctx context.Context, table string, b *pgx.Batch) dimensionStep {
	return dimensionStep{table: table, load: func(tx pgx.Tx) (int64, error) {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		return int64(b.Len()), nil
	}}
}

func (s *CatalogStore) copyStep(ctx context.Context, table string, columns []string, n int, rows pgx.CopyFromSource) dimensionStep {
	return dimensionStep{table: table, load: func(tx pgx.Tx) (int64, error) {
		if n == 0 {
			return 0, nil
		}
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, table}, columns, rows)
		if err != nil {
			return 0, fmt.Errorf("copy %s: %w", table, err)
		}
		return copied, nil
	}}
}

// LoadStaticDimensions inserts domains, areas, channels, tools, statuses and
// any inline requirements and locations. Domain and area ids are checked
// against their reference keys. Areas reference domains, so a failed domain
// table also fails the areas.
func (s *CatalogStore) LoadStaticDimensions(ctx context.Context, dims StaticDimensions) (DimensionLoad, error) {
	domains := &pgx.Batch{}
	insertDomain := fmt.Sprintf(`INSERT INTO %s (codigo, nombre_dominio, sigla) VALUES ($1, $2, $3) RETURNING id_dominio`,
		s.qualified(TableDomain))
	for _, d := range dims.Domains {
		d := d
		domains.Queue(insertDomain, d.Code, d.Name, nullable(d.Abbreviation)).QueryRow(func(row pgx.Row) error {
			return expectKey(row, TableDomain, d.Code, d.Key)
		})
	}

	areas := &pgx.Batch{}
	insertArea := fmt.Sprintf(`INSERT INTO %s (codigo, id_dominio, nombre_area) VALUES ($1, $2, $3) RETURNING id_area`,
		s.qualified(TableArea))
	for _, a := range dims.Areas {
		a := a
		areas.Queue(insertArea, a.Code, a.DomainKey, a.Name).QueryRow(func(row pgx.Row) error {
			return expectKey(row, TableArea, a.Code, a.Key)
		})
	}

	channels := &pgx.Batch{}
	insertChannel := fmt.Sprintf(`INSERT INTO %s (codigo, nombre_canal, descripcion) VALUES ($1, $2, $3)`,
		s.qualified(TableChannel))
	for _, c := range dims.Channels {
		channels.Queue(insertChannel, c.Code, c.Name, c.Description)
	}

	tools := &pgx.Batch{}
	insertTool := fmt.Sprintf(`INSERT INTO %s (codigo, nombre_herramienta, descripcion_herr, url) VALUES ($1, $2, $3, $4)`,
		s.qualified(TableTool))
	for _, t := range dims.Tools {
		tools.Queue(insertTool, t.Code, t.Name, t.Description, t.URL)
	}

	statuses := &pgx.Batch{}
	insertStatus := fmt.Sprintf(`INSERT INTO %s (codigo, nombre_estado, descripcion) VALUES ($1, $2, $3)`,
		s.qualified(TableStatus))
	for _, st := range dims.Statuses {
		statuses.Queue(insertStatus, st.Code, st.Name, st.Description)
	}

	steps := []dimensionStep{
		batchStep(ctx, TableDomain, domains),
		batchStep(ctx, TableArea, areas),
		batchStep(ctx, TableChannel, channels),
		batchStep(ctx, TableTool, tools),
		batchStep(ctx, TableStatus, statuses),
	}
	if len(dims.Requirements) > 0 {
		steps = append(steps, s.copyStep(ctx, TableRequirement, requirementColumns,
			len(dims.Requirements), requirementRows(dims.Requirements)))
	}
	if len(dims.Locations) > 0 {
		steps = append(steps, s.copyStep(ctx, TableLocation, locationColumns,
			len(dims.Locations), locationRows(dims.Locations)))
	}
	return s.loadDimensions(ctx, "static dimensions", steps)
}

func expectKey(row pgx.Row, table, code string, want int) error {
	var got int
	if err := row.Scan(&got); err != nil {
		return fmt.Errorf("insert %s %s: %w", table, code, err)
	}
	if got != want {
		return fmt.Errorf("%s %s received id %d, want %d: %w", table, code, got, want, ErrKeyDrift)
	}
	return nil
}

// LoadArtifactDimensions bulk-copies metadata, requirements and locations,
// one savepoint per table. Empty tables are reported with zero rows.
func (s *CatalogStore) LoadArtifactDimensions(ctx context.Context, dims ArtifactDimensions) (DimensionLoad, error) {
	return s.loadDimensions(ctx, "artifact dimensions", []dimensionStep{
		s.copyStep(ctx, TableFunctionalMD, functionalColumns, len(dims.Functional), functionalRows(dims.Functional)),
		s.copyStep(ctx, TableTechnicalMD, technicalColumns, len(dims.Technical), technicalRows(dims.Technical)),
		s.copyStep(ctx, TableRequirement, requirementColumns, len(dims.Requirements), requirementRows(dims.Requirements)),
		s.copyStep(ctx, TableLocation, locationColumns, len(dims.Locations), locationRows(dims.Locations)),
	})
}

func functionalRows(terms []domain.FunctionalTerm) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(terms), func(i int) ([]any, error) {
		t := terms[i]
		return []any{
			t.ID, t.Term, t.Definition, t.SourceField, t.Examples,
			t.Owner, t.BusinessRules, t.Category, t.UpdatedAt, t.Version, t.State,
		}, nil
	})
}

func technicalRows(fields []domain.TechnicalField) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(fields), func(i int) ([]any, error) {
		f := fields[i]
		return []any{
			f.ID, f.Table, f.Field, f.DataType, f.Length, f.Nullable, f.Key, f.Default,
			f.Description, f.MatrixMapping, f.FunctionalTermID, f.UpdatedAt, f.Version, f.State,
		}, nil
	})
}

func requirementRows(reqs []domain.Requirement) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(reqs), func(i int) ([]any, error) {
		r := reqs[i]
		id := r.ID
		if id == "" {
			id = r.Code
		}
		return []any{id, r.Code, nullable(r.Name), r.Detail, r.SupportType, r.Category}, nil
	})
}

func locationRows(locs []domain.Location) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(locs), func(i int) ([]any, error) {
		l := locs[i]
		return []any{
			l.Code, nullable(l.SiteName), l.Address, l.Schedule, l.GeneralSchedule, l.Phone,
			l.Email, l.Neighborhood, l.District, l.SiteType, nullable(l.State), l.DomainKey,
		}, nil
	})
}

// InsertServices inserts fact rows one by one, each under its own savepoint
// so a rejected row does not abort the others. With returning set, the
// generated ids are collected from the insert itself.
func (s *CatalogStore) InsertServices(ctx context.Context, services []domain.Service, returning bool) (ServiceLoad, error) {
	load := ServiceLoad{}
	if returning {
		load.Keys = make(map[string]int64, len(services))
	}

	sql := fmt.Sprintf(`INSERT INTO %s (
		codigo_servicio, id_dominio, id_area, id_herramienta_tic, id_estado, id_canal,
		nombre_servicio, descripcion, proposito, dirigido_a, descripcion_respuesta_esperada,
		tiempo_respuesta, fundamento_legal, informacion_costo, documentos_daruma, volumen_mensual_promedio
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, s.qualified(TableService))
	if returning {
		sql += " RETURNING id_servicio"
	}

	err := s.inTx(ctx, "facts", func(tx pgx.Tx) error {
		for _, svc := range services {
			if err := ctx.Err(); err != nil {
				return err
			}

			sp, err := tx.Begin(ctx)
			if err != nil {
				return fmt.Errorf("savepoint for service %s: %w", svc.Code, err)
			}

			args := []any{
				svc.Code, svc.DomainKey, svc.AreaKey, svc.ToolKey, svc.StatusKey, svc.ChannelKey,
				svc.Name, svc.Description, svc.Purpose, svc.Audience, svc.ExpectedResponse,
				svc.ResponseTime, svc.LegalBasis, svc.CostInfo, svc.ProcedureDocs, svc.MonthlyVolume,
			}
			var id int64
			if returning {
				err = sp.QueryRow(ctx, sql, args...).Scan(&id)
			} else {
				_, err = sp.Exec(ctx, sql, args...)
			}
			if err != nil {
				_ = sp.Rollback(ctx)
				load.Failures = append(load.Failures, RowFailure{Row: svc.SourceRow, Code: svc.Code, Err: err})
				continue
			}
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release savepoint for service %s: %w", svc.Code, err)
			}

			load.Inserted++
			if returning {
				load.Keys[svc.Code] = id
			}
		}
		return nil
	})
	if err != nil {
		return ServiceLoad{}, err
	}
	return load, nil
}

// ServiceKeys reads codigo_servicio → id_servicio from committed facts.
func (s *CatalogStore) ServiceKeys(ctx context.Context) (map[string]int64, error) {
	return queryKeys[int64](ctx, s.pool,
		fmt.Sprintf(`SELECT codigo_servicio, id_servicio FROM %s`, s.qualified(TableService)))
}

// LocationKeys reads codigo → id_ubicacion.
func (s *CatalogStore) LocationKeys(ctx context.Context) (map[string]int64, error) {
	return queryKeys[int64](ctx, s.pool,
		fmt.Sprintf(`SELECT codigo, id_ubicacion FROM %s`, s.qualified(TableLocation)))
}

// RequirementKeys reads codigo → id_requisito.
func (s *CatalogStore) RequirementKeys(ctx context.Context) (map[string]string, error) {
	return queryKeys[string](ctx, s.pool,
		fmt.Sprintf(`SELECT codigo, id_requisito FROM %s`, s.qualified(TableRequirement)))
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryKeys[V any](ctx context.Context, q querier, sql string) (map[string]V, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]V)
	for rows.Next() {
		var (
			code string
			id   V
		)
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	return keys, nil
}

// LoadLinks copies both relationship tables in one transaction.
func (s *CatalogStore) LoadLinks(ctx context.Context, reqs []domain.ResolvedRequirementLink, locs []domain.ResolvedLocationLink) (LinkLoad, error) {
	var load LinkLoad
	err := s.inTx(ctx, "links", func(tx pgx.Tx) error {
		if len(reqs) > 0 {
			n, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, TableServiceReq}, requirementLinkColumns,
				pgx.CopyFromSlice(len(reqs), func(i int) ([]any, error) {
					l := reqs[i]
					return []any{l.ServiceID, l.RequirementID, l.ServiceCode, l.RequirementCode, l.Mandatory, l.Order}, nil
				}))
			if err != nil {
				return fmt.Errorf("copy %s: %w", TableServiceReq, err)
			}
			load.Requirements = n
		}
		if len(locs) > 0 {
			n, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, TableServiceLoc}, locationLinkColumns,
				pgx.CopyFromSlice(len(locs), func(i int) ([]any, error) {
					l := locs[i]
					return []any{l.ServiceID, l.LocationID, l.ServiceCode, l.Primary}, nil
				}))
			if err != nil {
				return fmt.Errorf("copy %s: %w", TableServiceLoc, err)
			}
			load.Locations = n
		}
		return nil
	})
	if err != nil {
		return LinkLoad{}, err
	}
	return load, nil
}

// Counts returns the row count of every catalog table in summary order.
func (s *CatalogStore) Counts(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, len(SummaryTables))
	b := &pgx.Batch{}
	for i, t := range SummaryTables {
		i, t := i, t
		counts[i] = TableCount{Table: t.Table, Label: t.Label}
		b.Queue(fmt.Sprintf(`SELECT count(*) FROM %s`, s.qualified(t.Table))).QueryRow(func(row pgx.Row) error {
			return row.Scan(&counts[i].Rows)
		})
	}
	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return nil, fmt.Errorf("count catalog tables: %w", err)
	}
	return counts, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
