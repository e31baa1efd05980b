// Package pipeline runs a catalog load from start to finish.
//
// A run walks a fixed sequence of stages. Fatal failures abort the run;
// recoverable failures are recorded as diagnostics and the run continues
// with degraded output. Each database stage commits before the next begins.
//
// Import Path: catalogo.cali.gov.co/etl/internal/pipeline
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalogo.cali.gov.co/etl/internal/artifacts"
	"catalogo.cali.gov.co/etl/internal/domain"
	apperrors "catalogo.cali.gov.co/etl/internal/pkg/errors"
	"catalogo.cali.gov.co/etl/internal/pkg/logger"
	"catalogo.cali.gov.co/etl/internal/reconcile"
	"catalogo.cali.gov.co/etl/internal/refdata"
	"catalogo.cali.gov.co/etl/internal/repository"
	"catalogo.cali.gov.co/etl/internal/spreadsheet"
	"catalogo.cali.gov.co/etl/internal/transform"
)

// Store is the persistence the pipeline drives.
type Store interface {
	Reset(ctx context.Context) error
	LoadStaticDimensions(ctx context.Context, dims repository.StaticDimensions) (repository.DimensionLoad, error)
	LoadArtifactDimensions(ctx context.Context, dims repository.ArtifactDimensions) (repository.DimensionLoad, error)
	InsertServices(ctx context.Context, services []domain.Service, returning bool) (repository.ServiceLoad, error)
	ServiceKeys(ctx context.Context) (map[string]int64, error)
	LocationKeys(ctx context.Context) (map[string]int64, error)
	RequirementKeys(ctx context.Context) (map[string]string, error)
	LoadLinks(ctx context.Context, reqs []domain.ResolvedRequirementLink, locs []domain.ResolvedLocationLink) (repository.LinkLoad, error)
	Counts(ctx context.Context) ([]repository.TableCount, error)
}

// ConnectFunc opens the store. It is the first stage of a run.
type ConnectFunc func(ctx context.Context) (Store, error)

// Options configures a run.
type Options struct {
	Profile       *refdata.Profile
	MatrixPath    string
	ArtifactsPath string
	// UseReturning collects service ids from the insert instead of reading
	// them back after commit.
	UseReturning bool
}

// Runner executes catalog loads.
type Runner struct {
	opts    Options
	connect ConnectFunc
	now     func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts Options, connect ConnectFunc) *Runner {
	return &Runner{opts: opts, connect: connect, now: time.Now}
}

// run carries the state of one execution between stages.
type run struct {
	*Runner
	ctx    context.Context
	log    *zap.Logger
	report *Report
	store  Store

	matrix      *spreadsheet.Table
	transformed transform.Result
	serviceKeys map[string]int64
}

// Run executes every stage. The returned report is never nil; err is set
// only for fatal failures, and is also stored in Report.Fatal.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	st := &run{
		Runner: r,
		ctx:    ctx,
		log:    logger.Named("pipeline").With(zap.String("run_id", id.String()), zap.String("profile", r.opts.Profile.Version)),
		report: &Report{
			RunID:     id.String(),
			Profile:   r.opts.Profile.Version,
			Title:     r.opts.Profile.Title,
			StartedAt: r.now(),
		},
	}

	st.log.Info("Catalog load started",
		zap.String("matrix", r.opts.MatrixPath),
		zap.String("artifacts", r.opts.ArtifactsPath),
		zap.Bool("returning", r.opts.UseReturning),
	)

	steps := []struct {
		name string
		fn   func() (int64, error)
	}{
		{StageConnect, st.connectStore},
		{StageReset, st.reset},
		{StageStatic, st.loadStatic},
		{StageArtifacts, st.loadArtifacts},
		{StageReadMatrix, st.readMatrix},
		{StageTransform, st.transformRows},
		{StageFacts, st.loadFacts},
		{StageLinks, st.loadLinks},
		{StageSummarize, st.summarize},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return st.abort(step.name, apperrors.Fatalf(err, apperrors.CodeCancelled, "run cancelled before %s", step.name))
		}
		if err := st.stage(step.name, step.fn); err != nil {
			return st.abort(step.name, err)
		}
	}

	st.report.FinishedAt = r.now()
	st.log.Info("Catalog load finished",
		zap.Duration("duration", st.report.Duration()),
		zap.Bool("complete", st.report.Complete()),
		zap.Int("diagnostics", len(st.report.Diagnostics)),
	)
	return st.report, nil
}

// errSkipped marks a stage that had nothing to do.
var errSkipped = errors.New("stage skipped")

// stage runs fn and records its outcome. Fatal errors are returned; any
// other error marks the stage failed and adds a diagnostic.
func (st *run) stage(name string, fn func() (int64, error)) error {
	start := st.now()
	st.log.Debug("Stage started", zap.String("stage", name))

	before := len(st.report.Diagnostics)
	rows, err := fn()
	res := StageResult{Name: name, Status: StatusOK, Duration: st.now().Sub(start), Rows: rows}

	switch {
	case errors.Is(err, errSkipped):
		res.Status = StatusSkipped
	case err != nil && apperrors.IsFatal(err):
		res.Status = StatusFailed
		res.Error = err.Error()
		st.report.Stages = append(st.report.Stages, res)
		return err
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
		st.report.Diagnostics = append(st.report.Diagnostics, Diagnostic{
			Stage: name, Code: domain.DiagStageFailed, Reason: err.Error(),
		})
		st.log.Error("Stage failed, continuing", zap.String("stage", name), zap.Error(err))
	case len(st.report.Diagnostics) > before:
		res.Status = StatusDegraded
	}

	st.report.Stages = append(st.report.Stages, res)
	st.log.Info("Stage finished",
		zap.String("stage", name),
		zap.String("status", res.Status),
		zap.Int64("rows", rows),
		zap.Duration("duration", res.Duration),
	)
	return nil
}

func (st *run) abort(stage string, err error) (*Report, error) {
	st.report.Fatal = err
	st.report.FinishedAt = st.now()
	st.log.Error("Catalog load aborted", zap.String("stage", stage), zap.Error(err))
	return st.report, err
}

// recoverable wraps a stage error so it does not abort the run.
func recoverable(stage string, err error) error {
	return apperrors.ErrStageFailedf(stage, err)
}

func (st *run) addDiagnostics(diags []Diagnostic) {
	st.report.Diagnostics = append(st.report.Diagnostics, diags...)
	for _, d := range diags {
		st.log.Warn("Row diagnostic",
			zap.String("stage", d.Stage),
			zap.String("code", d.Code),
			zap.Int("row", d.Row),
			zap.String("key", d.Key),
			zap.String("reason", d.Reason),
		)
	}
}

func (st *run) connectStore() (int64, error) {
	store, err := st.connect(st.ctx)
	if err != nil {
		if _, ok := apperrors.IsAppError(err); ok {
			return 0, err
		}
		return 0, apperrors.Fatalf(err, apperrors.CodeConnectFailed, "connect to database")
	}
	st.store = store
	return 0, nil
}

func (st *run) reset() (int64, error) {
	if err := st.store.Reset(st.ctx); err != nil {
		return 0, apperrors.Fatalf(err, apperrors.CodeSchemaResetFail, "reset catalog schema")
	}
	return 0, nil
}

func (st *run) loadStatic() (int64, error) {
	p := st.opts.Profile
	dims := repository.StaticDimensions{
		Domains:  p.Domains,
		Areas:    p.Areas,
		Channels: p.Channels,
		Tools:    p.Tools,
		Statuses: p.Statuses,
	}
	if !p.HasArtifacts() {
		dims.Requirements = append(append([]domain.Requirement{}, p.Requirements...), p.ExtraRequirements...)
		dims.Locations = p.Locations
	}
	load, err := st.store.LoadStaticDimensions(st.ctx, dims)
	if err != nil {
		return 0, recoverable(StageStatic, err)
	}
	st.tableFailures(StageStatic, load.Failures)
	return load.Total(), nil
}

// loadArtifacts loads whatever the workbook yields: a sheet that cannot be
// read or a table the database rejects is reported and the others still
// load.
func (st *run) loadArtifacts() (int64, error) {
	if !st.opts.Profile.HasArtifacts() {
		return 0, errSkipped
	}
	reader, err := artifacts.NewReader(st.opts.Profile)
	if err != nil {
		return 0, recoverable(StageArtifacts, err)
	}

	wb, err := spreadsheet.Open(st.opts.ArtifactsPath)
	if err != nil {
		return 0, recoverable(StageArtifacts, err)
	}
	defer wb.Close()

	parsed, _ := reader.Read(wb)
	st.addDiagnostics(parsed.Diagnostics)
	failed := make([]Diagnostic, 0, len(parsed.Failures))
	for _, f := range parsed.Failures {
		failed = append(failed, Diagnostic{
			Stage: StageArtifacts, Code: domain.DiagStageFailed, Key: f.Sheet, Reason: f.Error(),
		})
	}
	st.addDiagnostics(failed)

	load, err := st.store.LoadArtifactDimensions(st.ctx, repository.ArtifactDimensions{
		Functional:   parsed.Functional,
		Technical:    parsed.Technical,
		Requirements: parsed.Requirements,
		Locations:    parsed.Locations,
	})
	if err != nil {
		return 0, recoverable(StageArtifacts, err)
	}
	st.tableFailures(StageArtifacts, load.Failures)
	return load.Total(), nil
}

// tableFailures reports dimension tables rolled back by the store.
func (st *run) tableFailures(stage string, failures []repository.TableFailure) {
	diags := make([]Diagnostic, 0, len(failures))
	for _, f := range failures {
		diags = append(diags, Diagnostic{
			Stage: stage, Code: domain.DiagStageFailed, Key: f.Table,
			Reason: recoverable(stage, f.Err).Error(),
		})
	}
	st.addDiagnostics(diags)
}

func (st *run) readMatrix() (int64, error) {
	path := st.opts.MatrixPath
	wb, err := spreadsheet.Open(path)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrFileNotFound) {
			return 0, apperrors.ErrInputNotFoundf(path, err)
		}
		return 0, apperrors.Fatalf(err, apperrors.CodeInputReadFailed, "open matrix %s", path)
	}
	defer wb.Close()

	layout := st.opts.Profile.Matrix
	table, err := wb.Sheet(layout.Sheet, layout.SkipRows)
	if err != nil {
		return 0, apperrors.Fatalf(err, apperrors.CodeInputReadFailed, "read matrix %s", path)
	}
	if missing := table.Missing(layout.RequiredColumns); len(missing) > 0 {
		return 0, apperrors.ErrMissingColumnsf(path, missing)
	}

	st.matrix = table
	return int64(len(table.Rows)), nil
}

func (st *run) transformRows() (int64, error) {
	st.transformed = transform.New(st.opts.Profile).Transform(st.matrix)
	st.addDiagnostics(st.transformed.Diagnostics)
	return int64(len(st.transformed.Services)), nil
}

func (st *run) loadFacts() (int64, error) {
	load, err := st.store.InsertServices(st.ctx, st.transformed.Services, st.opts.UseReturning)
	if err != nil {
		return 0, recoverable(StageFacts, err)
	}

	diags := make([]Diagnostic, 0, len(load.Failures))
	for _, f := range load.Failures {
		diags = append(diags, Diagnostic{
			Stage: StageFacts, Code: domain.DiagRowFailed, Row: f.Row, Key: f.Code,
			Reason: apperrors.Recoverablef(f.Err, apperrors.CodeRowRejected, "insert rejected").Error(),
		})
	}
	st.addDiagnostics(diags)

	if st.opts.UseReturning {
		st.serviceKeys = load.Keys
	} else {
		keys, err := st.store.ServiceKeys(st.ctx)
		if err != nil {
			return int64(load.Inserted), recoverable(StageFacts, fmt.Errorf("read back service keys: %w", err))
		}
		st.serviceKeys = keys
	}
	return int64(load.Inserted), nil
}

func (st *run) loadLinks() (int64, error) {
	reqKeys, err := st.store.RequirementKeys(st.ctx)
	if err != nil {
		return 0, recoverable(StageLinks, err)
	}
	locKeys, err := st.store.LocationKeys(st.ctx)
	if err != nil {
		return 0, recoverable(StageLinks, err)
	}

	res := reconcile.Links(st.transformed.RequirementLinks, st.transformed.LocationLinks, reconcile.Keys{
		Services:     st.serviceKeys,
		Requirements: reqKeys,
		Locations:    locKeys,
	})
	st.addDiagnostics(res.Diagnostics)
	if res.Dropped() > 0 {
		st.log.Warn("Links excluded by reconciliation",
			zap.Int("requirements", res.DroppedRequirements),
			zap.Int("locations", res.DroppedLocations),
		)
	}

	load, err := st.store.LoadLinks(st.ctx, res.Requirements, res.Locations)
	if err != nil {
		return 0, recoverable(StageLinks, err)
	}
	return load.Requirements + load.Locations, nil
}

func (st *run) summarize() (int64, error) {
	counts, err := st.store.Counts(st.ctx)
	if err != nil {
		return 0, recoverable(StageSummarize, err)
	}
	st.report.Counts = counts
	return int64(len(counts)), nil
}
