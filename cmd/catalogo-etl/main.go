// Package main runs the catalog load: it wipes the catalog schema, reloads
// reference and artifact dimensions, loads the services matrix as facts and
// links, and prints a summary.
//
// Exit status is 1 when the run aborts; degraded runs exit 0 and list their
// diagnostics in the summary.
//
// Import Path: catalogo.cali.gov.co/etl/cmd/catalogo-etl
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"catalogo.cali.gov.co/etl/internal/config"
	"catalogo.cali.gov.co/etl/internal/infrastructure"
	"catalogo.cali.gov.co/etl/internal/metrics"
	"catalogo.cali.gov.co/etl/internal/pipeline"
	apperrors "catalogo.cali.gov.co/etl/internal/pkg/errors"
	"catalogo.cali.gov.co/etl/internal/pkg/logger"
	"catalogo.cali.gov.co/etl/internal/refdata"
	"catalogo.cali.gov.co/etl/internal/repository"
)

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "catalogo-etl error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := loadProfile(cfg.Reference)
	if err != nil {
		return err
	}

	var db *infrastructure.DatabaseClients
	defer func() {
		if db != nil {
			db.Close()
		}
	}()

	runner := pipeline.NewRunner(pipeline.Options{
		Profile:       profile,
		MatrixPath:    cfg.Input.MatrixPath,
		ArtifactsPath: cfg.Input.ArtifactsPath,
		UseReturning:  cfg.Load.KeyStrategy == config.KeyStrategyReturning,
	}, func(ctx context.Context) (pipeline.Store, error) {
		clients, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		db = clients
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				return nil, err
			}
		}
		return repository.NewCatalogStore(db.Pool, cfg.Database.Schema), nil
	})

	report, runErr := runner.Run(ctx)

	if err := pipeline.WriteSummary(out, report); err != nil {
		logger.Warn("Failed to write summary", zap.Error(err))
	}
	pushMetrics(ctx, cfg.Metrics, report)

	return runErr
}

// loadProfile prefers an operator-maintained file over the embedded profile.
func loadProfile(ref config.ReferenceConfig) (*refdata.Profile, error) {
	var (
		p   *refdata.Profile
		err error
	)
	if ref.Path != "" {
		p, err = refdata.LoadFile(ref.Path)
	} else {
		p, err = refdata.Load(ref.Profile)
	}
	if err != nil {
		return nil, apperrors.Fatalf(err, apperrors.CodeReferenceInvalid, "load reference data")
	}
	logger.Info("Reference data loaded",
		zap.String("version", p.Version),
		zap.Int("domains", len(p.Domains)),
		zap.Int("areas", len(p.Areas)),
		zap.Bool("artifacts", p.HasArtifacts()),
	)
	return p, nil
}

// pushMetrics is best effort; a missing Pushgateway never fails the load.
func pushMetrics(ctx context.Context, cfg config.MetricsConfig, report *pipeline.Report) {
	if cfg.PushgatewayURL == "" {
		return
	}
	m := metrics.New()
	m.Record(report)
	if err := m.Push(context.WithoutCancel(ctx), cfg.PushgatewayURL, cfg.Job, report.Profile); err != nil {
		logger.Warn("Metrics push failed", zap.Error(err))
		return
	}
	logger.Debug("Metrics pushed", zap.String("url", cfg.PushgatewayURL))
}
