package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/farmalink/erpbridge/internal/config"
	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/erp"
	"github.com/farmalink/erpbridge/internal/filestore"
	"github.com/farmalink/erpbridge/internal/infra/postgresql"
	"github.com/farmalink/erpbridge/internal/infra/postgresql/migrations"
	infraredis "github.com/farmalink/erpbridge/internal/infra/redis"
	"github.com/farmalink/erpbridge/internal/lookup"
	"github.com/farmalink/erpbridge/internal/notify"
	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/pipeline"
	"github.com/farmalink/erpbridge/internal/ratelimit"
	"github.com/farmalink/erpbridge/internal/repository"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *gorm.DB
	sqlDB *sql.DB
	rdb   *redis.Client

	throttle  ratelimit.Throttle
	tables    *lookup.Tables
	store     *filestore.Retrier
	notifier  notify.Notifier
	metrics   *observability.Metrics
	runs      repository.RunRepository
	ledger    repository.LedgerRepository
	erpClient *erp.Client
	directory *erp.DirectoryClient
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	throttle, err := infraredis.NewRedisThrottle(rdb, cfg.ThrottleInterval)
	if err != nil {
		return nil, err
	}

	tables := lookup.Defaults()
	if cfg.LookupTablesPath != "" {
		tables, err = lookup.Load(cfg.LookupTablesPath)
		if err != nil {
			return nil, fmt.Errorf("lookup tables: %w", err)
		}
	}

	local, err := filestore.NewLocalStore(cfg.FileStoreRoot)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	store := filestore.NewRetrier(local, cfg.FileRetries, logger)

	session := erp.NewSession(resty.New(), cfg.ERPLoginURL, cfg.SessionCachePath,
		cfg.ERPCompanyDB, cfg.ERPUser, cfg.ERPPassword, logger)
	erpClient, err := erp.NewClient(cfg.ERPBaseURL, session, cfg.ERPTimeout, logger)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier, err = notify.NewWebhookNotifier(cfg.WebhookURL)
		if err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		sqlDB:     sqlDB,
		rdb:       rdb,
		throttle:  throttle,
		tables:    tables,
		store:     store,
		notifier:  notifier,
		metrics:   observability.NewMetrics(),
		runs:      repository.NewGormRunRepo(db),
		ledger:    repository.NewGormLedgerRepo(db),
		erpClient: erpClient,
		directory: erp.NewDirectoryClient(erpClient, logger),
	}, nil
}

func (a *app) Close() {
	if a.sqlDB != nil {
		a.sqlDB.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.logger != nil {
		a.logger.Sync() //nolint:errcheck
	}
}

func (a *app) orchestrator() *pipeline.Orchestrator {
	submit := pipeline.Throttled(
		pipeline.NewSubmitStep(a.erpClient, a.directory, a.ledger, a.metrics, a.logger, a.cfg.WorkerConcurrency),
		a.throttle,
	)
	steps := []pipeline.Step{
		pipeline.NewValidateStep(a.logger),
		pipeline.NewAggregateStep(a.tables, a.directory, a.logger),
		pipeline.NewPersistStep(a.ledger, a.logger),
		submit,
		pipeline.NewExportStep(a.store, a.ledger, a.cfg.ReportsFolder, a.cfg.ProcessedFolder, a.cfg.DumpPayloads, a.logger),
		pipeline.NewPurgeStep(a.ledger, a.logger),
	}
	for i := range steps {
		steps[i] = pipeline.Timed(steps[i], a.logger)
	}
	return pipeline.NewOrchestrator(a.notifier, a.logger, steps...)
}

// runModules executes one synchronization run over the named modules.
// The run gate refuses to start while another run is in progress.
func (a *app) runModules(ctx context.Context, modules []string, wave domain.Wave, onlyFile string) error {
	correlationID := uuid.NewString()
	ctx = observability.WithCorrelationID(ctx, correlationID)
	logger := a.logger.With(zap.String("correlationId", correlationID), zap.String("wave", string(wave)))

	run, err := a.runs.Begin(ctx, correlationID)
	if err != nil {
		return err
	}
	logger.Info("run started", zap.Uint("runId", run.ID), zap.Strings("modules", modules))

	orch := a.orchestrator()
	failed := false

	for _, module := range modules {
		strategy, err := doctype.Lookup(module)
		if err != nil {
			logger.Error("unknown module", zap.String("module", module), zap.Error(err))
			failed = true
			continue
		}

		files, err := a.discover(ctx, strategy, wave, onlyFile)
		if err != nil {
			failed = true
			logger.Error("file discovery failed", zap.String("module", module), zap.Error(err))
			if nerr := a.notifier.Notify(ctx, fmt.Sprintf("file discovery failed for %s", module), map[string]any{
				"module": module,
				"error":  err.Error(),
			}); nerr != nil {
				logger.Warn("discovery notification not delivered", zap.Error(nerr))
			}
			continue
		}

		for _, file := range files {
			if ctx.Err() != nil {
				break
			}

			st := &pipeline.State{Run: run, Strategy: strategy, Wave: wave, File: file}
			if wave != domain.WaveSecond {
				content, err := a.readFile(ctx, file)
				if err != nil {
					failed = true
					logger.Error("file read failed", zap.String("file", file.Name), zap.Error(err))
					continue
				}
				st.Content = content
			}

			// A file-level failure does not stop the remaining files.
			if err := orch.Execute(ctx, st); err != nil {
				failed = true
				logger.Error("file failed", zap.String("module", module), zap.String("file", file.Name), zap.Error(err))
			}
		}

		if ctx.Err() != nil {
			logger.Warn("run interrupted",
				zap.Uint("runId", run.ID),
				zap.String("module", module),
			)
			break
		}
	}

	state := domain.RunFinalized
	if failed || ctx.Err() != nil {
		state = domain.RunError
	}
	// Closing the run must not be lost to the cancelled context.
	if err := a.runs.Finish(context.WithoutCancel(ctx), run.ID, state); err != nil {
		return fmt.Errorf("finish run %d: %w", run.ID, err)
	}
	logger.Info("run finished", zap.Uint("runId", run.ID), zap.String("state", state.String()))

	if failed {
		return fmt.Errorf("run %d finished with errors", run.ID)
	}
	return ctx.Err()
}

// discover lists the files a wave operates on: the module's inbox files
// for the first wave, the module's open ledger files for the second.
func (a *app) discover(ctx context.Context, strategy doctype.Strategy, wave domain.Wave, onlyFile string) ([]filestore.File, error) {
	if wave == domain.WaveSecond {
		names, err := a.ledger.Files(ctx, strategy.Name())
		if err != nil {
			return nil, err
		}
		files := make([]filestore.File, 0, len(names))
		for _, name := range names {
			if onlyFile != "" && name != onlyFile {
				continue
			}
			files = append(files, filestore.File{Name: name})
		}
		return files, nil
	}

	all, err := a.store.List(ctx, a.cfg.InboxFolder)
	if err != nil {
		return nil, err
	}
	files := make([]filestore.File, 0, len(all))
	for _, file := range all {
		if !strings.HasPrefix(file.Name, strategy.Name()) {
			continue
		}
		if onlyFile != "" && file.Name != onlyFile {
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

func (a *app) readFile(ctx context.Context, file filestore.File) ([]byte, error) {
	rc, err := a.store.Read(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
