package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/app"
	"github.com/JakeFAU/courthouse-harvester/internal/clock/system"
	"github.com/JakeFAU/courthouse-harvester/internal/config"
	"github.com/JakeFAU/courthouse-harvester/internal/discovery"
	"github.com/JakeFAU/courthouse-harvester/internal/extract"
	collyfetcher "github.com/JakeFAU/courthouse-harvester/internal/fetcher/colly"
	restyfetcher "github.com/JakeFAU/courthouse-harvester/internal/fetcher/resty"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/hash/sha256"
	"github.com/JakeFAU/courthouse-harvester/internal/id/uuid"
	"github.com/JakeFAU/courthouse-harvester/internal/logging"
	"github.com/JakeFAU/courthouse-harvester/internal/metrics"
	"github.com/JakeFAU/courthouse-harvester/internal/normalize"
	"github.com/JakeFAU/courthouse-harvester/internal/output"
	"github.com/JakeFAU/courthouse-harvester/internal/pipeline"
	"github.com/JakeFAU/courthouse-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/courthouse-harvester/internal/publisher"
	"github.com/JakeFAU/courthouse-harvester/internal/worker"
)

// newHarvestCmd creates the 'harvest' subcommand. Flags override the
// matching config keys.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs one harvest and writes the dataset",
		Long: `Discovers record sources with the configured strategy, fetches and
extracts every detail page, normalizes the records and writes the dataset.
The dataset is written even when the run fails, as an empty array if
nothing was collected.`,
		RunE: runHarvestCommand,
	}
	flags := cmd.Flags()
	flags.String("mode", "", "dataset shape: listing or detail")
	flags.String("strategy", "", "discovery strategy: "+fmt.Sprint(discovery.Strategies))
	flags.Int("concurrency", 0, "number of workers (1-16)")
	flags.String("output", "", "local artifact path")
	flags.Bool("dry-run", false, "keep the artifact in memory")
	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	return runHarvest(cmd.Context(), cfg, logger, app.Options{})
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Harvest.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("strategy") {
		cfg.Discovery.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("concurrency") {
		cfg.Harvest.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("dry-run") {
		cfg.Output.DryRun, _ = flags.GetBool("dry-run")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// runHarvest executes one run end to end. The artifact, notification and
// metrics push run detached from ctx so an interrupted run still reports.
func runHarvest(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) error {
	metrics.Init()
	mode := cfg.Mode()

	services, err := app.New(ctx, cfg, logger.Named("app"), opts)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer services.Close()

	harvester, err := buildHarvester(cfg, mode, logger)
	if err != nil {
		return err
	}

	result, runErr := harvester.Run(ctx)
	if result.Mode == "" {
		result.Mode = mode
	}
	if result.Dataset.Mode == "" {
		result.Dataset.Mode = mode
	}

	finishCtx := context.WithoutCancel(ctx)
	writer := output.New(services.Store(), sha256.New(), logger.Named("output"))
	artifact, writeErr := writer.Write(finishCtx, services.ArtifactPath(), result.Dataset)
	if writeErr != nil {
		logger.Error("artifact write failed", zap.Error(writeErr))
	}

	status := runStatus(runErr, writeErr)
	metrics.ObserveRun(status)

	if cfg.Notify.Enabled() {
		summary := publisher.NewRunSummary(result, artifact, status)
		if err := publisher.Notify(finishCtx, services.Publisher(), cfg.Notify.Topic, summary, logger); err != nil {
			logger.Warn("run notification failed", zap.Error(err))
		}
	}
	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(finishCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("metrics push failed", zap.Error(err))
		}
	}

	logger.Info("harvest complete",
		zap.String("run_id", result.RunID),
		zap.String("status", status),
		zap.Int("records", result.Records),
		zap.String("artifact", artifact.URI),
	)
	return errors.Join(runErr, writeErr)
}

func buildHarvester(cfg config.Config, mode harvest.Mode, logger *zap.Logger) (*pipeline.Harvester, error) {
	html := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Harvest.UserAgent,
		Timeout:   cfg.Harvest.Timeout,
	})
	api := restyfetcher.New(restyfetcher.Config{
		UserAgent: cfg.Harvest.UserAgent,
		Timeout:   cfg.Harvest.Timeout,
	})

	discoverer, err := discovery.New(cfg.Discovery, discovery.Dependencies{
		Mode:    mode,
		HTML:    html,
		API:     api,
		Timeout: cfg.Harvest.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init discovery: %w", err)
	}
	pattern, err := extract.CompileDetailPattern(cfg.Discovery.DetailPattern)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Dependencies{
		Discoverer: discoverer,
		Fetcher:    html,
		Extractor:  extract.Default(cfg.Extract.Selectors, pattern, logger.Named("extract")),
		Normalizer: normalize.New(),
		Retry:      harvest.NewExponentialRetryPolicy(cfg.Harvest.MaxAttempts, cfg.Harvest.BackoffBase, cfg.Harvest.BackoffMax),
		Pauser:     harvest.TimerPauser{},
		Clock:      system.New(),
		IDs:        uuid.New(),
	}
	if cfg.Harvest.Concurrency > 1 {
		deps.Limiter = ratelimit.New(ratelimit.FromDelay(cfg.Harvest.PoliteDelay))
	}

	return pipeline.New(deps, pipeline.Config{
		Mode:        mode,
		Concurrency: cfg.Harvest.Concurrency,
		QueueDepth:  cfg.Harvest.QueueDepth,
	}, worker.Config{
		FetchTimeout: cfg.Harvest.Timeout,
		PoliteDelay:  cfg.Harvest.PoliteDelay,
	}, logger.Named("pipeline")), nil
}

func runStatus(runErr, writeErr error) string {
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return publisher.StatusCanceled
	case errors.Is(runErr, harvest.ErrNoSources):
		return publisher.StatusEmpty
	case runErr != nil, writeErr != nil:
		return publisher.StatusFailed
	default:
		return publisher.StatusSuccess
	}
}
