package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/notify"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/pipeline/nodes"
	"github.com/prodwatch/veriscan/internal/platform"
	"github.com/prodwatch/veriscan/internal/queue"
	"github.com/prodwatch/veriscan/internal/scanner"
	"github.com/prodwatch/veriscan/internal/scheduler"
	"github.com/prodwatch/veriscan/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	platformName := flag.String("platform", "", "enqueue a validation job for one platform on startup")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := common.LoadConfig(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.InitLogger(cfg)
	common.PrintBanner(common.GetVersion())

	if err := run(cfg, *platformName, logger); err != nil {
		logger.Fatal().Err(err).Msg("Service failed")
	}
}

func run(cfg *common.Config, oneShotPlatform string, logger arbor.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform configs
	platforms, err := platform.LoadDir(cfg.Platforms.Dir, logger)
	if err != nil {
		return fmt.Errorf("load platform configs: %w", err)
	}
	platformNames := platforms.Platforms()
	logger.Info().Int("platforms", len(platformNames)).Msg("Platform configs loaded")

	configsByName := make(map[string]*models.PlatformConfig, len(platformNames))
	configList := make([]*models.PlatformConfig, 0, len(platformNames))
	for _, name := range platformNames {
		pc, err := platforms.Load(name)
		if err != nil {
			return fmt.Errorf("load platform %s: %w", name, err)
		}
		configsByName[name] = pc
		configList = append(configList, pc)
	}

	// Scanners
	scanners := scanner.NewRegistry(logger)
	if err := scanners.BuildFromConfigs(configList); err != nil {
		return fmt.Errorf("build scanners: %w", err)
	}

	// Redis queue
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	defer rdb.Close()
	jobQueue := queue.NewRedisQueue(rdb, logger)

	// Postgres
	pool, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	products := postgres.NewProductRepository(pool, logger)
	history := postgres.NewHistoryRepository(pool, logger)
	banners := postgres.NewBannerRepository(pool, logger)

	// Browser pool sized to the largest per-job concurrency any platform allows.
	poolSize := 1
	for _, pc := range configList {
		if n := pc.EffectiveConcurrency(0); n > poolSize {
			poolSize = n
		}
	}
	browsers, err := browser.NewPool(browser.PoolOptions{
		Size:      poolSize,
		Headless:  cfg.Validation.BrowserHeadless,
		UserAgent: cfg.Validation.UserAgent,
	}, logger)
	if err != nil {
		return fmt.Errorf("start browser pool: %w", err)
	}
	defer browsers.Cleanup()

	// Notifiers
	var notifier, alerter interfaces.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewSlackNotifier(cfg.Notify.WebhookURL, cfg.Notify.RequestTimeout, logger)
	}
	if cfg.Notify.AlertWebhook != "" {
		alerter = notify.NewSlackNotifier(cfg.Notify.AlertWebhook, cfg.Notify.RequestTimeout, logger)
	} else {
		alerter = notifier
	}

	// Pipeline
	nodeRegistry := pipeline.NewNodeRegistry()
	nodes.RegisterAll(nodeRegistry, nodes.Deps{
		Products:  products,
		History:   history,
		Banners:   banners,
		Notifier:  notifier,
		Alerter:   alerter,
		Scanners:  scanners,
		Platforms: platforms,
		Sessions:  engine.NewPoolSessionFactory(browsers, logger),
		Config:    cfg,
		Logger:    logger,
	})
	executor := pipeline.NewExecutor(nodeRegistry, pipeline.NewWorkflowRegistry(), logger)

	// Workers: one per platform, plus one per monitor source. Monitor jobs
	// are queued under their source name and carry no platform rate limit.
	workerConfigs := make(map[string]*models.PlatformConfig, len(configsByName)+3)
	for name, pc := range configsByName {
		workerConfigs[name] = pc
	}
	for _, source := range []string{"banners", "pick_sections", "collabo_banners"} {
		workerConfigs[source] = &models.PlatformConfig{Platform: source}
	}

	runner := &pipelineRunner{executor: executor, platforms: platforms}
	manager := queue.NewManager(workerConfigs, jobQueue, runner, cfg.Validation.PollInterval, logger)
	manager.Start(ctx)

	// Scheduler
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(jobQueue, logger)
		if err := sched.Configure(cfg.Scheduler.Schedules); err != nil {
			return fmt.Errorf("configure scheduler: %w", err)
		}
		sched.Start()
	}

	if oneShotPlatform != "" {
		if _, ok := configsByName[oneShotPlatform]; !ok {
			return fmt.Errorf("unknown platform %q", oneShotPlatform)
		}
		job := models.NewJob(pipeline.WorkflowProductValidation, oneShotPlatform, 0, nil)
		if err := jobQueue.EnqueueJob(ctx, job); err != nil {
			return fmt.Errorf("enqueue startup job: %w", err)
		}
		logger.Info().
			Str("platform", oneShotPlatform).
			Str("job_id", job.JobID).
			Msg("Startup validation job enqueued")
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("browser_pool", poolSize).
		Msg("Veriscan started")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	if sched != nil {
		sched.Stop()
	}
	manager.Stop()
	return nil
}

// pipelineRunner adapts the node executor to the worker loop.
type pipelineRunner struct {
	executor  *pipeline.Executor
	platforms *platform.Registry
}

func (r *pipelineRunner) Run(ctx context.Context, job *models.Job) error {
	cfg, err := r.platforms.Load(job.Platform)
	if err != nil {
		// Monitor jobs run under a source name rather than a platform.
		cfg = &models.PlatformConfig{Platform: job.Platform}
	}
	return r.executor.ExecuteJob(ctx, job, cfg)
}
