package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/config"
	"github.com/jonathan/content-agent/internal/db"
	"github.com/jonathan/content-agent/internal/distribution"
	"github.com/jonathan/content-agent/internal/engine"
	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/llm"
	"github.com/jonathan/content-agent/internal/logging"
	"github.com/jonathan/content-agent/internal/producers/develop"
	"github.com/jonathan/content-agent/internal/producers/edit"
	"github.com/jonathan/content-agent/internal/producers/research"
	"github.com/jonathan/content-agent/internal/producers/schedule"
	"github.com/jonathan/content-agent/internal/queue"
	"github.com/jonathan/content-agent/internal/runstore"
	"github.com/jonathan/content-agent/internal/trigger"
)

// agent bundles the wired-up components shared by the run and serve
// commands.
type agent struct {
	cfg        config.Config
	log        *zap.Logger
	store      *runstore.Store
	queue      *queue.Queue
	sequence   stages.Sequence
	coord      *engine.Coordinator
	runner     *trigger.Runner
	scheduler  *trigger.Scheduler
	dispatcher *queue.Dispatcher
	llmClient  llm.Client
	mirror     *db.DB
}

// loadConfig resolves the effective configuration from file, defaults,
// and environment.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg.MergeWithDefaults(config.Default())
	}
	cfg.Verbose = cfg.Verbose || verbose
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildAgent wires every component from the configuration. The caller
// owns shutdown via agent.close.
func buildAgent(ctx context.Context, cfg config.Config) (*agent, error) {
	log, err := logging.New(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	client, err := llm.NewClient(ctx, nil, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	publisher := distribution.NewRegistry(map[string]distribution.Publisher{
		"linkedin": distribution.NewLinkedIn(cfg.LinkedInToken, cfg.LinkedInAuthorURN),
	})

	q := queue.New(publisher, log, queue.WithCapacity(cfg.QueueCapacity))
	store := runstore.New(runstore.WithHistoryLimit(cfg.HistoryLimit))

	sources := make([]research.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, research.Source{Name: s.Name, URL: s.URL, Selectors: s.Selectors})
	}

	seq, err := stages.NewSequence(
		research.New(research.Config{Sources: sources, UseBrowser: cfg.UseBrowser}, client, log),
		develop.New(develop.Config{DraftCount: cfg.DraftCount}, client, log),
		edit.New(edit.Config{ApprovalThreshold: cfg.ApprovalThreshold}, client, log),
		schedule.New(schedule.Config{
			PostingTimes: cfg.PostingTimesOfDay(),
			Platforms:    cfg.Platforms,
			Location:     cfg.Location(),
		}, q, log),
	)
	if err != nil {
		return nil, err
	}

	coord := engine.New(store, q, seq, engine.Config{
		MaxAttempts:  cfg.RetryAttempts,
		StageTimeout: cfg.StageTimeoutDuration(),
	}, log)

	var mirror *db.DB
	if cfg.DatabaseURL != "" {
		mirror, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := mirror.EnsureSchema(ctx); err != nil {
			mirror.Close()
			return nil, err
		}
		coord.WithMirror(mirror)
	}

	runner := trigger.NewRunner(coord, log)
	scheduler := trigger.NewScheduler(runner, cfg.TriggerTimesOfDay(), log,
		trigger.WithLocation(cfg.Location()))
	dispatcher := queue.NewDispatcher(q, log,
		queue.WithPollInterval(cfg.DispatchIntervalDuration()))

	return &agent{
		cfg:        cfg,
		log:        log,
		store:      store,
		queue:      q,
		sequence:   seq,
		coord:      coord,
		runner:     runner,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		llmClient:  client,
		mirror:     mirror,
	}, nil
}

func (a *agent) close() {
	if a.mirror != nil {
		a.mirror.Close()
	}
	if err := a.llmClient.Close(); err != nil {
		a.log.Warn("failed to close model client", zap.Error(err))
	}
	_ = a.log.Sync()
}
