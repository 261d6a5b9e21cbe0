package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"querynerd/internal/chains"
	"querynerd/internal/config"
	"querynerd/internal/logging"
	"querynerd/internal/perception"
	"querynerd/internal/pipeline"
	"querynerd/internal/store"
)

const defaultConfigRel = config.DefaultPath

// newLLMClient builds the model client. Tests replace it.
var newLLMClient = func(ctx context.Context, cfg *config.Config, log *zap.Logger) (perception.LLMClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return perception.NewClientFromConfig(ctx, cfg.LLM, cfg.GetLLMTimeout(), log)
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(ws, config.DefaultPath)
}

func baseLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// app holds everything a command needs to run queries.
type app struct {
	cfg   *config.Config
	stage *pipeline.Graph
	runs  *store.RunStore
	log   *zap.Logger
}

// loadConfig resolves the workspace, reads the config file and starts
// category logging.
func loadConfig() (string, *config.Config, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	cfg, err := config.Load(resolveConfigPath(ws))
	if err != nil {
		return "", nil, err
	}
	if err := logging.Initialize(cfg.LoggingOptions(ws)); err != nil {
		return "", nil, err
	}
	if err := logging.InitAudit(); err != nil {
		baseLogger().Warn("audit log unavailable", zap.Error(err))
	}
	return ws, cfg, nil
}

// openStore opens the run store, or returns nil when it is disabled.
func openStore(ws string, cfg *config.Config) (*store.RunStore, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	return store.NewRunStore(cfg.DatabasePath(ws))
}

func openApp(ctx context.Context, withStore bool) (*app, error) {
	ws, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := baseLogger()
	client, err := newLLMClient(ctx, cfg, logging.Tee(log, logging.CategoryAPI))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	a.stage = pipeline.NewStage(
		chains.NewRouterChain(client, logging.Tee(log, logging.CategoryRouting)),
		chains.NewPlannerChain(client, logging.Tee(log, logging.CategoryPlanning)),
		pipeline.StageOptions{
			Planner: cfg.PlannerOptions(),
			Logger:  logging.Tee(log, logging.CategoryGraph),
			Sink:    logging.Audit(),
		},
	)

	if withStore {
		if a.runs, err = openStore(ws, cfg); err != nil {
			return nil, err
		}
	}

	logging.Get(logging.CategoryBoot).Info("app ready",
		zap.String("workspace", ws),
		zap.String("provider", cfg.LLM.Provider),
		zap.Strings("nodes", a.stage.Nodes()),
		zap.Bool("store", a.runs != nil))
	return a, nil
}

func (a *app) Close() {
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			a.log.Warn("failed to close run store", zap.Error(err))
		}
	}
	logging.CloseAudit()
	logging.CloseAll()
}

// execute runs query through the stage and stores the result.
func (a *app) execute(ctx context.Context, query string) (store.Run, error) {
	run := store.Run{ID: uuid.NewString(), CreatedAt: time.Now()}
	logging.Audit().RunStarted(run.ID, query)

	run.State = a.stage.Run(ctx, run.ID, query)
	run.Degraded = run.State.Degraded()
	logging.Audit().RunCompleted(run.ID, run.State)

	if run.Degraded {
		a.log.Warn("run degraded", zap.String("run_id", run.ID), zap.String("query", query))
	}

	if a.runs == nil {
		return run, nil
	}
	saved, err := a.runs.Save(ctx, run)
	if err != nil {
		return run, err
	}
	return saved, nil
}
