package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/adapter"
	"github.com/veridex-labs/trustpipe/internal/enrich"
	"github.com/veridex-labs/trustpipe/internal/store"
	"github.com/veridex-labs/trustpipe/internal/trust"
	"github.com/veridex-labs/trustpipe/internal/worker"
)

// pipelineEnv bundles the wired components shared by the commands.
type pipelineEnv struct {
	Store    store.Store
	Adapters *adapter.Registry
	Trust    *trust.Engine
	Pipeline *enrich.Pipeline
	Handlers *worker.Registry
}

// initEnv opens the store, runs migrations, and wires adapters,
// handlers, and the trust engine.
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	adapters := adapter.NewRegistry()
	if seedFile != "" {
		static, err := adapter.NewStaticAdapter("static", seedFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		if err := adapters.Register(static); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	engine, err := trust.NewEngine(st, cfg.Trust)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	prober := enrich.NewProber(cfg.Probe)
	analyzer := enrich.NewAnalyzer(cfg.Anthropic)
	pipeline := enrich.NewPipeline(st, adapters, prober, analyzer, engine)

	handlers := worker.NewRegistry()
	if err := pipeline.RegisterHandlers(handlers); err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Debug("environment initialized",
		zap.String("store_driver", cfg.Store.Driver),
		zap.Strings("adapters", adapters.Names()),
		zap.Bool("analyzer_enabled", analyzer.Enabled()),
	)

	return &pipelineEnv{
		Store:    st,
		Adapters: adapters,
		Trust:    engine,
		Pipeline: pipeline,
		Handlers: handlers,
	}, nil
}

// Close releases the environment's resources.
func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
