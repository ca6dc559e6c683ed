package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	analyzex "sellerpilot/agent/agents/analyze"
	pipelinex "sellerpilot/agent/agents/pipeline"
	llmx "sellerpilot/agent/llm"
	promptx "sellerpilot/agent/prompt"
	retrievalx "sellerpilot/agent/retrieval"
	sessionx "sellerpilot/agent/session"
	warehousex "sellerpilot/agent/warehouse"
	configx "sellerpilot/pkg/config"
	_ "sellerpilot/pkg/logger/autoload"
	openrouterx "sellerpilot/pkg/openrouter"
	serverx "sellerpilot/server"
)

type AppConfig struct {
	PromptDir string `envconfig:"PROMPT_DIR" default:""`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	ragCfg := configx.MustNew[retrievalx.Config]("RAG")
	sessionCfg := configx.MustNew[sessionx.Config]("SESSION")
	warehouseCfg := configx.MustNew[warehousex.Config]("WAREHOUSE")
	analyzeCfg := configx.MustNew[analyzex.Config]("ANALYZE")
	serverCfg := configx.MustNew[serverx.Config]("SERVER")

	if llmCfg.ProviderMode != llmx.ModeLocalOnly {
		if err := openrouterx.Preflight(ctx, *openRouterCfg); err != nil {
			log.Fatal().Err(err).Msg("remote provider preflight failed")
		}
	}

	gateway, err := llmx.NewGateway(ctx, *llmCfg, openRouterCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build llm gateway")
	}

	prompts, err := promptx.NewLoader(appCfg.PromptDir)
	if err != nil {
		log.Fatal().Err(err).Msg("load prompts")
	}
	defer prompts.Close()

	engine, err := retrievalx.Open(*ragCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open retrieval index")
	}
	defer engine.Close()

	store, err := sessionx.OpenStore(*sessionCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open session store")
	}
	defer store.Close()
	memory := sessionx.NewMemory(store, sessionCfg.LockTimeout)

	registry := pipelinex.NewRegistry(gateway, prompts)
	service, err := analyzex.New(memory, warehousex.New(*warehouseCfg), engine, registry, *analyzeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build analyze service")
	}

	srv := serverx.New(*serverCfg, service, memory)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server stopped")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}
}
