package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cortexre/cortexre/pkg/agent"
	"github.com/cortexre/cortexre/pkg/api"
	"github.com/cortexre/cortexre/pkg/config"
	"github.com/cortexre/cortexre/pkg/events"
	"github.com/cortexre/cortexre/pkg/llm"
	"github.com/cortexre/cortexre/pkg/portfolio"
	"github.com/cortexre/cortexre/pkg/tools"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "cortexre",
	Short: "Portfolio research assistant",
	Long:  "cortexre answers natural-language questions about a real-estate portfolio using guarded, tool-driven LLM research.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", logLevel)
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, service, router, err := buildService()
		if err != nil {
			return err
		}
		defer func() { _ = router.Close() }()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		go logStepEvents(ctx, router)

		server := api.NewServer(service)
		go func() {
			<-ctx.Done()
			log.Info().Msg("shutting down")
			if err := server.Shutdown(); err != nil {
				log.Error().Err(err).Msg("shutdown failed")
			}
		}()

		log.Info().Str("addr", settings.ListenAddr).Msg("listening")
		return server.Listen(settings.ListenAddr)
	},
}

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, service, router, err := buildService()
		if err != nil {
			return err
		}
		defer func() { _ = router.Close() }()

		sessionID := askSessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		result, err := service.Invoke(cmd.Context(), strings.Join(args, " "), sessionID)
		if err != nil {
			return err
		}
		if result.Blocked {
			log.Info().Str("reason", result.BlockReason).Msg("question was blocked")
		}
		fmt.Println(result.FinalAnswer)
		return nil
	},
}

func buildService() (*config.Settings, *agent.Service, *events.Router, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	dataset, err := portfolio.Load(settings.DataPath)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "load portfolio data from %s", settings.DataPath)
	}
	log.Info().Str("path", settings.DataPath).Int("properties", len(dataset.Properties())).Msg("portfolio loaded")

	registry, err := tools.NewPortfolioRegistry(dataset)
	if err != nil {
		return nil, nil, nil, err
	}

	client := llm.NewOpenAIClient(
		settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.LLMModel,
		llm.WithTemperature(settings.LLMTemperature),
		llm.WithTimeout(settings.LLMTimeout),
	)

	workflow := agent.NewWorkflow(
		llm.NewGuardService(client),
		llm.NewCritiqueService(client),
		client,
		registry,
		agent.WithConfig(agent.Config{
			MaxRevisions:   settings.MaxRevisions,
			ScoreThreshold: settings.CritiqueScoreThreshold,
		}),
		agent.WithKnownNames(func() ([]string, error) {
			return dataset.Properties(), nil
		}),
	)

	router := events.NewRouter()
	service := agent.NewService(workflow,
		agent.WithCheckpointStore(agent.NewMemoryCheckpointStore(settings.SessionTTL)),
		agent.WithEventRouter(router),
	)
	return settings, service, router, nil
}

func logStepEvents(ctx context.Context, router *events.Router) {
	steps, err := router.SubscribeSteps(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("step event subscription failed")
		return
	}
	for ev := range steps {
		log.Debug().
			Str("session_id", ev.SessionID).
			Str("stage", ev.Stage).
			Str("type", ev.Type).
			Msg(ev.Message)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	askCmd.Flags().StringVar(&askSessionID, "session", "", "session ID to continue a prior conversation")
	rootCmd.AddCommand(serveCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
