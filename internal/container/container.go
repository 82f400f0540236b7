package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/placepal/placepal/app/db"
	"github.com/placepal/placepal/config"
	"github.com/placepal/placepal/internal/api/capability"
	"github.com/placepal/placepal/internal/api/feedback"
	generativeAI "github.com/placepal/placepal/internal/api/generative_ai"
	"github.com/placepal/placepal/internal/api/intent"
	"github.com/placepal/placepal/internal/api/location"
	"github.com/placepal/placepal/internal/api/recommend"
	"github.com/placepal/placepal/internal/api/search"
	"github.com/placepal/placepal/internal/api/session"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	RecommendHandler *recommend.Handler
	FeedbackHandler  *feedback.Handler
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// The language model is an enhancement; the pipeline runs without it
	// on deterministic fallbacks.
	var ai generativeAI.Completer
	if cfg.Assistant.LLMEnabled {
		client, err := generativeAI.NewAIClient(context.Background())
		if err != nil {
			logger.Warn("LLM disabled, classification and narration use heuristics only", slog.Any("error", err))
		} else {
			ai = client
		}
	}

	invoker := capability.NewHTTPClient(logger)
	catalog := capability.NewCatalogResolver(invoker, logger)

	geocoder := capability.NewGeocoder(catalog, invoker, cfg.Places.Endpoint, cfg.Places.Credential, logger)
	resolver := location.NewResolver(geocoder, logger)

	searchCfg := search.Config{
		Endpoint:            cfg.Places.Endpoint,
		Credential:          cfg.Places.Credential,
		DefaultRadiusMeters: cfg.Places.DefaultRadiusMeters,
		MinRadiusMeters:     cfg.Places.MinRadiusMeters,
		MaxRadiusMeters:     cfg.Places.MaxRadiusMeters,
		LadderMeters:        cfg.Places.RadiusLadderMeters,
		MaxResults:          cfg.Places.MaxResults,
	}
	orchestrator := search.NewOrchestrator(catalog, invoker, searchCfg, logger)

	classifier := intent.NewClassifier(ai, cfg.Assistant.LLMEnabled, logger)
	sessionRepo := session.NewRepository(pool, logger)
	feedbackRepo := feedback.NewRepository(pool, logger)
	eventRepo := recommend.NewEventRepository(pool, logger)

	recommendService := recommend.NewService(
		classifier,
		resolver,
		orchestrator,
		sessionRepo,
		feedbackRepo,
		eventRepo,
		ai,
		recommend.Config{
			DefaultRadiusMeters: cfg.Places.DefaultRadiusMeters,
			MaxDistanceMeters:   cfg.Assistant.MaxDistanceMeters,
			RegionBias:          cfg.Assistant.RegionBias,
		},
		logger,
	)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		RecommendHandler: recommend.NewHandler(recommendService, logger),
		FeedbackHandler:  feedback.NewHandler(feedbackRepo, logger),
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations(connectionURL string) error {
	return database.RunMigrations(connectionURL, c.Logger)
}
