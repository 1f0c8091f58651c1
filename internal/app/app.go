package app

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dugouthq/lineup-api/external/optimizer"
	"github.com/dugouthq/lineup-api/internal/config"
	"github.com/dugouthq/lineup-api/internal/domain/access"
	"github.com/dugouthq/lineup-api/internal/domain/game"
	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/domain/player"
	"github.com/dugouthq/lineup-api/internal/domain/team"
	"github.com/dugouthq/lineup-api/internal/infrastructure/identity"
	"github.com/dugouthq/lineup-api/internal/infrastructure/repository/memory"
	"github.com/dugouthq/lineup-api/internal/infrastructure/repository/postgres"
	"github.com/dugouthq/lineup-api/internal/interfaces/httpapi"
	idgen "github.com/dugouthq/lineup-api/internal/platform/id"
	"github.com/dugouthq/lineup-api/internal/platform/logging"
	"github.com/dugouthq/lineup-api/internal/platform/resilience"
	"github.com/dugouthq/lineup-api/internal/usecase"
)

type repositories struct {
	teams   team.Repository
	players player.Repository
	games   game.Repository
	lineups lineup.Repository
	access  access.Repository
}

// NewHTTPServer wires repositories, services and clients into a ready
// http.Server. The returned cleanup closes the database pool when one was
// opened; it is a no-op in memory mode.
func NewHTTPServer(cfg config.Config, logger *logging.Logger) (*http.Server, func() error, error) {
	if logger == nil {
		logger = logging.Default()
	}

	repos, cleanup, err := buildRepositories(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	idGen := idgen.NewRandomGenerator()

	accessSvc := usecase.NewAccessService(
		repos.access,
		repos.teams,
		idGen,
		logger,
		cfg.AccessGrantDuration,
		cfg.PriceAmountCents,
		cfg.PriceCurrency,
	)
	statsSvc := usecase.NewStatsService(repos.players, repos.games, repos.lineups, logger)
	lineupSvc := usecase.NewLineupService(
		repos.teams,
		repos.players,
		repos.games,
		repos.lineups,
		repos.access,
		idGen,
		logger,
	)

	var assigner usecase.PositionAssigner
	if cfg.OptimizerBaseURL != "" {
		assigner = optimizer.NewClient(optimizer.Config{
			BaseURL: cfg.OptimizerBaseURL,
			Timeout: cfg.OptimizerTimeout,
			APIKey:  cfg.OptimizerAPIKey,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.OptimizerCircuitEnabled,
				FailureThreshold: cfg.OptimizerCircuitFailureCount,
				OpenTimeout:      cfg.OptimizerCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.OptimizerCircuitHalfOpenMax,
			},
		}, logger)
	} else {
		logger.Warn("optimizer base URL not set, auto assign is disabled")
	}
	optimizeSvc := usecase.NewOptimizeService(repos.players, statsSvc, lineupSvc, assigner, logger)

	identityClient := identity.NewClient(identity.Config{
		BaseURL:        cfg.IdentityBaseURL,
		IntrospectPath: cfg.IdentityIntrospectPath,
		Timeout:        cfg.IdentityTimeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.IdentityCircuitEnabled,
			FailureThreshold: cfg.IdentityCircuitFailureCount,
			OpenTimeout:      cfg.IdentityCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.IdentityCircuitHalfOpenMax,
		},
	}, logger)

	handler := httpapi.NewHandler(accessSvc, statsSvc, lineupSvc, optimizeSvc, logger)
	router := httpapi.NewRouter(handler, identityClient, logger, cfg.CORSAllowedOrigins, cfg.PaymentWebhookToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		_ = cleanup()
		return nil, nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, cleanup, nil
}

func buildRepositories(cfg config.Config, logger *logging.Logger) (repositories, func() error, error) {
	if cfg.DBURL == "" {
		logger.Info("storage mode", "mode", "memory")
		return repositories{
			teams:   memory.NewTeamRepository(memory.SeedTeams()),
			players: memory.NewPlayerRepository(memory.SeedPlayers()),
			games:   memory.NewGameRepository(memory.SeedGames()),
			lineups: memory.NewLineupRepository(),
			access:  memory.NewAccessRepository(memory.SeedPromoCodes()),
		}, func() error { return nil }, nil
	}

	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Connect("postgres", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(dbNameFromURL(dsn)),
	)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("storage mode", "mode", "postgres", "db_name", dbNameFromURL(dsn))

	return repositories{
		teams:   postgres.NewTeamRepository(db),
		players: postgres.NewPlayerRepository(db),
		games:   postgres.NewGameRepository(db),
		lineups: postgres.NewLineupRepository(db),
		access:  postgres.NewAccessRepository(db),
	}, closeDB(db), nil
}

func closeDB(db *sqlx.DB) func() error {
	return func() error {
		return db.Close()
	}
}
