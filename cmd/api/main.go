package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/habits/internal/api"
	"example.com/habits/internal/config"
	"example.com/habits/internal/domain"
	"example.com/habits/internal/events"
	"example.com/habits/internal/logging"
	"example.com/habits/internal/observability"
	"example.com/habits/internal/outbox"
	"example.com/habits/internal/persistence"
	"example.com/habits/internal/persistence/memory"
	"example.com/habits/internal/persistence/postgres"
	"example.com/habits/internal/stats"
	httptransport "example.com/habits/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open habit store")
	}
	defer closeRepo()

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.EventsEnabled() {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		publisher = outbox.NewKafkaPublisher(producer, cfg.HabitEventsTopic, cfg.PublishTimeout)
		logger.WithField("topic", cfg.HabitEventsTopic).Info("publishing habit events to kafka")
	}

	if cfg.SeedSampleData {
		if err := seed(ctx, repo, cfg, logger); err != nil {
			logger.WithError(err).Fatal("failed to seed sample data")
		}
	}
	if habits, err := repo.ListHabits(ctx); err == nil {
		observability.SetHabitCount(len(habits))
	}

	service := domain.NewService(repo, publisher, domain.WithLogger(logger))
	engine := stats.NewEngine(repo, stats.WithLocation(cfg.Location))
	handler := api.NewHandler(service, engine, api.WithLocation(cfg.Location), api.WithLogger(logger))

	router := mux.NewRouter()
	router.Use(httptransport.AccessLog(logger))
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.RequestID(httptransport.CORS(cfg.CORSAllowedOrigin)(router)),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(logrus.Fields{
			"address":  cfg.HTTPAddress,
			"backend":  cfg.StoreBackend,
			"timezone": cfg.Location.String(),
		}).Info("habit-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}

func openRepository(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (domain.HabitRepository, func(), error) {
	if cfg.StoreBackend != config.BackendPostgres {
		return memory.NewRepository(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("connected to postgres")
	return postgres.NewRepository(pool), pool.Close, nil
}

// seed only populates an empty store so restarts against Postgres do not
// duplicate the sample habits.
func seed(ctx context.Context, repo domain.HabitRepository, cfg config.Config, logger logrus.FieldLogger) error {
	existing, err := repo.ListHabits(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.WithField("habits", len(existing)).Info("store not empty, skipping sample data")
		return nil
	}
	n, err := persistence.Seed(ctx, repo, persistence.SeedOptions{Now: time.Now(), Location: cfg.Location})
	if err != nil {
		return err
	}
	logger.WithField("habits", n).Info("seeded sample data")
	return nil
}
