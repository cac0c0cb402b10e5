package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/hollowbrook/stablekeep/internal/adapter/fsm"
	"github.com/hollowbrook/stablekeep/internal/adapter/memory"
	"github.com/hollowbrook/stablekeep/internal/adapter/otel"
	riveradapter "github.com/hollowbrook/stablekeep/internal/adapter/river"
	"github.com/hollowbrook/stablekeep/internal/adapter/sqlite"
	"github.com/hollowbrook/stablekeep/internal/app"
	"github.com/hollowbrook/stablekeep/internal/domain"

	handler "github.com/hollowbrook/stablekeep/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("stablekeep: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "stablekeep.db")
	storeKind := envOrDefault("STORE", "sqlite")

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	var store domain.FacilityStore
	var publisher domain.MovementPublisher
	var stopJobs func(context.Context) error

	switch storeKind {
	case "memory":
		// Ephemeral mode for demos and local experiments. Departure
		// records go to the log instead of a queue.
		store = memory.New()
		publisher = &logPublisher{}
	case "sqlite":
		db, err := otel.OpenDB(dbPath)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		sqlStore, err := sqlite.NewFromDB(db)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		store = sqlStore

		client, err := riveradapter.Setup(ctx, db)
		if err != nil {
			return fmt.Errorf("river: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("starting river: %w", err)
		}
		stopJobs = client.Stop
		publisher = riveradapter.NewPublisher(client)
	default:
		return fmt.Errorf("unsupported STORE: %q (use \"sqlite\" or \"memory\")", storeKind)
	}

	store = otel.NewTracingStore(store)
	publisher = otel.NewTracingPublisher(publisher)

	// --- Application ---
	rooms := app.NewRoomService(store)
	assignments := app.NewAssignmentService(store)
	workflow := app.NewTerminationWorkflow(store, publisher, fsm.New())

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("stablekeep", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("stablekeep", "0.1.0"))
	handler.Register(api, rooms, assignments, workflow)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("stablekeep listening", "port", port)
		slog.Info("API docs", "url", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if stopJobs != nil {
		if err := stopJobs(shutdownCtx); err != nil {
			slog.Error("river shutdown", "error", err)
		}
	}

	slog.Info("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logPublisher records departures in the log. Used in memory mode where no
// job queue is running.
type logPublisher struct{}

func (p *logPublisher) PublishDeparture(ctx context.Context, record domain.MovementRecord) error {
	slog.InfoContext(ctx, "departure record",
		"assignment_id", record.AssignmentID,
		"entity_id", record.EntityID,
		"destination", record.Destination,
	)
	return nil
}
