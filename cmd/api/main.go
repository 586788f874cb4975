package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/tabletide/pos/internal/access"
	"github.com/tabletide/pos/internal/api/rest/handler"
	"github.com/tabletide/pos/internal/api/rest/middleware"
	"github.com/tabletide/pos/internal/authn"
	"github.com/tabletide/pos/internal/keyfetcher"
	"github.com/tabletide/pos/internal/merge"
	"github.com/tabletide/pos/internal/notify"
	"github.com/tabletide/pos/internal/repository/postgres"
	"github.com/tabletide/pos/internal/settlement"
	"github.com/tabletide/pos/internal/split"
)

const (
	DefaultPort = "8080"

	JWTClockSkewTolerance = 5 * time.Minute
	TokenTTL              = 8 * time.Hour

	ShutdownTimeout = 10 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("api_starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := initializeDatabase(ctx, fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_DB"),
		os.Getenv("POSTGRES_SSL"),
	))
	if err != nil {
		logger.Error("db_init_failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := postgres.ApplySchema(ctx, dbPool); err != nil {
		logger.Error("schema_apply_failed", "error", err)
		os.Exit(1)
	}

	rabbit, err := notify.Connect(os.Getenv("RABBITMQ_URL"), logger)
	if err != nil {
		logger.Error("rabbitmq_init_failed", "error", err)
		os.Exit(1)
	}
	defer rabbit.Close()

	// Repositories
	orderRepo := postgres.NewOrderRepository(dbPool)
	paymentRepo := postgres.NewPaymentRepository(dbPool)
	auditRepo := postgres.NewAuditRepository(dbPool)

	// Messaging
	publisher := notify.NewPublisher(rabbit, logger)
	subscriber := notify.NewSubscriber(rabbit, logger)
	alerter := notify.NewSlogAlerter(logger)

	// Engines
	splitEngine := split.NewEngine(orderRepo, auditRepo, logger)
	mergeEngine := merge.NewEngine(orderRepo, auditRepo, logger)
	settler := settlement.NewSettler(paymentRepo, orderRepo, publisher, alerter, logger)

	guard, err := access.NewGuard()
	if err != nil {
		logger.Error("guard_init_failed", "error", err)
		os.Exit(1)
	}

	jwtMiddleware := middleware.NewJWTAuthMiddleware(middleware.JWTConfig{
		KeyFetcher: keyfetcher.FromBase64Env("PUBLIC_KEY_BASE64"),
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
		ClockSkew:  JWTClockSkewTolerance,
	})

	// REST handlers
	authHandler := handler.NewAuthHandler(
		authn.NewStaticAuthenticator(loadRoster()),
		&handler.AuthConfig{
			KeyFetcher: keyfetcher.FromBase64Env("PRIVATE_KEY_BASE64"),
			Issuer:     os.Getenv("JWT_ISSUER"),
			Audience:   os.Getenv("JWT_AUDIENCE"),
			TokenTTL:   TokenTTL,
		},
		logger,
	)
	orderHandler := handler.NewOrderHandler(orderRepo, guard, publisher, logger)
	splitHandler := handler.NewSplitHandler(orderRepo, splitEngine, guard, publisher, logger)
	mergeHandler := handler.NewMergeHandler(orderRepo, mergeEngine, guard, publisher, logger)
	settlementHandler := handler.NewSettlementHandler(orderRepo, settler, guard, alerter, logger)

	mux := buildServeMux(authHandler, orderHandler, splitHandler, mergeHandler, settlementHandler, jwtMiddleware)

	port := os.Getenv("PORT")
	if port == "" {
		port = DefaultPort
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		// Live table updates from other terminals: re-fetch is idempotent,
		// so this terminal just refreshes its view of the table.
		return subscriber.Listen(groupCtx, func(ctx context.Context, event notify.TableChanged) {
			orders, err := orderRepo.GetOrdersByTable(ctx, event.TableID)
			if err != nil {
				logger.Warn("table_refresh_failed", "table_id", event.TableID, "error", err)
				return
			}
			logger.Info("table_refreshed", "table_id", event.TableID, "order_count", len(orders))
		})
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api_stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("api_stopped")
}

// initializeDatabase creates a pool and verifies connectivity.
func initializeDatabase(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("create_pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping_db: %w", err)
	}

	return pool, nil
}

// loadRoster reads the staff roster from STAFF_ROSTER, formatted as
// comma separated "username:pin:role" entries.
func loadRoster() map[string]authn.Credential {
	roster := make(map[string]authn.Credential)
	for _, entry := range strings.Split(os.Getenv("STAFF_ROSTER"), ",") {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		roster[parts[0]] = authn.Credential{PIN: parts[1], Role: parts[2]}
	}
	return roster
}

// buildServeMux wires routes behind the JWT middleware.
func buildServeMux(
	authHandler *handler.AuthHandler,
	orderHandler *handler.OrderHandler,
	splitHandler *handler.SplitHandler,
	mergeHandler *handler.MergeHandler,
	settlementHandler *handler.SettlementHandler,
	jwtMiddleware *middleware.JWTAuthMiddleware,
) *http.ServeMux {
	root := http.NewServeMux()
	root.Handle("GET /health", http.HandlerFunc(handleHealthCheck))
	root.Handle("POST /auth/signin", http.HandlerFunc(authHandler.SignIn))

	api := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", jwtMiddleware.Handler(api)))

	api.Handle("POST /orders", http.HandlerFunc(orderHandler.CreateOrder))
	api.Handle("GET /orders/{id}", http.HandlerFunc(orderHandler.GetOrderByID))
	api.Handle("GET /tables/{id}/orders", http.HandlerFunc(orderHandler.GetOrdersByTable))
	api.Handle("POST /orders/{id}/split", http.HandlerFunc(splitHandler.SplitOrder))
	api.Handle("POST /orders/merge", http.HandlerFunc(mergeHandler.MergeOrders))
	api.Handle("POST /orders/{id}/payments", http.HandlerFunc(settlementHandler.AddPayment))
	api.Handle("DELETE /orders/{id}/payments/{paymentID}", http.HandlerFunc(settlementHandler.RemovePayment))
	api.Handle("POST /orders/{id}/complete", http.HandlerFunc(settlementHandler.CompleteOrder))
	return root
}

// handleHealthCheck returns a basic health status.
func handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
