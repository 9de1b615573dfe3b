// loopcore is the governance-first event-sourced platform's server:
// it wires the event log, outbox, projection poller, loop governor,
// worker bridge, oracle runner, and the HTTP API into one process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/governedloop/core/pkg/api"
	"github.com/governedloop/core/pkg/bus"
	"github.com/governedloop/core/pkg/config"
	"github.com/governedloop/core/pkg/database"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/evidence"
	"github.com/governedloop/core/pkg/governor"
	"github.com/governedloop/core/pkg/oracle"
	"github.com/governedloop/core/pkg/outbox"
	"github.com/governedloop/core/pkg/ports"
	"github.com/governedloop/core/pkg/projection"
	"github.com/governedloop/core/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Verification profile: %s", cfg.VerificationProfile)

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL database")

	events := eventlog.NewPostgresStore(dbClient.DB())
	connString := postgresConnString(dbConfig)
	msgBus := bus.NewPostgresBus(dbClient.DB(), connString)
	defer func() {
		if err := msgBus.Close(ctx); err != nil {
			log.Printf("Error closing message bus: %v", err)
		}
	}()

	projector := projection.NewProjector(events, logger)
	poller, err := projection.NewPoller(ctx, projector)
	if err != nil {
		log.Fatalf("Failed to build initial projection: %v", err)
	}

	planStore := governor.NewPlanStore()
	integrityTracker := governor.NewIntegrityTracker()

	publisher := outbox.NewPublisher(events, msgBus, 100, logger)
	sweeper := outbox.NewSweeper(events, 24*time.Hour, logger)

	gov := governor.NewGovernor(events, poller.Current, planStore, integrityTracker, systemClock{}, cfg.Portals, logger)

	workerEndpoint := getEnv("WORKER_ENDPOINT", "http://localhost:9090/invoke")
	httpInvoker := worker.NewHTTPInvoker(workerEndpoint, nil)
	invoker := worker.NewBreakerInvoker(httpInvoker)
	bridge := worker.NewBridge(events, msgBus, invoker, systemClock{}, logger)

	suiteRegistry := oracle.NewMemoryRegistry()
	evidenceStore := evidence.NewMemoryStore()
	sandbox := oracle.NewSandboxBreaker(oracle.NewContainerSandbox())
	oracleRunner := oracle.NewRunner(events, suiteRegistry, evidenceStore, nil, sandbox, "")
	_ = oracleRunner // wired for use by a future verification-triggered run dispatcher

	server := api.NewServer(cfg, dbClient, events, poller.Current, systemClock{})

	runBackground(ctx, "projection poller", func(ctx context.Context) error {
		return poller.Start(ctx, "")
	}, logger)
	runBackground(ctx, "outbox publisher", func(ctx context.Context) error {
		return publisher.Start(ctx, "")
	}, logger)
	runBackground(ctx, "outbox sweeper", func(ctx context.Context) error {
		return sweeper.Start(ctx, "")
	}, logger)
	runBackground(ctx, "loop governor", func(ctx context.Context) error {
		return gov.Start(ctx, "")
	}, logger)
	runBackground(ctx, "worker bridge", func(ctx context.Context) error {
		return bridge.Start(ctx)
	}, logger)

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		log.Printf("Health check available at: http://localhost:%s/health", httpPort)
		if err := server.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}
}

// runBackground starts fn in a goroutine and logs (rather than
// crashes the process on) a non-nil, non-context-cancellation error,
// since a background component failing should not take the HTTP API
// down with it.
func runBackground(ctx context.Context, name string, fn func(context.Context) error, logger *slog.Logger) {
	go func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Error("background component exited with error", "component", name, "error", err)
		}
	}()
}

func postgresConnString(cfg database.Config) string {
	return "host=" + cfg.Host +
		" port=" + strconv.Itoa(cfg.Port) +
		" user=" + cfg.User +
		" password=" + cfg.Password +
		" dbname=" + cfg.Database +
		" sslmode=" + cfg.SSLMode
}

// systemClock is the ports.Clock adapter reading the real wall clock
// (§4.3 permits clock reads only at I/O boundaries, never inside a
// pure projection apply function — Governor.SweepOnce is such a
// boundary).
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

var _ ports.Clock = systemClock{}
