package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mayurbt12/reminder-service/internal/analytics"
	"github.com/mayurbt12/reminder-service/internal/api"
	"github.com/mayurbt12/reminder-service/internal/circuitbreaker"
	"github.com/mayurbt12/reminder-service/internal/config"
	"github.com/mayurbt12/reminder-service/internal/leaderelection"
	"github.com/mayurbt12/reminder-service/internal/metrics"
	"github.com/mayurbt12/reminder-service/internal/notify"
	"github.com/mayurbt12/reminder-service/internal/scheduler"
	"github.com/mayurbt12/reminder-service/internal/service"
	"github.com/mayurbt12/reminder-service/internal/store"
	"github.com/mayurbt12/reminder-service/internal/store/postgres"
	"github.com/mayurbt12/reminder-service/internal/store/sqlite"
)

// reminderStore is what main needs from either database backend.
type reminderStore interface {
	store.Store
	PingContext(ctx context.Context) error
	Close() error
}

// analyticsAdapter adapts analytics.RedisSink to scheduler.AnalyticsSink.
// Write errors are logged and dropped so a Redis outage never stalls the
// due scan.
type analyticsAdapter struct {
	sink *analytics.RedisSink
}

func (a *analyticsAdapter) Record(ctx context.Context, ownerID, outcome string, at time.Time) {
	err := a.sink.Write(ctx, analytics.Event{
		OwnerID:    ownerID,
		Outcome:    outcome,
		OccurredAt: at,
	})
	if err != nil {
		log.Printf("reminderd: analytics write failed: %v", err)
	}
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`reminderd - reminder lifecycle and due-detection service

Usage:
  reminderd <command>

Commands:
  serve      Start the HTTP API and due-scan scheduler
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL URL or SQLite path (default: "file:reminders.db")
  REDIS_ADDR                Redis address for analytics counters (optional)
  HTTP_ADDR                 HTTP server address (default: ":8085", PORT honored)

  SCAN_INTERVAL             Due-scan interval (default: "60s")
  SCAN_BATCH_LIMIT          Max reminders processed per scan (default: "100")
  SCHEDULER_ENABLED         Run the due scan (default: "true")

  NOTIFY_TIMEOUT            Per-notification delivery timeout (default: "30s")
  NOTIFY_POLICY             Post-notification transition: mark|complete (default: "mark")
  NOTIFY_WEBHOOK_URL        Webhook endpoint; notifications are logged if unset
  NOTIFY_WEBHOOK_SECRET     HMAC-SHA256 signing secret for webhook payloads

  CONFLICT_MAX_RETRIES      Update retries after a concurrent-write conflict (default: "3")
  MAX_REMINDERS_PER_USER    Per-owner reminder cap (default: "1000")

  DB_OP_TIMEOUT             Database operation timeout, PostgreSQL only (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  CIRCUIT_BREAKER_THRESHOLD Failures before a destination's circuit opens,
                            0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open-circuit cooldown before a probe (default: "2m")

  LEADER_ELECTION_ENABLED   Elect a single due-scan runner across instances,
                            PostgreSQL only (default: "false")
  LEADER_RETRY_INTERVAL     Follower lock retry interval (default: "15s")
  LEADER_HEARTBEAT_INTERVAL Leader connection heartbeat (default: "5s")

  ANALYTICS_WINDOW          Counter bucket size: 1m, 5m or 1h (default: "1m")
  ANALYTICS_RETENTION       Counter TTL in Redis (default: "168h")`)
}

func runServe() int {
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(cfg)

	st, pgDB, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		return exitRuntimeError
	}
	defer st.Close()

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("reminderd: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("reminderd: METRICS_ENABLED not set; metrics disabled")
	}

	svc := service.New(st, service.Config{
		MaxRemindersPerOwner: cfg.MaxRemindersPerUser,
		ConflictRetries:      cfg.ConflictMaxRetries,
	})
	if metricsSink != nil {
		svc = svc.WithMetrics(metricsSink)
	}

	notifier := buildNotifier(cfg)

	// Wire analytics if Redis is configured
	var analyticsSink scheduler.AnalyticsSink
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, cfg.AnalyticsWindow, cfg.AnalyticsRetention)
		analyticsSink = &analyticsAdapter{sink: sink}
		log.Printf("reminderd: analytics enabled (redis=%s, window=%s)", cfg.RedisAddr, cfg.AnalyticsWindow)
	} else {
		log.Println("reminderd: REDIS_ADDR not set; analytics disabled")
	}

	apiHandler := api.NewHandler(svc).WithHealthChecker(st)

	mux := http.NewServeMux()
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("reminderd: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("reminderd: http server error: %v", err)
		}
	}()

	// The scheduler gets its own context so shutdown can stop the due
	// scan before the HTTP server drains.
	var schedulerWg sync.WaitGroup
	var cancelScheduler context.CancelFunc

	if cfg.SchedulerEnabled {
		sched := scheduler.New(
			scheduler.Config{
				Interval:      cfg.ScanInterval,
				BatchLimit:    cfg.ScanBatchLimit,
				NotifyTimeout: cfg.NotifyTimeout,
				Policy:        scheduler.Policy(cfg.NotifyPolicy),
			},
			st,
			notifier,
		)
		if metricsSink != nil {
			sched = sched.WithMetrics(metricsSink)
		}
		if analyticsSink != nil {
			sched = sched.WithAnalytics(analyticsSink)
		}

		var schedulerCtx context.Context
		schedulerCtx, cancelScheduler = context.WithCancel(context.Background())

		if cfg.LeaderElectionEnabled && pgDB != nil {
			// Only the advisory lock holder scans; followers idle until
			// the lock frees up.
			var scanWg sync.WaitGroup
			elector := leaderelection.New(
				pgDB,
				leaderelection.DefaultLockKey,
				cfg.LeaderRetryInterval,
				cfg.LeaderHeartbeatInterval,
				func(ctx context.Context) {
					scanWg.Add(1)
					defer scanWg.Done()
					sched.Run(ctx)
				},
				scanWg.Wait,
			)
			if metricsSink != nil {
				elector = elector.WithMetrics(metricsSink)
			}
			schedulerWg.Add(1)
			go func() {
				defer schedulerWg.Done()
				elector.Run(schedulerCtx)
			}()
			log.Printf("reminderd: leader election enabled (retry=%s, heartbeat=%s)",
				cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval)
		} else {
			schedulerWg.Add(1)
			go func() {
				defer schedulerWg.Done()
				sched.Run(schedulerCtx)
			}()
		}
		log.Printf("reminderd: scheduler enabled (interval=%s, batch=%d, policy=%s)",
			cfg.ScanInterval, cfg.ScanBatchLimit, cfg.NotifyPolicy)
	} else {
		log.Println("reminderd: SCHEDULER_ENABLED=false; due scan disabled")
	}

	log.Printf("reminderd: started (http=%s)", cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("reminderd: received signal %v, shutting down", received)

	// Phase 1: Stop scheduler (no new notifications emitted)
	if cancelScheduler != nil {
		log.Println("reminderd: stopping scheduler...")
		cancelScheduler()
		schedulerWg.Wait()
		log.Println("reminderd: scheduler stopped")
	}

	// Phase 2: Stop HTTP server with graceful shutdown
	log.Println("reminderd: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("reminderd: http server shutdown error: %v", err)
	}
	log.Println("reminderd: http server stopped")

	log.Println("reminderd: stopped")
	return exitSuccess
}

// logConfigWarnings flags configurations that are valid but risky.
func logConfigWarnings(cfg config.Config) {
	if !cfg.SchedulerEnabled {
		log.Println("reminderd: WARNING [P0]: SCHEDULER_ENABLED=false; due reminders will never be notified by this instance")
	}
	if cfg.NotifyWebhookURL != "" && cfg.NotifyWebhookSecret == "" {
		log.Println("reminderd: WARNING [P1]: NOTIFY_WEBHOOK_URL set without NOTIFY_WEBHOOK_SECRET; webhook payloads will not be signed")
	}
	if cfg.NotifyWebhookURL != "" && cfg.CircuitBreakerThreshold == 0 {
		log.Println("reminderd: WARNING [P2]: CIRCUIT_BREAKER_THRESHOLD=0; a dead webhook destination will be retried every scan")
	}
	if cfg.SchedulerEnabled && cfg.UsesPostgres() && !cfg.LeaderElectionEnabled {
		log.Println("reminderd: WARNING [P2]: shared PostgreSQL without LEADER_ELECTION_ENABLED; running multiple instances will deliver duplicate notifications")
	}
}

// openStore dispatches on the database URL scheme: postgres:// and
// postgresql:// go to PostgreSQL, anything else is a SQLite path. The
// returned *sql.DB is non-nil only for PostgreSQL; leader election
// needs it.
func openStore(cfg config.Config) (reminderStore, *sql.DB, error) {
	if cfg.UsesPostgres() {
		st, err := postgres.Open(cfg.DatabaseURL, cfg.DBOpTimeout)
		if err != nil {
			return nil, nil, err
		}
		st.SetPool(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		log.Printf("reminderd: postgres store ready (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
			cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		return st, st.DB(), nil
	}

	st, err := sqlite.Open(cfg.SQLitePath())
	if err != nil {
		return nil, nil, err
	}
	log.Printf("reminderd: sqlite store ready (path=%s)", cfg.SQLitePath())
	return st, nil, nil
}

func buildNotifier(cfg config.Config) scheduler.Notifier {
	if cfg.NotifyWebhookURL == "" {
		log.Println("reminderd: NOTIFY_WEBHOOK_URL not set; notifications go to the log")
		return notify.LogNotifier{}
	}

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.CircuitBreakerThreshold > 0 {
		breaker = circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		log.Printf("reminderd: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	log.Printf("reminderd: webhook notifier enabled (url=%s)", cfg.NotifyWebhookURL)
	return notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, breaker)
}

func runValidate() int {
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("reminderd version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
