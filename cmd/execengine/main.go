package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"execution-systemv1/config"
	"execution-systemv1/internal/api"
	"execution-systemv1/internal/broker"
	"execution-systemv1/internal/engine"
	"execution-systemv1/internal/gateway"
	"execution-systemv1/internal/instrument"
	"execution-systemv1/internal/logger"
	"execution-systemv1/internal/metrics"
	"execution-systemv1/internal/model"
	"execution-systemv1/internal/notification"
	"execution-systemv1/internal/report"
	"execution-systemv1/internal/risk"
	"execution-systemv1/internal/session"
	memorystore "execution-systemv1/internal/store/memory"
	redisstore "execution-systemv1/internal/store/redis"
	sqlitestore "execution-systemv1/internal/store/sqlite"
	"execution-systemv1/pkg/smartconnect"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[execengine] starting...")

	// Load .env if present, otherwise rely on the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	slogger := logger.Init("execengine", logger.LevelFromString(cfg.LogLevel))

	policy, err := report.ParsePolicy(cfg.SuccessPolicy)
	if err != nil {
		log.Fatalf("[execengine] %v", err)
	}

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	go metrics.Serve(cfg.MetricsAddr, health)

	// ---- SQLite audit trail ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[execengine] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	log.Println("[execengine] sqlite writer ready")

	// ---- Session / risk state stores ----
	var (
		sessionStore model.SessionStore
		riskStore    model.RiskStore
	)
	redisStore, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[execengine] WARNING: redis init failed: %v (state will not survive restarts)", err)
		sessionStore = memorystore.NewSessionStore()
		riskStore = memorystore.NewRiskStore()
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	} else {
		defer redisStore.Close()
		sessionStore = redisStore
		riskStore = redisStore.Risk()
		health.StartLivenessChecker(ctx, redisStore.Client(), sqlWriter.DB(), 10*time.Second)
		log.Println("[execengine] redis store ready")
	}

	// ---- Broker client ----
	sc := smartconnect.New(smartconnect.Config{APIKey: cfg.AngelAPIKey})
	angel := broker.NewAngelOne(sc, cfg.SessionTTL, slogger)

	sessions := session.NewManager(angel, sessionStore, session.Credentials{
		ClientCode: cfg.AngelClientCode,
		Password:   cfg.AngelPassword,
		TOTPSecret: cfg.AngelTOTPSecret,
	}, slogger, session.WithCounters(prom.SessionLogins, prom.SessionCacheHits))

	gateOpts := []risk.Option{}
	if cfg.MarketHoursOnly {
		gateOpts = append(gateOpts, risk.WithMarketHoursCheck())
	}
	gate := risk.NewGate(riskStore, risk.Limits{
		DailyLoss:  cfg.DailyLossLimit,
		WeeklyLoss: cfg.WeeklyLossLimit,
	}, slogger, gateOpts...)

	hub := gateway.NewHub()

	eng := engine.New(engine.Deps{
		Sessions: sessions,
		Resolver: instrument.NewResolver(angel, cfg.FallbackLotSize, slogger),
		Gate:     gate,
		Placer:   angel,
		Reporter: report.New(policy),
		Writer:   sqlWriter,
		Hub:      hub,
		Notifier: notification.NewLogNotifier(),
		Metrics:  prom,
		Log:      slogger,
	})

	// ---- HTTP API ----
	srv := api.NewServer(eng, gate, hub, sqlWriter, api.Defaults{
		MaxLotsPerOrder: cfg.MaxLotsPerOrder,
		InterBatchDelay: cfg.InterBatchDelay,
		OrderTimeout:    cfg.OrderTimeout,
		RiskFraction:    cfg.RiskFraction,
	}, slogger)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}
	go func() {
		log.Printf("[execengine] api listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[execengine] api server: %v", err)
		}
	}()

	// ---- Keep the breaker gauge and health flag current ----
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st, err := gate.State(ctx)
				if err != nil {
					continue
				}
				health.SetBreakerLatched(st.CircuitBreakerActive)
				if st.CircuitBreakerActive {
					prom.CircuitBreakerState.Set(1)
				} else {
					prom.CircuitBreakerState.Set(0)
				}
			}
		}
	}()

	<-sigCh
	log.Println("[execengine] shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[execengine] api shutdown: %v", err)
	}
	log.Println("[execengine] stopped")
}
