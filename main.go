package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	escalationapp "dtr-monitor/internal/escalation/application"
	escalationconfig "dtr-monitor/internal/escalation/config"
	escalationrepo "dtr-monitor/internal/escalation/infrastructure/postgres"
	escalationhttp "dtr-monitor/internal/escalation/interfaces/http"
	"dtr-monitor/internal/notify"
	"dtr-monitor/internal/observability/metrics"
	telemetry "dtr-monitor/internal/telemetry/domain"
	telemetryrepo "dtr-monitor/internal/telemetry/infrastructure/postgres"
	telemetryredis "dtr-monitor/internal/telemetry/infrastructure/redis"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	readingRepo := telemetryrepo.NewReadingRepository(db)
	notificationRepo := escalationrepo.NewNotificationRepository(db)

	var readings telemetry.ReadingSource = readingRepo
	if cfg.RedisAddr != "" {
		cache, err := telemetryredis.NewLatestCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, readingRepo,
			telemetryredis.WithTTL(cfg.RedisTTL))
		if err != nil {
			logger.Fatalf("reading cache error: %v", err)
		}
		defer cache.Close()
		readings = cache
		logger.Printf("reading cache enabled: addr=%s", cfg.RedisAddr)
	}

	levels, err := escalationconfig.LoadLevels(cfg.LevelsConfigPath)
	if err != nil {
		logger.Fatalf("escalation levels error: %v", err)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMSGatewayURL != "" {
		tpl, err := notify.NewTemplate(cfg.SMSTemplate)
		if err != nil {
			logger.Fatalf("sms template error: %v", err)
		}
		gateway, err := notify.NewSMSGateway(cfg.SMSGatewayURL, tpl, notify.WithAPIKey(cfg.SMSGatewayKey))
		if err != nil {
			logger.Fatalf("sms gateway error: %v", err)
		}
		notifier = gateway
	}

	engine, err := escalationapp.NewEngine(notificationRepo, readings, notifier, levels,
		escalationapp.WithLogger(logger),
		escalationapp.WithTemplateID(cfg.SMSTemplateID),
		escalationapp.WithRequestTimeout(cfg.EngineTimeout),
	)
	if err != nil {
		logger.Fatalf("escalation engine error: %v", err)
	}
	defer engine.Close()

	poller, err := escalationapp.NewPoller(readingRepo, readings, engine,
		escalationapp.WithInterval(cfg.PollInterval),
		escalationapp.WithPollerLogger(logger),
	)
	if err != nil {
		logger.Fatalf("poller error: %v", err)
	}
	go poller.Start(context.Background())

	escalationHandler, err := escalationhttp.NewHandler(notificationRepo, poller)
	if err != nil {
		logger.Fatalf("escalation handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/escalations", escalationHandler)
	mux.Handle("/api/v1/escalations/export", escalationHandler)
	mux.Handle("/api/v1/escalations/poll", escalationHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	PollInterval     time.Duration
	EngineTimeout    time.Duration
	LevelsConfigPath string
	SMSGatewayURL    string
	SMSGatewayKey    string
	SMSTemplate      string
	SMSTemplateID    string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisTTL         time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		PollInterval:     getenvDuration("POLL_INTERVAL", time.Minute),
		EngineTimeout:    getenvDuration("ENGINE_TIMEOUT", 10*time.Second),
		LevelsConfigPath: getenvDefault("ESCALATION_LEVELS_CONFIG", ""),
		SMSGatewayURL:    getenvDefault("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:    getenvDefault("SMS_GATEWAY_KEY", ""),
		SMSTemplate:      getenvDefault("SMS_TEMPLATE", ""),
		SMSTemplateID:    getenvDefault("SMS_TEMPLATE_ID", "dtr-abnormality"),
		RedisAddr:        getenvDefault("REDIS_ADDR", ""),
		RedisPassword:    getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:          getenvIntDefault("REDIS_DB", 0),
		RedisTTL:         getenvDuration("REDIS_READING_TTL", 90*time.Second),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
