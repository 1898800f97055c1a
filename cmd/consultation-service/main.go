package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mindgrid/psyconsult/internal/booking"
	"github.com/mindgrid/psyconsult/internal/consumer"
	"github.com/mindgrid/psyconsult/internal/handlers"
	"github.com/mindgrid/psyconsult/internal/inbox"
	"github.com/mindgrid/psyconsult/internal/outbox"
	"github.com/mindgrid/psyconsult/internal/payments"
	"github.com/mindgrid/psyconsult/internal/storage"
	"github.com/mindgrid/psyconsult/libs/auth"
	"github.com/mindgrid/psyconsult/libs/config"
	"github.com/mindgrid/psyconsult/libs/db"
	"github.com/mindgrid/psyconsult/libs/httpx"
	"github.com/mindgrid/psyconsult/libs/kafkax"
	otelx "github.com/mindgrid/psyconsult/libs/otel"
	"github.com/mindgrid/psyconsult/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "consultation-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	providerRepo := storage.NewProviderRepository(pool)
	availabilityRepo := storage.NewAvailabilityRepository(pool)
	consultationRepo := storage.NewConsultationRepository(pool)
	paymentEventRepo := storage.NewPaymentEventRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	clock := func() time.Time { return time.Now().UTC() }
	svc := booking.NewService(pool, providerRepo, availabilityRepo, consultationRepo, outboxRepo, logger, clock)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if topic := strings.TrimSpace(config.String("KAFKA_SETTLEMENT_TOPIC", "billing.payment.settled.v1")); topic != "" && kafkaBrokers != "" {
		settlementConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: config.String("KAFKA_GROUP_ID", "consultation-service"),
			Topic:   topic,
		}, payments.NewSettlementHandler(consultationRepo, logger))
		go settlementConsumer.Run(ctx)
	}

	scheduleHandler := handlers.NewScheduleHandler(svc, logger)
	consultationHandler := handlers.NewConsultationHandler(svc, logger)
	stripeHandler := payments.NewWebhookHandler(
		paymentEventRepo,
		consultationRepo,
		logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		time.Duration(config.Int("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300))*time.Second,
	)

	verifier := auth.NewVerifier(
		config.String("AUTH_JWKS_URL", ""),
		config.String("AUTH_JWT_SECRET", ""),
	)
	guard := func(h http.HandlerFunc) http.Handler {
		return verifier.Middleware(h)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.Handle("/api/v1/schedule", guard(scheduleHandler.Schedule))
	mux.Handle("/api/v1/schedule/week", guard(scheduleHandler.Week))
	mux.Handle("/api/v1/consultations", guard(consultationHandler.Consultations))
	mux.Handle("/api/v1/consultations/transition", guard(consultationHandler.Transition))
	mux.HandleFunc("/api/v1/payments/stripe/webhook", stripeHandler.Stripe)

	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		rateLimit = httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service).Middleware(logger, true)
	} else {
		rateLimit = httpx.NewRateLimiter(limit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "consultation")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
