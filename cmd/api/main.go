package main

import (
	"context"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/taskiq-ai/taskiq-backend/api/routes"
	"github.com/taskiq-ai/taskiq-backend/internal/analytics"
	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/auth"
	"github.com/taskiq-ai/taskiq-backend/internal/bot"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/internal/offers"
	"github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	"github.com/taskiq-ai/taskiq-backend/internal/usage"
	"github.com/taskiq-ai/taskiq-backend/internal/users"
	stripewebhook "github.com/taskiq-ai/taskiq-backend/internal/webhooks/stripe"
	"github.com/taskiq-ai/taskiq-backend/pkg/auth/session"
	"github.com/taskiq-ai/taskiq-backend/pkg/bigquery"
	"github.com/taskiq-ai/taskiq-backend/pkg/config"
	"github.com/taskiq-ai/taskiq-backend/pkg/db"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/metrics"
	"github.com/taskiq-ai/taskiq-backend/pkg/migrate"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox"
	"github.com/taskiq-ai/taskiq-backend/pkg/redis"
	pkgstripe "github.com/taskiq-ai/taskiq-backend/pkg/stripe"
)

const stripeWebhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "dev auto-migrate failed", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	creditRepo := credits.NewRepository(gormDB)
	usageRepo := usage.NewRepository(gormDB)
	subRepo := subscriptions.NewRepository(gormDB)
	planRepo := subscriptions.NewPlanRepository(gormDB)
	offerRepo := offers.NewRepository(gormDB)
	auditRepo := audit.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	auditService, err := audit.NewService(auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		Audit:          auditService,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{
		Repo:           userRepo,
		Audit:          auditService,
		Cache:          redisClient,
		CacheTTL:       cfg.AdminCache.TTL,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	creditsService, err := credits.NewService(credits.ServiceParams{
		DB:      dbClient,
		Repo:    creditRepo,
		Usage:   usageRepo,
		Audit:   auditService,
		Outbox:  outboxService,
		Metrics: metrics.NewCreditMetrics(nil),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credits service", err)
		os.Exit(1)
	}

	usageService, err := usage.NewService(usage.ServiceParams{
		Repo:  usageRepo,
		Audit: auditRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		DB:      dbClient,
		Repo:    subRepo,
		Plans:   planRepo,
		Credits: creditRepo,
		Users:   userRepo,
		Audit:   auditService,
		Outbox:  outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	offersService, err := offers.NewService(offers.ServiceParams{
		DB:      dbClient,
		Repo:    offerRepo,
		Plans:   planRepo,
		Subs:    subRepo,
		Credits: creditRepo,
		Audit:   auditService,
		Outbox:  outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offers service", err)
		os.Exit(1)
	}

	// Billing is optional in dev; without an API key the checkout and
	// webhook routes answer with a service-unavailable error.
	var (
		stripeClient         *pkgstripe.Client
		checkoutService      subscriptions.CheckoutService
		stripeWebhookService *stripewebhook.Service
	)
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe client", err)
			os.Exit(1)
		}

		checkoutService, err = subscriptions.NewCheckoutService(subscriptions.CheckoutServiceParams{
			Plans:         planRepo,
			Subscriptions: subscriptionsService,
			Billing:       subscriptions.NewStripeClient(stripeClient),
			Logger:        logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create checkout service", err)
			os.Exit(1)
		}

		webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripeWebhookIdempotencyTTL, "stripe-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook guard", err)
			os.Exit(1)
		}
		stripeWebhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			Subscriptions: subscriptionsService,
			Lookup:        subRepo,
			Guard:         webhookGuard,
			Logger:        logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook service", err)
			os.Exit(1)
		}
	}

	// The BigQuery sink is optional in dev; without a GCP project the admin
	// analytics route answers with a service-unavailable error.
	var analyticsService analytics.Service
	if cfg.GCP.ProjectID != "" {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create bigquery client", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery client", err)
			}
		}()

		analyticsService, err = analytics.NewService(bqClient, cfg.GCP.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.UsageEventsTable)
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics service", err)
			os.Exit(1)
		}
	}

	// The bot is optional in dev; without a token the telegram routes answer
	// with a service-unavailable error.
	var botService bot.Service
	if cfg.Telegram.BotToken != "" {
		tg, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logg.Error(context.Background(), "failed to create telegram bot api", err)
			os.Exit(1)
		}
		botService, err = bot.NewService(bot.ServiceParams{
			Users:   userRepo,
			Credits: creditsService,
			Links:   redisClient,
			Sender:  tg,
			Logger:  logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create bot service", err)
			os.Exit(1)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			registerService,
			usersService,
			creditsService,
			usageService,
			subscriptionsService,
			checkoutService,
			offersService,
			analyticsService,
			botService,
			stripeClient,
			stripeWebhookService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
