package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskiq-ai/taskiq-backend/api/controllers"
	webhookcontrollers "github.com/taskiq-ai/taskiq-backend/api/controllers/webhooks"
	"github.com/taskiq-ai/taskiq-backend/api/middleware"
	"github.com/taskiq-ai/taskiq-backend/internal/analytics"
	"github.com/taskiq-ai/taskiq-backend/internal/auth"
	"github.com/taskiq-ai/taskiq-backend/internal/bot"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/internal/offers"
	subscriptionsvc "github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	"github.com/taskiq-ai/taskiq-backend/internal/usage"
	"github.com/taskiq-ai/taskiq-backend/internal/users"
	stripewebhook "github.com/taskiq-ai/taskiq-backend/internal/webhooks/stripe"
	"github.com/taskiq-ai/taskiq-backend/pkg/auth/session"
	"github.com/taskiq-ai/taskiq-backend/pkg/config"
	"github.com/taskiq-ai/taskiq-backend/pkg/db"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/redis"
	"github.com/taskiq-ai/taskiq-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	usersService users.Service,
	creditsService credits.Service,
	usageService usage.Service,
	subscriptionsService subscriptionsvc.Service,
	checkoutService subscriptionsvc.CheckoutService,
	offersService offers.Service,
	analyticsService analytics.Service,
	botService bot.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, logg))
		r.Post("/telegram", webhookcontrollers.TelegramWebhook(botService, cfg.Telegram.WebhookSecret, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AdminAuthLogin(authService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/", controllers.GetCredits(creditsService, logg))
			r.Post("/consume", controllers.ConsumeCredits(creditsService, logg))
		})

		r.Get("/v1/usage", controllers.GetUsageHistory(usageService, logg))

		r.Get("/v1/plans", controllers.ListPlans(subscriptionsService, logg))
		r.Route("/v1/subscriptions", func(r chi.Router) {
			r.Get("/me", controllers.GetMySubscription(subscriptionsService, logg))
			r.Post("/checkout", controllers.StartCheckout(checkoutService, logg))
			r.Post("/cancel", controllers.CancelSubscription(checkoutService, logg))
		})

		r.Route("/v1/offers", func(r chi.Router) {
			r.Get("/", controllers.ListOffers(offersService, logg))
			r.Post("/{offerId}/claim", controllers.ClaimOffer(offersService, logg))
		})

		r.Post("/v1/telegram/link-code", controllers.CreateTelegramLinkCode(botService, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(usersService, logg))
			r.Post("/", controllers.AdminCreateUser(usersService, logg))
			r.Get("/stats", controllers.AdminUserStats(usersService, logg))
			r.Get("/export", controllers.AdminExportUsers(usersService, logg))
			r.Route("/{userId}", func(r chi.Router) {
				r.Get("/", controllers.AdminGetUser(usersService, logg))
				r.Patch("/", controllers.AdminUpdateUser(usersService, logg))
				r.Delete("/", controllers.AdminDeleteUser(usersService, logg))
				r.Post("/credits/grant", controllers.AdminGrantCredits(creditsService, logg))
				r.Post("/credits/reset", controllers.AdminResetCredits(creditsService, logg))
				r.Post("/suspend", controllers.AdminSuspendUser(subscriptionsService, logg))
				r.Post("/unsuspend", controllers.AdminUnsuspendUser(subscriptionsService, logg))
			})
		})

		r.Route("/v1/offers", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateOffer(offersService, logg))
			r.Put("/{offerId}", controllers.AdminUpdateOffer(offersService, logg))
			r.Delete("/{offerId}", controllers.AdminDeleteOffer(offersService, logg))
		})

		r.Get("/v1/analytics/usage", controllers.AdminUsageAnalytics(analyticsService, logg))
	})

	return r
}
