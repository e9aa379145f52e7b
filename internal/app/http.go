package app

import (
	"context"
	"net/http"
	"time"

	"credit-service/internal/account"
	"credit-service/internal/auth/credentials"
	authhandler "credit-service/internal/auth/handler"
	"credit-service/internal/auth/provider"
	"credit-service/internal/auth/provider/google"
	"credit-service/internal/auth/provider/kakao"
	"credit-service/internal/auth/resolver"
	"credit-service/internal/auth/token"
	"credit-service/internal/config"
	"credit-service/internal/establish"
	"credit-service/internal/idp"
	"credit-service/internal/ledger"
	"credit-service/internal/logger"
	"credit-service/internal/middleware"
	"credit-service/internal/payment"
	paymenthandler "credit-service/internal/payment/handler"
	"credit-service/internal/profile"
	"credit-service/internal/session"

	"github.com/gin-gonic/gin"
)

func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleEnabled() {
		p, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if cfg.KakaoEnabled() {
		p, err := kakao.New(ctx, cfg.KakaoIssuer, cfg.KakaoClientID, cfg.KakaoClientSecret, cfg.KakaoRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if len(list) == 0 {
		logger.Warn("no oauth providers configured", nil)
	}

	return provider.NewRegistry(list...), nil
}

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	fail := func(err error) (*gin.Engine, func() error, error) {
		_ = infra.Close()
		return nil, nil, err
	}

	// ----------------------------
	// Identity
	// ----------------------------

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	tokens, err := token.NewIssuer(cfg.TokenSecret, cfg.TokenIssuer)
	if err != nil {
		return fail(err)
	}

	identity := idp.NewService(idp.Options{
		Providers:   registry,
		Resolver:    resolver.NewDBResolver(infra.DB),
		Credentials: credentials.NewService(infra.DB),
		Sessions:    session.NewRedisStore(infra.Redis.Client),
		Tokens:      tokens,
		SessionTTL:  cfg.SessionTTL,
	})

	// ----------------------------
	// Credits
	// ----------------------------

	ledgers := ledger.NewRegistry()
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go ledgers.Sweep(sweepCtx, 10*time.Minute, cfg.SessionTTL)
	activator := account.NewActivator(ledgers, profile.NewProvisioner(profile.NewPostgresStore(infra.DB)))

	listener := account.NewListener(identity, activator)
	listener.Start()

	payments := payment.NewMachine(payment.NewHTTPBackend(cfg.BackendURL, cfg.BackendTimeout), ledgers)

	cookies := session.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	authHandler := authhandler.NewHandler(identity, establish.NewMachine(identity), activator, cookies)
	paymentHandler := paymenthandler.NewHandler(payments, cookies)
	authMiddleware := middleware.NewAuthMiddleware(identity, cookies)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())

	authHandler.RegisterRoutes(router)
	paymentHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))
	authHandler.RegisterSessionRoutes(api)

	for _, route := range router.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}

	return router, func() error {
		listener.Stop()
		stopSweep()
		return infra.Close()
	}, nil
}
