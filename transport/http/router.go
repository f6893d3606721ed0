package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/ports"
	"github.com/layer-3/questproof/service"
)

// RouterConfig carries the services behind the API
type RouterConfig struct {
	Auth        *service.AuthService
	Registry    *service.IdentityRegistry
	Submissions *service.SubmissionService
	Verifier    ports.WalletVerifier
	// Metrics defaults to a fresh registry
	Metrics *Metrics
	Logger  logrus.FieldLogger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	logger := cfg.Logger.WithField("component", "http")

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), metrics.Middleware())

	authHandlers := NewAuthHandlers(cfg.Auth, metrics, logger)
	identityHandlers := NewIdentityHandlers(cfg.Registry, cfg.Verifier)
	questHandlers := NewQuestHandlers(cfg.Submissions, cfg.Verifier, metrics, logger)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/challenge", authHandlers.Challenge)
		auth.POST("/verify", authHandlers.Verify)
		auth.POST("/logout", authHandlers.Logout)
		auth.GET("/session", SessionMiddleware(cfg.Auth, logger), authHandlers.Session)

		api.GET("/identity/:wallet", identityHandlers.Get)
		api.GET("/identities", identityHandlers.List)

		api.GET("/quests", questHandlers.Quests)
		api.POST("/submissions", questHandlers.Submit)
		api.GET("/history/:wallet", questHandlers.History)
	}

	router.GET("/metrics", metrics.Handler())

	return router
}
