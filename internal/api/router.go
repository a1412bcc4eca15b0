package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"locker-terminal-backend/config"
	"locker-terminal-backend/internal/mw"
	"locker-terminal-backend/internal/store"
	"locker-terminal-backend/internal/terminal"
)

// NewRouter creates and configures the Gin router. The device gateway is
// mounted at /terminals alongside the /api group so one listener serves
// both surfaces.
func NewRouter(cfg *config.Config, svc *terminal.Service, s store.Store, deviceGateway http.Handler, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(svc, s, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	auth := mw.Auth(cfg.Auth.JWTSecret)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// Device channel
	r.GET("/terminals", gin.WrapH(deviceGateway))

	// User-facing API
	api := r.Group("/api")
	api.Use(rateLimiter, auth)
	{
		api.GET("/terminals/online", caching, handler.GetOnline)
		api.GET("/terminals/:terminalId/state", handler.GetState)
		api.GET("/terminals/:terminalId/items", handler.GetTerminalItems)
		api.POST("/terminals/:terminalId/cells/:cellId/start", handler.StartRent)
		api.POST("/terminals/:terminalId/cells/:cellId/finish", handler.FinishRent)

		api.GET("/rents", handler.GetMyRents)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
