package httpapi

import (
	"net/http"
	"sync/atomic"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Readiness tracks whether the server accepts traffic.
type Readiness struct {
	ready atomic.Bool
}

func NewReadiness(initial bool) *Readiness {
	r := &Readiness{}
	r.ready.Store(initial)
	return r
}

func (r *Readiness) SetReady(ready bool) { r.ready.Store(ready) }
func (r *Readiness) IsReady() bool       { return r.ready.Load() }

func livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readinessHandler(r *Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.IsReady() {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
	}
}

// NewRouter builds the gin engine with middleware, probes, metrics and all
// API routes. registry may be nil, in which case /metrics is not mounted.
func NewRouter(h *Handler, logger logging.Logger, ready *Readiness, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(logger))
	router.Use(Recovery(logger))

	router.GET("/healthz", livenessHandler)
	router.GET("/readyz", readinessHandler(ready))
	if registry != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	}

	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	authed := h.RequireAccount()

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/change-password", authed, h.ChangePassword)
	r.POST("/reset-password-request", h.RequestPasswordReset)
	r.POST("/reset-password", h.ConfirmPasswordReset)
	r.POST("/refresh-token", h.Refresh)
	r.GET("/verify-email", h.VerifyEmail)

	r.GET("/users/me", authed, h.Me)
	r.GET("/users", h.ListAccounts)
	r.GET("/users/active", h.ListActiveAccounts)
	r.GET("/users/:username", h.GetAccount)
	r.DELETE("/delete-account", authed, h.DeleteAccount)
	r.PUT("/change-username-email", authed, h.ChangeUsernameOrEmail)

	otp := r.Group("/otp")
	otp.POST("/send", h.SendOTP)
	otp.POST("/verify", h.VerifyOTP)

	twofa := r.Group("/2fa")
	twofa.POST("/enable", authed, h.EnableTwoFactor)
	twofa.POST("/disable", authed, h.DisableTwoFactor)
	twofa.POST("/verify", h.VerifyTwoFactor)
}
