// Package api exposes the session controller over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/block-0x/signet/internal/controller"
	"github.com/block-0x/signet/internal/network"
	"github.com/block-0x/signet/pkg/log"
)

// Controller is the part of *controller.Controller the API drives.
type Controller interface {
	State() controller.State
	Catalog() *network.Catalog

	ConnectWallet(ctx context.Context) controller.State
	Disconnect(ctx context.Context) controller.State
	HandleNetwork(input string) controller.State
	SwitchNetwork(ctx context.Context) controller.State
	HandleInput(text string) controller.State
	SignMessage(ctx context.Context) controller.State
	VerifyMessage(ctx context.Context) controller.State
}

var _ Controller = (*controller.Controller)(nil)

// NewRouter sets up the routes. Metrics are served from gatherer when it is
// not nil.
func NewRouter(ctrl Controller, lg log.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(lg))

	h := NewHandlers(ctrl)

	router.GET("/state", h.State)
	router.GET("/networks", h.Networks)

	router.POST("/connect", h.Connect)
	router.POST("/disconnect", h.Disconnect)
	router.POST("/network", h.Network)
	router.POST("/switch", h.Switch)
	router.POST("/message", h.Message)
	router.POST("/sign", h.Sign)
	router.POST("/verify", h.Verify)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// requestLogger puts a request-scoped logger into the request context and
// logs each request once it is served.
func requestLogger(lg log.Logger) gin.HandlerFunc {
	lg = lg.WithName("api")
	return func(c *gin.Context) {
		start := time.Now()
		reqLg := lg.WithKV("method", c.Request.Method).WithKV("path", c.FullPath())
		c.Request = c.Request.WithContext(log.SetContextLogger(c.Request.Context(), reqLg))

		c.Next()

		reqLg.Debug("request served", "status", c.Writer.Status(), "duration", time.Since(start).String())
	}
}
