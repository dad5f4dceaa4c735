package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"papertrade/config"
	"papertrade/internal/transport/httpapi/middleware"
)

type Server struct {
	cfg    *config.Config
	server *http.Server
}

func NewServer(cfg *config.Config, ctrl *Controller, sessionStore middleware.Session) *Server {
	if !cfg.API.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger())

	setupRoutes(cfg, router, ctrl, sessionStore)

	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         cfg.HTTP.Port,
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

func setupRoutes(cfg *config.Config, router *gin.Engine, ctrl *Controller, sessionStore middleware.Session) {
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.POST("/register", ctrl.Register)
	router.POST("/login", ctrl.Login)

	auth := router.Group("/")
	auth.Use(middleware.Auth(cfg.Session.CookieName, sessionStore))
	{
		auth.POST("/logout", ctrl.Logout)
		auth.GET("/quote", ctrl.Quote)
		auth.POST("/buy", ctrl.Buy)
		auth.POST("/sell", ctrl.Sell)
		auth.GET("/portfolio", ctrl.Portfolio)
		auth.GET("/portfolio/symbols", ctrl.SellableSymbols)
		auth.GET("/history", ctrl.History)
		auth.GET("/history/export", ctrl.ExportHistory)
	}
}

func (s *Server) Start() {
	go func() {
		slog.Info("http server started", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.String("err", err.Error()))
			panic(err)
		}
	}()
}

func (s *Server) Stop() {
	slog.Info("start stopping http server")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", slog.String("err", err.Error()))
		return
	}

	slog.Info("http server stopped")
}
