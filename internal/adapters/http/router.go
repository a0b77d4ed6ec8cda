package http

import (
	"context"
	nethttp "net/http"

	"github.com/dkeye/Messzola/internal/adapters/auth"
	"github.com/dkeye/Messzola/internal/adapters/signal"
	"github.com/dkeye/Messzola/internal/app/orch"
	"github.com/dkeye/Messzola/internal/config"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Store is the persistence the REST surface needs.
type Store interface {
	CreateUser(ctx context.Context, displayName string) (*domain.User, error)
	RoomsOf(ctx context.Context, user domain.UserID) ([]*domain.Room, error)
	CreateGroup(ctx context.Context, owner domain.UserID, name string, members []domain.UserID) (*domain.Room, error)
	EnsureDirectRoom(ctx context.Context, a, b domain.UserID) (*domain.Room, error)
	AddMembers(ctx context.Context, room domain.RoomID, owner domain.UserID, ids []domain.UserID) (*domain.Room, error)
	Disband(ctx context.Context, room domain.RoomID, owner domain.UserID) error
	LeaveRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error
	History(ctx context.Context, room domain.RoomID, reader domain.UserID, before int64, limit int) ([]*domain.Message, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Orch     *orch.Orchestrator
	Store    Store
	Tokens   *auth.TokenService
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Str("ws", cfg.WSPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(deps.Orch, signal.Options{
		ReadLimit:   cfg.ReadLimit,
		SendBuffer:  cfg.SendBuffer,
		PingPeriod:  cfg.PingPeriod,
		CheckOrigin: signal.NewOriginChecker(cfg.AllowedOrigins).Check,
	})
	r.GET(cfg.WSPath, func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	h := &handlers{store: deps.Store, tokens: deps.Tokens, cfg: cfg}

	r.GET("/healthz", h.health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	if cfg.Mode == "debug" {
		api.POST("/dev/login", h.devLogin)
	}

	authed := api.Group("", BearerMiddleware(deps.Tokens))
	authed.GET("/me", h.me)
	authed.GET("/rtc/config", h.rtcConfig)
	authed.GET("/rooms", h.listRooms)
	authed.POST("/rooms", h.createGroup)
	authed.POST("/rooms/direct", h.directRoom)
	authed.POST("/rooms/:id/members", h.addMembers)
	authed.DELETE("/rooms/:id", h.disband)
	authed.POST("/rooms/:id/leave", h.leave)
	authed.GET("/rooms/:id/messages", h.history)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
