// Package httpapi expone el motor de pools por HTTP (gin).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// PoolService es lo que la API necesita del motor.
type PoolService interface {
	CreatePool(ctx context.Context, spec domain.PoolSpec) (domain.Pool, error)
	ListPools(ctx context.Context, seasonID string) ([]domain.Pool, error)
	DeletePool(ctx context.Context, poolID string) error
	GetBoard(ctx context.Context, poolID, participantID string) (domain.Board, error)
	Submit(ctx context.Context, poolID, participantID string, legs []domain.LegInput) (domain.SubmitResult, error)
	ToggleVote(ctx context.Context, poolID, submissionID, participantID string) (domain.VoteState, error)
	OpenVoting(ctx context.Context, poolID string) (domain.Pool, error)
	Place(ctx context.Context, poolID string) (domain.Pool, error)
	Settle(ctx context.Context, poolID string, outcome domain.Outcome) (domain.Pool, error)
}

// Config son los parámetros del router.
type Config struct {
	AllowedOrigins []string
	RatePerSec     float64 // por participante; 0 desactiva el límite
	RateBurst      int
}

// Deps son las dependencias del router. Activity, Metrics y MetricsHandler son opcionales.
type Deps struct {
	Service        PoolService
	Tokens         TokenValidator
	Activity       ports.ActivityLog
	Metrics        HTTPObserver
	MetricsHandler http.Handler
}

// NewRouter arma el engine gin con todas las rutas.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(observe(deps.Metrics))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := &handler{svc: deps.Service, activity: deps.Activity}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := router.Group("/api")
	api.GET("/odds/convert", h.convertOdds)

	protected := api.Group("")
	protected.Use(requireAuth(deps.Tokens))
	if cfg.RatePerSec > 0 {
		protected.Use(newParticipantLimiter(cfg.RatePerSec, cfg.RateBurst).middleware())
	}
	{
		protected.GET("/pools", h.listPools)
		protected.GET("/pools/:id", h.getBoard)
		protected.GET("/pools/:id/activity", h.listActivity)
		protected.PUT("/pools/:id/submissions", h.submit)
		protected.POST("/pools/:id/submissions/:submissionId/vote", h.toggleVote)
	}

	operator := protected.Group("")
	operator.Use(requireOperator())
	{
		operator.POST("/pools", h.createPool)
		operator.DELETE("/pools/:id", h.deletePool)
		operator.POST("/pools/:id/voting", h.openVoting)
		operator.POST("/pools/:id/place", h.place)
		operator.POST("/pools/:id/settle", h.settle)
	}

	return router
}
