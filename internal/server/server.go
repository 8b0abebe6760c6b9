package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pipewise/ferrite/internal/config"
	"github.com/pipewise/ferrite/internal/core"
	"github.com/pipewise/ferrite/internal/core/model"
)

// Server exposes the simulation engine over HTTP for the dashboard
// collaborator. It holds no run state; every request is a fresh simulation.
type Server struct {
	Engine *core.Engine

	cfg    *config.Config
	logger *zap.Logger
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Engine: core.NewEngine(cfg, logger),
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.POST("/simulate", s.Simulate)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type SimulateRequest struct {
	Tables             model.InputTables  `json:"tables" binding:"required"`
	ILIDate            string             `json:"ili_date" binding:"required"`
	TargetDate         string             `json:"target_date" binding:"required"`
	Tolerances         map[string]float64 `json:"tolerances,omitempty"`
	DetectionThreshold *float64           `json:"detection_threshold,omitempty"`
	Samples            int                `json:"samples,omitempty"`
	Workers            int                `json:"workers,omitempty"`
	Seed               uint64             `json:"seed,omitempty"`
}

const dateLayout = "2006-01-02"

func (s *Server) Simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	iliDate, err := time.Parse(dateLayout, req.ILIDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ili_date, want YYYY-MM-DD"})
		return
	}
	targetDate, err := time.Parse(dateLayout, req.TargetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_date, want YYYY-MM-DD"})
		return
	}

	params := model.Params{
		ILIDate:            iliDate,
		TargetDate:         targetDate,
		DetectionThreshold: s.cfg.Simulation.DetectionThreshold,
		Samples:            req.Samples,
		Workers:            req.Workers,
		Seed:               req.Seed,
	}
	if req.DetectionThreshold != nil {
		params.DetectionThreshold = *req.DetectionThreshold
	}
	if req.Tolerances != nil {
		params.Tolerances = make(map[model.DefectType]float64, len(req.Tolerances))
		for t, v := range req.Tolerances {
			params.Tolerances[model.DefectType(t)] = v
		}
	}

	bundle, err := s.Engine.Run(c.Request.Context(), req.Tables, params)
	if err != nil {
		s.logger.Error("simulation failed", zap.Error(err))

		var schemaErr *model.SchemaMismatchError
		var stageErr *model.StageError
		switch {
		case errors.Is(err, model.ErrSimulationCancelled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.As(err, &schemaErr),
			errors.As(err, &stageErr) && stageErr.Stage == "params":
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &stageErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, bundle)
}
