// Package server exposes the pipeline over HTTP for scoring-service
// integration and analyst tooling.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fraudlens/fraudlens/internal/audit"
	"github.com/fraudlens/fraudlens/internal/decision"
	"github.com/fraudlens/fraudlens/internal/pipeline"
	"github.com/fraudlens/fraudlens/internal/policy"
	"github.com/fraudlens/fraudlens/pkg/types"
)

const defaultRecordLimit = 100

type Server struct {
	Pipeline   *pipeline.Service
	Policies   *policy.Store
	PolicyPath string
	AuditPath  string

	router *gin.Engine
}

func New(svc *pipeline.Service, policies *policy.Store, policyPath, auditPath string) *Server {
	s := &Server{
		Pipeline:   svc,
		Policies:   policies,
		PolicyPath: policyPath,
		AuditPath:  auditPath,
		router:     gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	{
		v1.POST("/transactions/process", s.handleProcess)
		v1.GET("/policy", s.handlePolicy)
		v1.POST("/policy/reload", s.handlePolicyReload)
		v1.GET("/audit/records", s.handleAuditRecords)
		v1.GET("/audit/verify", s.handleAuditVerify)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run starts the server with a bounded header read timeout.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// ProcessRequest is the scoring-service payload: one scored transaction
// plus its raw feature attributions.
type ProcessRequest struct {
	TransactionID string                     `json:"transaction_id" binding:"required"`
	Score         float64                    `json:"score"`
	ModelVersion  string                     `json:"model_version" binding:"required"`
	Attributions  []types.FeatureAttribution `json:"attributions" binding:"required"`
}

func (s *Server) handleProcess(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Score < 0 || req.Score > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be in [0, 1]"})
		return
	}

	score := types.RiskScore{
		TransactionID: req.TransactionID,
		Score:         req.Score,
		ModelVersion:  req.ModelVersion,
	}
	res, err := s.Pipeline.Process(c.Request.Context(), score, req.Attributions)
	switch {
	case errors.Is(err, decision.ErrPolicyVersionMismatch):
		// The escalated decision is still returned; the mismatch is the
		// caller's signal to fix its model/policy pairing.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "result": res})
		return
	case errors.Is(err, audit.ErrAuditWrite):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	case errors.Is(err, policy.ErrNoPolicy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handlePolicy(c *gin.Context) {
	loaded, err := s.Policies.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"policy": loaded.Artifact,
		"hash":   loaded.Hash,
	})
}

func (s *Server) handlePolicyReload(c *gin.Context) {
	if err := s.Policies.Reload(s.PolicyPath); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	loaded, err := s.Policies.Current()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": loaded.Artifact.Version,
		"hash":    loaded.Hash,
	})
}

func (s *Server) handleAuditRecords(c *gin.Context) {
	limit := defaultRecordLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records, err := audit.ReadAll(s.AuditPath, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (s *Server) handleAuditVerify(c *gin.Context) {
	result, err := audit.VerifyChain(s.AuditPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	if _, err := s.Policies.Current(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no policy loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
