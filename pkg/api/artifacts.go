package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/chaosbench/chaosbench/pkg/store"
)

// downloadArtifactHandler serves GET /_agent/file/:name: a flat read from
// the coordinator's artifact workspace root, matching
// original_source/server/src/controllers/agent.rs's single download
// route. Uploads land under a per-agent subdirectory (see
// uploadArtifactHandler); downloads stay flat because they serve files an
// operator placed directly in the workspace root for agents to fetch.
func (s *Server) downloadArtifactHandler(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	path := filepath.Join(s.cfg.ArtifactDir, name)

	f, err := os.Open(path)
	if err != nil {
		c.String(http.StatusNotFound, "artifact not found")
		return
	}
	defer f.Close()

	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, f)
}

// uploadArtifactHandler serves POST /_agent/file/:name: the request body
// is written under workspace/{agent_id}/artifacts/{name}, an addition
// over the original single-route protocol. name is sanitised with
// filepath.Base since it is attacker-controlled input from the agent.
func (s *Server) uploadArtifactHandler(c *gin.Context) {
	agentID := c.GetHeader("Agent-Id")
	if agentID == "" {
		c.String(http.StatusBadRequest, "missing Agent-Id header")
		return
	}
	name := filepath.Base(c.Param("name"))

	dir := filepath.Join(s.cfg.ArtifactDir, agentID, "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.String(http.StatusInternalServerError, "failed to create artifact directory")
		return
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to create artifact file")
		return
	}
	defer f.Close()

	if _, err := io.Copy(f, c.Request.Body); err != nil {
		c.String(http.StatusInternalServerError, "failed to write artifact")
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadMetricRequest is the JSON body of POST /_agent/metric/:name.
type uploadMetricRequest struct {
	RAMSamples     []float64 `json:"ram_samples"`
	CPUSamples     []float64 `json:"cpu_samples"`
	StartMs        int64     `json:"start_ms"`
	EndMs          int64     `json:"end_ms"`
	SamplingPeriod int64     `json:"sampling_period_ms"`
}

// uploadMetricHandler serves POST /_agent/metric/:name, recording a
// sampled RAM/CPU window into the store against the reporting agent.
func (s *Server) uploadMetricHandler(c *gin.Context) {
	agentID := c.GetHeader("Agent-Id")
	if agentID == "" {
		c.String(http.StatusBadRequest, "missing Agent-Id header")
		return
	}
	name := filepath.Base(c.Param("name"))

	var req uploadMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "malformed metric body")
		return
	}

	s.store.SetMetric(agentID, name, store.MetricsArtifact{
		RAMSamples:     req.RAMSamples,
		CPUSamples:     req.CPUSamples,
		StartMs:        req.StartMs,
		EndMs:          req.EndMs,
		SamplingPeriod: req.SamplingPeriod,
	})
	c.Status(http.StatusNoContent)
}
