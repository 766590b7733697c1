package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"elasticgrid/kernel"
	"elasticgrid/logger"
)

// apiVersion is reported verbatim on the health endpoint for operator
// tooling that tracks which build a running instance is on.
const apiVersion = "1.0.0"

type healthResponse struct {
	Status  string  `json:"status"`
	Error   string  `json:"error,omitempty"`
	Buy     bool    `json:"buy"`
	Sell    bool    `json:"sell"`
	Price   float64 `json:"price"`
	Version string  `json:"version"`
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.engine.Snapshot()
	status := "healthy"
	if snap.Runtime.ErrorStatus != "" {
		status = "error"
	}
	c.JSON(http.StatusOK, healthResponse{
		Status:  status,
		Error:   snap.Runtime.ErrorStatus,
		Buy:     snap.Runtime.Buy.Enabled,
		Sell:    snap.Runtime.Sell.Enabled,
		Price:   snap.Runtime.CurrentMid,
		Version: apiVersion,
	})
}

// handleTick ingests one broker snapshot and answers with the single
// action to take. A malformed body never yields a non-200 response: it
// decodes to WAIT, matching the broker's expectation that the tick
// channel always answers promptly.
func (s *Server) handleTick(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		logger.Warnf("api: failed to read tick body: %v", err)
		c.JSON(http.StatusOK, kernel.Action{Kind: kernel.ActionWait})
		return
	}

	tick, ok := decodeTick(body)
	if !ok {
		logger.Warnf("api: malformed tick payload, answering WAIT")
		c.JSON(http.StatusOK, kernel.Action{Kind: kernel.ActionWait})
		return
	}

	action := s.engine.ProcessTick(tick)
	s.metrics.observeTick(action)
	s.hub.broadcast(s.engine.Snapshot())
	c.JSON(http.StatusOK, action)
}

// decodeTick tolerates trailing junk or NUL padding after the JSON object
// by truncating the body at its last '}' before decoding, matching the
// broker transport's tendency to pad fixed-size send buffers.
func decodeTick(body []byte) (kernel.Tick, bool) {
	last := bytes.LastIndexByte(body, '}')
	if last < 0 {
		return kernel.Tick{}, false
	}
	var tick kernel.Tick
	if err := json.Unmarshal(body[:last+1], &tick); err != nil {
		return kernel.Tick{}, false
	}
	return tick, true
}

type controlRequest struct {
	BuySwitch      *bool `json:"buy_switch"`
	SellSwitch     *bool `json:"sell_switch"`
	Cyclic         *bool `json:"cyclic"`
	EmergencyClose bool  `json:"emergency_close"`
}

func (s *Server) handleControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command payload"})
		return
	}

	cmd := kernel.ControlCommand{
		BuySwitch:      req.BuySwitch,
		SellSwitch:     req.SellSwitch,
		Cyclic:         req.Cyclic,
		EmergencyClose: req.EmergencyClose,
	}
	if err := s.engine.Control(cmd); err != nil {
		logger.Errorf("api: failed to apply control command: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist control command"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req kernel.UserSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}

	if err := s.engine.UpdateSettings(req); err != nil {
		if strings.HasPrefix(err.Error(), "kernel:") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("api: failed to persist settings update: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleUIData(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}
