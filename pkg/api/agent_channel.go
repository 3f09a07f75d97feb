package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chaosbench/chaosbench/pkg/metrics"
	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/store"
)

// agentUpgrader mirrors the teacher's websocket.go upgrader: origin
// checking is left to the reverse proxy agents and the coordinator sit
// behind, matching the teacher's own permissive CheckOrigin.
var agentUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const agentReadTimeout = 200 * time.Millisecond

// agentChannelHandler upgrades /_agent/connect and drives the agent's
// persistent control channel: register the agent from its Agent-* headers
// and source IP, then loop reading AgentRequest frames and writing back
// AgentResponse frames until the socket closes.
func (s *Server) agentChannelHandler(c *gin.Context) {
	reg := store.Registration{
		StableID: c.GetHeader("Agent-Id"),
		Hostname: c.GetHeader("Agent-Host"),
		Arch:     store.Arch(c.GetHeader("Agent-Arch")),
		OS:       c.GetHeader("Agent-Os"),
		SourceIP: c.ClientIP(),
	}
	if reg.StableID == "" {
		c.String(http.StatusBadRequest, "missing Agent-Id header")
		return
	}

	conn, err := agentUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.store.RegisterAgent(reg)
	metrics.IncAgentsRegistered(c.Request.Context())

	ctx := c.Request.Context()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(agentReadTimeout))
		var req protocol.AgentRequest
		if err := conn.ReadJSON(&req); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			return
		}

		for _, resp := range s.handleAgentRequest(ctx, reg.StableID, req) {
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}
}

// handleAgentRequest dispatches one AgentRequest to the store/dispatch
// engine, returning zero or more response frames to write back in order.
func (s *Server) handleAgentRequest(ctx context.Context, agentID string, req protocol.AgentRequest) []protocol.AgentResponse {
	switch req.Type {
	case protocol.ReqLog:
		s.ops.publishLog(agentID, "", req.Text, false)
		return nil
	case protocol.ReqAppLog:
		s.ops.publishLog(agentID, req.File, req.Msg, true)
		return nil
	case protocol.ReqHeartBeat:
		return nil
	case protocol.ReqNextTask:
		return s.dispatch.HandleNextTask(ctx, agentID, req.Hash)
	case protocol.ReqCompleteTask:
		if req.Result != nil {
			s.store.SetTaskResult(*req.Result)
		}
		return nil
	default:
		return nil
	}
}
