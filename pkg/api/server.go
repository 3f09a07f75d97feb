// Package api implements the coordinator's HTTP surface: the agent and
// operator websocket upgrade routes, artifact/metric transfer, the proxy
// catch-all, and a health endpoint. Grounded on the teacher's
// pkg/api/server.go Server lifecycle, generalized from Echo to gin to
// match the teacher's own go.mod and cmd/tarsy/main.go's router.
package api

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaosbench/chaosbench/pkg/archive"
	"github.com/chaosbench/chaosbench/pkg/config"
	"github.com/chaosbench/chaosbench/pkg/dispatch"
	"github.com/chaosbench/chaosbench/pkg/proxy"
	"github.com/chaosbench/chaosbench/pkg/slack"
	"github.com/chaosbench/chaosbench/pkg/store"
	"github.com/chaosbench/chaosbench/pkg/version"
)

// Server is the coordinator's HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	cfg      *config.Config
	store    *store.Store
	dispatch *dispatch.Engine
	proxy    *proxy.Handler
	archive  *archive.Client // nil when the run history archive is disabled
	slack    *slack.Service  // nil when Slack notification is disabled
	ops      *operatorHub

	mu            sync.Mutex
	scenarioStart time.Time
}

// NewServer wires a Server over an already-constructed store, dispatch
// engine and proxy handler. archiveClient may be nil — archiving stays
// fire-and-forget and optional, and the live store's invariants never
// depend on it.
func NewServer(cfg *config.Config, st *store.Store, eng *dispatch.Engine, px *proxy.Handler, archiveClient *archive.Client) *Server {
	var slackSvc *slack.Service
	if cfg.Slack.Enabled {
		slackSvc = slack.NewService(slack.ServiceConfig{
			Token:        os.Getenv(cfg.Slack.TokenEnv),
			Channel:      cfg.Slack.Channel,
			DashboardURL: cfg.Slack.DashboardURL,
		})
	}

	s := &Server{
		engine:   gin.Default(),
		cfg:      cfg,
		store:    st,
		dispatch: eng,
		proxy:    px,
		archive:  archiveClient,
		slack:    slackSvc,
		ops:      newOperatorHub(st),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	s.engine.GET("/_agent/connect", s.agentChannelHandler)
	s.engine.GET("/_agent/file/:name", s.downloadArtifactHandler)
	s.engine.POST("/_agent/file/:name", s.uploadArtifactHandler)
	s.engine.POST("/_agent/metric/:name", s.uploadMetricHandler)

	s.engine.GET("/_user/connect", s.operatorChannelHandler)

	// Proxy catch-all: any route not matched above forwards to the
	// scenario's remote_server.
	s.engine.NoRoute(s.proxy.Handle)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener, used by
// tests to bind a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Engine exposes the underlying gin engine, e.g. for httptest.NewServer in
// tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Agents  int    `json:"agents"`
	Running string `json:"running_scenario,omitempty"`
}

func (s *Server) healthHandler(c *gin.Context) {
	resp := healthResponse{
		Status:  "healthy",
		Version: version.Full(),
		Agents:  len(s.store.ListAgents()),
	}
	if name, ok := s.store.CurrentScenarioName(); ok {
		resp.Running = name
	}
	c.JSON(http.StatusOK, resp)
}
