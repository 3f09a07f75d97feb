package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chaosbench/chaosbench/pkg/archive"
	"github.com/chaosbench/chaosbench/pkg/metrics"
	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/slack"
	"github.com/chaosbench/chaosbench/pkg/store"
)

// logBufferSize is each operator connection's outbound log queue depth.
// A full queue drops the newest line rather than blocking the publisher,
// so one slow operator connection can never stall log delivery to the
// rest or back up into the agent channel.
const logBufferSize = 256

const opWriteTimeout = 5 * time.Second

// operatorConn is one operator's /_user/connect session: a coder/websocket
// connection, its log subscription filter, and a dedicated writer
// goroutine draining outbound frames so a slow reader never stalls the
// agent-channel goroutine publishing into it.
//
// Adapted from the teacher's events.Connection — same per-connection
// ownership-by-single-goroutine discipline — but the teacher's
// subscription set (PG channel names) becomes a single agentFilter: ""
// subscribes to every agent's log lines, a specific agent_id narrows to
// just that agent.
type operatorConn struct {
	id     string
	conn   *websocket.Conn
	outbox chan protocol.UserActionResponse

	mu          sync.Mutex
	subscribed  bool
	agentFilter string
}

func newOperatorConn(conn *websocket.Conn) *operatorConn {
	return &operatorConn{
		id:     uuid.NewString(),
		conn:   conn,
		outbox: make(chan protocol.UserActionResponse, logBufferSize),
	}
}

// enqueue drops the frame if the connection's outbox is full instead of
// blocking the caller.
func (oc *operatorConn) enqueue(resp protocol.UserActionResponse) {
	select {
	case oc.outbox <- resp:
	default:
	}
}

func (oc *operatorConn) matchesLog(agentID string) bool {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if !oc.subscribed {
		return false
	}
	return oc.agentFilter == "" || oc.agentFilter == agentID
}

func (oc *operatorConn) setSubscription(agentID string) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.subscribed = true
	oc.agentFilter = agentID
}

// writeLoop drains outbox to the socket until ctx is cancelled, the sole
// goroutine allowed to call conn.Write for this connection.
func (oc *operatorConn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-oc.outbox:
			data, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, opWriteTimeout)
			err = oc.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// operatorHub tracks every connected operator and fans out agent log
// lines to whichever connections are subscribed, mirroring the shape of
// the teacher's events.ConnectionManager without its Postgres LISTEN/
// NOTIFY/catchup machinery — ChaosBench's log stream is in-memory only
// and has no replay requirement.
type operatorHub struct {
	store *store.Store

	mu    sync.RWMutex
	conns map[string]*operatorConn
}

func newOperatorHub(st *store.Store) *operatorHub {
	return &operatorHub{store: st, conns: make(map[string]*operatorConn)}
}

func (h *operatorHub) register(oc *operatorConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[oc.id] = oc
}

func (h *operatorHub) unregister(oc *operatorConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, oc.id)
}

// publishLog fans a log line out to every subscribed operator connection.
func (h *operatorHub) publishLog(agentID, file, line string, isAppLog bool) {
	evt := protocol.LogEvent{AgentID: agentID, File: file, Line: line, IsAppLog: isAppLog}
	resp := protocol.UserActionResponse{Type: protocol.UARLogLine, LogLine: &evt}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, oc := range h.conns {
		if oc.matchesLog(agentID) {
			oc.enqueue(resp)
		}
	}
}

// operatorChannelHandler upgrades /_user/connect and services UserAction
// frames for the lifetime of the connection.
func (s *Server) operatorChannelHandler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	oc := newOperatorConn(conn)
	s.ops.register(oc)
	defer s.ops.unregister(oc)

	go oc.writeLoop(ctx)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var action protocol.UserAction
		if err := json.Unmarshal(data, &action); err != nil {
			oc.enqueue(protocol.UserActionResponse{Type: protocol.UARError, Error: "malformed request"})
			continue
		}
		oc.enqueue(s.handleUserAction(ctx, oc, action))
	}
}

// handleUserAction executes one operator request against the store,
// dispatch engine and archive, returning the single response frame to
// enqueue. SubscribeLogs is the one action that also mutates oc's
// subscription filter rather than just answering it.
func (s *Server) handleUserAction(ctx context.Context, oc *operatorConn, action protocol.UserAction) protocol.UserActionResponse {
	switch action.Type {
	case protocol.UAListScenarios:
		return protocol.UserActionResponse{Type: protocol.UARScenarios, Scenarios: s.store.ListTestScenarios()}

	case protocol.UAListAgents:
		regs := s.store.ListAgents()
		ids := make([]string, 0, len(regs))
		for _, r := range regs {
			ids = append(ids, r.StableID)
		}
		return protocol.UserActionResponse{Type: protocol.UARAgents, Agents: ids}

	case protocol.UACreateScenario:
		if action.Scenario == nil || action.ScenarioName == "" {
			return errResponse("scenario and scenario_name are required")
		}
		s.store.SaveTestScenario(action.ScenarioName, *action.Scenario)
		return okResponse()

	case protocol.UAStartScenario:
		if err := s.store.StartScenario(action.ScenarioName); err != nil {
			return errResponse(err.Error())
		}
		s.mu.Lock()
		s.scenarioStart = time.Now()
		s.mu.Unlock()
		metrics.IncScenariosStarted(ctx)
		return okResponse()

	case protocol.UAStopScenario:
		metrics.IncScenariosStopped(ctx)
		return s.stopScenarioAndArchive(ctx)

	case protocol.UASubscribeLogs:
		oc.setSubscription(action.AgentID)
		return okResponse()

	case protocol.UARequestReport:
		return protocol.UserActionResponse{Type: protocol.UARReport, Report: s.buildReport()}

	case protocol.UABackup:
		path := filepath.Join(filepath.Dir(s.cfg.StatePath), action.BackupName+".db")
		if err := s.store.Backup(path); err != nil {
			return errResponse(err.Error())
		}
		return okResponse()

	default:
		return errResponse("unknown action type")
	}
}

func okResponse() protocol.UserActionResponse {
	return protocol.UserActionResponse{Type: protocol.UAROk}
}

func errResponse(msg string) protocol.UserActionResponse {
	return protocol.UserActionResponse{Type: protocol.UARError, Error: msg}
}

// stopScenarioAndArchive stops the current scenario, then appends a
// run-history record to the archive on a best-effort basis: an archive
// failure is logged and never surfaced to the operator as a StopScenario
// error, matching pkg/archive's fire-and-forget contract.
func (s *Server) stopScenarioAndArchive(ctx context.Context) protocol.UserActionResponse {
	name, running := s.store.CurrentScenarioName()
	if !running {
		s.store.StopScenario()
		return okResponse()
	}

	report := s.buildReport()
	passCount, failCount := s.tallyOutcomes()

	s.mu.Lock()
	started := s.scenarioStart
	s.mu.Unlock()

	s.store.StopScenario()

	if s.archive != nil {
		rec := archive.Record{
			Name:      name,
			StartedAt: started,
			StoppedAt: time.Now(),
			PassCount: passCount,
			FailCount: failCount,
			Report:    report,
		}
		go func() {
			if err := s.archive.Append(context.Background(), rec); err != nil {
				slog.Error("archive append failed", "scenario", name, "error", err)
			}
		}()
	}

	if s.slack != nil {
		go s.slack.NotifyReportReady(context.Background(), slack.ReportReadyInput{
			ScenarioName:  name,
			PassCount:     passCount,
			FailCount:     failCount,
			ReportExcerpt: report,
		})
	}

	return okResponse()
}

// tallyOutcomes sums per-result Ok/failed counts across every registered
// agent's current scene state.
func (s *Server) tallyOutcomes() (pass, fail int) {
	for _, reg := range s.store.ListAgents() {
		st, ok := s.store.SceneStateFor(reg.StableID)
		if !ok {
			continue
		}
		for _, r := range st.Results {
			if r.Outcome.Ok {
				pass++
			} else {
				fail++
			}
		}
	}
	return pass, fail
}

// buildReport renders a minimal markdown report for RequestReport and the
// archive, listing each agent's task outcomes.
func (s *Server) buildReport() string {
	name, _ := s.store.CurrentScenarioName()
	report := "# " + name + "\n\n"
	for _, reg := range s.store.ListAgents() {
		st, ok := s.store.SceneStateFor(reg.StableID)
		if !ok {
			continue
		}
		report += "## " + reg.StableID + "\n"
		for id, r := range st.Results {
			status := "PASS"
			if !r.Outcome.Ok {
				status = "FAIL"
			}
			report += formatResultLine(id, status, r.Outcome.Message)
		}
	}
	return report
}

func formatResultLine(id uint32, status, message string) string {
	line := "- task " + strconv.FormatUint(uint64(id), 10) + ": " + status
	if message != "" {
		line += " (" + message + ")"
	}
	return line + "\n"
}
