// Package dispatch implements the dispatch engine: per-agent cursor
// advancement, the configuration-hash handshake, and server-side action
// execution on the coordinator's own host.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/store"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// Engine wires the coordinator store to a server Actuator for server-side
// action kinds.
type Engine struct {
	Store    *store.Store
	Actuator Actuator
	Log      *slog.Logger
}

func New(st *store.Store, actuator Actuator, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Store: st, Actuator: actuator, Log: log}
}

// HandleNextTask handles a NextTask(hash) request from agentID. It may
// return more than one response frame: a stale configuration hash yields
// (Parameters, CustomActions, Variables) in that order, so the agent has
// the current configuration in hand before it ever asks for a task under
// it.
//
// Server-side tasks advance the cursor of agentID itself — the requesting
// agent's identity — because this call site is already scoped to one
// agent; there is no other identity to prefer.
func (e *Engine) HandleNextTask(ctx context.Context, agentID string, hash uint64) []protocol.AgentResponse {
	current, ok := e.Store.Current()
	if !ok {
		return []protocol.AgentResponse{protocol.NewWait()}
	}

	if actual := e.Store.HashState(); actual != hash {
		// Overlays are pushed as stored: the agent's configHash over them
		// reproduces HashState, and the agent applies its own OS overlay
		// when it resolves a task.
		return []protocol.AgentResponse{
			protocol.NewParameters(current.Scenario.Parameters),
			protocol.NewCustomActions(current.Scenario.Actions),
			protocol.NewVariables(current.Scenario.Variables),
		}
	}

	task, ok := e.Store.NextTask(agentID)
	if ok {
		return []protocol.AgentResponse{protocol.NewNextTaskResponse(task)}
	}

	// NextTask rejects server-side kinds (invariant 3); peek the raw list
	// to find out whether the cursor is actually exhausted or merely
	// pointing at a server-side task that needs running here.
	raw, hasRaw := e.Store.PeekTask(agentID)
	if !hasRaw {
		return []protocol.AgentResponse{protocol.NewWait()}
	}

	if !isActuatorManaged(raw.Action) {
		// An Http::* task: server-side, but progressed exclusively by the
		// HTTP interception proxy as real traffic arrives, not by this
		// actuator. Nothing to do here but wait.
		return []protocol.AgentResponse{protocol.NewWait()}
	}

	raw.AgentID = agentID
	e.runServerActuator(ctx, current.Scenario, agentID, raw)
	// The coordinator still returns Wait for this request even though the
	// actuator just ran; the agent's own cursor is unaffected, and the
	// *next* NextTask from this agent skips past the now-completed
	// server-side task.
	return []protocol.AgentResponse{protocol.NewWait()}
}

// runServerActuator resolves raw's effective action/parameters against the
// scenario the same way an agent would for a dispatched task — a
// server-side task never reaches resolveEffective on any agent, so the
// merge has to happen here instead — then executes it through the
// Actuator and records the result under raw.AgentID, exactly as a
// CompleteTask report would be recorded for an agent-dispatched task.
func (e *Engine) runServerActuator(ctx context.Context, sc scenario.Scenario, agentID string, raw scenario.AgentTask) {
	os := scenario.OSMac
	if reg, ok := e.Store.GetAgent(agentID); ok {
		os = scenario.OS(reg.OS)
	}
	kind, params := scenario.ResolveEffective(raw, sc.Parameters, sc.Variables, sc.Actions, os)
	raw.Action = kind
	raw.Parameters = params

	result := scenario.ResultFromTask(raw)
	result.StartMs = nowMs()
	result.Outcome = e.Actuator.Run(ctx, raw)
	result.EndMs = nowMs()
	e.Log.Info("server action executed", "agent_id", raw.AgentID, "task_id", raw.ID, "action", raw.Action.String(), "ok", result.Outcome.Ok)
	e.Store.SetTaskResult(result)
}

// isActuatorManaged reports whether a server-side kind is one this
// engine's Actuator runs directly, as opposed to Http::* which only the
// proxy (C8) ever completes.
func isActuatorManaged(k action.Kind) bool {
	return k == action.ExecuteServerCommand || k == action.ExecuteServerScript
}

// materialiseOverlay applies an OS overlay onto a full Overlay, returning
// a single-layer Overlay whose Global already carries the merge.
func materialiseOverlay(o scenario.Overlay, os scenario.OS) scenario.Overlay {
	return scenario.Overlay{Global: o.Materialise(os)}
}
