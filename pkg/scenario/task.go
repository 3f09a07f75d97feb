package scenario

import (
	"math"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/value"
)

// InfiniteRetries marks a task's retries_budget as unbounded — the Wait
// action and custom actions resolving to Wait never give up on their own.
const InfiniteRetries = math.MaxUint32

// AgentTask is the dispatch unit produced by the compiler: a single
// scene/phase or hook action bound (at dispatch time) to one agent.
type AgentTask struct {
	ID            uint32      `json:"id"`
	SceneID       uint32      `json:"scene_id"`
	AgentID       string      `json:"agent_id"`
	PhaseLimitMs  int64       `json:"phase_limit_ms"`
	IsPreparation bool        `json:"is_preparation"`
	Action        action.Kind `json:"action"`
	Parameters    *value.Map  `json:"parameters"`
	RetriesBudget uint32      `json:"retries_budget"`
}

// Outcome is the pass/fail payload of a completed task: Ok is true on
// success, Message carries the failure reason otherwise.
type Outcome struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Success is the zero-message passing outcome.
func Success() Outcome { return Outcome{Ok: true} }

// Failure builds a failing outcome with msg as the reported reason.
func Failure(msg string) Outcome { return Outcome{Ok: false, Message: msg} }

// AgentTaskResult is an AgentTask plus its execution window and outcome.
type AgentTaskResult struct {
	ID            uint32      `json:"id"`
	SceneID       uint32      `json:"scene_id"`
	AgentID       string      `json:"agent_id"`
	StartMs       int64       `json:"start_ms"`
	EndMs         int64       `json:"end_ms"`
	PhaseLimitMs  int64       `json:"phase_limit_ms"`
	Action        action.Kind `json:"action"`
	RetriesBudget uint32      `json:"retries_budget"`
	Parameters    *value.Map  `json:"parameters"`
	Outcome       Outcome     `json:"outcome"`
}

// ResultFromTask seeds a result from a dispatched task, clamping the
// retries budget to InfiniteRetries for Wait actions, matching
// original_source's From<AgentTask> for AgentTaskResult.
func ResultFromTask(t AgentTask) AgentTaskResult {
	retries := t.RetriesBudget
	if t.Action == action.Wait {
		retries = InfiniteRetries
	}
	return AgentTaskResult{
		ID:            t.ID,
		SceneID:       t.SceneID,
		AgentID:       t.AgentID,
		PhaseLimitMs:  t.PhaseLimitMs,
		Action:        t.Action,
		RetriesBudget: retries,
		Parameters:    t.Parameters,
		Outcome:       Success(),
	}
}
