package dispatch

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/chaosbench/chaosbench/pkg/backend"
	"github.com/chaosbench/chaosbench/pkg/scenario"
)

// Actuator executes a server-side action (one whose action.Kind.IsServerSide
// reports true) on the coordinator's own host, rather than dispatching it
// to an agent. The dispatch engine never hands a server-side task to an
// agent.
type Actuator interface {
	Run(ctx context.Context, task scenario.AgentTask) scenario.Outcome
}

// CommandActuator runs Execute::ServerCommand/Execute::ServerScript tasks
// as child processes, grounded on the teacher's exec.Command usage for its
// MCP stdio transport (pkg/mcp/transport.go).
type CommandActuator struct {
	DefaultTimeout time.Duration
}

func NewCommandActuator() *CommandActuator {
	return &CommandActuator{DefaultTimeout: 30 * time.Second}
}

// Run looks up executable (and optional parameters) from the task's
// parameters and runs it, bounding execution by an explicit timeout
// parameter when set, else phase_limit_ms, else DefaultTimeout. A
// non-zero exit or launch failure is reported as a failing Outcome, never
// as a panic or unrecoverable error — the dispatch loop must keep running
// regardless of one bad server task.
func (a *CommandActuator) Run(ctx context.Context, task scenario.AgentTask) scenario.Outcome {
	timeout := a.DefaultTimeout
	if task.PhaseLimitMs > 0 {
		timeout = time.Duration(task.PhaseLimitMs) * time.Millisecond
	}
	if t, ok := paramTimeout(task); ok {
		timeout = t
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	executable, args := executableAndParameters(task)
	if executable == "" {
		return scenario.Failure("server action missing \"executable\" parameter")
	}

	cmd := exec.CommandContext(runCtx, executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg = stderr.String()
		}
		return scenario.Failure(msg)
	}
	return scenario.Success()
}

func executableAndParameters(task scenario.AgentTask) (string, []string) {
	if task.Parameters == nil {
		return "", nil
	}
	v, ok := task.Parameters.Get(backend.ParamExecutable)
	if !ok {
		return "", nil
	}
	executable, err := v.TryString()
	if err != nil {
		return "", nil
	}

	var params []string
	if pv, ok := task.Parameters.Get(backend.ParamParameters); ok {
		arr, err := pv.TryArray()
		if err == nil {
			for _, item := range arr {
				if s, err := item.TryString(); err == nil {
					params = append(params, s)
				}
			}
		}
	}
	return executable, params
}

func paramTimeout(task scenario.AgentTask) (time.Duration, bool) {
	if task.Parameters == nil {
		return 0, false
	}
	v, ok := task.Parameters.Get(backend.ParamTimeout)
	if !ok {
		return 0, false
	}
	d, err := v.TryDuration()
	if err != nil {
		return 0, false
	}
	return d, true
}
