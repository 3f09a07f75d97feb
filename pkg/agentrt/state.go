// Package agentrt implements the agent runtime loop: the persisted
// state.db, the cooperative single-threaded main pump, its action
// dispatcher, and phase-limit timeout enforcement.
//
// Replaces thread-local containers keyed by file or service/executable
// identifier with one owning struct, in the shape pkg/cleanup.Service uses
// for a goroutine it owns: an explicit Start/Stop pair over a cancellable
// context.
package agentrt

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/scenario"
)

// InFlightTask is a dispatched AgentTask plus the runtime bookkeeping the
// compiled task itself doesn't carry: when it was stamped started and its
// live (possibly already-decremented) retries budget.
type InFlightTask struct {
	Task          scenario.AgentTask `json:"task"`
	StartMs       int64              `json:"start_ms"`
	RetriesBudget uint32             `json:"retries_budget"`
}

// PersistedState is state.db's shape: the in-flight task, if any, plus the
// scenario configuration last pushed by the coordinator.
type PersistedState struct {
	CurrentTask   *InFlightTask         `json:"current_task,omitempty"`
	Parameters    scenario.Overlay      `json:"parameters"`
	CustomActions []action.CustomAction `json:"custom_actions"`
	Variables     scenario.Overlay      `json:"variables"`
}

// DefaultStateDir returns the platform home directory state.db lives
// under.
func DefaultStateDir() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\ChaosBench`
	}
	return "/var/lib/chaosbench"
}

// LoadState reads path, returning empty state when it is absent or
// unparsable — the same best-effort policy as the coordinator's store.
func LoadState(path string, log *slog.Logger) PersistedState {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("agent state not found, starting empty", "path", path, "error", err)
		return PersistedState{}
	}
	var st PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warn("agent state unparsable, starting empty", "path", path, "error", err)
		return PersistedState{}
	}
	return st
}

// SaveState writes st to path via write-temp-then-rename, so a crash
// mid-write never leaves a truncated or corrupt state.db behind.
func SaveState(path string, st PersistedState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
