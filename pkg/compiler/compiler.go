// Package compiler expands a declarative scenario into a totally ordered
// per-agent task list: each scene's before/before_phase/phase/after_phase/
// after hooks in turn, plus the scenario-level cleanup hook appended at
// the end.
package compiler

import (
	"time"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/value"
)

// Compiled is the compiler's output: the task list plus the bookkeeping
// the dispatch engine and report renderer need (scene names, the
// remote_server target, and the source scenario for parameter/variable/
// custom-action resolution) — CalculatedScenario in the original source.
type Compiled struct {
	Name         string
	RemoteServer string
	HasRemote    bool
	SceneNames   map[uint32]string
	Tasks        []scenario.AgentTask
	Scenario     scenario.Scenario
}

// Compile expands s into a Compiled scenario in strict emission order:
// per scene, before / (before_phase, before_last?, phase, after_first?,
// after_phase) / after, then the scenario-level cleanup hook appended at
// the end, attributed to the last scene's id.
func Compile(s scenario.Scenario) Compiled {
	remote, hasRemote := s.RemoteServer()
	out := Compiled{
		Name:         s.Name,
		RemoteServer: remote,
		HasRemote:    hasRemote,
		SceneNames:   make(map[uint32]string, len(s.Scenes)),
		Scenario:     s,
	}

	defaultRetry := s.TaskRetries()
	tasks := make([]scenario.AgentTask, 0, len(s.Scenes)*8)

	for i, scene := range s.Scenes {
		sceneID := uint32(i)
		out.SceneNames[sceneID] = scene.Name
		tasks = sceneToTasks(scene, sceneID, s, tasks)
	}

	lastScene := uint32(0)
	if n := len(s.Scenes); n > 0 {
		lastScene = uint32(n - 1)
	}
	for _, a := range s.ScenePreparation.Cleanup.Actions {
		retries := defaultRetry
		if action.IsWait(a, s.Actions) {
			retries = scenario.InfiniteRetries
		}
		tasks = append(tasks, scenario.AgentTask{
			SceneID:       lastScene,
			Action:        a,
			ID:            uint32(len(tasks)),
			IsPreparation: true,
			PhaseLimitMs:  durationMs(s.ScenePreparation.PhaseTimeout),
			Parameters:    value.NewMap(),
			RetriesBudget: retries,
		})
	}

	out.Tasks = tasks
	return out
}

func sceneToTasks(scene scenario.Scene, sceneID uint32, s scenario.Scenario, tasks []scenario.AgentTask) []scenario.AgentTask {
	tasks = scenePreparation(s.ScenePreparation.Before, sceneID, scene, s, tasks)
	for i, phase := range scene.Phases {
		tasks = scenePreparation(s.ScenePreparation.BeforePhase, sceneID, scene, s, tasks)
		if i == len(scene.Phases)-1 {
			tasks = scenePreparation(s.ScenePreparation.BeforeLast, sceneID, scene, s, tasks)
		}
		tasks = phaseToTasks(phase, sceneID, scene, s, tasks)
		if i == 0 {
			tasks = scenePreparation(s.ScenePreparation.AfterFirst, sceneID, scene, s, tasks)
		}
		tasks = scenePreparation(s.ScenePreparation.AfterPhase, sceneID, scene, s, tasks)
	}
	tasks = scenePreparation(s.ScenePreparation.After, sceneID, scene, s, tasks)
	return tasks
}

func phaseToTasks(a action.Kind, sceneID uint32, scene scenario.Scene, s scenario.Scenario, tasks []scenario.AgentTask) []scenario.AgentTask {
	retries := s.TaskRetries()
	if action.IsWait(a, s.Actions) {
		retries = scenario.InfiniteRetries
	}
	return append(tasks, scenario.AgentTask{
		SceneID:       sceneID,
		Action:        a,
		ID:            uint32(len(tasks)),
		IsPreparation: false,
		PhaseLimitMs:  durationMs(scene.PhaseTimeout),
		Parameters:    value.NewMap(),
		RetriesBudget: retries,
	})
}

func scenePreparation(preps scenario.PreparationActions, sceneID uint32, scene scenario.Scene, s scenario.Scenario, tasks []scenario.AgentTask) []scenario.AgentTask {
	defaultRetry := s.TaskRetries()
	for _, a := range preps.Actions {
		retries := defaultRetry
		if action.IsWait(a, s.Actions) {
			retries = scenario.InfiniteRetries
		}
		tasks = append(tasks, scenario.AgentTask{
			SceneID:       sceneID,
			Action:        a,
			ID:            uint32(len(tasks)),
			IsPreparation: true,
			PhaseLimitMs:  durationMs(scene.PhaseTimeout),
			Parameters:    value.NewMap(),
			RetriesBudget: retries,
		})
	}
	return tasks
}

func durationMs(d time.Duration) int64 {
	// Zero is a legitimate, literal phase_limit_ms that times out on first
	// evaluation — defaulting happens when a scenario document is loaded,
	// not here.
	return d.Milliseconds()
}
