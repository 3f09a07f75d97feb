// Package scenario implements the scenario document schema: scenes,
// phases, lifecycle hooks, parameters, and variables.
package scenario

import (
	"time"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/value"
)

// DefaultPhaseTimeout is used when a scene or scene_preparation document
// omits phase_timeout.
const DefaultPhaseTimeout = 10 * time.Second

// DefaultTaskRetries is the scenario-wide retry budget used when
// global.task_retries is absent.
const DefaultTaskRetries = 1

// TaskRetriesParam and RemoteServerParam are reserved global parameter
// keys consumed by the compiler and the HTTP interception proxy
// respectively.
const (
	TaskRetriesParam  = "task_retries"
	RemoteServerParam = "remote_server"
)

// Overlay layers a global parameter/variable map with Windows and Linux
// overrides, matching ScenarioParameters/ScenarioVariables in the original
// implementation.
type Overlay struct {
	Global  *value.Map `json:"global" yaml:"global"`
	Windows *value.Map `json:"windows" yaml:"windows"`
	Linux   *value.Map `json:"linux" yaml:"linux"`
}

// OS identifies the registered agent's operating system family.
type OS string

const (
	OSWindows OS = "Windows"
	OSLinux   OS = "Linux"
	OSMac     OS = "Mac"
)

// Materialise merges the overlay matching os over the global map. Windows
// and Mac share no dedicated overlay in the source model beyond Windows
// itself; Mac agents receive only the global map, matching the original
// TestVariables conversion which only special-cases windows/linux targets.
func (o Overlay) Materialise(os OS) *value.Map {
	switch os {
	case OSWindows:
		return value.Merge(o.Global, o.Windows)
	case OSLinux:
		return value.Merge(o.Global, o.Linux)
	default:
		return o.Global.Clone()
	}
}

// Scene is a named ordered list of phase actions sharing a timeout and
// hook set.
type Scene struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Phases       []action.Kind `json:"phases" yaml:"phases"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	PhaseTimeout time.Duration `json:"phase_timeout" yaml:"phase_timeout"`
}

// PreparationActions is an ordered list of actions attached to one
// scene-lifecycle hook point.
type PreparationActions struct {
	Actions []action.Kind `json:"actions" yaml:"actions"`
}

// Preparation holds the scene-lifecycle hooks: cleanup, before,
// after_first, before_last, after, before_phase, after_phase.
type Preparation struct {
	PhaseTimeout time.Duration      `json:"phase_timeout" yaml:"phase_timeout"`
	Cleanup      PreparationActions `json:"cleanup" yaml:"cleanup"`
	Before       PreparationActions `json:"before" yaml:"before"`
	AfterFirst   PreparationActions `json:"after_first" yaml:"after_first"`
	BeforeLast   PreparationActions `json:"before_last" yaml:"before_last"`
	After        PreparationActions `json:"after" yaml:"after"`
	BeforePhase  PreparationActions `json:"before_phase" yaml:"before_phase"`
	AfterPhase   PreparationActions `json:"after_phase" yaml:"after_phase"`
}

// Scenario is a declarative document: scenes, lifecycle hooks,
// parameters, variables, custom actions, and required files.
type Scenario struct {
	Name             string                `json:"name" yaml:"name"`
	Description      string                `json:"description" yaml:"description"`
	Variables        Overlay               `json:"variables" yaml:"variables"`
	Parameters       Overlay               `json:"parameters" yaml:"parameters"`
	Scenes           []Scene               `json:"scenes" yaml:"scenes"`
	Actions          []action.CustomAction `json:"actions" yaml:"actions"`
	ScenePreparation Preparation           `json:"scene_preparation" yaml:"scene_preparation"`
	Files            []string              `json:"files" yaml:"files"`
}

// TaskRetries returns the scenario's global task_retries, defaulting to
// DefaultTaskRetries when absent or not an integer.
func (s Scenario) TaskRetries() uint32 {
	if s.Parameters.Global == nil {
		return DefaultTaskRetries
	}
	v, ok := s.Parameters.Global.Get(TaskRetriesParam)
	if !ok {
		return DefaultTaskRetries
	}
	n, err := v.TryInt32()
	if err != nil || n < 0 {
		return DefaultTaskRetries
	}
	return uint32(n)
}

// RemoteServer returns the scenario's remote_server global parameter, used
// by the HTTP interception proxy, and whether it is set.
func (s Scenario) RemoteServer() (string, bool) {
	if s.Parameters.Global == nil {
		return "", false
	}
	v, ok := s.Parameters.Global.Get(RemoteServerParam)
	if !ok {
		return "", false
	}
	str, err := v.TryString()
	if err != nil {
		return "", false
	}
	return str, true
}

// ResolveEffective computes the parameter map a task actually runs with:
// the scenario's parameters materialised for os, overlaid by the task's
// own compiled parameters, overlaid again by a matching custom action's
// parameters when task.Action is Custom(name), then interpolated against
// the scenario's variables. Both the agent runtime and the coordinator's
// server-side dispatch/proxy paths share this so a task behaves the same
// regardless of where it executes.
func ResolveEffective(task AgentTask, params, vars Overlay, customActions []action.CustomAction, os OS) (action.Kind, *value.Map) {
	kind := task.Action
	merged := value.Merge(params.Materialise(os), task.Parameters)

	if kind.IsCustom() {
		if ca, ok := action.Resolve(customActions, kind.CustomName()); ok {
			kind = ca.Action
			merged = value.Merge(merged, ca.Parameters)
		}
	}

	interpolated := value.Interpolate(value.Object(merged), vars.Materialise(os))
	out, _ := interpolated.TryObject()
	return kind, out
}
