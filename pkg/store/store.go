// Package store implements the coordinator state store: a single
// in-memory struct behind one coarse lock, JSON-snapshotted to disk.
// Grounded on pkg/session.Manager's map+sync.RWMutex shape and
// original_source/server/src/repository/memory.rs's persisted shape.
package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/chaosbench/chaosbench/pkg/compiler"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/value"
)

// ErrScenarioAlreadyCurrent is returned by StartScenario when one is
// already running.
var ErrScenarioAlreadyCurrent = errors.New("store: a scenario is already current")

// ErrScenarioNotFound is returned by StartScenario for an unknown name.
var ErrScenarioNotFound = errors.New("store: scenario not found")

// SceneState is the coordinator's per-agent execution state for the
// current scenario: the last completed task id, all reported results, and
// any recorded metric artifacts.
type SceneState struct {
	LastCompletedTaskID *uint32                            `json:"last_completed_task_id,omitempty"`
	Results             map[uint32]scenario.AgentTaskResult `json:"results"`
	Metrics             map[string]MetricsArtifact          `json:"metrics"`
}

func newSceneState() *SceneState {
	return &SceneState{
		Results: make(map[uint32]scenario.AgentTaskResult),
		Metrics: make(map[string]MetricsArtifact),
	}
}

// snapshot is the JSON-serialisable shape persisted to database.db.
type snapshot struct {
	Agents         map[string]Registration     `json:"agents"`
	CurrentName    string                      `json:"current_name,omitempty"`
	TestScenarios  map[string]scenario.Scenario `json:"scenarios"`
	State          map[string]*SceneState      `json:"state"`
}

// Store is the coordinator's sole mutable shared resource: every mutation
// happens under mu.
type Store struct {
	mu sync.Mutex

	agents        map[string]Registration
	testScenarios map[string]scenario.Scenario
	current       *compiler.Compiled
	state         map[string]*SceneState

	log *slog.Logger
}

// New returns an empty store.
func New(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		agents:        make(map[string]Registration),
		testScenarios: make(map[string]scenario.Scenario),
		state:         make(map[string]*SceneState),
		log:           log,
	}
}

// RegisterAgent inserts or overwrites the agent's registration, updating
// its source IP on reconnect.
func (s *Store) RegisterAgent(reg Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[reg.StableID] = reg
	s.log.Info("agent registered", "agent_id", reg.StableID, "source_ip", reg.SourceIP)
}

// ResolveBySourceIP returns the registration whose SourceIP matches ip.
func (s *Store) ResolveBySourceIP(ip string) (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.agents {
		if r.SourceIP == ip {
			return r, true
		}
	}
	return Registration{}, false
}

// GetAgent returns the registration for agentID.
func (s *Store) GetAgent(agentID string) (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.agents[agentID]
	return r, ok
}

// ListAgents returns all registered agents.
func (s *Store) ListAgents() []Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Registration, 0, len(s.agents))
	for _, r := range s.agents {
		out = append(out, r)
	}
	return out
}

// ListTestScenarios returns the names of stored test-scenarios.
func (s *Store) ListTestScenarios() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.testScenarios))
	for name := range s.testScenarios {
		out = append(out, name)
	}
	return out
}

// SaveTestScenario clones sc under name into the store.
func (s *Store) SaveTestScenario(name string, sc scenario.Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.Name = name
	s.testScenarios[name] = sc
}

// CurrentScenarioName returns the name of the running scenario, if any.
func (s *Store) CurrentScenarioName() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.Name, true
}

// Current returns the compiled scenario currently running, if any.
func (s *Store) Current() (compiler.Compiled, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return compiler.Compiled{}, false
	}
	return *s.current, true
}

// StartScenario fails if one is already current (invariant 6); otherwise
// it compiles name's test-scenario and zeroes all agent state.
func (s *Store) StartScenario(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return ErrScenarioAlreadyCurrent
	}
	sc, ok := s.testScenarios[name]
	if !ok {
		return ErrScenarioNotFound
	}
	compiled := compiler.Compile(sc)
	s.current = &compiled
	s.state = make(map[string]*SceneState)
	s.log.Info("scenario started", "scenario", name, "tasks", len(compiled.Tasks))
	return nil
}

// StopScenario clears the current scenario and all per-agent state.
func (s *Store) StopScenario() {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ""
	if s.current != nil {
		name = s.current.Name
	}
	s.current = nil
	s.state = make(map[string]*SceneState)
	s.log.Info("scenario stopped", "scenario", name)
}

// HashState is a deterministic 64-bit digest of (parameters, custom
// actions, variables) of the current scenario — math.MaxUint64 when none
// is current.
func (s *Store) HashState() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashStateLocked()
}

func (s *Store) hashStateLocked() uint64 {
	if s.current == nil {
		return ^uint64(0)
	}
	h := value.HashState()
	sc := s.current.Scenario
	value.HashMap(h, sc.Parameters.Global)
	value.HashMap(h, sc.Parameters.Windows)
	value.HashMap(h, sc.Parameters.Linux)
	value.HashMap(h, sc.Variables.Global)
	value.HashMap(h, sc.Variables.Windows)
	value.HashMap(h, sc.Variables.Linux)
	for _, a := range sc.Actions {
		value.Hash(h, value.Text(a.Name))
		value.Hash(h, value.Text(a.Action.String()))
		value.HashMap(h, a.Parameters)
	}
	return h.Sum64()
}

// SetTaskResult records a completion report. Idempotent-accept policy:
// last_completed = max(existing, reported.id), and re-reporting the same
// id overwrites the stored result for that id rather than erroring.
func (s *Store) SetTaskResult(result scenario.AgentTaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[result.AgentID]
	if !ok {
		st = newSceneState()
		s.state[result.AgentID] = st
	}
	if st.LastCompletedTaskID == nil || result.ID > *st.LastCompletedTaskID {
		id := result.ID
		st.LastCompletedTaskID = &id
	}
	st.Results[result.ID] = result
}

// NextTask returns the task at last_completed+1 (or 0), rejecting
// server-side kinds — those are never handed to an agent.
func (s *Store) NextTask(agentID string) (scenario.AgentTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return scenario.AgentTask{}, false
	}
	idx := uint32(0)
	if st, ok := s.state[agentID]; ok && st.LastCompletedTaskID != nil {
		idx = *st.LastCompletedTaskID + 1
	}
	if int(idx) >= len(s.current.Tasks) {
		return scenario.AgentTask{}, false
	}
	task := s.current.Tasks[idx]
	if task.Action.IsServerSide() {
		return scenario.AgentTask{}, false
	}
	task.AgentID = agentID
	return task, true
}

// PeekTask returns the task at agentID's cursor regardless of whether its
// kind is server-side, used by the dispatch engine to find server-side
// work NextTask would otherwise hide.
func (s *Store) PeekTask(agentID string) (scenario.AgentTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return scenario.AgentTask{}, false
	}
	idx := uint32(0)
	if st, ok := s.state[agentID]; ok && st.LastCompletedTaskID != nil {
		idx = *st.LastCompletedTaskID + 1
	}
	if int(idx) >= len(s.current.Tasks) {
		return scenario.AgentTask{}, false
	}
	task := s.current.Tasks[idx]
	task.AgentID = agentID
	return task, true
}

// TotalTasks returns the number of tasks in the current compiled scenario.
func (s *Store) TotalTasks() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return uint32(len(s.current.Tasks))
}

// SceneStateFor returns a copy of agentID's scene state.
func (s *Store) SceneStateFor(agentID string) (SceneState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[agentID]
	if !ok {
		return SceneState{}, false
	}
	return *st, true
}

// SetMetric records a reported metrics artifact against agentID.
func (s *Store) SetMetric(agentID, name string, artifact MetricsArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[agentID]
	if !ok {
		st = newSceneState()
		s.state[agentID] = st
	}
	st.Metrics[name] = artifact
}

// GetMetric returns a previously recorded metrics artifact.
func (s *Store) GetMetric(agentID, name string) (MetricsArtifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[agentID]
	if !ok {
		return MetricsArtifact{}, false
	}
	m, ok := st.Metrics[name]
	return m, ok
}

// Load reads path and replaces the store's state. A missing or unparsable
// file yields empty state, matching Database::load's best-effort policy.
func (s *Store) Load(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("store snapshot not found, starting empty", "path", path, "error", err)
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("store snapshot unparsable, starting empty", "path", path, "error", err)
		return
	}
	s.agents = snap.Agents
	s.testScenarios = snap.TestScenarios
	s.state = snap.State
	if s.agents == nil {
		s.agents = make(map[string]Registration)
	}
	if s.testScenarios == nil {
		s.testScenarios = make(map[string]scenario.Scenario)
	}
	if s.state == nil {
		s.state = make(map[string]*SceneState)
	}

	s.current = nil
	if snap.CurrentName != "" {
		if sc, ok := s.testScenarios[snap.CurrentName]; ok {
			compiled := compiler.Compile(sc)
			s.current = &compiled
		} else {
			s.log.Warn("store snapshot named a current scenario no longer in testScenarios", "scenario", snap.CurrentName)
		}
	}
}

// Save writes the whole store to path as a single JSON document.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(path)
}

// Backup writes a named copy of the store alongside path, matching
// Database::save_as.
func (s *Store) Backup(path string) error {
	return s.Save(path)
}

func (s *Store) saveLocked(path string) error {
	currentName := ""
	if s.current != nil {
		currentName = s.current.Name
	}
	snap := snapshot{
		Agents:        s.agents,
		CurrentName:   currentName,
		TestScenarios: s.testScenarios,
		State:         s.state,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
