package dispatch

import (
	"context"
	"testing"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActuator struct {
	ran     []scenario.AgentTask
	outcome scenario.Outcome
}

func (f *fakeActuator) Run(_ context.Context, task scenario.AgentTask) scenario.Outcome {
	f.ran = append(f.ran, task)
	return f.outcome
}

func newEngine(t *testing.T, actuator Actuator) *Engine {
	t.Helper()
	st := store.New(nil)
	sc := scenario.Scenario{
		Scenes: []scenario.Scene{
			{Name: "s0", Phases: []action.Kind{action.ExecuteServerCommand, action.PackageInstall}},
		},
	}
	st.SaveTestScenario("s", sc)
	require.NoError(t, st.StartScenario("s"))
	st.RegisterAgent(store.Registration{StableID: "a1", OS: "Linux", SourceIP: "10.0.0.1"})
	return New(st, actuator, nil)
}

func TestHandleNextTaskReturnsWaitWithoutCurrentScenario(t *testing.T) {
	e := New(store.New(nil), &fakeActuator{}, nil)
	got := e.HandleNextTask(context.Background(), "a1", 0)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.RespWait, got[0].Type)
}

func TestHandleNextTaskPushesConfigurationOnStaleHash(t *testing.T) {
	e := newEngine(t, &fakeActuator{outcome: scenario.Success()})
	got := e.HandleNextTask(context.Background(), "a1", 0)
	require.Len(t, got, 3)
	assert.Equal(t, protocol.RespParameters, got[0].Type)
	assert.Equal(t, protocol.RespCustomActions, got[1].Type)
	assert.Equal(t, protocol.RespVariables, got[2].Type)
}

// TestHandleNextTaskRunsServerSideTaskAndReturnsWait: the server-side task
// at the front of the queue executes locally, its result is recorded
// under the requesting agent's own id, and the coordinator still answers
// Wait for this call.
func TestHandleNextTaskRunsServerSideTaskAndReturnsWait(t *testing.T) {
	actuator := &fakeActuator{outcome: scenario.Success()}
	e := newEngine(t, actuator)
	hash := e.Store.HashState()

	got := e.HandleNextTask(context.Background(), "a1", hash)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.RespWait, got[0].Type)

	require.Len(t, actuator.ran, 1)
	assert.Equal(t, action.ExecuteServerCommand, actuator.ran[0].Action)

	state, ok := e.Store.SceneStateFor("a1")
	require.True(t, ok)
	require.NotNil(t, state.LastCompletedTaskID)
	assert.Equal(t, uint32(0), *state.LastCompletedTaskID)
}

// TestHandleNextTaskServesAgentTaskAfterServerTaskCompletes verifies the
// next NextTask call (same hash) skips past the completed server-side
// task and delivers the agent-side one.
func TestHandleNextTaskServesAgentTaskAfterServerTaskCompletes(t *testing.T) {
	actuator := &fakeActuator{outcome: scenario.Success()}
	e := newEngine(t, actuator)
	hash := e.Store.HashState()

	e.HandleNextTask(context.Background(), "a1", hash)
	got := e.HandleNextTask(context.Background(), "a1", hash)
	require.Len(t, got, 1)
	require.Equal(t, protocol.RespNextTask, got[0].Type)
	assert.Equal(t, action.PackageInstall, got[0].Task.Action)
}

// TestHandleNextTaskLeavesHttpTasksToProxy verifies the Http family, while
// server-side, is never run by the actuator — only the HTTP interception
// proxy completes those tasks.
func TestHandleNextTaskLeavesHttpTasksToProxy(t *testing.T) {
	st := store.New(nil)
	sc := scenario.Scenario{
		Scenes: []scenario.Scene{{Name: "s0", Phases: []action.Kind{action.HttpRequest}}},
	}
	st.SaveTestScenario("s", sc)
	require.NoError(t, st.StartScenario("s"))
	st.RegisterAgent(store.Registration{StableID: "a1", OS: "Linux"})
	actuator := &fakeActuator{}
	e := New(st, actuator, nil)
	hash := st.HashState()

	got := e.HandleNextTask(context.Background(), "a1", hash)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.RespWait, got[0].Type)
	assert.Empty(t, actuator.ran)
}

func TestHandleNextTaskWaitsWhenAgentTasksExhausted(t *testing.T) {
	st := store.New(nil)
	sc := scenario.Scenario{
		Scenes: []scenario.Scene{{Name: "s0", Phases: []action.Kind{action.Null}}},
	}
	st.SaveTestScenario("s", sc)
	require.NoError(t, st.StartScenario("s"))
	st.RegisterAgent(store.Registration{StableID: "a1", OS: "Linux"})
	e := New(st, &fakeActuator{}, nil)
	hash := st.HashState()

	st.SetTaskResult(scenario.AgentTaskResult{ID: 0, AgentID: "a1"})

	got := e.HandleNextTask(context.Background(), "a1", hash)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.RespWait, got[0].Type)
}
