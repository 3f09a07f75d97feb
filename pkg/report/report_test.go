package report

import (
	"strings"
	"testing"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoAgentScenario(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(nil)
	sc := scenario.Scenario{
		Scenes: []scenario.Scene{
			{Name: "boot", Phases: []action.Kind{action.PackageInstall}},
			{Name: "teardown", Phases: []action.Kind{action.ServiceStop}},
		},
	}
	st.SaveTestScenario("s", sc)
	require.NoError(t, st.StartScenario("s"))
	st.RegisterAgent(store.Registration{StableID: "a1", Hostname: "host-a"})
	st.RegisterAgent(store.Registration{StableID: "a2", Hostname: "host-b"})
	return st
}

func TestRenderNoScenarioIsAnError(t *testing.T) {
	_, err := Render(store.New(nil))
	assert.Error(t, err)
}

func TestRenderAllPassingResumesWithCheckmark(t *testing.T) {
	st := twoAgentScenario(t)
	for _, agentID := range []string{"a1", "a2"} {
		st.SetTaskResult(scenario.AgentTaskResult{ID: 0, SceneID: 0, AgentID: agentID, Outcome: scenario.Success()})
		st.SetTaskResult(scenario.AgentTaskResult{ID: 1, SceneID: 1, AgentID: agentID, Outcome: scenario.Success()})
	}

	out, err := Render(st)
	require.NoError(t, err)
	assert.Contains(t, out, "# s\n")
	assert.Contains(t, out, "## boot")
	assert.Contains(t, out, "## teardown")
	assert.Contains(t, out, "**Resume 2/2 "+glyphOK+"**")
	assert.Equal(t, 2, strings.Count(out, "**Resume 2/2 "+glyphOK+"**"))
}

func TestRenderMixedOutcomesProducesGlyphsAndErrorMessages(t *testing.T) {
	st := twoAgentScenario(t)
	st.SetTaskResult(scenario.AgentTaskResult{ID: 0, SceneID: 0, AgentID: "a1", Outcome: scenario.Success()})
	st.SetTaskResult(scenario.AgentTaskResult{ID: 0, SceneID: 0, AgentID: "a2", Outcome: scenario.Failure("boom")})
	// a1/a2 never report task 1 (teardown) — it stays pending.

	out, err := Render(st)
	require.NoError(t, err)
	assert.Contains(t, out, glyphErr+" | Package::Install | a2 | host-b | boom |")
	assert.Contains(t, out, "**Resume 1/2 "+glyphErr+"**")
	assert.Contains(t, out, glyphPending+" | Service::Stop | a1 | host-a | Execution Pending |")
	assert.Contains(t, out, "**Resume 0/2 "+glyphErr+"**")
}

func TestRenderUnknownSceneNameFallback(t *testing.T) {
	st := store.New(nil)
	sc := scenario.Scenario{Scenes: []scenario.Scene{{Name: "only", Phases: []action.Kind{action.Null}}}}
	st.SaveTestScenario("s", sc)
	require.NoError(t, st.StartScenario("s"))
	st.RegisterAgent(store.Registration{StableID: "a1"})

	out, err := Render(st)
	require.NoError(t, err)
	assert.Contains(t, out, "## only")
	assert.NotContains(t, out, "Unknown scene")
}
