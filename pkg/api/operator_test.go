package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/scenario"
)

func TestHandleUserActionListScenarios(t *testing.T) {
	s := newTestServer(t)
	s.store.SaveTestScenario("chaos-reboot", scenario.Scenario{Name: "chaos-reboot"})

	resp := s.handleUserAction(context.Background(), newOperatorConn(nil), protocol.UserAction{Type: protocol.UAListScenarios})
	require.Equal(t, protocol.UARScenarios, resp.Type)
	assert.Contains(t, resp.Scenarios, "chaos-reboot")
}

func TestHandleUserActionStartThenStopArchivesRun(t *testing.T) {
	s := newTestServer(t)
	s.store.SaveTestScenario("chaos-reboot", scenario.Scenario{Name: "chaos-reboot"})

	startResp := s.handleUserAction(context.Background(), newOperatorConn(nil), protocol.UserAction{
		Type:         protocol.UAStartScenario,
		ScenarioName: "chaos-reboot",
	})
	require.Equal(t, protocol.UAROk, startResp.Type)

	_, running := s.store.CurrentScenarioName()
	require.True(t, running)

	// archive is nil in this test server, so stop must still succeed
	// (archiving is fire-and-forget, never blocking).
	stopResp := s.handleUserAction(context.Background(), newOperatorConn(nil), protocol.UserAction{Type: protocol.UAStopScenario})
	assert.Equal(t, protocol.UAROk, stopResp.Type)

	_, running = s.store.CurrentScenarioName()
	assert.False(t, running)
}

func TestHandleUserActionStartRejectsUnknownScenario(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleUserAction(context.Background(), newOperatorConn(nil), protocol.UserAction{
		Type:         protocol.UAStartScenario,
		ScenarioName: "missing",
	})
	assert.Equal(t, protocol.UARError, resp.Type)
}

func TestOperatorConnEnqueueDropsNewestWhenFull(t *testing.T) {
	oc := newOperatorConn(nil)
	oc.setSubscription("")

	for i := 0; i < logBufferSize+10; i++ {
		oc.enqueue(protocol.UserActionResponse{Type: protocol.UARLogLine})
	}
	assert.Equal(t, logBufferSize, len(oc.outbox))
}

func TestOperatorHubPublishLogRespectsSubscriptionFilter(t *testing.T) {
	h := newOperatorHub(nil)

	all := newOperatorConn(nil)
	all.setSubscription("")
	specific := newOperatorConn(nil)
	specific.setSubscription("agent-2")
	unsubscribed := newOperatorConn(nil)

	h.register(all)
	h.register(specific)
	h.register(unsubscribed)

	h.publishLog("agent-1", "", "line one", false)

	assert.Len(t, all.outbox, 1)
	assert.Len(t, specific.outbox, 0)
	assert.Len(t, unsubscribed.outbox, 0)

	h.publishLog("agent-2", "", "line two", false)
	assert.Len(t, all.outbox, 2)
	assert.Len(t, specific.outbox, 1)
}
