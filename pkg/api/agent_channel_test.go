package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/store"
)

func TestHandleAgentRequestLogPublishesToOperatorHub(t *testing.T) {
	s := newTestServer(t)
	oc := newOperatorConn(nil)
	oc.setSubscription("")
	s.ops.register(oc)

	resp := s.handleAgentRequest(context.Background(), "agent-1", protocol.NewLog("hello"))
	assert.Nil(t, resp)
	require.Len(t, oc.outbox, 1)

	got := <-oc.outbox
	require.NotNil(t, got.LogLine)
	assert.Equal(t, "hello", got.LogLine.Line)
	assert.False(t, got.LogLine.IsAppLog)
}

func TestHandleAgentRequestCompleteTaskRecordsResult(t *testing.T) {
	s := newTestServer(t)
	result := scenario.AgentTaskResult{AgentID: "agent-1", ID: 0, Outcome: scenario.Success()}

	resp := s.handleAgentRequest(context.Background(), "agent-1", protocol.NewCompleteTask(result))
	assert.Nil(t, resp)

	st, ok := s.store.SceneStateFor("agent-1")
	require.True(t, ok)
	assert.True(t, st.Results[0].Outcome.Ok)
}

func TestHandleAgentRequestNextTaskWithNoScenarioWaits(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleAgentRequest(context.Background(), "agent-1", protocol.NewNextTaskRequest(0))
	require.Len(t, resp, 1)
	assert.Equal(t, protocol.RespWait, resp[0].Type)
}

func TestHandleAgentRequestHeartBeatIsANoop(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleAgentRequest(context.Background(), "agent-1", protocol.NewHeartBeat())
	assert.Nil(t, resp)
}

func TestAgentChannelHandlerRegistersAgentAndEchoesWait(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/_agent/connect"
	header := make(map[string][]string)
	header["Agent-Id"] = []string{"agent-1"}
	header["Agent-Host"] = []string{"host-1"}
	header["Agent-Arch"] = []string{string(store.ArchX64)}
	header["Agent-Os"] = []string{"linux"}

	conn, _, err := gorillaws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.NewNextTaskRequest(0)))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.AgentResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, protocol.RespWait, resp.Type)

	_, ok := s.store.GetAgent("agent-1")
	assert.True(t, ok)
}
