package agentrt

import (
	"context"
	"net/http"
	"time"

	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/gorilla/websocket"
)

// Transport is the agent's persistent control channel to the coordinator
// (wss://.../_agent/connect). WSTransport below wraps gorilla/websocket the
// way the teacher's pkg/api/websocket.go wraps it for its own agent-facing
// channel; Transport itself stays an interface so the main pump can be
// driven by a fake in tests.
type Transport interface {
	Connect(ctx context.Context) error
	Send(req protocol.AgentRequest) error
	// Recv waits up to its own bounded read deadline for one frame; ok is
	// false on a read timeout, which is not an error.
	Recv() (resp protocol.AgentResponse, ok bool, err error)
	Close() error
}

// WSTransport is the production Transport: one gorilla/websocket
// connection, reconnected by the caller on failure. A frame may arrive as
// either a text or binary message; WSTransport accepts both.
type WSTransport struct {
	URL         string
	AgentID     string
	Hostname    string
	Arch        string
	OS          string
	ReadTimeout time.Duration

	conn *websocket.Conn
}

func NewWSTransport(url, agentID, hostname, arch, os string) *WSTransport {
	return &WSTransport{
		URL:         url,
		AgentID:     agentID,
		Hostname:    hostname,
		Arch:        arch,
		OS:          os,
		ReadTimeout: 200 * time.Millisecond,
	}
}

func (t *WSTransport) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Agent-Id", t.AgentID)
	header.Set("Agent-Host", t.Hostname)
	header.Set("Agent-Arch", t.Arch)
	header.Set("Agent-Os", t.OS)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.URL, header)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *WSTransport) Send(req protocol.AgentRequest) error {
	return t.conn.WriteJSON(req)
}

func (t *WSTransport) Recv() (protocol.AgentResponse, bool, error) {
	_ = t.conn.SetReadDeadline(time.Now().Add(t.ReadTimeout))
	var resp protocol.AgentResponse
	err := t.conn.ReadJSON(&resp)
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return protocol.AgentResponse{}, false, nil
		}
		return protocol.AgentResponse{}, false, err
	}
	return resp, true, nil
}

func (t *WSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
