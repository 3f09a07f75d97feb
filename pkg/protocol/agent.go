// Package protocol implements the control protocol frame types shared
// between the coordinator and its agents and operators: the agent
// channel's request/response enumerations and the operator channel's
// parallel UserAction/UserActionResponse enumeration. Frames are JSON
// objects discriminated by a "type" field — idiomatic Go, not a
// Rust-style internally-tagged enum encoding.
package protocol

import (
	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/scenario"
)

// AgentRequestType discriminates an agent-to-coordinator request frame.
type AgentRequestType string

const (
	ReqLog          AgentRequestType = "Log"
	ReqAppLog       AgentRequestType = "AppLog"
	ReqNextTask     AgentRequestType = "NextTask"
	ReqCompleteTask AgentRequestType = "CompleteTask"
	ReqHeartBeat    AgentRequestType = "HeartBeat"
)

// AgentRequest is a frame sent by an agent over its persistent control
// channel.
type AgentRequest struct {
	Type AgentRequestType `json:"type"`

	// Log
	Text string `json:"text,omitempty"`

	// AppLog
	Agent string `json:"agent,omitempty"`
	File  string `json:"file,omitempty"`
	Msg   string `json:"msg,omitempty"`

	// NextTask
	Hash uint64 `json:"hash,omitempty"`

	// CompleteTask
	Result *scenario.AgentTaskResult `json:"result,omitempty"`
}

func NewLog(text string) AgentRequest { return AgentRequest{Type: ReqLog, Text: text} }

func NewAppLog(agent, file, msg string) AgentRequest {
	return AgentRequest{Type: ReqAppLog, Agent: agent, File: file, Msg: msg}
}

func NewNextTaskRequest(hash uint64) AgentRequest {
	return AgentRequest{Type: ReqNextTask, Hash: hash}
}

func NewCompleteTask(result scenario.AgentTaskResult) AgentRequest {
	return AgentRequest{Type: ReqCompleteTask, Result: &result}
}

func NewHeartBeat() AgentRequest { return AgentRequest{Type: ReqHeartBeat} }

// AgentResponseType discriminates a coordinator-to-agent response frame.
type AgentResponseType string

const (
	RespNextTask      AgentResponseType = "NextTask"
	RespCleanTask     AgentResponseType = "CleanTask"
	RespParameters    AgentResponseType = "Parameters"
	RespCustomActions AgentResponseType = "CustomActions"
	RespVariables     AgentResponseType = "Variables"
	RespStop          AgentResponseType = "Stop"
	RespWait          AgentResponseType = "Wait"
)

// AgentResponse is a frame sent by the coordinator to one agent.
type AgentResponse struct {
	Type AgentResponseType `json:"type"`

	Task          *scenario.AgentTask   `json:"task,omitempty"`
	Parameters    *scenario.Overlay     `json:"parameters,omitempty"`
	CustomActions []action.CustomAction `json:"custom_actions,omitempty"`
	Variables     *scenario.Overlay     `json:"variables,omitempty"`
}

func NewNextTaskResponse(task scenario.AgentTask) AgentResponse {
	return AgentResponse{Type: RespNextTask, Task: &task}
}

func NewCleanTask() AgentResponse { return AgentResponse{Type: RespCleanTask} }

func NewParameters(o scenario.Overlay) AgentResponse {
	return AgentResponse{Type: RespParameters, Parameters: &o}
}

func NewCustomActions(actions []action.CustomAction) AgentResponse {
	return AgentResponse{Type: RespCustomActions, CustomActions: actions}
}

func NewVariables(o scenario.Overlay) AgentResponse {
	return AgentResponse{Type: RespVariables, Variables: &o}
}

func NewStop() AgentResponse { return AgentResponse{Type: RespStop} }

func NewWait() AgentResponse { return AgentResponse{Type: RespWait} }
