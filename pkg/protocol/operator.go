package protocol

import "github.com/chaosbench/chaosbench/pkg/scenario"

// UserActionType discriminates an operator-channel request frame, sent
// over the coordinator's second, operator-facing control channel.
type UserActionType string

const (
	UAListScenarios    UserActionType = "ListScenarios"
	UAListAgents       UserActionType = "ListAgents"
	UAStartScenario    UserActionType = "StartScenario"
	UAStopScenario     UserActionType = "StopScenario"
	UACreateScenario   UserActionType = "CreateScenario"
	UASubscribeLogs    UserActionType = "SubscribeLogs"
	UARequestReport    UserActionType = "RequestReport"
	UABackup           UserActionType = "Backup"
)

// UserAction is a frame sent by an operator over /_user/connect.
type UserAction struct {
	Type UserActionType `json:"type"`

	ScenarioName string             `json:"scenario_name,omitempty"`
	Scenario     *scenario.Scenario `json:"scenario,omitempty"`

	// AgentID is the log-subscription target; "" subscribes to all
	// agents.
	AgentID string `json:"agent_id,omitempty"`

	BackupName string `json:"backup_name,omitempty"`
}

// UserActionResponseType discriminates a coordinator-to-operator
// response frame.
type UserActionResponseType string

const (
	UARScenarios UserActionResponseType = "Scenarios"
	UARAgents    UserActionResponseType = "Agents"
	UARReport    UserActionResponseType = "Report"
	UARLogLine   UserActionResponseType = "LogLine"
	UAROk        UserActionResponseType = "Ok"
	UARError     UserActionResponseType = "Error"
)

// LogEvent is one line of agent process log or watched application log,
// fanned out to subscribed operator connections.
type LogEvent struct {
	AgentID  string `json:"agent_id"`
	File     string `json:"file,omitempty"`
	Line     string `json:"line"`
	IsAppLog bool   `json:"is_app_log"`
}

// UserActionResponse is a frame sent by the coordinator to one operator
// connection.
type UserActionResponse struct {
	Type UserActionResponseType `json:"type"`

	Scenarios []string  `json:"scenarios,omitempty"`
	Agents    []string  `json:"agents,omitempty"`
	Report    string    `json:"report,omitempty"`
	LogLine   *LogEvent `json:"log_line,omitempty"`
	Error     string    `json:"error,omitempty"`
}
