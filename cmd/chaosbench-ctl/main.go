// chaosbench-ctl is a thin CLI client over the coordinator's operator
// channel (/_user/connect), giving operators a scriptable command surface
// for starting scenarios, tailing logs, and pulling reports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/chaosbench/chaosbench/pkg/protocol"
)

var coordinatorURL string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chaosbench-ctl",
		Short: "Operate a ChaosBench coordinator from the command line",
	}
	root.PersistentFlags().StringVar(&coordinatorURL, "coordinator", envOr("CHAOSBENCH_CTL_URL", "ws://localhost:8443/_user/connect"), "Coordinator operator channel URL")

	root.AddCommand(
		newListScenariosCmd(),
		newListAgentsCmd(),
		newStartCmd(),
		newStopCmd(),
		newBackupCmd(),
		newReportCmd(),
		newLogsCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// operatorClient is a single request/response round trip (or, for Logs, a
// long-lived read loop) over /_user/connect.
type operatorClient struct {
	conn *websocket.Conn
}

func dialOperator(ctx context.Context) (*operatorClient, error) {
	conn, _, err := websocket.Dial(ctx, coordinatorURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", coordinatorURL, err)
	}
	return &operatorClient{conn: conn}, nil
}

func (c *operatorClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *operatorClient) roundTrip(ctx context.Context, action protocol.UserAction) (protocol.UserActionResponse, error) {
	data, err := json.Marshal(action)
	if err != nil {
		return protocol.UserActionResponse{}, err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return protocol.UserActionResponse{}, err
	}

	_, reply, err := c.conn.Read(ctx)
	if err != nil {
		return protocol.UserActionResponse{}, err
	}
	var resp protocol.UserActionResponse
	if err := json.Unmarshal(reply, &resp); err != nil {
		return protocol.UserActionResponse{}, err
	}
	if resp.Type == protocol.UARError {
		return resp, fmt.Errorf("coordinator: %s", resp.Error)
	}
	return resp, nil
}

func runRoundTrip(action protocol.UserAction, onOk func(protocol.UserActionResponse)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := dialOperator(ctx)
	if err != nil {
		return err
	}
	defer client.close()

	resp, err := client.roundTrip(ctx, action)
	if err != nil {
		return err
	}
	onOk(resp)
	return nil
}

func newListScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-scenarios",
		Short: "List registered scenario names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(protocol.UserAction{Type: protocol.UAListScenarios}, func(resp protocol.UserActionResponse) {
				for _, name := range resp.Scenarios {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
			})
		},
	}
}

func newListAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-agents",
		Short: "List connected agent IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(protocol.UserAction{Type: protocol.UAListAgents}, func(resp protocol.UserActionResponse) {
				for _, id := range resp.Agents {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
			})
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <scenario>",
		Short: "Start a registered scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(protocol.UserAction{Type: protocol.UAStartScenario, ScenarioName: args[0]}, func(protocol.UserActionResponse) {
				fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[0])
			})
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the currently running scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(protocol.UserAction{Type: protocol.UAStopScenario}, func(protocol.UserActionResponse) {
				fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			})
		},
	}
}

func newBackupCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a named snapshot of the coordinator state store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(protocol.UserAction{Type: protocol.UABackup, BackupName: name}, func(protocol.UserActionResponse) {
				fmt.Fprintf(cmd.OutOrStdout(), "backup %q written\n", name)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "manual", "Backup name, written as <name>.db beside the state file")
	return cmd
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the current scenario's report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(protocol.UserAction{Type: protocol.UARequestReport}, func(resp protocol.UserActionResponse) {
				fmt.Fprint(cmd.OutOrStdout(), resp.Report)
			})
		},
	}
}

func newLogsCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail agent log lines (all agents, or one with --agent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailLogs(cmd, agentID)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Subscribe to one agent's log lines only")
	return cmd
}

func tailLogs(cmd *cobra.Command, agentID string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, err := dialOperator(ctx)
	if err != nil {
		return err
	}
	defer client.close()

	sub := protocol.UserAction{Type: protocol.UASubscribeLogs, AgentID: agentID}
	if _, err := client.roundTrip(ctx, sub); err != nil {
		return err
	}

	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return err
		}
		var resp protocol.UserActionResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.Type == protocol.UARLogLine && resp.LogLine != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", resp.LogLine.AgentID, resp.LogLine.Line)
		}
	}
}
