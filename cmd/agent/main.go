// ChaosBench agent - connects to a coordinator's control channel and runs
// dispatched chaos actions against the local host.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"

	"github.com/chaosbench/chaosbench/pkg/agentrt"
	"github.com/chaosbench/chaosbench/pkg/backend"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	coordinatorURL := flag.String("coordinator", getEnv("CHAOSBENCH_COORDINATOR_URL", "ws://localhost:8443/_agent/connect"), "Coordinator control channel URL")
	statePath := flag.String("state", getEnv("CHAOSBENCH_AGENT_STATE", "./chaosbench-agent-state.json"), "Path to the agent's persisted state file")
	flag.Parse()

	agentID := agentStableID(*statePath)
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	logger := slog.Default()
	transport := agentrt.NewWSTransport(*coordinatorURL, agentID, hostname, runtime.GOARCH, runtime.GOOS)
	rt := agentrt.New(agentID, transport, backend.Noop{}, *statePath, logger)

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Stopping agent")
		rt.Stop()
		cancel()
	}()

	log.Printf("ChaosBench agent %s connecting to %s", agentID, *coordinatorURL)
	if err := rt.Run(ctx); err != nil {
		log.Fatalf("agent runtime stopped: %v", err)
	}
}

// agentStableID reuses a UUID persisted alongside statePath across
// restarts, or mints one on first run, so the coordinator can recognize
// this host across reconnects even if its hostname or address changes.
func agentStableID(statePath string) string {
	idPath := statePath + ".id"
	if data, err := os.ReadFile(idPath); err == nil && len(data) > 0 {
		return string(data)
	}
	id := uuid.NewString()
	_ = os.WriteFile(idPath, []byte(id), 0o644)
	return id
}
