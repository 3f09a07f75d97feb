package agentrt

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/backend"
	"github.com/chaosbench/chaosbench/pkg/protocol"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/value"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// waitSleepQuantum bounds how long a Wait action sleeps per pump
// iteration, so the log drain and inbound-message pump stay responsive.
const waitSleepQuantum = 100 * time.Millisecond

// serverWaitSleep is how long the agent sleeps after the coordinator
// answers RespWait — nothing to do right now.
const serverWaitSleep = 30 * time.Second

// reconnectBackoff is the minimum delay between control-channel reconnect
// attempts.
const reconnectBackoff = 5 * time.Second

// Runtime is the agent's single-threaded cooperative control loop plus
// its owned background threads (log tailers), replacing thread-local result
// containers with fields on one owning struct and using the
// Start/Stop-over-a-cancellable-context shape of pkg/cleanup.Service.
type Runtime struct {
	AgentID   string
	OS        scenario.OS
	Transport Transport
	Backend   backend.Backend
	StatePath string
	Log       *slog.Logger

	state    PersistedState
	logLines chan string
	tailers  map[string]*logTailer

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(agentID string, transport Transport, be backend.Backend, statePath string, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	if be == nil {
		be = backend.Noop{}
	}
	return &Runtime{
		AgentID:   agentID,
		OS:        hostOS(),
		Transport: transport,
		Backend:   be,
		StatePath: statePath,
		Log:       log,
		state:     LoadState(statePath, log),
		logLines:  make(chan string, 256),
		tailers:   make(map[string]*logTailer),
		stopCh:    make(chan struct{}),
	}
}

func hostOS() scenario.OS {
	switch runtime.GOOS {
	case "windows":
		return scenario.OSWindows
	case "darwin":
		return scenario.OSMac
	default:
		return scenario.OSLinux
	}
}

// Stop signals Run to return after its current iteration and stops any
// owned background threads.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	for _, t := range r.tailers {
		t.stop()
	}
	r.wg.Wait()
}

func (r *Runtime) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// Run drives the main pump until Stop is called or ctx is cancelled. It
// reconnects the control channel with backoff on failure.
func (r *Runtime) Run(ctx context.Context) error {
	firstConnect := true
	for !r.stopped() && ctx.Err() == nil {
		if err := r.Transport.Connect(ctx); err != nil {
			r.Log.Warn("control channel connect failed, backing off", "error", err)
			r.sleep(ctx, reconnectBackoff)
			continue
		}

		if firstConnect {
			r.resolveRestartHostOnStartup()
			firstConnect = false
		}

		shutdown, err := r.pumpUntilDisconnect(ctx)
		_ = r.Transport.Close()
		if shutdown {
			return nil
		}
		if err != nil {
			r.Log.Info("control channel disconnected, reconnecting", "error", err)
		}
		r.sleep(ctx, reconnectBackoff)
	}
	return nil
}

// resolveRestartHostOnStartup handles the first iteration after connect: a
// persisted RestartHost current task means the reboot we were about to
// perform already happened, so it is treated as succeeded without ever
// calling the backend again.
func (r *Runtime) resolveRestartHostOnStartup() {
	in := r.state.CurrentTask
	if in == nil || in.Task.Action != action.RestartHost {
		return
	}
	result := scenario.ResultFromTask(in.Task)
	result.AgentID = r.AgentID
	result.StartMs = in.StartMs
	result.EndMs = nowMs()
	result.Outcome = scenario.Success()
	if err := r.Transport.Send(protocol.NewCompleteTask(result)); err != nil {
		r.Log.Warn("failed to report resumed RestartHost", "error", err)
		return
	}
	r.state.CurrentTask = nil
	r.persist()
}

// pumpUntilDisconnect runs the inner control loop until the transport
// errors, a Stop frame is received, or Stop()/ctx cancellation is observed.
// Returns shutdown=true only for the latter two.
func (r *Runtime) pumpUntilDisconnect(ctx context.Context) (shutdown bool, err error) {
	for !r.stopped() && ctx.Err() == nil {
		stop, iterErr := r.pumpUntilDisconnectOnce(ctx)
		if iterErr != nil {
			return false, iterErr
		}
		if stop {
			return true, nil
		}
	}
	return r.stopped(), nil
}

// pumpUntilDisconnectOnce runs a single iteration of the control loop:
// drain logs, apply at most one inbound frame, then either request the
// next task or advance the current one. Split out from pumpUntilDisconnect
// so tests can observe state between iterations.
func (r *Runtime) pumpUntilDisconnectOnce(ctx context.Context) (shutdown bool, err error) {
	r.drainLogLines()

	resp, ok, recvErr := r.Transport.Recv()
	if recvErr != nil {
		return false, recvErr
	}
	if ok {
		if r.applyResponse(resp) {
			return true, nil
		}
	}

	if r.state.CurrentTask == nil {
		if err := r.Transport.Send(protocol.NewNextTaskRequest(configHash(r.state))); err != nil {
			return false, err
		}
		return false, nil
	}

	r.runCurrentTask(ctx)
	return false, nil
}

func (r *Runtime) drainLogLines() {
	for {
		select {
		case line := <-r.logLines:
			_ = r.Transport.Send(protocol.NewLog(line))
		default:
			return
		}
	}
}

// applyResponse handles one inbound AgentResponse frame. It returns true
// only when the coordinator has asked the agent to shut down.
func (r *Runtime) applyResponse(resp protocol.AgentResponse) bool {
	switch resp.Type {
	case protocol.RespParameters:
		if resp.Parameters != nil {
			r.state.Parameters = *resp.Parameters
		}
	case protocol.RespCustomActions:
		r.state.CustomActions = resp.CustomActions
	case protocol.RespVariables:
		if resp.Variables != nil {
			r.state.Variables = *resp.Variables
		}
	case protocol.RespNextTask:
		if resp.Task != nil {
			r.state.CurrentTask = &InFlightTask{Task: *resp.Task, RetriesBudget: resp.Task.RetriesBudget}
		}
	case protocol.RespCleanTask:
		r.state.CurrentTask = nil
	case protocol.RespStop:
		return true
	case protocol.RespWait:
		time.Sleep(serverWaitSleep)
	}
	r.persist()
	return false
}

// runCurrentTask advances the in-flight task by one pump iteration: checks
// its phase-limit deadline, resolves its effective action/parameters, and
// dispatches to the backend (or handles Wait/RestartHost/LogWatch/
// LogStopWatch directly). A phase_limit_ms of 0 times out on the very
// first evaluation if no result is present yet.
func (r *Runtime) runCurrentTask(ctx context.Context) {
	in := r.state.CurrentTask
	if in.StartMs == 0 {
		in.StartMs = nowMs()
	}

	if in.StartMs+in.Task.PhaseLimitMs <= nowMs() {
		r.completeTask(in, scenario.Failure("timeout reached"))
		return
	}

	kind, params := r.resolveEffective(in.Task)

	switch kind {
	case action.Wait:
		r.runWait(in, params)
		return
	case action.RestartHost:
		r.Backend.Dispatch(ctx, kind, params)
		r.persist()
		return
	case action.LogWatch:
		r.handleLogWatch(in, params)
		return
	case action.LogStopWatch:
		r.handleLogStopWatch(in, params)
		return
	}

	if in.RetriesBudget > 0 {
		in.RetriesBudget--
	}
	res := r.Backend.Dispatch(ctx, kind, params)
	if res.Ok {
		r.completeTask(in, scenario.Success())
		return
	}
	if in.RetriesBudget > 0 {
		r.persist()
		return
	}
	r.completeTask(in, scenario.Failure(res.Message))
}

// runWait implements the Wait action: retries_budget stays at ∞, the task
// completes once elapsed time since start reaches the requested duration,
// and each visit sleeps no more than waitSleepQuantum.
func (r *Runtime) runWait(in *InFlightTask, params *value.Map) {
	duration := time.Duration(0)
	if params != nil {
		if v, ok := params.Get(backend.ParamWaitDuration); ok {
			if d, err := v.TryDuration(); err == nil {
				duration = d
			}
		}
	}
	elapsed := time.Duration(nowMs()-in.StartMs) * time.Millisecond
	if elapsed >= duration {
		r.completeTask(in, scenario.Success())
		return
	}
	remaining := duration - elapsed
	sleep := waitSleepQuantum
	if remaining < sleep {
		sleep = remaining
	}
	time.Sleep(sleep)
	r.persist()
}

func (r *Runtime) completeTask(in *InFlightTask, outcome scenario.Outcome) {
	result := scenario.ResultFromTask(in.Task)
	result.AgentID = r.AgentID
	result.StartMs = in.StartMs
	result.EndMs = nowMs()
	result.RetriesBudget = in.RetriesBudget
	result.Outcome = outcome
	if err := r.Transport.Send(protocol.NewCompleteTask(result)); err != nil {
		r.Log.Warn("failed to report task completion", "task_id", in.Task.ID, "error", err)
	}
	r.state.CurrentTask = nil
	r.persist()
}

// resolveEffective resolves a Custom(name) action: substitute the named
// custom action's kind, overlay its parameters onto the scenario/task
// merge, then interpolate variables.
func (r *Runtime) resolveEffective(task scenario.AgentTask) (action.Kind, *value.Map) {
	return scenario.ResolveEffective(task, r.state.Parameters, r.state.Variables, r.state.CustomActions, r.OS)
}

func (r *Runtime) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-r.stopCh:
	case <-time.After(d):
	}
}

func (r *Runtime) persist() {
	if err := SaveState(r.StatePath, r.state); err != nil {
		r.Log.Warn("failed to persist agent state", "error", err)
	}
}

// handleLogWatch starts a background tailer for the file named in the
// task's watchlog_file parameter, then completes the task immediately —
// the tail itself runs for the rest of the scenario, independent of task
// completion, as its own background thread.
func (r *Runtime) handleLogWatch(in *InFlightTask, params *value.Map) {
	path := ""
	if params != nil {
		if v, ok := params.Get(backend.ParamWatchLogFile); ok {
			path, _ = v.TryString()
		}
	}
	if path == "" {
		r.completeTask(in, scenario.Failure("log watch missing watchlog_file parameter"))
		return
	}
	if err := r.watchLog(path); err != nil {
		r.completeTask(in, scenario.Failure(err.Error()))
		return
	}
	r.completeTask(in, scenario.Success())
}

// handleLogStopWatch stops a previously started tailer.
func (r *Runtime) handleLogStopWatch(in *InFlightTask, params *value.Map) {
	path := ""
	if params != nil {
		if v, ok := params.Get(backend.ParamWatchLogFile); ok {
			path, _ = v.TryString()
		}
	}
	r.stopWatchLog(path)
	r.completeTask(in, scenario.Success())
}

// watchLog starts a background tailer for a Log::Watch task, plus a
// goroutine that forwards each tailed line as an AppLog frame.
func (r *Runtime) watchLog(path string) error {
	if _, exists := r.tailers[path]; exists {
		return nil
	}
	appLines := make(chan string, 64)
	t, err := newLogTailer(path, appLines, r.Log)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	r.tailers[path] = t
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for line := range appLines {
			_ = r.Transport.Send(protocol.NewAppLog(r.AgentID, path, line))
		}
	}()
	return nil
}

// stopWatchLog stops a previously started tailer, for Log::StopWatch.
func (r *Runtime) stopWatchLog(path string) {
	if t, ok := r.tailers[path]; ok {
		t.stop()
		delete(r.tailers, path)
	}
}
