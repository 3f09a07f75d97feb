// Package backend declares the OS action back-end contract: for each
// action family the agent runtime calls a back-end with the materialised
// parameter map and gets back success or a failure message. Concrete OS
// integration (installing packages, managing services, sampling process
// metrics) is explicitly out of core scope — this package provides the
// interface plus a logging no-op implementation suitable for development
// and for driving the runtime loop's own tests.
package backend

import (
	"context"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/value"
)

// Reserved parameter keys the core passes through to a back-end verbatim
// without interpreting them itself.
const (
	ParamTaskTimeout         = "$task_timeout"
	ParamInstaller           = "installer"
	ParamInstallParameters   = "install_parameters"
	ParamInstallError        = "install_error"
	ParamServiceName         = "service_name"
	ParamTaskRetries         = "task_retries"
	ParamServerDomain        = "server_domain"
	ParamServerIP            = "server_ip"
	ParamWaitDuration        = "wait_duration"
	ParamWatchLogFile        = "watchlog_file"
	ParamWatchLogStep        = "watchlog_step"
	ParamMetricSampleFreq    = "metric_sample_freq"
	ParamMetricMaxAvgCPU     = "metric_max_avg_cpu"
	ParamMetricMaxAvgRAM     = "metric_max_avg_ram"
	ParamMetricExecutable    = "metric_executable_path"
	ParamArtifactLocation    = "artifact_location"
	ParamArtifactName        = "artifact_name"
	ParamUploadFileName      = "upload_file_name"
	ParamUploadFileLocation  = "upload_file_location"
	ParamExecutable          = "executable"
	ParamParameters          = "parameters"
	ParamTimeout             = "timeout"
	ParamScript              = "script"
)

// Result is a back-end call's outcome: Ok, or a message describing why
// not. It mirrors scenario.Outcome deliberately — the runtime loop
// converts one into the other without reinterpretation.
type Result struct {
	Ok      bool
	Message string
}

func Success() Result              { return Result{Ok: true} }
func Failure(msg string) Result    { return Result{Message: msg} }

// Backend dispatches one materialised action to the host OS. Call sites
// pass the fully merged and interpolated parameter map for the task.
type Backend interface {
	Dispatch(ctx context.Context, kind action.Kind, params *value.Map) Result
}

// Noop is a Backend that logs nothing and always succeeds, used where no
// OS integration is wired (development, and the runtime loop's own unit
// tests exercise a fake instead).
type Noop struct{}

func (Noop) Dispatch(context.Context, action.Kind, *value.Map) Result {
	return Success()
}
