// Package action implements the closed action-kind taxonomy: a single
// tagged variant type grouped by family, parsed totally (any unrecognised
// string becomes Custom(name)).
//
// This supersedes the two competing flat enums of the original
// implementation (see original_source/common/src/action/mod.rs).
package action

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Family groups related action members. FamilyFlat covers the kinds with
// no family prefix in their wire form (RestartHost, Wait, Null, ...).
type Family string

const (
	FamilyFlat    Family = ""
	FamilyPackage Family = "Package"
	FamilyService Family = "Service"
	FamilyExecute Family = "Execute"
	FamilyMetrics Family = "Metrics"
	FamilyLog     Family = "Log"
	FamilyArtifact Family = "Artifact"
	FamilyDns     Family = "Dns"
	FamilyHttp    Family = "Http"
	FamilyCustom  Family = "Custom"
)

// Kind is the closed tagged action type. The zero value is not Null (its
// member name is empty) and matches no defined kind.
type Kind struct {
	family Family
	member string
}

func member(f Family, m string) Kind { return Kind{family: f, member: m} }

var (
	PackageInstall          = member(FamilyPackage, "Install")
	PackageUninstall        = member(FamilyPackage, "Uninstall")
	PackageInstallWithError = member(FamilyPackage, "InstallWithError")
	PackageIsInstalled      = member(FamilyPackage, "IsInstalled")
	PackageIsNotInstalled   = member(FamilyPackage, "IsNotInstalled")

	ServiceStart      = member(FamilyService, "Start")
	ServiceStop       = member(FamilyService, "Stop")
	ServiceRestart    = member(FamilyService, "Restart")
	ServiceIsRunning  = member(FamilyService, "IsRunning")

	ExecuteCommand       = member(FamilyExecute, "Command")
	ExecuteScript        = member(FamilyExecute, "Script")
	ExecuteServerCommand = member(FamilyExecute, "ServerCommand")
	ExecuteServerScript  = member(FamilyExecute, "ServerScript")

	MetricsStartProcess  = member(FamilyMetrics, "StartProcess")
	MetricsStopProcess   = member(FamilyMetrics, "StopProcess")
	MetricsUploadProcess = member(FamilyMetrics, "UploadProcess")
	MetricsStartService  = member(FamilyMetrics, "StartService")
	MetricsStopService   = member(FamilyMetrics, "StopService")
	MetricsUploadService = member(FamilyMetrics, "UploadService")

	LogWatch     = member(FamilyLog, "Watch")
	LogStopWatch = member(FamilyLog, "StopWatch")

	ArtifactDownload = member(FamilyArtifact, "Download")
	ArtifactUpload   = member(FamilyArtifact, "Upload")

	DnsAdd    = member(FamilyDns, "Add")
	DnsRemove = member(FamilyDns, "Remove")

	HttpRequest  = member(FamilyHttp, "Request")
	HttpResponse = member(FamilyHttp, "Response")
	HttpHook     = member(FamilyHttp, "Hook")

	RestartHost      = member(FamilyFlat, "RestartHost")
	Wait             = member(FamilyFlat, "Wait")
	CleanTmpFolder   = member(FamilyFlat, "CleanTmpFolder")
	CleanAppFolder   = member(FamilyFlat, "CleanAppFolder")
	SetEnvVar        = member(FamilyFlat, "SetEnvVar")
	DeleteEnvVar     = member(FamilyFlat, "DeleteEnvVar")
	ResetAppEnvVars  = member(FamilyFlat, "ResetAppEnvVars")
	SetAppEnvVars    = member(FamilyFlat, "SetAppEnvVars")
	StartUserSession = member(FamilyFlat, "StartUserSession")
	CloseUserSession = member(FamilyFlat, "CloseUserSession")
	Null             = member(FamilyFlat, "Null")
)

// allKnown lists every non-custom kind, used by Parse for a total match.
var allKnown = []Kind{
	PackageInstall, PackageUninstall, PackageInstallWithError, PackageIsInstalled, PackageIsNotInstalled,
	ServiceStart, ServiceStop, ServiceRestart, ServiceIsRunning,
	ExecuteCommand, ExecuteScript, ExecuteServerCommand, ExecuteServerScript,
	MetricsStartProcess, MetricsStopProcess, MetricsUploadProcess, MetricsStartService, MetricsStopService, MetricsUploadService,
	LogWatch, LogStopWatch,
	ArtifactDownload, ArtifactUpload,
	DnsAdd, DnsRemove,
	HttpRequest, HttpResponse, HttpHook,
	RestartHost, Wait, CleanTmpFolder, CleanAppFolder, SetEnvVar, DeleteEnvVar, ResetAppEnvVars, SetAppEnvVars, StartUserSession, CloseUserSession, Null,
}

// Custom returns the Custom(name) kind for an unrecognised action name.
func Custom(name string) Kind { return Kind{family: FamilyCustom, member: name} }

// IsCustom reports whether k is a Custom(name) kind.
func (k Kind) IsCustom() bool { return k.family == FamilyCustom }

// CustomName returns the name for a Custom kind, or "" otherwise.
func (k Kind) CustomName() string {
	if k.family != FamilyCustom {
		return ""
	}
	return k.member
}

// Family returns k's family (FamilyFlat for flat kinds, FamilyCustom for
// Custom(name)).
func (k Kind) Family() Family { return k.family }

// String renders the wire form: "Family::Member" for families, bare
// member name for flat kinds and Custom(name).
func (k Kind) String() string {
	if k.family == FamilyFlat || k.family == FamilyCustom {
		return k.member
	}
	return string(k.family) + "::" + k.member
}

// Parse is total: any string not matching a known kind becomes
// Custom(that_string).
func Parse(s string) Kind {
	for _, k := range allKnown {
		if k.String() == s {
			return k
		}
	}
	if s == "" {
		return Null
	}
	return Custom(s)
}

// IsServerSide is true exactly for Execute::ServerCommand,
// Execute::ServerScript, and the whole Http family — actions the
// coordinator runs itself rather than dispatching to an agent.
func (k Kind) IsServerSide() bool {
	if k == ExecuteServerCommand || k == ExecuteServerScript {
		return true
	}
	return k.family == FamilyHttp
}

// IsUndoable is true for actions installing persistent state the cleanup
// phase is expected to reverse: Dns::Add, Package::Install, Log::Watch,
// Metrics::Start*.
func (k Kind) IsUndoable() bool {
	switch k {
	case DnsAdd, PackageInstall, LogWatch, MetricsStartProcess, MetricsStartService:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the kind as its wire string.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the wire string totally via Parse.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = Parse(s)
	return nil
}

// MarshalYAML encodes the kind as its wire string, same form as MarshalJSON.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML parses the wire string totally via Parse. Needed
// alongside UnmarshalJSON because Kind's fields are unexported and
// invisible to yaml.v3's default reflection-based decoding.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*k = Parse(s)
	return nil
}
