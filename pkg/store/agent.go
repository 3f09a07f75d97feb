package store

// Arch identifies an agent's processor architecture.
type Arch string

const (
	ArchX64   Arch = "X64"
	ArchX86   Arch = "X86"
	ArchARM64 Arch = "ARM64"
)

// Registration is an agent's identity as advertised on control-channel
// connect: a stable host UUID, hostname, OS, architecture, and the peer IP
// the coordinator observed the connection from.
type Registration struct {
	StableID string           `json:"stable_id"`
	Hostname string           `json:"hostname"`
	OS       string           `json:"os"`
	Arch     Arch             `json:"arch"`
	SourceIP string           `json:"source_ip"`
}

// MetricsArtifact is a sampled process/service metrics window reported by
// an agent.
type MetricsArtifact struct {
	RAMSamples     []float64 `json:"ram_samples"`
	CPUSamples     []float64 `json:"cpu_samples"`
	StartMs        int64     `json:"start_ms"`
	EndMs          int64     `json:"end_ms"`
	SamplingPeriod int64     `json:"sampling_period_ms"`
}
