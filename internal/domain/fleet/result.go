package fleet

import (
	"strings"
	"time"
)

// Phase is a step of the per-device update state machine.
type Phase int

// Update phases in execution order, plus the two terminal phases.
const (
	PhaseIdle Phase = iota
	PhaseChecking
	PhaseUploadingFirmware
	PhaseAwaitingRebootAfterFirmware
	PhaseUploadingAssets
	PhaseTriggeringFinalReboot
	PhaseAwaitingFinalReboot
	PhaseDone
	PhaseFailed
)

// String returns a short machine-friendly phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseChecking:
		return "checking"
	case PhaseUploadingFirmware:
		return "uploading_firmware"
	case PhaseAwaitingRebootAfterFirmware:
		return "awaiting_reboot_after_firmware"
	case PhaseUploadingAssets:
		return "uploading_assets"
	case PhaseTriggeringFinalReboot:
		return "triggering_final_reboot"
	case PhaseAwaitingFinalReboot:
		return "awaiting_final_reboot"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of updating a single device.
type Result struct {
	// Target is the device this result belongs to.
	Target Target
	// LastPhase is the phase the update reached before stopping.
	// On success it is PhaseDone; on failure it is the phase that failed.
	LastPhase Phase
	// Err is the failure cause, nil on success.
	Err error
	// Elapsed is how long the device's update took.
	Elapsed time.Duration
}

// Succeeded reports whether the device completed the whole update.
func (r Result) Succeeded() bool {
	return r.Err == nil && r.LastPhase == PhaseDone
}

// StatusLabel returns the summary label for this result.
func (r Result) StatusLabel() string {
	if r.Succeeded() {
		return "SUCCESS"
	}

	return "FAILED"
}

// Report is the ordered collection of per-device results,
// one per input target, in input order.
type Report []Result

// AllSucceeded reports whether every device completed its update.
func (report Report) AllSucceeded() bool {
	for _, result := range report {
		if !result.Succeeded() {
			return false
		}
	}

	return true
}

// Summary renders the human-readable deployment summary table.
func (report Report) Summary() string {
	var b strings.Builder

	b.WriteString("Deployment Summary:\n")

	for _, result := range report {
		b.WriteString(result.Target.String())
		b.WriteString(": ")
		b.WriteString(result.StatusLabel())
		b.WriteString("\n")
	}

	return b.String()
}
