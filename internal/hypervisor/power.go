package hypervisor

import (
	"errors"
	"fmt"
	"strings"
)

// PowerAction is a requested change of a domain's power state. The values
// name the state the caller wants to reach.
type PowerAction string

const (
	// PowerRunning starts a defined domain.
	PowerRunning PowerAction = "running"
	// PowerShutdown asks the guest to shut down via the ACPI power button.
	PowerShutdown PowerAction = "shutdown"
	// PowerShutoff pulls the plug.
	PowerShutoff PowerAction = "shutoff"
	PowerSuspend PowerAction = "suspend"
	PowerResume  PowerAction = "resume"
	PowerReboot  PowerAction = "reboot"
	PowerReset   PowerAction = "reset"
	// PowerPause saves guest memory to a managed save image and stops it.
	PowerPause PowerAction = "pause"
	// PowerRestore starts from the managed save image and resumes.
	PowerRestore PowerAction = "restore"
)

// ErrInvalidState is returned for a power action nobody knows.
var ErrInvalidState = errors.New("invalid state")

var powerActions = map[PowerAction]bool{
	PowerRunning:  true,
	PowerShutdown: true,
	PowerShutoff:  true,
	PowerSuspend:  true,
	PowerResume:   true,
	PowerReboot:   true,
	PowerReset:    true,
	PowerPause:    true,
	PowerRestore:  true,
}

// ParsePowerAction accepts a state name in any case.
func ParsePowerAction(s string) (PowerAction, error) {
	a := PowerAction(strings.ToLower(strings.TrimSpace(s)))
	if !powerActions[a] {
		return "", fmt.Errorf("%w %q", ErrInvalidState, s)
	}
	return a, nil
}
