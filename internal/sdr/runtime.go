package sdr

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrRuntimeNotFound is returned when an external capture tool is not
// installed or not reachable via PATH.
var ErrRuntimeNotFound = errors.New("capture runtime not found")

// FindRuntime locates an external capture binary in PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrRuntimeNotFound, runtime)
		}
		return "", fmt.Errorf("locating %s: %w", runtime, err)
	}

	return binPath, nil
}
