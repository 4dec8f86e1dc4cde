// Package rsynctest provides small helpers for tests that need to drive a
// real rsync binary as the server side of the protocol.
package rsynctest

import (
	"os/exec"
	"testing"
)

// AnyRsync returns the path to an rsync binary on $PATH, skipping the
// calling test if none is found.
func AnyRsync(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("rsync")
	if err != nil {
		t.Skip("rsync binary not found on $PATH")
	}
	return path
}
