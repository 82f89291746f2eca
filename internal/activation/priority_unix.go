//go:build unix

package activation

import (
	"os"

	"github.com/aesthetic-engine/grb/internal/grblog"
	"golang.org/x/sys/unix"
)

// raiseSchedulingPriority is the reference host's analog of spec.md §4.I
// step 4 ("disable low-processor mode") against a process with no engine
// frame-pacing concept: best-effort, never fatal, logged at debug level on
// failure (insufficient privilege is the common case).
func raiseSchedulingPriority() {
	if err := unix.Setpriority(unix.PRIO_PROCESS, os.Getpid(), -5); err != nil {
		grblog.Log.Debug("grb could not raise process scheduling priority", "error", err)
	}
}
