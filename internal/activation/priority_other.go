//go:build !unix

package activation

// raiseSchedulingPriority has no portable equivalent outside unix; the
// bridge still runs, just without the scheduling-priority optimization.
func raiseSchedulingPriority() {}
