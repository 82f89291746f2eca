//go:build !grb && !debug && !editor

package activation

// FeatureGateOpen is false in a plain `go build`, standing in for a shipped
// retail build that carries none of {grb, debug, editor}: the bridge must
// not start, per spec.md §4.I step 1.
const FeatureGateOpen = false
