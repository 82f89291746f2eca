//go:build grb || debug || editor

package activation

// FeatureGateOpen mirrors spec.md §4.I step 1: the process must expose at
// least one of the build-feature tags {grb, debug, editor}. Go has no
// native equivalent of an engine build-feature flag, so this repository
// stands it up as a build-tag-selected constant — the same
// compile-time-closed-over-a-bool shape the corpus uses for its
// environment-gated feature toggles, applied here to a build tag instead of
// an env var.
const FeatureGateOpen = true
