// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.2.0"

// Milestones:
// 0.2.0 - Keplerian fallback propagator, date mode, extrapolation toggle, metrics
// 0.1.0 - Initial release: Horizons vectors, timeline scrubber, headless table
