// Package version holds the build-time version string shared by all three
// binaries.
package version

// VERSION of the cluster build, set via -ldflags at build time.
var VERSION = "undefined"
