// Package version records the version of the debugger.
package version

// Version is the current semantic version.
var Version = "0.1.0-dev"
