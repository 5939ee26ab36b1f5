// Package version exposes the build metadata stamped into the alert
// binaries.
//
// Version, Commit and BuildTime are injected via ldflags and default to
// local-build values. Short and Full render them for CLI output and logs;
// UserAgent tags outgoing HTTP calls.
package version
