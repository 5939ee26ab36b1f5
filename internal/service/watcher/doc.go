// Package watcher implements the alert-watch flow: a headless responder
// session straight against the configured store. It renders the live alert
// view to the terminal, rings the bell on escalation cues and can submit a
// decision for a named alert from command flags.
package watcher
