// Package escalation produces the repeating urgency cue played while a
// responder has at least one unresolved alert.
//
// The scheduler owns only the cadence and the start/stop boundary; tone
// synthesis and animation belong to the consumer of the tick callbacks.
// Each responder session owns its own scheduler instance, so sessions can
// never interfere with each other's cue.
package escalation
