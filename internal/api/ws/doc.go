// Package ws runs one live responder session per WebSocket connection,
// pushing ordered alert sets and escalation cues to the client and accepting
// respond and mute commands back.
package ws
