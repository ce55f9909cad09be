// Package ws provides the WebSocket relay for a single room.
//
// The package implements:
//   - Hub: the connection registry (ordered viewers plus one screen) and broadcast fan-out
//   - Heartbeat: screen liveness tracking, checked while handling viewer messages
//   - Room: the single goroutine that owns room state and runs the message protocol
//   - Handler: upgrade, screen/viewer classification and the read/write pumps
//   - Service: room lifecycle and stats
//
// Wire format, server to client:
//   - {"screenOnline": bool}
//   - {"positions": [{"x": 0, "y": 0}, ...]}
//   - {"error": "Something went wrong: ..."} (sender only)
//   - {"ping": true} (screen only, while it is silent)
//
// Viewers send {"x": int, "y": int} with both in [0, 16), or {"end": true}.
package ws
