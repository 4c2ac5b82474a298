// Package game holds the domain model shared by server and client: session
// lifecycle states, entities and their movement samples, hitbox geometry,
// the hitscan re-simulation, spawn selection and the gameplay tuning
// constants.
package game

// SessionState tracks a connection through its lifecycle. The client walks
// the full chain; the server only ever sees a connection from Handshaking
// onward.
type SessionState uint8

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateHandshaking
	StateSpawning
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateSpawning:
		return "Spawning"
	case StateActive:
		return "Active"
	default:
		return "Unknown"
	}
}
