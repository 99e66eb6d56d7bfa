package session

import (
	"errors"
	"time"
)

var (
	ErrNoDevice = errors.New("session: no device connection attached")
	ErrNoApp    = errors.New("session: no connection for package")
)

// Conn is the session's view of a websocket peer. The concrete type lives
// in internal/websocket; arbiters and the session itself only enqueue
// frames, they never block on the wire.
type Conn interface {
	// WriteJSON marshals v and queues it for delivery. A full outbound
	// buffer is a delivery failure, not a stall.
	WriteJSON(v interface{}) error
	// CloseWithReason closes the peer with a machine-readable reason code.
	CloseWithReason(reason string)
}

// AppState is an app connection's lifecycle position within a session.
type AppState string

const (
	AppStateActive       AppState = "active"
	AppStateDisconnected AppState = "disconnected"
)

// AppConnection is one app's socket within a session. A package name maps
// to at most one of these; a newer connection supersedes the old. When the
// socket drops without an explicit stop the record is kept with a nil Conn
// and AppStateDisconnected until the app server reconnects.
type AppConnection struct {
	PackageName string
	Conn        Conn
	State       AppState
	ConnectedAt time.Time
}
