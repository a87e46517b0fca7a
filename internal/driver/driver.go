// Package driver is the boundary to the wireless driver. It reads the link
// state of one interface and asks the system to join a network.
package driver

import (
	"context"

	"github.com/npratt/linkwatch/internal/credentials"
)

// LinkState is the driver-reported association status.
type LinkState int

const (
	// StateError means the state could not be read or was not understood.
	StateError LinkState = iota
	StateNotConnected
	StateConnected
)

// String returns the string representation of the link state.
func (s LinkState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateNotConnected:
		return "not_connected"
	default:
		return "error"
	}
}

// Status is one reading of the link.
type Status struct {
	State LinkState
	SSID  string // set when State is StateConnected
	RSSI  *int   // dBm, when the driver reports it
}

// Connected reports whether the link is associated with a known ssid.
func (s Status) Connected() bool {
	return s.State == StateConnected && s.SSID != ""
}

// Reader queries the current link state. Implementations must not mutate
// anything.
type Reader interface {
	QueryLinkState(ctx context.Context) (Status, error)
}

// Request is a connect request.
type Request struct {
	SSID          string
	Auth          *credentials.Auth
	AutoInitiated bool // made by the supervisor, not by a user
	SaveOnSuccess bool // persist the profile with the system when it works
}

// Connector joins a network. Connect blocks until the attempt completes;
// a nil error means the link came up.
type Connector interface {
	Connect(ctx context.Context, req Request) error
}
