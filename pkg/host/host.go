// Package host describes remote SSH endpoints and decides which of them are
// really this machine.
package host

import (
	"fmt"
	"net"
	"strconv"
)

const (
	// DefaultPort is the standard SSH port.
	DefaultPort = 22

	// LoopbackAddress is used instead of the configured address for hosts
	// that resolve to this machine.
	LoopbackAddress = "127.0.0.1"
)

// Record is an immutable description of a remote endpoint.
//
// Records are built once by the configuration layer and shared by pointer.
// Nothing in this module mutates a Record after it is created.
type Record struct {
	// Name is the logical host name used as the pool key.
	Name string

	// Address is the configured network address (hostname or IP).
	Address string

	// Port is the configured SSH port. Zero means DefaultPort.
	Port int

	// User is the SSH login user.
	User string

	// IdentityFile is an optional path to a private key.
	IdentityFile string

	// IsLocalhost marks the record as this machine.
	IsLocalhost bool
}

// ConnectionAddress returns the address a session should dial.
// Localhost records always dial the loopback interface.
func (r *Record) ConnectionAddress() string {
	if r.IsLocalhost {
		return LoopbackAddress
	}
	return r.Address
}

// ConnectionPort returns the port a session should dial.
func (r *Record) ConnectionPort() int {
	if r.IsLocalhost || r.Port == 0 {
		return DefaultPort
	}
	return r.Port
}

// DialTarget returns "address:port" for net.Dial.
func (r *Record) DialTarget() string {
	return net.JoinHostPort(r.ConnectionAddress(), strconv.Itoa(r.ConnectionPort()))
}

func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s@%s)", r.Name, r.User, r.DialTarget())
}
