package transfer

import (
	"fmt"
	"strings"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// Strategy is how bytes move between two endpoints.
type Strategy int

const (
	// LocalToRemote uploads from this machine to a remote host.
	LocalToRemote Strategy = iota + 1
	// RemoteToLocal downloads from a remote host to this machine.
	RemoteToLocal
	// RemoteToRemoteRelay downloads from one remote host into a staging file
	// on this machine, then uploads it to the other.
	RemoteToRemoteRelay
)

func (s Strategy) String() string {
	switch s {
	case LocalToRemote:
		return "local_to_remote"
	case RemoteToLocal:
		return "remote_to_local"
	case RemoteToRemoteRelay:
		return "remote_to_remote_relay"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Path is a resolved transfer route. An empty host means this machine.
type Path struct {
	Strategy   Strategy
	SourceHost string
	TargetHost string
}

// ValidationError reports invalid input detected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Resolve classifies a transfer between sourceHost and targetHost as seen from
// currentHostname. Empty hosts, and hosts that name this machine, are local.
func Resolve(sourceHost, targetHost, currentHostname string) (Path, error) {
	src := strings.TrimSpace(sourceHost)
	tgt := strings.TrimSpace(targetHost)

	if src != "" && tgt != "" && strings.EqualFold(src, tgt) {
		return Path{}, &ValidationError{
			Field:   "hosts",
			Message: "source and target hosts cannot be identical",
		}
	}

	if src != "" && host.IsLocalTargetOf(src, currentHostname) {
		src = ""
	}
	if tgt != "" && host.IsLocalTargetOf(tgt, currentHostname) {
		tgt = ""
	}

	switch {
	case src == "" && tgt == "":
		return Path{}, &ValidationError{
			Field:   "hosts",
			Message: "source and target are both this machine; nothing to transfer",
		}
	case src == "":
		return Path{Strategy: LocalToRemote, TargetHost: tgt}, nil
	case tgt == "":
		return Path{Strategy: RemoteToLocal, SourceHost: src}, nil
	default:
		return Path{Strategy: RemoteToRemoteRelay, SourceHost: src, TargetHost: tgt}, nil
	}
}
