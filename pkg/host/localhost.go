package host

import (
	"os"
	"strings"
	"sync"
)

var (
	hostnameOnce   sync.Once
	serverHostname string
)

// ServerHostname returns this process's hostname in lower case.
// The value is looked up once and cached.
func ServerHostname() string {
	hostnameOnce.Do(func() {
		name, err := os.Hostname()
		if err != nil {
			return
		}
		serverHostname = strings.ToLower(name)
	})
	return serverHostname
}

// IsLocalTarget reports whether candidate names this machine.
func IsLocalTarget(candidate string) bool {
	return IsLocalTargetOf(candidate, ServerHostname())
}

// IsLocalTargetOf reports whether candidate names the machine called server.
//
// The comparison is case-insensitive and accepts the full or short (pre-dot)
// form on either side, so "tootie" matches "tootie.lan" and vice versa.
func IsLocalTargetOf(candidate, server string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	server = strings.ToLower(strings.TrimSpace(server))
	if candidate == "" || server == "" {
		return false
	}
	if candidate == server {
		return true
	}

	candidateShort := shortName(candidate)
	serverShort := shortName(server)

	return candidateShort == server ||
		candidate == serverShort ||
		candidateShort == serverShort
}

func shortName(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
