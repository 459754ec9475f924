package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// ErrUnknownHost is returned when a host name is not configured.
var ErrUnknownHost = errors.New("unknown host")

var loopbackAddresses = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// Host builds the record for name, applying SSH defaults.
func (c *Config) Host(name string) (*host.Record, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	h, ok := c.Hosts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, name)
	}
	return c.record(key, h), nil
}

// Records returns every configured host sorted by name.
func (c *Config) Records() []*host.Record {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*host.Record, 0, len(names))
	for _, name := range names {
		out = append(out, c.record(name, c.Hosts[name]))
	}
	return out
}

func (c *Config) record(name string, h HostConfig) *host.Record {
	r := &host.Record{
		Name:         name,
		Address:      h.Address,
		Port:         h.Port,
		User:         h.User,
		IdentityFile: h.IdentityFile,
	}
	if r.User == "" {
		r.User = c.SSH.DefaultUser
	}
	if r.IdentityFile == "" {
		r.IdentityFile = c.SSH.DefaultIdentity
	}
	r.IsLocalhost = loopbackAddresses[strings.ToLower(h.Address)] ||
		host.IsLocalTarget(name) || host.IsLocalTarget(h.Address)
	return r
}
