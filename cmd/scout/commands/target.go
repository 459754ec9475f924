package commands

import (
	"fmt"
	"strings"
)

// parseTarget splits "host:path" into its parts. Anything without a colon
// before the first slash is a local path and yields an empty host.
func parseTarget(arg string) (hostName, path string, err error) {
	if arg == "" {
		return "", "", fmt.Errorf("empty path")
	}

	i := strings.IndexByte(arg, ':')
	if i < 0 || strings.IndexByte(arg[:i], '/') >= 0 {
		return "", arg, nil
	}

	hostName, path = arg[:i], arg[i+1:]
	if hostName == "" {
		return "", "", fmt.Errorf("%q: missing host before ':'", arg)
	}
	if path == "" {
		return "", "", fmt.Errorf("%q: missing path after ':'", arg)
	}
	return hostName, path, nil
}

// requireRemote is parseTarget for commands that only make sense remotely.
func requireRemote(arg string) (hostName, path string, err error) {
	hostName, path, err = parseTarget(arg)
	if err != nil {
		return "", "", err
	}
	if hostName == "" {
		return "", "", fmt.Errorf("%q: expected host:path", arg)
	}
	return hostName, path, nil
}
