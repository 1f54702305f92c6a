// Package netutil picks the bind address for the control API.
package netutil

import (
	"fmt"
	"net"
	"strconv"
)

// SelectBindAddr verifies that addr is free to listen on. When it is taken
// and fallbackPorts > 0, successive ports on the same host are probed before
// giving up. The chosen address is returned.
func SelectBindAddr(addr string, fallbackPorts int) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid bind port %q: %w", portStr, err)
	}

	for i := 0; i <= fallbackPorts; i++ {
		candidate := net.JoinHostPort(host, strconv.Itoa(port+i))
		ok, err := isAddrAvailable(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	if fallbackPorts > 0 {
		return "", fmt.Errorf("no free port on %s between %d and %d", host, port, port+fallbackPorts)
	}
	return "", fmt.Errorf("bind address in use: %s", addr)
}

func isAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
