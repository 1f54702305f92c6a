package netutil

import (
	"net"
	"strconv"
	"strings"
	"testing"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestSelectBindAddrFree(t *testing.T) {
	addr := freeAddr(t)
	got, err := SelectBindAddr(addr, 0)
	if err != nil {
		t.Fatalf("SelectBindAddr() error = %v", err)
	}
	if got != addr {
		t.Fatalf("SelectBindAddr() = %q, want %q", got, addr)
	}
}

func TestSelectBindAddrInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen busy: %v", err)
	}
	defer func() { _ = busy.Close() }()

	if _, err := SelectBindAddr(busy.Addr().String(), 0); err == nil {
		t.Fatal("SelectBindAddr() should fail when the address is taken")
	}
}

func TestSelectBindAddrFallsBackToNextPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen busy: %v", err)
	}
	defer func() { _ = busy.Close() }()

	got, err := SelectBindAddr(busy.Addr().String(), 3)
	if err != nil {
		t.Fatalf("SelectBindAddr() error = %v", err)
	}
	if got == busy.Addr().String() {
		t.Fatalf("SelectBindAddr() = %q; want a different port", got)
	}

	host, portStr, err := net.SplitHostPort(got)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", got, err)
	}
	_, busyPortStr, _ := net.SplitHostPort(busy.Addr().String())
	busyPort, _ := strconv.Atoi(busyPortStr)
	port, _ := strconv.Atoi(portStr)
	if host != "127.0.0.1" || port <= busyPort || port > busyPort+3 {
		t.Fatalf("SelectBindAddr() = %q; want a port within 3 of %d", got, busyPort)
	}
}

func TestSelectBindAddrRejectsBadAddress(t *testing.T) {
	if _, err := SelectBindAddr("no-port-here", 0); err == nil || !strings.Contains(err.Error(), "invalid bind address") {
		t.Fatalf("SelectBindAddr() error = %v; want invalid bind address", err)
	}
}
