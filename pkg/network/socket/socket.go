// Package socket opens the reusable UDP listeners the transport mux
// runs on.
package socket

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"syscall"
)

const (
	rollAttempts = 42
	// bufferSize widens the kernel buffers; the defaults drown when many
	// ICE flows share a single socket.
	bufferSize = 16 * 1024 * 1024
)

// ListenUDP opens one UDP listener on the given port.
func ListenUDP(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(bufferSize)
	_ = conn.SetWriteBuffer(bufferSize)
	return conn, nil
}

// ListenUDPRoll opens a UDP listener on the first free port at or
// after the given one.
func ListenUDPRoll(port int) (*net.UDPConn, error) {
	conn, err := ListenUDP(port)
	if err == nil || !isPortBusy(err) {
		return conn, err
	}
	for p := port + 1; p < port+rollAttempts; p++ {
		if conn, err = ListenUDP(p); err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("no free port in [%v, %v)", port, port+rollAttempts)
}

func isPortBusy(err error) bool {
	var sysErr *os.SyscallError
	if !errors.As(err, &sysErr) {
		return false
	}
	var errno syscall.Errno
	if !errors.As(sysErr, &errno) {
		return false
	}
	if errno == syscall.EADDRINUSE {
		return true
	}
	const wsaEADDRINUSE = 10048
	return runtime.GOOS == "windows" && errno == wsaEADDRINUSE
}
