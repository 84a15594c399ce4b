//go:build !unix

package core

import (
	"net"
	"syscall"
)

func listenControl(bool) func(network, address string, c syscall.RawConn) error {
	return nil
}

func tuneConn(net.Conn) {}
