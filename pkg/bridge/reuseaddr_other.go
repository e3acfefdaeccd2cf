//go:build !linux

package bridge

import "syscall"

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
