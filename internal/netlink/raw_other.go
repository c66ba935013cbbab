//go:build !linux

package netlink

import (
	"fmt"
	"net"
	"runtime"
)

func openRawSender(ifaceName string) (rawSender, error) {
	return nil, fmt.Errorf("raw L2 transmission is not implemented on %s; unset response_interface or run on linux", runtime.GOOS)
}

type noopRawSender struct{}

func (noopRawSender) Identity() (net.HardwareAddr, net.IP) { return nil, nil }
func (noopRawSender) Send(net.HardwareAddr, net.HardwareAddr, net.IP, net.IP, int, int, []byte, []QTag) error {
	return fmt.Errorf("raw L2 transmission is not implemented on %s", runtime.GOOS)
}
func (noopRawSender) Close() error { return nil }
