package device

import (
	"fmt"
	"net"
	"time"
)

const defaultProbeTimeout = 3 * time.Second

// CheckTCP reports whether the device port accepts connections. Used by the
// connection test before any authenticated call is attempted.
func CheckTCP(host string, port int, timeout time.Duration) bool {
	if port == 0 {
		port = DefaultPort
	}
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
