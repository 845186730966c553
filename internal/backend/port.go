package backend

import (
	"context"
	"net"
	"strconv"
)

// PortListening reports whether something accepts TCP connections on
// localhost:port
func PortListening(ctx context.Context, port int) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
