package agent

import (
	"net"
	"strings"
	"time"

	"github.com/arzzra/embedded_ua/pkg/transport"
)

// localAddrString extracts the bare host (no port) from a Transport's
// bound local address, for use in Via/Contact/From headers.
func localAddrString(tr transport.Transport) string {
	addr := tr.LocalAddr()
	if addr == nil {
		return "0.0.0.0"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return strings.TrimSuffix(addr.String(), ":0")
	}
	return host
}

func secondsToDuration(s int) time.Duration {
	if s <= 0 {
		return time.Second
	}
	return time.Duration(s) * time.Second
}
