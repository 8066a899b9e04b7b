package transport

import (
	"net"
	"time"

	"github.com/arzzra/embedded_ua/pkg/corelog"
)

// udpTransport is a non-blocking UDP socket. It is never connect()ed:
// when opts.RemoteAddr is set, a Send with a nil peer goes to that
// address (the "send to one registrar only" pattern spec.md §4.2
// names); otherwise every Send needs an explicit peer address. Reads
// use ReadFrom, matching the teacher's
// pkg/sip/transport/udp.go Listen/processMessage split, collapsed here
// into a single non-blocking Tick rather than a dedicated goroutine
// per datagram (the core never spawns I/O goroutines it doesn't own).
type udpTransport struct {
	conn    *net.UDPConn
	local   *net.UDPAddr
	remote  *net.UDPAddr
	handler Handler
	logger  corelog.Logger
	scratch [65535]byte
	state   State
}

func newUDPTransport(opts Options) (Transport, error) {
	addr := opts.LocalAddr
	if addr == "" {
		addr = "0.0.0.0:0"
	}
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	t := &udpTransport{
		conn:   conn,
		local:  conn.LocalAddr().(*net.UDPAddr),
		logger: opts.Logger,
		state:  StateOpen,
	}
	if opts.RemoteAddr != "" {
		raddr, err := net.ResolveUDPAddr("udp", opts.RemoteAddr)
		if err != nil {
			conn.Close()
			return nil, err
		}
		t.remote = raddr
	}
	return t, nil
}

// SetHandler installs the event sink driven from Tick. Kept as a
// separate setter (rather than a constructor argument) so the
// transport can be created before the owning component exists, per
// the teacher's two-phase "open, then attach handler" pattern in
// pkg/sip/transport.
func (t *udpTransport) SetHandler(h Handler) { t.handler = h }

func (t *udpTransport) Send(data []byte, peer net.Addr) (SendResult, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
		return WouldBlock, err
	}
	var n int
	var err error
	switch {
	case peer != nil:
		n, err = t.conn.WriteTo(data, peer)
	case t.remote != nil:
		n, err = t.conn.WriteToUDP(data, t.remote)
	default:
		return WouldBlock, errNoPeer{}
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return WouldBlock, nil
		}
		if t.handler != nil {
			t.handler.OnError("send", err)
		}
		return WouldBlock, err
	}
	_ = n
	return Sent, nil
}

// Tick reads one datagram per recvfrom until WouldBlock, per
// spec.md §4.2's UDP variant description.
func (t *udpTransport) Tick(timeoutMs int) (int, error) {
	deadline := time.Duration(timeoutMs) * time.Millisecond
	if deadline <= 0 {
		deadline = time.Millisecond
	}
	firstDeadline := time.Now().Add(deadline)
	processed := 0
	for {
		_ = t.conn.SetReadDeadline(firstDeadline)
		n, from, err := t.conn.ReadFromUDP(t.scratch[:])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return processed, nil
			}
			return processed, err
		}
		processed++
		if t.handler != nil {
			buf := make([]byte, n)
			copy(buf, t.scratch[:n])
			t.handler.OnData(buf, from)
		}
		// Subsequent reads in this tick must not block past the
		// original deadline; ReadFromUDP above already enforces that
		// via firstDeadline, so just loop until WouldBlock.
	}
}

func (t *udpTransport) LocalAddr() net.Addr { return t.local }
func (t *udpTransport) State() State        { return t.state }
func (t *udpTransport) Close() error {
	t.state = StateClosed
	return t.conn.Close()
}

type errNoPeer struct{}

func (errNoPeer) Error() string { return "transport: no peer address and no connected remote" }
