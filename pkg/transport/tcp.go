package transport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/arzzra/embedded_ua/pkg/corelog"
)

// tcpTransport is a single streaming connection. Connect is
// non-blocking: a background dial goroutine performs the Connecting ->
// Open transition and reports it via Handler.OnConnected, matching spec.md §4.2's TCP
// variant description. Framing is delegated to sipframe, which scans
// for a SIP message boundary (blank-line-terminated headers plus
// Content-Length) the same way the teacher's sip/transport pool.go
// reassembles streamed requests.
type tcpTransport struct {
	mu      sync.Mutex
	conn    net.Conn
	local   net.Addr
	remote  string
	handler Handler
	logger  corelog.Logger
	state   State
	framer  *sipframe
	dialing bool
}

func newTCPTransport(opts Options) (Transport, error) {
	t := &tcpTransport{
		logger: opts.Logger,
		remote: opts.RemoteAddr,
		framer: newSIPFramer(),
	}
	if opts.LocalAddr != "" {
		ln, err := net.Listen("tcp", opts.LocalAddr)
		if err == nil {
			// Listener-only bind used for introspecting a local port;
			// real accept handling for a UAS-side TCP listener is a
			// host-level concern this module doesn't drive directly,
			// mirroring spec.md's single-dialog-oriented TCP variant.
			t.local = ln.Addr()
			ln.Close()
		}
	}
	if t.remote != "" {
		t.state = StateConnecting
		t.dialing = true
		go t.dial()
	} else {
		t.state = StateClosed
	}
	return t, nil
}

func (t *tcpTransport) dial() {
	conn, err := net.DialTimeout("tcp", t.remote, 5*time.Second)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialing = false
	if err != nil {
		t.state = StateError
		if t.handler != nil {
			t.handler.OnConnected(false)
			t.handler.OnError("connect", err)
		}
		return
	}
	t.conn = conn
	t.local = conn.LocalAddr()
	t.state = StateOpen
	if t.handler != nil {
		t.handler.OnConnected(true)
	}
}

func (t *tcpTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *tcpTransport) Send(data []byte, _ net.Addr) (SendResult, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return WouldBlock, nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(data); err != nil {
		t.mu.Lock()
		t.state = StateError
		t.mu.Unlock()
		if t.handler != nil {
			t.handler.OnError("send", err)
		}
		return WouldBlock, err
	}
	return Sent, nil
}

func (t *tcpTransport) Tick(timeoutMs int) (int, error) {
	t.mu.Lock()
	conn := t.conn
	dialing := t.dialing
	t.mu.Unlock()
	if conn == nil {
		if dialing {
			time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
		}
		return 0, nil
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))
	r := bufio.NewReaderSize(conn, 65536)
	buf := make([]byte, 65536)
	n, err := r.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		t.mu.Lock()
		t.state = StateClosed
		t.conn = nil
		t.mu.Unlock()
		if t.handler != nil {
			t.handler.OnConnected(false)
		}
		return 0, err
	}

	t.framer.feed(buf[:n])
	processed := 0
	for {
		msg, ok := t.framer.next()
		if !ok {
			break
		}
		processed++
		if t.handler != nil {
			t.handler.OnData(msg, conn.RemoteAddr())
		}
	}
	return processed, nil
}

func (t *tcpTransport) LocalAddr() net.Addr {
	if t.local != nil {
		return t.local
	}
	return &net.TCPAddr{}
}

func (t *tcpTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *tcpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateClosed
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
