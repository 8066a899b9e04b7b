package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	data [][]byte
	from []net.Addr
}

func (h *recordingHandler) OnData(data []byte, from net.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	h.data = append(h.data, cp)
	h.from = append(h.from, from)
}
func (h *recordingHandler) OnConnected(bool)        {}
func (h *recordingHandler) OnError(string, error)   {}
func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.data)
}

func TestUDPTransport_SendAndReceiveLoopback(t *testing.T) {
	a, err := New(Options{Kind: KindUDP, LocalAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer a.Close()
	b, err := New(Options{Kind: KindUDP, LocalAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer b.Close()

	h := &recordingHandler{}
	b.SetHandler(h)

	_, err = a.Send([]byte("hello"), b.LocalAddr())
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for h.count() == 0 && time.Now().Before(deadline) {
		_, _ = b.Tick(50)
	}
	require.Equal(t, 1, h.count())
	assert.Equal(t, "hello", string(h.data[0]))
}
