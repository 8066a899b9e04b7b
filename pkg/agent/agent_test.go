package agent

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/embedded_ua/pkg/metrics"
	"github.com/arzzra/embedded_ua/pkg/timer"
	"github.com/arzzra/embedded_ua/pkg/transport"
)

type testHandler struct {
	registered chan bool
}

func newTestHandler() *testHandler { return &testHandler{registered: make(chan bool, 4)} }

func (h *testHandler) OnStateChanged(old, new AgentState)                {}
func (h *testHandler) OnRegisterResult(ok bool, statusCode int, reason string) {
	h.registered <- ok
}
func (h *testHandler) OnIncomingCall(d *Dialog)                          {}
func (h *testHandler) OnDialogStateChanged(d *Dialog, old, new DialogState) {}
func (h *testHandler) OnRemoteSDP(d *Dialog, sdp string)                 {}
func (h *testHandler) OnError(err error)                                 {}

// runRegistrarStub answers the first REGISTER it sees with a 200 OK,
// standing in for a real registrar so Register() can be exercised
// end-to-end over loopback UDP.
func runRegistrarStub(t *testing.T, conn *net.UDPConn) {
	t.Helper()
	buf := make([]byte, 2048)
	go func() {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		msg, err := sip.ParseMessage(buf[:n])
		if err != nil {
			return
		}
		req, ok := msg.(*sip.Request)
		if !ok {
			return
		}
		res := sip.NewResponseFromRequest(req, 200, "OK", nil)
		_, _ = conn.WriteToUDP([]byte(res.String()), from)
	}()
}

func TestAgent_Register_Success(t *testing.T) {
	registrarConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer registrarConn.Close()
	runRegistrarStub(t, registrarConn)
	registrarPort := registrarConn.LocalAddr().(*net.UDPAddr).Port

	tr, err := transport.New(transport.Options{Kind: transport.KindUDP, LocalAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer tr.Close()

	cfg := DefaultConfig()
	cfg.Username = "alice"
	cfg.Domain = "example.com"
	cfg.Registrar = "127.0.0.1"
	cfg.RegistrarPort = registrarPort
	cfg.TimerT1 = 50 * time.Millisecond

	timers := timer.New()
	h := newTestHandler()
	a, err := Create(cfg, tr, timers, h, nil, nil)
	require.NoError(t, err)

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			_, _ = tr.Tick(50)
		}
	}()

	require.NoError(t, a.Start(context.Background()))

	select {
	case ok := <-h.registered:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("never got a registration result")
	}
	assert.Equal(t, AgentRegistered, a.state)
}

func TestDialog_OutboundFSM_InitialStateIsNull(t *testing.T) {
	a := &Agent{handler: NoopHandler{}, metrics: metrics.NoOp()}
	d := newDialog(a, DirectionOutbound)
	assert.Equal(t, DialogNull, d.State())
}

func TestBranch_HasMagicCookiePrefix(t *testing.T) {
	b := newBranch()
	assert.True(t, strings.HasPrefix(b, magicCookie))
}
