package agent

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/embedded_ua/pkg/timer"
	"github.com/arzzra/embedded_ua/pkg/transport"
)

const testSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nc=IN IP4 127.0.0.1\r\nt=0 0\r\nm=audio 40000 RTP/AVP 0\r\n"

// runInviteChallengeStub replies 401 to the first INVITE it sees and
// 200 OK (carrying sdp) to every later request on the wire, recording
// every request's raw bytes in requests.
func runInviteChallengeStub(t *testing.T, conn *net.UDPConn, sdp string, requests *[][]byte, reqMu *sync.Mutex) {
	t.Helper()
	go func() {
		buf := make([]byte, 4096)
		seen := 0
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			raw := append([]byte(nil), buf[:n]...)
			reqMu.Lock()
			*requests = append(*requests, raw)
			reqMu.Unlock()

			msg, err := sip.ParseMessage(raw)
			if err != nil {
				continue
			}
			req, ok := msg.(*sip.Request)
			if !ok {
				continue
			}
			seen++
			if seen == 1 {
				res := sip.NewResponseFromRequest(req, 401, "Unauthorized", nil)
				res.AppendHeader(sip.NewHeader("WWW-Authenticate", `Digest realm="ex", nonce="abc", qop="auth"`))
				_, _ = conn.WriteToUDP([]byte(res.String()), from)
				continue
			}
			res := sip.NewResponseFromRequest(req, 200, "OK", []byte(sdp))
			if to := res.To(); to != nil {
				to.Params.Add("tag", "remote-tag")
			}
			ct := sip.ContentTypeHeader("application/sdp")
			res.AppendHeader(&ct)
			_, _ = conn.WriteToUDP([]byte(res.String()), from)
		}
	}()
}

func newTestAgent(t *testing.T, h Handler) (*Agent, *net.UDPConn) {
	t.Helper()
	peerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)

	tr, err := transport.New(transport.Options{Kind: transport.KindUDP, LocalAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	cfg := DefaultConfig()
	cfg.Username = "alice"
	cfg.Domain = "example.com"
	cfg.Password = "secret"
	cfg.Registrar = "127.0.0.1"
	cfg.RegistrarPort = peerConn.LocalAddr().(*net.UDPAddr).Port
	cfg.TimerT1 = 30 * time.Millisecond

	timers := timer.New()
	timers.Init()
	t.Cleanup(timers.Shutdown)

	a, err := Create(cfg, tr, timers, h, nil, nil)
	require.NoError(t, err)
	a.registrarAddr = peerConn.LocalAddr()

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = tr.Tick(20)
		}
	}()

	return a, peerConn
}

// TestInviteDigestRetry_CarriesAuthorizationHeader verifies the fix
// for the INVITE auth-retry bug: the retried INVITE actually on the
// wire must carry the Authorization header authorize() computed, not
// a fresh, unauthenticated request.
func TestInviteDigestRetry_CarriesAuthorizationHeader(t *testing.T) {
	h := newTestHandler()
	a, peerConn := newTestAgent(t, h)
	defer peerConn.Close()

	var reqMu sync.Mutex
	var requests [][]byte
	runInviteChallengeStub(t, peerConn, testSDP, &requests, &reqMu)

	target := "sip:bob@127.0.0.1:" + strconv.Itoa(peerConn.LocalAddr().(*net.UDPAddr).Port)
	d, err := a.MakeCall(context.Background(), target, testSDP)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.State() == DialogConfirmed
	}, 2*time.Second, 10*time.Millisecond, "dialog never confirmed")

	reqMu.Lock()
	defer reqMu.Unlock()
	require.GreaterOrEqual(t, len(requests), 2, "expected at least the initial INVITE and the authorized retry")

	var sawAuthorizedInvite bool
	for _, raw := range requests {
		msg, err := sip.ParseMessage(raw)
		if err != nil {
			continue
		}
		req, ok := msg.(*sip.Request)
		if !ok || req.Method != sip.INVITE {
			continue
		}
		if hdr := req.GetHeader("Authorization"); hdr != nil && strings.Contains(hdr.Value(), "response=") {
			sawAuthorizedInvite = true
		}
	}
	assert.True(t, sawAuthorizedInvite, "retried INVITE on the wire must carry an Authorization header")
}

// TestCancelCall_TransitionsToTerminated covers Scenario E: cancel_call
// must move the dialog straight to Terminated once CANCEL is sent,
// not merely send the CANCEL and leave the state unchanged.
func TestCancelCall_TransitionsToTerminated(t *testing.T) {
	h := newTestHandler()
	a, peerConn := newTestAgent(t, h)
	defer peerConn.Close()

	// Stub only acks with 180 Ringing so the INVITE transaction is
	// still open (Early) when we cancel.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, from, err := peerConn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			msg, err := sip.ParseMessage(buf[:n])
			if err != nil {
				continue
			}
			req, ok := msg.(*sip.Request)
			if !ok || req.Method != sip.INVITE {
				continue
			}
			res := sip.NewResponseFromRequest(req, 180, "Ringing", nil)
			_, _ = peerConn.WriteToUDP([]byte(res.String()), from)
		}
	}()

	target := "sip:bob@127.0.0.1:" + strconv.Itoa(peerConn.LocalAddr().(*net.UDPAddr).Port)
	d, err := a.MakeCall(context.Background(), target, testSDP)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return d.State() == DialogEarly
	}, time.Second, 10*time.Millisecond, "dialog never reached Early")

	require.NoError(t, a.CancelCall(d))
	assert.Equal(t, DialogTerminated, d.State())
}

// TestHandleIncomingInvite_DialogStartsIncoming covers Scenario D: an
// inbound INVITE must allocate the dialog in DialogIncoming, not
// DialogCalling, and AnswerCall must not move it to Confirmed before
// the peer's ACK arrives.
func TestHandleIncomingInvite_DialogStartsIncoming(t *testing.T) {
	h := newTestHandler()
	a, peerConn := newTestAgent(t, h)
	defer peerConn.Close()

	localAddr := a.transport.LocalAddr().(*net.UDPAddr)
	var recipient sip.Uri
	require.NoError(t, sip.ParseUri("sip:alice@127.0.0.1:"+strconv.Itoa(localAddr.Port), &recipient))

	req := sip.NewRequest(sip.INVITE, recipient)
	viaParams := sip.NewParams()
	viaParams.Add("branch", newBranch())
	req.AppendHeader(&sip.ViaHeader{
		ProtocolName: "SIP", ProtocolVersion: "2.0", Transport: "UDP",
		Host: "127.0.0.1", Port: peerConn.LocalAddr().(*net.UDPAddr).Port, Params: viaParams,
	})
	cid := sip.CallIDHeader("incoming-call-1")
	req.AppendHeader(&cid)
	fromHdr := &sip.FromHeader{Address: recipient, Params: sip.NewParams()}
	fromHdr.Params.Add("tag", "caller-tag")
	req.AppendHeader(fromHdr)
	req.AppendHeader(&sip.ToHeader{Address: recipient, Params: sip.NewParams()})
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	req.SetBody([]byte(testSDP))

	_, err := peerConn.WriteToUDP([]byte(req.String()), localAddr)
	require.NoError(t, err)

	var d *Dialog
	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		var ok bool
		d, ok = a.dialogs["incoming-call-1"]
		return ok
	}, time.Second, 10*time.Millisecond, "inbound dialog never registered")

	assert.Equal(t, DialogIncoming, d.State())

	require.NoError(t, a.AnswerCall(d, testSDP, peerConn.LocalAddr()))
	assert.Equal(t, DialogIncoming, d.State(), "must stay Incoming until ACK arrives")
}
