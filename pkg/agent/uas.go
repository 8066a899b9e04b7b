package agent

import (
	"net"
	"strconv"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/embedded_ua/pkg/corelog"
)

// handleRequest dispatches an inbound out-of-transaction request per
// spec.md §4.3's UAS table. Since this agent drives its own
// transaction layer rather than sipgo's, "responding" here means
// building a sip.Response and writing it straight back to from.
func (a *Agent) handleRequest(req *sip.Request, from net.Addr) {
	// RFC 3581: stamp the top Via with the source address the request
	// actually arrived from, before it is dispatched or answered.
	if via := req.Via(); via != nil {
		if udp, ok := from.(*net.UDPAddr); ok {
			via.Params.Add("received", udp.IP.String())
			if _, ok := via.Params.Get("rport"); ok {
				via.Params.Add("rport", strconv.Itoa(udp.Port))
			}
		}
	}
	switch req.Method {
	case sip.REGISTER:
		a.respond(req, from, 405, "Method Not Allowed")
	case sip.INVITE:
		a.handleIncomingInvite(req, from)
	case sip.ACK:
		a.handleAck(req)
	case sip.BYE:
		a.handleBye(req, from)
	case sip.CANCEL:
		a.handleCancel(req, from)
	default:
		a.logger.Debug("unhandled request method", corelog.F("method", string(req.Method)))
		a.respond(req, from, 200, "OK")
	}
}

func (a *Agent) respond(req *sip.Request, to net.Addr, status int, reason string) {
	res := sip.NewResponseFromRequest(req, sip.StatusCode(status), reason, nil)
	_, err := a.transport.Send([]byte(res.String()), to)
	if err != nil {
		a.handler.OnError(toError(err, "respond"))
	}
}

func (a *Agent) callIDOf(req *sip.Request) string {
	if cid := req.CallID(); cid != nil {
		return cid.Value()
	}
	return ""
}

func (a *Agent) handleIncomingInvite(req *sip.Request, from net.Addr) {
	callID := a.callIDOf(req)
	a.mu.Lock()
	if _, exists := a.dialogs[callID]; exists {
		a.mu.Unlock()
		return // retransmission of an INVITE we already have a dialog for
	}
	d := newDialog(a, DirectionInbound)
	d.CallID = callID
	d.remoteAddr = from
	if from := req.From(); from != nil {
		d.RemoteURI = from.Address
		d.RemoteTag, _ = from.Params.Get("tag")
	}
	d.inviteReq = req
	a.dialogs[callID] = d
	a.mu.Unlock()

	if err := d.fire("invite_received"); err != nil {
		a.handler.OnError(toError(err, "invite_received"))
		return
	}
	a.respond(req, from, 100, "Trying")
	if len(req.Body()) > 0 {
		a.handler.OnRemoteSDP(d, string(req.Body()))
	}
	a.handler.OnIncomingCall(d)
}

func (a *Agent) handleAck(req *sip.Request) {
	callID := a.callIDOf(req)
	a.mu.Lock()
	d, ok := a.dialogs[callID]
	a.mu.Unlock()
	if !ok {
		return
	}
	_ = d.fire("confirm")
}

func (a *Agent) handleBye(req *sip.Request, from net.Addr) {
	callID := a.callIDOf(req)
	a.mu.Lock()
	d, ok := a.dialogs[callID]
	if ok {
		delete(a.dialogs, callID)
	}
	a.mu.Unlock()
	a.respond(req, from, 200, "OK")
	if !ok {
		return
	}
	if d.Media != nil {
		_ = d.Media.Stop(nil)
	}
	_ = d.fire("terminate")
}

func (a *Agent) handleCancel(req *sip.Request, from net.Addr) {
	callID := a.callIDOf(req)
	a.mu.Lock()
	d, ok := a.dialogs[callID]
	a.mu.Unlock()
	a.respond(req, from, 200, "OK")
	if !ok {
		return
	}
	if d.inviteReq != nil {
		a.respond(d.inviteReq, from, 487, "Request Terminated")
	}
	_ = d.fire("terminate")
}
