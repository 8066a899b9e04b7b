package agent

import (
	"context"
	"fmt"
	"net"

	"github.com/emiago/sipgo/sip"
)

// MakeCall issues an outgoing INVITE carrying localSDP, following
// spec.md §4.3's make_call operation. The returned Dialog transitions
// through Calling/Early/Confirmed as responses arrive; OnDialogStateChanged
// reports each step.
func (a *Agent) MakeCall(ctx context.Context, target string, localSDP string) (*Dialog, error) {
	var recipient sip.Uri
	if err := sip.ParseUri(target, &recipient); err != nil {
		return nil, toError(err, "parse target URI")
	}

	d := newDialog(a, DirectionOutbound)
	d.CallID = newCallID()
	d.LocalTag = newTag()
	d.RemoteURI = recipient

	a.mu.Lock()
	a.dialogs[d.CallID] = d
	a.mu.Unlock()

	if err := d.fire("invite_sent"); err != nil {
		return nil, err
	}
	if err := a.sendInvite(ctx, d, recipient, localSDP); err != nil {
		return nil, err
	}
	return d, nil
}

func (a *Agent) sendInvite(ctx context.Context, d *Dialog, recipient sip.Uri, localSDP string) error {
	localAddr := localAddrString(a.transport)
	req := sip.NewRequest(sip.INVITE, recipient)
	branch := newBranch()
	cseq := d.nextLocalCSeq()
	addCommonHeaders(req, a.cfg, localAddr, a.cfg.LocalPort, d.CallID, d.LocalTag, branch, cseq, sip.INVITE)
	req.AppendHeader(&sip.ToHeader{Address: recipient, Params: sip.NewParams()})
	ct := sip.ContentTypeHeader("application/sdp")
	req.AppendHeader(&ct)
	req.SetBody([]byte(localSDP))

	return a.startInviteTransaction(d, req, recipient)
}

// startInviteTransaction sends req (already fully built — including
// any Authorization header a digest retry added) as the dialog's
// current INVITE transaction, replacing the stashed inviteReq/inviteTx
// so CANCEL and the response handlers see the request actually on the
// wire.
func (a *Agent) startInviteTransaction(d *Dialog, req *sip.Request, recipient sip.Uri) error {
	d.mu.Lock()
	d.inviteReq = req
	d.mu.Unlock()

	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", recipient.Host, orDefaultPort(recipient.Port)))
	if err != nil {
		return toError(err, "resolve target")
	}

	ct, err := a.txns.start(req, peer,
		func(res *sip.Response) { a.onInviteProvisional(d, res) },
		func(res *sip.Response, timeoutErr error) { a.onInviteFinal(d, res, timeoutErr) },
	)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.inviteTx = ct
	d.mu.Unlock()
	return nil
}

func orDefaultPort(p int) int {
	if p == 0 {
		return 5060
	}
	return p
}

func (a *Agent) onInviteProvisional(d *Dialog, res *sip.Response) {
	if to := res.To(); to != nil {
		d.mu.Lock()
		d.RemoteTag, _ = to.Params.Get("tag")
		d.mu.Unlock()
	}
	_ = d.fire("provisional")
	if len(res.Body()) > 0 {
		a.handler.OnRemoteSDP(d, string(res.Body()))
	}
}

func (a *Agent) onInviteFinal(d *Dialog, res *sip.Response, timeoutErr error) {
	if timeoutErr != nil {
		_ = d.fire("fail")
		return
	}
	if res.StatusCode == 401 || res.StatusCode == 407 {
		d.mu.Lock()
		alreadyRetried := d.auth.retried
		d.mu.Unlock()
		if alreadyRetried {
			// Spec §4.3/§7: at most one auth retry per request; a
			// second challenge is AuthFailed, not another retry.
			_ = d.fire("fail")
			return
		}
		ch, ok := challengeFromResponse(res)
		if !ok {
			_ = d.fire("fail")
			return
		}
		d.mu.Lock()
		orig := d.inviteReq
		d.mu.Unlock()
		retry := sip.NewRequest(sip.INVITE, orig.Recipient)
		branch := newBranch()
		cseq := d.nextLocalCSeq()
		localAddr := localAddrString(a.transport)
		addCommonHeaders(retry, a.cfg, localAddr, a.cfg.LocalPort, d.CallID, d.LocalTag, branch, cseq, sip.INVITE)
		retry.AppendHeader(&sip.ToHeader{Address: orig.Recipient, Params: sip.NewParams()})
		ct := sip.ContentTypeHeader("application/sdp")
		retry.AppendHeader(&ct)
		retry.SetBody(orig.Body())
		if err := authorize(retry, ch, res.StatusCode, a.cfg, &d.auth); err != nil {
			_ = d.fire("fail")
			return
		}
		d.mu.Lock()
		d.auth.retried = true
		d.mu.Unlock()
		if err := a.startInviteTransaction(d, retry, orig.Recipient); err != nil {
			_ = d.fire("fail")
		}
		return
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if to := res.To(); to != nil {
			d.mu.Lock()
			d.RemoteTag, _ = to.Params.Get("tag")
			d.mu.Unlock()
		}
		if len(res.Body()) > 0 {
			a.handler.OnRemoteSDP(d, string(res.Body()))
		}
		a.sendAck(d, res)
		_ = d.fire("confirm")
		return
	}
	_ = d.fire("fail")
}

func (a *Agent) sendAck(d *Dialog, res *sip.Response) {
	d.mu.Lock()
	orig := d.inviteReq
	d.mu.Unlock()
	ack := sip.NewAckRequest(orig, res, nil)
	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", orig.Recipient.Host, orDefaultPort(orig.Recipient.Port)))
	if err != nil {
		a.handler.OnError(toError(err, "resolve ACK target"))
		return
	}
	if err := a.sendWire([]byte(ack.String()), peer); err != nil {
		a.handler.OnError(toError(err, "send ACK"))
	}
}

// AnswerCall sends a 200 OK carrying localSDP for an inbound INVITE.
// The dialog only reaches DialogConfirmed once the peer's ACK arrives.
func (a *Agent) AnswerCall(d *Dialog, localSDP string, from net.Addr) error {
	d.mu.Lock()
	req := d.inviteReq
	d.mu.Unlock()
	if req == nil {
		return fmt.Errorf("agent: dialog has no pending INVITE")
	}
	res := sip.NewResponseFromRequest(req, 200, "OK", []byte(localSDP))
	toTag := newTag()
	if to := res.To(); to != nil {
		to.Params.Add("tag", toTag)
	}
	d.mu.Lock()
	d.LocalTag = toTag
	d.mu.Unlock()
	ct := sip.ContentTypeHeader("application/sdp")
	res.AppendHeader(&ct)
	// Dialog stays Incoming until the peer's ACK arrives; see handleAck.
	_, err := a.transport.Send([]byte(res.String()), from)
	return err
}

// RejectCall sends a final error response to an inbound INVITE and
// terminates the dialog.
func (a *Agent) RejectCall(d *Dialog, code int, reason string, from net.Addr) error {
	d.mu.Lock()
	req := d.inviteReq
	callID := d.CallID
	d.mu.Unlock()
	if req == nil {
		return fmt.Errorf("agent: dialog has no pending INVITE")
	}
	res := sip.NewResponseFromRequest(req, sip.StatusCode(code), reason, nil)
	_, err := a.transport.Send([]byte(res.String()), from)
	a.mu.Lock()
	delete(a.dialogs, callID)
	a.mu.Unlock()
	_ = d.fire("fail")
	return err
}

// Hangup sends an in-dialog BYE and tears down the dialog's media.
func (a *Agent) Hangup(d *Dialog) error {
	d.mu.Lock()
	remote := d.RemoteURI
	callID := d.CallID
	d.mu.Unlock()

	localAddr := localAddrString(a.transport)
	bye := sip.NewRequest(sip.BYE, remote)
	branch := newBranch()
	cseq := d.nextLocalCSeq()
	addCommonHeaders(bye, a.cfg, localAddr, a.cfg.LocalPort, callID, d.LocalTag, branch, cseq, sip.BYE)
	bye.AppendHeader(&sip.ToHeader{Address: remote, Params: sip.NewParams()})

	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", remote.Host, orDefaultPort(remote.Port)))
	if err != nil {
		return toError(err, "resolve BYE target")
	}
	_, err = a.txns.start(bye, peer, nil, func(res *sip.Response, timeoutErr error) {})
	if err != nil {
		return err
	}
	if d.Media != nil {
		_ = d.Media.Stop(nil)
	}
	a.mu.Lock()
	delete(a.dialogs, callID)
	a.mu.Unlock()
	return d.fire("terminate")
}

// CancelCall sends CANCEL for a not-yet-final outgoing INVITE,
// matching RFC 3261 §9.1's requirement that CANCEL reuse the original
// request's Call-ID, To, From, CSeq number and top Via branch.
func (a *Agent) CancelCall(d *Dialog) error {
	d.mu.Lock()
	orig := d.inviteReq
	d.mu.Unlock()
	if orig == nil {
		return fmt.Errorf("agent: dialog has no pending INVITE to cancel")
	}
	cancel := sip.NewRequest(sip.CANCEL, orig.Recipient)
	if via := orig.Via(); via != nil {
		cancel.AppendHeader(via)
	}
	if from := orig.From(); from != nil {
		cancel.AppendHeader(from)
	}
	if to := orig.To(); to != nil {
		cancel.AppendHeader(to)
	}
	if cid := orig.CallID(); cid != nil {
		cancel.AppendHeader(cid)
	}
	if cseq := orig.CSeq(); cseq != nil {
		cancel.AppendHeader(&sip.CSeqHeader{SeqNo: cseq.SeqNo, MethodName: sip.CANCEL})
	}

	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", orig.Recipient.Host, orDefaultPort(orig.Recipient.Port)))
	if err != nil {
		return toError(err, "resolve CANCEL target")
	}
	_, err = a.txns.start(cancel, peer, nil, func(res *sip.Response, timeoutErr error) {})
	if err != nil {
		return err
	}
	// Spec §4.3: cancel_call transitions the dialog to Terminated once
	// CANCEL is on the wire; the eventual 487 for the INVITE is absorbed
	// idempotently (terminate only fires from a live source state).
	return d.fire("terminate")
}

// SendMessage sends a standalone SIP MESSAGE (RFC 3428) with no
// associated dialog, per spec.md §4.3's send_message operation.
func (a *Agent) SendMessage(ctx context.Context, target string, content string) error {
	var recipient sip.Uri
	if err := sip.ParseUri(target, &recipient); err != nil {
		return toError(err, "parse target URI")
	}
	localAddr := localAddrString(a.transport)
	req := sip.NewRequest(sip.MESSAGE, recipient)
	branch := newBranch()
	addCommonHeaders(req, a.cfg, localAddr, a.cfg.LocalPort, newCallID(), newTag(), branch, 1, sip.MESSAGE)
	req.AppendHeader(&sip.ToHeader{Address: recipient, Params: sip.NewParams()})
	ct := sip.ContentTypeHeader("text/plain")
	req.AppendHeader(&ct)
	req.SetBody([]byte(content))

	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", recipient.Host, orDefaultPort(recipient.Port)))
	if err != nil {
		return toError(err, "resolve MESSAGE target")
	}
	_, err = a.txns.start(req, peer, nil, func(res *sip.Response, timeoutErr error) {})
	return err
}
