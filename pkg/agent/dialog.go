package agent

import (
	"context"
	"net"
	"sync"

	"github.com/emiago/sipgo/sip"
	"github.com/looplab/fsm"

	"github.com/arzzra/embedded_ua/pkg/media"
)

// Dialog is one call leg: its SIP state machine plus the media.Session
// it owns for the life of the call. Two Dialogs never share a Session.
type Dialog struct {
	mu sync.Mutex

	CallID    string
	LocalTag  string
	RemoteTag string
	LocalURI  sip.Uri
	RemoteURI sip.Uri
	Direction Direction

	Media *media.Session

	remoteAddr net.Addr

	inviteReq  *sip.Request
	inviteTx   *clientTransaction
	serverTx   sip.ServerTransaction
	localSeq   uint32
	remoteSeq  uint32
	auth       authState

	machine *fsm.FSM
	agent   *Agent
}

func newDialog(a *Agent, direction Direction) *Dialog {
	d := &Dialog{Direction: direction, agent: a}
	d.machine = fsm.NewFSM(
		DialogNull.String(),
		fsm.Events{
			{Name: "invite_sent", Src: []string{DialogNull.String()}, Dst: DialogCalling.String()},
			{Name: "invite_received", Src: []string{DialogNull.String()}, Dst: DialogIncoming.String()},
			{Name: "provisional", Src: []string{DialogCalling.String()}, Dst: DialogEarly.String()},
			{Name: "confirm", Src: []string{DialogCalling.String(), DialogEarly.String(), DialogIncoming.String()}, Dst: DialogConfirmed.String()},
			{Name: "fail", Src: []string{DialogCalling.String(), DialogEarly.String(), DialogIncoming.String()}, Dst: DialogFailed.String()},
			{Name: "terminate", Src: []string{DialogCalling.String(), DialogIncoming.String(), DialogEarly.String(), DialogConfirmed.String()}, Dst: DialogTerminated.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				old, new := stateFromDialogString(e.Src), stateFromDialogString(e.Dst)
				a.handler.OnDialogStateChanged(d, old, new)
				a.metrics.SetDialogsInState(new.String(), 1)
			},
		},
	)
	return d
}

func stateFromDialogString(name string) DialogState {
	for _, st := range []DialogState{DialogNull, DialogCalling, DialogIncoming, DialogEarly, DialogConfirmed, DialogTerminated, DialogFailed} {
		if st.String() == name {
			return st
		}
	}
	return DialogNull
}

// RemoteAddr is the transport address the inbound INVITE arrived from,
// used to send the response to an inbound dialog without re-resolving
// the peer (the peer may sit behind a NAT that rewrote its Via/Contact).
func (d *Dialog) RemoteAddr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteAddr
}

func (d *Dialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return stateFromDialogString(d.machine.Current())
}

func (d *Dialog) fire(event string) error {
	return d.machine.Event(context.Background(), event)
}

func (d *Dialog) nextLocalCSeq() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.localSeq++
	return d.localSeq
}
