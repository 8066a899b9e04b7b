package agent

// Handler receives every callback spec.md §4.3 names: registration
// results, incoming-call notification, dialog/agent state transitions,
// remote SDP delivery and error reporting.
type Handler interface {
	OnStateChanged(old, new AgentState)
	OnRegisterResult(ok bool, statusCode int, reason string)
	OnIncomingCall(d *Dialog)
	OnDialogStateChanged(d *Dialog, old, new DialogState)
	OnRemoteSDP(d *Dialog, sdp string)
	OnError(err error)
}

// NoopHandler discards every callback.
type NoopHandler struct{}

func (NoopHandler) OnStateChanged(old, new AgentState)                {}
func (NoopHandler) OnRegisterResult(ok bool, statusCode int, reason string) {}
func (NoopHandler) OnIncomingCall(d *Dialog)                          {}
func (NoopHandler) OnDialogStateChanged(d *Dialog, old, new DialogState) {}
func (NoopHandler) OnRemoteSDP(d *Dialog, sdp string)                 {}
func (NoopHandler) OnError(err error)                                 {}
