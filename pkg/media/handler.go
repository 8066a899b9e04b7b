package media

// Handler receives media session lifecycle callbacks, mirroring the
// teacher's pkg/media event callback set.
type Handler interface {
	OnStateChanged(old, new SessionState)
	OnSDPReady(sdp string)
	OnConnected()
	OnDisconnected(reason error)
}

// NoopHandler discards every callback, for hosts or tests that only
// care about polling session state directly.
type NoopHandler struct{}

func (NoopHandler) OnStateChanged(old, new SessionState) {}
func (NoopHandler) OnSDPReady(sdp string)                {}
func (NoopHandler) OnConnected()                         {}
func (NoopHandler) OnDisconnected(reason error)           {}
