// Package media implements the media session coordinator: SDP-driven
// transport mode selection, ICE connectivity, RTP send/receive and
// RTCP pacing, following the teacher's pkg/media and pkg/rtp packages
// but generalized to run over either a pion/ice/v2 conn or a direct
// UDP transport, decided from the remote offer rather than hardcoded.
package media

import "fmt"

// SessionState is the media session lifecycle, mirroring the teacher's
// pkg/media MediaSessionState enum.
type SessionState int

const (
	StateIdle SessionState = iota
	StateGathering
	StateGathered
	StateConnecting
	StateConnected
	StateDisconnected
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGathering:
		return "gathering"
	case StateGathered:
		return "gathered"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TransportMode is decided once, from the first remote SDP a session
// sees: full ICE negotiation, or direct RTP to the address the offer
// advertised.
type TransportMode int

const (
	ModeUndecided TransportMode = iota
	ModeIceFull
	ModeRtpDirect
)

func (m TransportMode) String() string {
	switch m {
	case ModeIceFull:
		return "ice-full"
	case ModeRtpDirect:
		return "rtp-direct"
	default:
		return "undecided"
	}
}
