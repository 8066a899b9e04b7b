// Package agent implements the SIP user agent of spec.md §4.3: account
// registration, outgoing/incoming dialog handling, digest
// authentication retry and CANCEL/BYE teardown, driven by our own
// timer-backed transaction layer over pkg/transport rather than
// sipgo's own UDP-owning Server/Client (which would defeat the single
// multiplexed socket spec.md §4.2 requires). sipgo's sip subpackage is
// used purely for message construction and parsing.
package agent

import "fmt"

// AgentState is the registration lifecycle, mirroring the teacher's
// pkg/dialog account state machine.
type AgentState int

const (
	AgentIdle AgentState = iota
	AgentRegistering
	AgentRegistered
	AgentRegisterFailed
	AgentUnregistering
	AgentUnregistered
)

func (s AgentState) String() string {
	switch s {
	case AgentIdle:
		return "idle"
	case AgentRegistering:
		return "registering"
	case AgentRegistered:
		return "registered"
	case AgentRegisterFailed:
		return "register_failed"
	case AgentUnregistering:
		return "unregistering"
	case AgentUnregistered:
		return "unregistered"
	default:
		return fmt.Sprintf("agent_state(%d)", int(s))
	}
}

// DialogState follows RFC 3261 §12's dialog lifecycle plus the
// teacher's explicit Failed terminal for non-2xx final responses.
type DialogState int

const (
	DialogNull DialogState = iota
	DialogCalling
	DialogIncoming
	DialogEarly
	DialogConfirmed
	DialogTerminated
	DialogFailed
)

func (s DialogState) String() string {
	switch s {
	case DialogNull:
		return "null"
	case DialogCalling:
		return "calling"
	case DialogIncoming:
		return "incoming"
	case DialogEarly:
		return "early"
	case DialogConfirmed:
		return "confirmed"
	case DialogTerminated:
		return "terminated"
	case DialogFailed:
		return "failed"
	default:
		return fmt.Sprintf("dialog_state(%d)", int(s))
	}
}

// Direction records which side originated the dialog.
type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

func (d Direction) String() string {
	if d == DirectionInbound {
		return "inbound"
	}
	return "outbound"
}
