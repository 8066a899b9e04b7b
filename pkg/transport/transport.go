// Package transport implements the Unified Transport of spec.md §4.2:
// a polymorphic packet pipe over UDP, TCP or an MQTT-style broker,
// exposing a non-blocking send and a tick-driven poll that demultiplexes
// framed datagrams to an event handler.
//
// The MQTT broker's wire protocol is explicitly out of scope per
// spec.md §1 ("MQTT client integration... accessed through a narrow
// trait"); this package depends on a BrokerClient interface rather than
// importing an MQTT library, matching the "device ops, payload ops,
// crypto hash, broker client" narrow-trait list in spec.md's scope
// section.
package transport

import (
	"net"

	"github.com/arzzra/embedded_ua/pkg/corelog"
)

// Kind selects which Transport variant a Config builds.
type Kind int

const (
	KindUDP Kind = iota
	KindTCP
	KindMQTT
)

func (k Kind) String() string {
	switch k {
	case KindUDP:
		return "udp"
	case KindTCP:
		return "tcp"
	case KindMQTT:
		return "mqtt"
	default:
		return "unknown"
	}
}

// State mirrors the connection lifecycle a TCP/MQTT variant walks
// through; UDP stays in StateOpen for its whole life.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Handler is the event sink a Transport drives from its tick loop.
// All three variants funnel through this regardless of framing.
type Handler interface {
	OnData(data []byte, from net.Addr)
	OnConnected(ok bool)
	OnError(kind string, err error)
}

// SendResult distinguishes a completed send from backpressure the
// caller should retry on the next tick.
type SendResult int

const (
	Sent SendResult = iota
	WouldBlock
)

// Transport is the shared contract spec.md §4.2 describes: never
// blocks on send, polls for at most timeout per Tick call, and can
// report its bound local address for Via/SDP use.
type Transport interface {
	Send(data []byte, peer net.Addr) (SendResult, error)
	Tick(timeoutMs int) (eventsProcessed int, err error)
	LocalAddr() net.Addr
	State() State
	SetHandler(h Handler)
	Close() error
}

// Options configure any Transport variant; unused fields are ignored
// by variants that don't need them (e.g. LocalAddr on MQTT).
type Options struct {
	Kind       Kind
	LocalAddr  string // "host:port"; port 0 ⇒ OS-assigned
	RemoteAddr string // UDP "connected" peer, or TCP dial target
	Logger     corelog.Logger

	// MQTT-only.
	Broker       BrokerClient
	TopicPrefix  string
}

// New builds the Transport variant named by opts.Kind.
func New(opts Options) (Transport, error) {
	if opts.Logger == nil {
		opts.Logger = corelog.NoOp()
	}
	switch opts.Kind {
	case KindUDP:
		return newUDPTransport(opts)
	case KindTCP:
		return newTCPTransport(opts)
	case KindMQTT:
		return newMQTTTransport(opts)
	default:
		return nil, errUnknownKind(opts.Kind)
	}
}

type errUnknownKind Kind

func (e errUnknownKind) Error() string { return "transport: unknown kind " + Kind(e).String() }
