package transport

import (
	"fmt"
	"net"
	"sync"
)

// BrokerClient is the narrow trait spec.md §1 carves out for MQTT
// integration: this module never speaks the MQTT wire protocol
// itself, it only drives whatever client the host wires in.
type BrokerClient interface {
	Connect() error
	Publish(topic string, payload []byte) error
	Subscribe(topic string, onMessage func(payload []byte)) error
	Disconnect()
}

// brokerAddr stands in for a peer address in MQTT mode, since
// destination addressing is meaningless over a broker (spec.md §4.2):
// "Destination address in SDP is not meaningful in this mode and is
// replaced by the broker identity for diagnostic purposes."
type brokerAddr string

func (b brokerAddr) Network() string { return "mqtt" }
func (b brokerAddr) String() string  { return string(b) }

// mqttTransport publishes every outbound byte slice to
// "<prefix>/send" and delivers "<prefix>/recv" messages to the
// handler. Per spec.md §9's open question, a single mqttTransport
// always talks to one logical peer: the prefix, not a per-message
// destination, selects the recipient.
type mqttTransport struct {
	mu      sync.Mutex
	client  BrokerClient
	prefix  string
	handler Handler
	state   State
	inbox   chan []byte
}

func newMQTTTransport(opts Options) (Transport, error) {
	if opts.Broker == nil {
		return nil, fmt.Errorf("transport: mqtt kind requires Options.Broker")
	}
	t := &mqttTransport{
		client: opts.Broker,
		prefix: opts.TopicPrefix,
		state:  StateConnecting,
		inbox:  make(chan []byte, 64),
	}
	if err := t.client.Connect(); err != nil {
		t.state = StateError
		return t, err
	}
	recvTopic := t.prefix + "/recv"
	if err := t.client.Subscribe(recvTopic, func(payload []byte) {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		select {
		case t.inbox <- buf:
		default:
			// Drop on a full inbox rather than block the broker's
			// delivery goroutine; the core never blocks on receive.
		}
	}); err != nil {
		t.state = StateError
		return t, err
	}
	t.state = StateOpen
	return t, nil
}

func (t *mqttTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
	if h != nil {
		h.OnConnected(t.State() == StateOpen)
	}
}

func (t *mqttTransport) Send(data []byte, _ net.Addr) (SendResult, error) {
	if err := t.client.Publish(t.prefix+"/send", data); err != nil {
		t.mu.Lock()
		t.state = StateError
		t.mu.Unlock()
		if t.handler != nil {
			t.handler.OnError("send", err)
		}
		return WouldBlock, err
	}
	return Sent, nil
}

func (t *mqttTransport) Tick(timeoutMs int) (int, error) {
	processed := 0
	for {
		select {
		case msg := <-t.inbox:
			processed++
			if t.handler != nil {
				t.handler.OnData(msg, brokerAddr(t.prefix+"/recv"))
			}
		default:
			return processed, nil
		}
	}
}

func (t *mqttTransport) LocalAddr() net.Addr { return brokerAddr(t.prefix) }
func (t *mqttTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
func (t *mqttTransport) Close() error {
	t.mu.Lock()
	t.state = StateClosed
	t.mu.Unlock()
	t.client.Disconnect()
	return nil
}
