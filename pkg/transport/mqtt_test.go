package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker is an in-process double for BrokerClient: each Publish is
// delivered synchronously to the subscriber of that same topic. The
// "<prefix>/send" to "<prefix>/recv" echo a remote peer would provide
// is wired up by the test itself.
type fakeBroker struct {
	mu   sync.Mutex
	subs map[string]func([]byte)
}

func newFakeBroker() *fakeBroker { return &fakeBroker{subs: map[string]func([]byte){}} }

func (b *fakeBroker) Connect() error { return nil }
func (b *fakeBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	cb, ok := b.subs[topic]
	b.mu.Unlock()
	if ok {
		cb(payload)
	}
	return nil
}
func (b *fakeBroker) Subscribe(topic string, onMessage func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = onMessage
	return nil
}
func (b *fakeBroker) Disconnect() {}

func TestMQTTTransport_PublishSubscribeLoopback(t *testing.T) {
	broker := newFakeBroker()
	// Wire the echo: anything published to "/send" gets redelivered on
	// "/recv" by a hand-registered bridge, imitating a remote peer.
	require.NoError(t, broker.Subscribe("ua/send", func(payload []byte) {
		_ = broker.Publish("ua/recv", payload)
	}))

	tr, err := New(Options{Kind: KindMQTT, Broker: broker, TopicPrefix: "ua"})
	require.NoError(t, err)
	defer tr.Close()

	h := &recordingHandler{}
	tr.SetHandler(h)

	_, err = tr.Send([]byte("ping"), nil)
	require.NoError(t, err)

	n, err := tr.Tick(10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, h.count())
	assert.Equal(t, "ping", string(h.data[0]))
}
