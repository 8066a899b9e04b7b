package agent

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/embedded_ua/pkg/corelog"
	"github.com/arzzra/embedded_ua/pkg/metrics"
	"github.com/arzzra/embedded_ua/pkg/timer"
	"github.com/arzzra/embedded_ua/pkg/transport"
)

// Agent is the SIP user agent of spec.md §4.3: one account, its
// registration lifecycle, and every dialog it is party to. It owns no
// socket directly — it is handed a pkg/transport.Transport and a
// timer.Service to drive retransmission. Create installs the agent as
// the Transport's event handler, replacing any handler set before, so
// one Transport instance serves one agent.
type Agent struct {
	mu sync.Mutex

	cfg       Config
	transport transport.Transport
	timers    *timer.Service
	handler   Handler
	logger    corelog.Logger
	metrics   *metrics.Registry

	state      AgentState
	registrarAddr net.Addr
	regCallID  string
	regAuth    authState
	refreshID  timer.ID

	txns    *txnTable
	dialogs map[string]*Dialog // keyed by Call-ID
}

// Create builds an idle Agent. The caller supplies an already-open
// Transport and a Service the agent will Init/Shutdown itself.
func Create(cfg Config, tr transport.Transport, timers *timer.Service, handler Handler, logger corelog.Logger, mreg *metrics.Registry) (*Agent, error) {
	if handler == nil {
		handler = NoopHandler{}
	}
	if logger == nil {
		logger = corelog.NoOp()
	}
	if mreg == nil {
		mreg = metrics.NoOp()
	}
	if cfg.Registrar == "" {
		return nil, fmt.Errorf("agent: Registrar is required")
	}
	a := &Agent{
		cfg:       cfg,
		transport: tr,
		timers:    timers,
		handler:   handler,
		logger:    logger.With("agent"),
		metrics:   mreg,
		dialogs:   make(map[string]*Dialog),
	}
	a.txns = newTxnTable(timers, a.sendWire, cfg.TimerT1, cfg.TimerT2)
	tr.SetHandler(&agentTransportHandler{a: a})
	return a, nil
}

// Start brings up the timer service and issues the initial REGISTER.
func (a *Agent) Start(ctx context.Context) error {
	a.timers.Init()
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", a.cfg.Registrar, a.cfg.RegistrarPort))
	if err != nil {
		return toError(err, "resolve registrar")
	}
	a.registrarAddr = addr
	return a.Register(ctx)
}

// Stop unregisters (best-effort) and tears down the timer service.
func (a *Agent) Stop(ctx context.Context) error {
	a.setState(AgentUnregistering)
	_ = a.sendRegister(ctx, 0)
	a.timers.Shutdown()
	a.setState(AgentUnregistered)
	return nil
}

// Tick lets a host drive the transport's poll loop alongside the
// agent; most hosts instead run Transport.Tick on their own goroutine
// and rely on timer.Service's background worker for everything else,
// but Tick is offered for hosts that prefer a single-threaded loop.
func (a *Agent) Tick(timeoutMs int) error {
	_, err := a.transport.Tick(timeoutMs)
	return err
}

func (a *Agent) setState(s AgentState) {
	a.mu.Lock()
	old := a.state
	a.state = s
	a.mu.Unlock()
	if old != s {
		a.handler.OnStateChanged(old, s)
	}
}

func (a *Agent) sendWire(wire []byte, peer net.Addr) error {
	_, err := a.transport.Send(wire, peer)
	return err
}

type agentTransportHandler struct{ a *Agent }

func (h *agentTransportHandler) OnData(data []byte, from net.Addr) {
	msg, err := sip.ParseMessage(data)
	if err != nil {
		h.a.handler.OnError(toError(err, "parse inbound message"))
		return
	}
	switch m := msg.(type) {
	case *sip.Request:
		h.a.handleRequest(m, from)
	case *sip.Response:
		h.a.handleResponse(m)
	}
}
func (h *agentTransportHandler) OnConnected(ok bool) {}
func (h *agentTransportHandler) OnError(kind string, err error) {
	h.a.handler.OnError(toError(err, kind))
}

func (a *Agent) handleResponse(res *sip.Response) {
	if a.txns.dispatch(res) {
		return
	}
	a.handler.OnError(fmt.Errorf("agent: response for unknown transaction, CSeq %v", res.CSeq()))
}
