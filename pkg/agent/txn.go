package agent

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/embedded_ua/pkg/timer"
)

// clientTransaction is our own RFC 3261 §17.1 client transaction,
// retransmission-driven by timer.Service instead of sipgo's built-in
// transaction layer (which assumes it owns the socket). It exists only
// long enough to collect the final response to one request.
type clientTransaction struct {
	mu sync.Mutex

	branch   string
	wire     []byte
	peer     net.Addr
	isInvite bool

	retransmitID timer.ID
	timeoutID    timer.ID
	interval     time.Duration

	onProvisional func(*sip.Response)
	onFinal       func(*sip.Response, error) // err set on Timer B expiry
	completed     bool
}

// txnTable tracks outstanding client transactions by branch, and the
// send/schedule primitives they share.
type txnTable struct {
	mu      sync.Mutex
	byBranch map[string]*clientTransaction
	send    func(wire []byte, peer net.Addr) error
	timers  *timer.Service
	t1, t2  time.Duration
}

func newTxnTable(timers *timer.Service, send func([]byte, net.Addr) error, t1, t2 time.Duration) *txnTable {
	return &txnTable{byBranch: make(map[string]*clientTransaction), send: send, timers: timers, t1: t1, t2: t2}
}

// start sends req and begins its retransmission schedule. onFinal is
// invoked exactly once, either with the matching final response or
// with a timeout error if Timer B (64*T1) elapses first.
func (t *txnTable) start(req *sip.Request, peer net.Addr, onProvisional func(*sip.Response), onFinal func(*sip.Response, error)) (*clientTransaction, error) {
	branch := branchOf(req)
	if branch == "" {
		return nil, fmt.Errorf("agent: request has no Via branch")
	}
	wire := []byte(req.String())

	ct := &clientTransaction{
		branch:        branch,
		wire:          wire,
		peer:          peer,
		isInvite:      req.Method == sip.INVITE,
		interval:      t.t1,
		onProvisional: onProvisional,
		onFinal:       onFinal,
	}

	t.mu.Lock()
	t.byBranch[branch] = ct
	t.mu.Unlock()

	if err := t.send(wire, peer); err != nil {
		t.mu.Lock()
		delete(t.byBranch, branch)
		t.mu.Unlock()
		return nil, err
	}

	ct.retransmitID, _ = t.timers.Start(ct.interval, func(any) { t.onRetransmit(ct) }, nil)
	overall := 64 * t.t1
	ct.timeoutID, _ = t.timers.Start(overall, func(any) { t.onTimeout(ct) }, nil)
	return ct, nil
}

func (t *txnTable) onRetransmit(ct *clientTransaction) {
	ct.mu.Lock()
	if ct.completed {
		ct.mu.Unlock()
		return
	}
	if ct.interval < t.t2 {
		ct.interval *= 2
		if ct.interval > t.t2 {
			ct.interval = t.t2
		}
	}
	interval := ct.interval
	wire, peer := ct.wire, ct.peer
	ct.mu.Unlock()

	_ = t.send(wire, peer)
	ct.mu.Lock()
	if !ct.completed {
		ct.retransmitID, _ = t.timers.Start(interval, func(any) { t.onRetransmit(ct) }, nil)
	}
	ct.mu.Unlock()
}

func (t *txnTable) onTimeout(ct *clientTransaction) {
	ct.mu.Lock()
	if ct.completed {
		ct.mu.Unlock()
		return
	}
	ct.completed = true
	ct.mu.Unlock()

	t.mu.Lock()
	delete(t.byBranch, ct.branch)
	t.mu.Unlock()

	ct.onFinal(nil, fmt.Errorf("agent: transaction %s timed out", ct.branch))
}

// dispatch routes an inbound response to the matching transaction by
// its Via branch (RFC 3261 §17.1.3 transaction matching, simplified to
// branch-only since this agent never forks).
func (t *txnTable) dispatch(res *sip.Response) bool {
	branch := branchOfResponse(res)
	t.mu.Lock()
	ct, ok := t.byBranch[branch]
	t.mu.Unlock()
	if !ok {
		return false
	}

	if res.StatusCode < 200 {
		ct.mu.Lock()
		cb := ct.onProvisional
		ct.mu.Unlock()
		if cb != nil {
			cb(res)
		}
		return true
	}

	ct.mu.Lock()
	if ct.completed {
		ct.mu.Unlock()
		return true
	}
	ct.completed = true
	retransmitID, timeoutID := ct.retransmitID, ct.timeoutID
	ct.mu.Unlock()

	t.timers.Stop(&retransmitID)
	t.timers.Stop(&timeoutID)
	t.mu.Lock()
	delete(t.byBranch, branch)
	t.mu.Unlock()

	ct.onFinal(res, nil)
	return true
}

func branchOf(req *sip.Request) string {
	via := req.Via()
	if via == nil {
		return ""
	}
	branch, _ := via.Params.Get("branch")
	return branch
}

func branchOfResponse(res *sip.Response) string {
	via := res.Via()
	if via == nil {
		return ""
	}
	branch, _ := via.Params.Get("branch")
	return branch
}
