package agent

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emiago/sipgo/sip"
)

// Register sends (or refreshes) the account's REGISTER at the
// configured expiry, following spec.md §4.3's public create/start/stop
// operation table.
func (a *Agent) Register(ctx context.Context) error {
	return a.sendRegister(ctx, a.cfg.RegisterExpires)
}

func (a *Agent) sendRegister(ctx context.Context, expires int) error {
	a.setState(AgentRegistering)
	if a.regCallID == "" {
		a.regCallID = newCallID()
	}
	// A fresh REGISTER cycle (initial or refresh) gets its own auth
	// retry budget; see sendRegisterRequest's retried check below.
	a.regAuth.retried = false

	localAddr := localAddrString(a.transport)
	req := sip.NewRequest(sip.REGISTER, registrarURI(a.cfg))
	branch := newBranch()
	cseq := uint32(1)
	addCommonHeaders(req, a.cfg, localAddr, a.cfg.LocalPort, a.regCallID, newTag(), branch, cseq, sip.REGISTER)

	toParams := sip.NewParams()
	req.AppendHeader(&sip.ToHeader{Address: localURI(a.cfg), Params: toParams})
	req.AppendHeader(sip.NewHeader("Expires", strconv.Itoa(expires)))

	return a.sendRegisterRequest(ctx, req)
}

func (a *Agent) sendRegisterRequest(ctx context.Context, req *sip.Request) error {
	done := make(chan struct{})
	var finalErr error
	_, err := a.txns.start(req, a.registrarAddr, nil, func(res *sip.Response, timeoutErr error) {
		defer close(done)
		if timeoutErr != nil {
			finalErr = timeoutErr
			a.setState(AgentRegisterFailed)
			a.handler.OnRegisterResult(false, 0, "timeout")
			return
		}
		if res.StatusCode == 401 || res.StatusCode == 407 {
			if a.regAuth.retried {
				// Spec §4.3/§7: at most one retry per request; a
				// second challenge is AuthFailed, not another retry.
				finalErr = fmt.Errorf("agent: second challenge after digest retry")
				a.setState(AgentRegisterFailed)
				a.handler.OnRegisterResult(false, res.StatusCode, "auth failed")
				return
			}
			ch, ok := challengeFromResponse(res)
			if !ok {
				finalErr = fmt.Errorf("agent: challenge response missing auth header")
				a.setState(AgentRegisterFailed)
				a.handler.OnRegisterResult(false, res.StatusCode, "bad challenge")
				return
			}
			retry := sip.NewRequest(sip.REGISTER, registrarURI(a.cfg))
			branch := newBranch()
			localAddr := localAddrString(a.transport)
			cseq := uint32(1)
			if orig := req.CSeq(); orig != nil {
				cseq = orig.SeqNo + 1
			}
			addCommonHeaders(retry, a.cfg, localAddr, a.cfg.LocalPort, a.regCallID, newTag(), branch, cseq, sip.REGISTER)
			retry.AppendHeader(&sip.ToHeader{Address: localURI(a.cfg), Params: sip.NewParams()})
			if err := authorize(retry, ch, res.StatusCode, a.cfg, &a.regAuth); err != nil {
				finalErr = err
				a.setState(AgentRegisterFailed)
				return
			}
			a.regAuth.retried = true
			finalErr = a.sendRegisterRequest(ctx, retry)
			return
		}
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			a.setState(AgentRegistered)
			a.handler.OnRegisterResult(true, res.StatusCode, "OK")
			a.scheduleRefresh()
			return
		}
		a.setState(AgentRegisterFailed)
		a.handler.OnRegisterResult(false, res.StatusCode, "rejected")
	})
	if err != nil {
		a.setState(AgentRegisterFailed)
		return err
	}
	return finalErr
}

// scheduleRefresh arms a one-shot timer to re-REGISTER at half the
// configured RegisterExpires, the conventional SIP refresh margin; the
// expiry the registrar grants in its response is not read.
func (a *Agent) scheduleRefresh() {
	interval := secondsToDuration(a.cfg.RegisterExpires / 2)
	a.timers.Stop(&a.refreshID)
	id, _ := a.timers.Start(interval, func(any) {
		_ = a.Register(context.Background())
	}, nil)
	a.refreshID = id
}
