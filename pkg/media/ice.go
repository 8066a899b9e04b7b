package media

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/ice/v2"
	"github.com/arzzra/embedded_ua/pkg/sdpcodec"
)

// iceEngine wraps a pion/ice/v2 Agent, the connectivity-establishment
// dependency the pack never imports directly but which belongs to the
// same pion family as pion/rtp, pion/sdp and pion/dtls already wired
// elsewhere. It owns gathering, credential exchange and the selected
// candidate pair, and hands back a net.Conn once connected.
type iceEngine struct {
	agent *ice.Agent
	conn  net.Conn

	localUfrag string
	localPwd   string
}

func newICEEngine(cfg Config, controlling bool) (*iceEngine, error) {
	urls := []*ice.URL{}
	if cfg.StunServer != "" {
		u, err := ice.ParseURL(fmt.Sprintf("stun:%s:%d", cfg.StunServer, cfg.StunPort))
		if err == nil {
			urls = append(urls, u)
		}
	}
	if cfg.EnableTurn && cfg.TurnServer != "" {
		u, err := ice.ParseURL(fmt.Sprintf("turn:%s:%d", cfg.TurnServer, cfg.TurnPort))
		if err == nil {
			u.Username = cfg.TurnUser
			u.Password = cfg.TurnPass
			urls = append(urls, u)
		}
	}

	agentConfig := &ice.AgentConfig{
		Urls:            urls,
		NetworkTypes:    []ice.NetworkType{ice.NetworkTypeUDP4, ice.NetworkTypeUDP6},
		CandidateTypes:  []ice.CandidateType{ice.CandidateTypeHost, ice.CandidateTypeServerReflexive, ice.CandidateTypeRelay},
	}
	agent, err := ice.NewAgent(agentConfig)
	if err != nil {
		return nil, err
	}
	ufrag, pwd, err := agent.GetLocalUserCredentials()
	if err != nil {
		agent.Close()
		return nil, err
	}
	return &iceEngine{agent: agent, localUfrag: ufrag, localPwd: pwd}, nil
}

func (e *iceEngine) credentials() (ufrag, pwd string) { return e.localUfrag, e.localPwd }

// gather kicks off candidate gathering and blocks until OnCandidate
// reports the terminating nil candidate, mirroring the teacher's
// synchronous on_gather_done callback collapsed into a channel wait.
func (e *iceEngine) gather(ctx context.Context) ([]sdpcodec.Candidate, error) {
	done := make(chan struct{})
	var out []sdpcodec.Candidate
	if err := e.agent.OnCandidate(func(c ice.Candidate) {
		if c == nil {
			close(done)
			return
		}
		out = append(out, sdpcodec.Candidate{
			Foundation: c.Foundation(),
			Component:  int(c.Component()),
			Protocol:   "udp",
			Priority:   c.Priority(),
			IP:         c.Address(),
			Port:       c.Port(),
			Type:       candidateTypeFromICE(c.Type()),
		})
	}); err != nil {
		return nil, err
	}
	if err := e.agent.GatherCandidates(); err != nil {
		return nil, err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return out, ctx.Err()
	}
	return out, nil
}

func candidateTypeFromICE(t ice.CandidateType) sdpcodec.CandidateType {
	switch t {
	case ice.CandidateTypeServerReflexive:
		return sdpcodec.CandidateSrflx
	case ice.CandidateTypeRelay:
		return sdpcodec.CandidateRelay
	default:
		return sdpcodec.CandidateHost
	}
}

// connect performs the ICE handshake, acting as the controlling agent
// (Dial) or controlled agent (Accept) based on call direction, and
// adds any remote candidates already known (full, non-trickle ICE).
func (e *iceEngine) connect(ctx context.Context, controlling bool, remoteUfrag, remotePwd string, remoteCandidates []sdpcodec.Candidate) error {
	if err := e.agent.SetRemoteCredentials(remoteUfrag, remotePwd); err != nil {
		return err
	}
	for _, rc := range remoteCandidates {
		if err := e.addRemoteCandidate(rc); err != nil {
			return err
		}
	}
	var conn *ice.Conn
	var err error
	if controlling {
		conn, err = e.agent.Dial(ctx, remoteUfrag, remotePwd)
	} else {
		conn, err = e.agent.Accept(ctx, remoteUfrag, remotePwd)
	}
	if err != nil {
		return err
	}
	e.conn = conn
	return nil
}

// addRemoteCandidate supports trickle ICE: candidates learned after
// the initial offer/answer can be added incrementally.
func (e *iceEngine) addRemoteCandidate(rc sdpcodec.Candidate) error {
	c, err := ice.UnmarshalCandidate(rc.String())
	if err != nil {
		return err
	}
	return e.agent.AddRemoteCandidate(c)
}

func (e *iceEngine) close() error {
	if e.conn != nil {
		_ = e.conn.Close()
	}
	return e.agent.Close()
}
