package media

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/pion/randutil"

	"github.com/arzzra/embedded_ua/pkg/corelog"
	"github.com/arzzra/embedded_ua/pkg/metrics"
	"github.com/arzzra/embedded_ua/pkg/sdpcodec"
	"github.com/arzzra/embedded_ua/pkg/transport"
)

// Session is one media session: it decides RTP-direct vs full-ICE
// transport from the first remote SDP it sees, then owns RTP
// send/receive, RTCP pacing and optional DTMF for the life of the
// call. One Session corresponds to one Dialog in pkg/agent, but the
// package has no dependency in that direction.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	handler Handler
	logger  corelog.Logger
	metrics *metrics.Registry
	machine *fsm.FSM

	controlling bool // true for an outgoing call (UAC)
	mode        TransportMode

	codec    PayloadCodec
	capture  CaptureDevice
	playback PlaybackDevice

	audio     *rtpContext
	jitter    *jitterBuffer
	pacer     *rtcpPacer
	samples   uint32 // samples per frame, derived from codec clock rate

	localSDP   string
	remote     sdpcodec.Parsed
	remoteSet  bool
	sessionID  uint64
	localUfrag string
	localPwd   string

	ice      *iceEngine
	direct   transport.Transport
	remoteUDP net.Addr
	inbound  chan []byte

	lastFrame []byte
}

// NewSession constructs an idle session using cfg's codec and device
// pair. capture/playback may be nil, in which case NullCapture /
// NullPlayback stand in.
func NewSession(cfg Config, controlling bool, capture CaptureDevice, playback PlaybackDevice, handler Handler, logger corelog.Logger, mreg *metrics.Registry) (*Session, error) {
	if handler == nil {
		handler = NoopHandler{}
	}
	if logger == nil {
		logger = corelog.NoOp()
	}
	if mreg == nil {
		mreg = metrics.NoOp()
	}
	codec, err := NewCodec(cfg.AudioCodec)
	if err != nil {
		return nil, err
	}
	samplesPerFrame := codec.ClockRate() * uint32(cfg.FrameDurationMs) / 1000
	frameBytes := int(samplesPerFrame)
	if capture == nil {
		capture = NullCapture{FrameSize: frameBytes}
	}
	if playback == nil {
		playback = NullPlayback{}
	}
	sid := uint64(randutil.NewMathRandomGenerator().Uint32())<<32 | uint64(randutil.NewMathRandomGenerator().Uint32())

	s := &Session{
		cfg:         cfg,
		handler:     handler,
		logger:      logger.With("media"),
		metrics:     mreg,
		controlling: controlling,
		codec:       codec,
		capture:     capture,
		playback:    playback,
		samples:     samplesPerFrame,
		sessionID:   sid,
		jitter:      newJitterBuffer(cfg.JitterBufferMs, cfg.FrameDurationMs),
		pacer:       newRTCPPacer(time.Duration(cfg.RTCPIntervalMs) * time.Millisecond),
		inbound:     make(chan []byte, 64),
	}
	s.machine = fsm.NewFSM(
		StateIdle.String(),
		fsm.Events{
			{Name: "gather", Src: []string{StateIdle.String()}, Dst: StateGathering.String()},
			{Name: "gathered", Src: []string{StateGathering.String()}, Dst: StateGathered.String()},
			{Name: "connect", Src: []string{StateGathered.String(), StateIdle.String()}, Dst: StateConnecting.String()},
			{Name: "connected", Src: []string{StateConnecting.String()}, Dst: StateConnected.String()},
			{Name: "disconnect", Src: []string{StateConnected.String(), StateConnecting.String()}, Dst: StateDisconnected.String()},
			{Name: "close", Src: []string{StateIdle.String(), StateGathering.String(), StateGathered.String(), StateConnecting.String(), StateConnected.String(), StateDisconnected.String()}, Dst: StateClosed.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.handler.OnStateChanged(stateFromString(e.Src), stateFromString(e.Dst))
			},
		},
	)
	audio, err := newRTPContext(codec.ClockRate())
	if err != nil {
		return nil, err
	}
	s.audio = audio
	return s, nil
}

func stateFromString(name string) SessionState {
	for _, st := range []SessionState{StateIdle, StateGathering, StateGathered, StateConnecting, StateConnected, StateDisconnected, StateClosed} {
		if st.String() == name {
			return st
		}
	}
	return StateIdle
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateFromString(s.machine.Current())
}

func (s *Session) fire(ctx context.Context, event string) error {
	return s.machine.Event(ctx, event)
}

// Gather begins ICE candidate gathering when a STUN/TURN server is
// configured; with none configured it falls back to host candidates
// only, resolving spec.md's open question on gathering without a
// server by treating "no STUN configured" as "host-only, done
// immediately" rather than an error.
func (s *Session) Gather(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fire(ctx, "gather"); err != nil {
		return err
	}
	engine, err := newICEEngine(s.cfg, s.controlling)
	if err != nil {
		return err
	}
	s.ice = engine
	s.localUfrag, s.localPwd = engine.credentials()

	gctx, cancel := context.WithTimeout(ctx, s.cfg.IceGatherTimeout)
	defer cancel()
	candidates, err := engine.gather(gctx)
	if err != nil {
		return err
	}
	sdp, err := sdpcodec.Build(sdpcodec.OfferParams{
		LocalIP:   s.cfg.LocalIP,
		SessionID: s.sessionID,
		Audio: sdpcodec.MediaLine{
			Kind:      "audio",
			Port:      firstCandidatePort(candidates, s.cfg.LocalIP),
			Codecs:    []sdpcodec.Codec{{PayloadType: s.codec.PayloadType(), Name: s.codec.Name(), ClockRate: s.codec.ClockRate()}},
			Direction: sdpcodec.DirSendRecv,
		},
		IceUfrag:   s.localUfrag,
		IcePwd:     s.localPwd,
		Candidates: candidates,
	})
	if err != nil {
		return err
	}
	s.localSDP = sdp
	if err := s.fire(ctx, "gathered"); err != nil {
		return err
	}
	s.handler.OnSDPReady(sdp)
	return nil
}

func firstCandidatePort(candidates []sdpcodec.Candidate, fallbackIP string) int {
	for _, c := range candidates {
		if c.Type == sdpcodec.CandidateHost {
			return c.Port
		}
	}
	if len(candidates) > 0 {
		return candidates[0].Port
	}
	return 0
}

// SetRemoteSDP records the remote offer/answer. The first call
// decides the session's TransportMode for its whole lifetime, per
// spec.md's "decided once, from the offer" transport-mode law.
func (s *Session) SetRemoteSDP(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	parsed, err := sdpcodec.Parse(raw)
	if err != nil {
		return err
	}
	s.remote = parsed
	s.remoteSet = true
	if s.mode == ModeUndecided {
		if parsed.HasICE() {
			s.mode = ModeIceFull
		} else {
			s.mode = ModeRtpDirect
			addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", parsed.ConnAddr, parsed.AudioPort))
			if err != nil {
				return err
			}
			s.remoteUDP = addr
		}
	}
	return nil
}

// Connect establishes the transport decided by SetRemoteSDP: full ICE
// negotiation, or a direct UDP socket to the remote's advertised
// address.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.remoteSet {
		return fmt.Errorf("media: cannot connect before remote SDP is set")
	}
	if err := s.fire(ctx, "connect"); err != nil {
		return err
	}

	switch s.mode {
	case ModeIceFull:
		if s.ice == nil {
			engine, err := newICEEngine(s.cfg, s.controlling)
			if err != nil {
				return err
			}
			s.ice = engine
		}
		if err := s.ice.connect(ctx, s.controlling, s.remote.IceUfrag, s.remote.IcePwd, s.remote.Candidates); err != nil {
			return err
		}
		if s.cfg.EnableDTLS {
			dconn, err := wrapDTLS(ctx, s.ice.conn, s.controlling)
			if err != nil {
				return err
			}
			s.ice.conn = dconn
		}
		go s.readLoop(s.ice.conn)
	case ModeRtpDirect:
		tr, err := transport.New(transport.Options{Kind: transport.KindUDP, LocalAddr: fmt.Sprintf("%s:0", s.cfg.LocalIP), Logger: s.logger})
		if err != nil {
			return err
		}
		tr.SetHandler(&sessionTransportHandler{s: s})
		s.direct = tr
	default:
		return fmt.Errorf("media: transport mode undecided, call SetRemoteSDP first")
	}

	if err := s.fire(ctx, "connected"); err != nil {
		return err
	}
	s.handler.OnConnected()
	return nil
}

// readLoop pumps an ICE net.Conn into the session's inbound channel;
// used only for ModeIceFull, where the conn has no Tick-style poll.
func (s *Session) readLoop(conn net.Conn) {
	buf := make([]byte, 1500)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case s.inbound <- cp:
		default:
		}
	}
}

type sessionTransportHandler struct{ s *Session }

func (h *sessionTransportHandler) OnData(data []byte, from net.Addr) {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case h.s.inbound <- cp:
	default:
	}
}
func (h *sessionTransportHandler) OnConnected(bool)      {}
func (h *sessionTransportHandler) OnError(string, error) {}

// Tick drives one iteration of the session's RTP/RTCP pump: it drains
// any inbound packets, pumps the underlying socket if direct-mode, and
// sends one outbound audio frame plus an RTCP report if due.
func (s *Session) Tick(timeoutMs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stateFromString(s.machine.Current()) != StateConnected {
		return nil
	}

	if s.direct != nil {
		_, _ = s.direct.Tick(0)
	}
drain:
	for {
		select {
		case pkt := <-s.inbound:
			s.handleInbound(pkt)
		default:
			break drain
		}
	}

	if s.cfg.EnableAudio {
		if err := s.sendFrame(); err != nil {
			return err
		}
	}
	if s.cfg.EnableRTCP && s.pacer.due(time.Now()) {
		if err := s.sendRTCP(); err != nil {
			return err
		}
		s.pacer.mark(time.Now())
	}
	return nil
}

func (s *Session) handleInbound(buf []byte) {
	if transport.Classify(buf) == transport.SigRTCP {
		return // RTCP received but not yet consumed by application logic
	}
	pkt, err := s.audio.ingest(buf)
	if err != nil {
		return
	}
	s.metrics.AddRTPReceived(1, len(buf))
	if pkt.PayloadType == dtmfPayloadType {
		return
	}
	s.jitter.push(pkt)
	for {
		ready := s.jitter.pop()
		if ready == nil {
			break
		}
		pcm, err := s.codec.Decode(ready.Payload)
		if err != nil {
			continue
		}
		_ = s.playback.WriteFrame(pcm)
	}
}

func (s *Session) sendFrame() error {
	frameBytes := make([]byte, s.samples)
	n, err := s.capture.ReadFrame(frameBytes)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	payload, err := s.codec.Encode(frameBytes[:n])
	if err != nil {
		return err
	}
	pkt, err := s.audio.buildPacket(s.codec.PayloadType(), payload, s.samples, false)
	if err != nil {
		return err
	}
	s.lastFrame = pkt
	return s.writeOut(pkt)
}

func (s *Session) writeOut(buf []byte) error {
	switch s.mode {
	case ModeIceFull:
		if s.ice == nil || s.ice.conn == nil {
			return fmt.Errorf("media: ICE not connected")
		}
		_, err := s.ice.conn.Write(buf)
		if err == nil {
			s.metrics.AddRTPSent(1, len(buf))
		}
		return err
	case ModeRtpDirect:
		_, err := s.direct.Send(buf, s.remoteUDP)
		if err == nil {
			s.metrics.AddRTPSent(1, len(buf))
		}
		return err
	default:
		return fmt.Errorf("media: transport mode undecided")
	}
}

func (s *Session) sendRTCP() error {
	sr, err := senderReport(s.audio, uint32(time.Now().Unix()), 0)
	if err != nil {
		return err
	}
	s.metrics.IncRTCPSent()
	return s.writeOut(sr)
}

// SendDTMF queues an RFC 4733 telephone-event for digit, sent as three
// packets at the current audio timestamp with increasing duration and
// the end marker on the last.
func (s *Session) SendDTMF(digit byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.EnableDTMF {
		return fmt.Errorf("media: DTMF disabled")
	}
	durations := []uint16{160, 320, 480}
	for i, d := range durations {
		payload, err := encodeDTMFEvent(digit, d, i == len(durations)-1)
		if err != nil {
			return err
		}
		pkt, err := s.audio.buildPacket(dtmfPayloadType, payload, 0, i == len(durations)-1)
		if err != nil {
			return err
		}
		if err := s.writeOut(pkt); err != nil {
			return err
		}
	}
	s.audio.timestamp += s.samples
	return nil
}

// AddRemoteCandidate supports trickle ICE after the initial answer.
func (s *Session) AddRemoteCandidate(c sdpcodec.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ice == nil {
		return fmt.Errorf("media: no ICE engine to add a candidate to")
	}
	return s.ice.addRemoteCandidate(c)
}

func (s *Session) LocalSDP() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localSDP
}

func (s *Session) Mode() TransportMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Stop tears down the transport without closing the session object,
// so State() still reports StateDisconnected rather than StateClosed.
func (s *Session) Stop(reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fire(context.Background(), "disconnect"); err != nil {
		return err
	}
	s.teardownTransport()
	s.handler.OnDisconnected(reason)
	return nil
}

func (s *Session) teardownTransport() {
	if s.ice != nil {
		_ = s.ice.close()
		s.ice = nil
	}
	if s.direct != nil {
		_ = s.direct.Close()
		s.direct = nil
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownTransport()
	return s.fire(context.Background(), "close")
}
