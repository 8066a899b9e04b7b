package media

import "time"

// Config carries the media-facing subset of spec.md's configuration
// table: codec selection, ICE/STUN/TURN parameters and the optional
// RTCP/jitter/DTMF/DTLS toggles. Field names match the config keys a
// pkg/config.Config maps onto this struct.
type Config struct {
	LocalIP string

	StunServer string
	StunPort   int
	TurnServer string
	TurnPort   int
	TurnUser   string
	TurnPass   string
	EnableTurn bool

	IceControlling   bool
	IceGatherTimeout time.Duration

	EnableAudio     bool
	AudioCodec      string // "PCMU" or "PCMA"
	AudioSampleRate uint32
	AudioChannels   uint8
	FrameDurationMs int

	EnableRTCP      bool
	RTCPIntervalMs  int
	JitterBufferMs  int
	EnableDTMF      bool
	EnableDTLS      bool
}

// DefaultConfig returns the teacher-style "sane defaults" constructor
// seen across the example configs: G.711 mu-law, 20ms frames, RTCP on
// with a 5s interval, no TURN/DTLS unless explicitly enabled.
func DefaultConfig() Config {
	return Config{
		LocalIP:          "0.0.0.0",
		IceGatherTimeout: 2 * time.Second,
		EnableAudio:      true,
		AudioCodec:       "PCMU",
		AudioSampleRate:  8000,
		AudioChannels:    1,
		FrameDurationMs:  20,
		EnableRTCP:       true,
		RTCPIntervalMs:   5000,
		JitterBufferMs:   60,
	}
}
