package agent

import "time"

// Config carries the SIP-facing subset of spec.md §6's configuration
// table: account credentials, registrar target, transport selection
// and timer tuning. A pkg/config.Config maps onto this and media.Config
// together.
type Config struct {
	Username string
	Password string
	Domain   string

	Registrar     string
	RegistrarPort int
	RegisterExpires int

	DisplayName string
	LocalPort   int

	// TimerT1 is RFC 3261 §17.1.1.1's base retransmit interval
	// (default 500ms); TimerT2 caps the non-INVITE/INVITE-final
	// retransmit backoff (default 4s).
	TimerT1 time.Duration
	TimerT2 time.Duration
}

// DefaultConfig fills in the teacher's usual defaults: RFC 3261 timer
// values and a one-hour registration refresh.
func DefaultConfig() Config {
	return Config{
		RegistrarPort:   5060,
		RegisterExpires: 3600,
		LocalPort:       5060,
		TimerT1:         500 * time.Millisecond,
		TimerT2:         4 * time.Second,
	}
}
