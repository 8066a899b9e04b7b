package media

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/embedded_ua/pkg/sdpcodec"
)

func TestSession_RtpDirect_TransportModeDecidedFromOffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalIP = "127.0.0.1"
	s, err := NewSession(cfg, true, nil, nil, NoopHandler{}, nil, nil)
	require.NoError(t, err)

	remoteSDP, err := sdpcodec.Build(sdpcodec.OfferParams{
		LocalIP: "127.0.0.1",
		Audio: sdpcodec.MediaLine{
			Kind:      "audio",
			Port:      40000,
			Codecs:    []sdpcodec.Codec{{PayloadType: 0, Name: "PCMU", ClockRate: 8000}},
			Direction: sdpcodec.DirSendRecv,
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.SetRemoteSDP(remoteSDP))
	assert.Equal(t, ModeRtpDirect, s.Mode())
}

func TestSession_DTMF_RequiresEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalIP = "127.0.0.1"
	s, err := NewSession(cfg, true, nil, nil, NoopHandler{}, nil, nil)
	require.NoError(t, err)
	err = s.SendDTMF('5')
	assert.Error(t, err)
}

func TestSession_EncodeDecodeDTMF_RoundTrips(t *testing.T) {
	payload, err := encodeDTMFEvent('3', 160, true)
	require.NoError(t, err)
	assert.Len(t, payload, 4)
	assert.Equal(t, uint8(0x80), payload[1])

	digit, end, err := decodeDTMFEvent(&rtp.Packet{Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, byte('3'), digit)
	assert.True(t, end)
}
