package sdpcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParse_RtpDirect(t *testing.T) {
	raw, err := Build(OfferParams{
		LocalIP: "127.0.0.1",
		Audio: MediaLine{
			Kind:      "audio",
			Port:      40000,
			Codecs:    []Codec{{PayloadType: 0, Name: "PCMU", ClockRate: 8000}},
			Direction: DirSendRecv,
		},
	})
	require.NoError(t, err)
	assert.Contains(t, raw, "m=audio 40000 RTP/AVP 0")
	assert.Contains(t, raw, "a=rtpmap:0 PCMU/8000")
	assert.NotContains(t, raw, "ice-ufrag")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.False(t, parsed.HasICE())
	assert.Equal(t, "127.0.0.1", parsed.ConnAddr)
	assert.Equal(t, 40000, parsed.AudioPort)
	require.Len(t, parsed.AudioCodecs, 1)
	assert.Equal(t, "PCMU", parsed.AudioCodecs[0].Name)
	assert.Equal(t, uint32(8000), parsed.AudioCodecs[0].ClockRate)
}

func TestBuildParse_IceFull(t *testing.T) {
	cand := Candidate{Foundation: "1", Component: 1, Protocol: "udp", Priority: 2130706431, IP: "10.0.0.5", Port: 5000, Type: CandidateHost}
	raw, err := Build(OfferParams{
		LocalIP:  "10.0.0.5",
		Audio:    MediaLine{Kind: "audio", Port: 5000, Codecs: []Codec{{PayloadType: 0, Name: "PCMU", ClockRate: 8000}}, Direction: DirSendRecv},
		IceUfrag: "ufrag1",
		IcePwd:   "password1234567890ab",
		Candidates: []Candidate{cand},
	})
	require.NoError(t, err)
	assert.Contains(t, raw, "a=ice-ufrag:ufrag1")
	assert.Contains(t, raw, "a=candidate:1 1 UDP")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, parsed.HasICE())
	assert.Equal(t, "ufrag1", parsed.IceUfrag)
	require.Len(t, parsed.Candidates, 1)
	assert.Equal(t, "10.0.0.5", parsed.Candidates[0].IP)
	assert.Equal(t, CandidateHost, parsed.Candidates[0].Type)
}

func TestParseCandidate_Malformed(t *testing.T) {
	_, err := ParseCandidate("1 1 UDP")
	assert.Error(t, err)
}
