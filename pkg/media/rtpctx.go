package media

import (
	"github.com/pion/randutil"
	"github.com/pion/rtp"
)

// rtpContext tracks the per-direction RTP state the teacher's
// pkg/rtp/session.go keeps: SSRC, the running sequence number and
// timestamp, and send/receive counters the RTCP pacer and metrics
// registry read from.
type rtpContext struct {
	ssrc      uint32
	sequence  uint16
	timestamp uint32
	clockRate uint32

	packetsSent     uint32
	octetsSent      uint32
	packetsReceived uint32
	octetsReceived  uint32

	highestSeqSeen uint16
	seenFirst      bool
}

func newRTPContext(clockRate uint32) (*rtpContext, error) {
	g := randutil.NewMathRandomGenerator()
	return &rtpContext{
		ssrc:      g.Uint32(),
		sequence:  uint16(g.Uint32()),
		clockRate: clockRate,
	}, nil
}

// buildPacket advances the sequence/timestamp counters and marshals
// an RTP packet carrying payload, per RFC 3550 §5.1. samplesPerFrame
// is how far to advance the timestamp for the next call.
func (c *rtpContext) buildPacket(payloadType uint8, payload []byte, samplesPerFrame uint32, marker bool) ([]byte, error) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    payloadType,
			SequenceNumber: c.sequence,
			Timestamp:      c.timestamp,
			SSRC:           c.ssrc,
			Marker:         marker,
		},
		Payload: payload,
	}
	c.sequence++
	c.timestamp += samplesPerFrame
	c.packetsSent++
	c.octetsSent += uint32(len(payload))
	return pkt.Marshal()
}

// ingest unmarshals an inbound RTP packet and updates receive
// counters. It returns the parsed packet so callers can hand the
// payload to the jitter buffer and codec.
func (c *rtpContext) ingest(buf []byte) (*rtp.Packet, error) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, err
	}
	c.packetsReceived++
	c.octetsReceived += uint32(len(pkt.Payload))
	if !c.seenFirst || seqGreater(pkt.SequenceNumber, c.highestSeqSeen) {
		c.highestSeqSeen = pkt.SequenceNumber
		c.seenFirst = true
	}
	return pkt, nil
}

// seqGreater compares RTP sequence numbers with RFC 3550 Appendix A.1
// wraparound semantics: a is "greater" than b if advancing from b to a
// is a shorter forward step than the reverse.
func seqGreater(a, b uint16) bool {
	return int16(a-b) > 0
}
