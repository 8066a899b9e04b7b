package media

import (
	"time"

	"github.com/pion/rtcp"
)

// rtcpPacer decides when the next RTCP report is due and builds it,
// generalizing the teacher's rtcp_interval()/rtcp_report() pair in
// pkg/rtp/rtcp.go onto pion/rtcp's SR/RR packet types instead of a
// hand-rolled encoder.
type rtcpPacer struct {
	interval time.Duration
	last     time.Time
}

func newRTCPPacer(interval time.Duration) *rtcpPacer {
	return &rtcpPacer{interval: interval}
}

// due reports whether a report should be sent at now, given the last
// one sent.
func (p *rtcpPacer) due(now time.Time) bool {
	return p.last.IsZero() || now.Sub(p.last) >= p.interval
}

func (p *rtcpPacer) mark(now time.Time) {
	p.last = now
}

// senderReport builds an RFC 3550 §6.4.1 Sender Report from the
// context's current counters.
func senderReport(ctx *rtpContext, ntpSeconds, ntpFraction uint32) ([]byte, error) {
	sr := &rtcp.SenderReport{
		SSRC:        ctx.ssrc,
		NTPTime:     uint64(ntpSeconds)<<32 | uint64(ntpFraction),
		RTPTime:     ctx.timestamp,
		PacketCount: ctx.packetsSent,
		OctetCount:  ctx.octetsSent,
	}
	return sr.Marshal()
}

// receiverReport builds an RFC 3550 §6.4.2 Receiver Report. Jitter and
// loss fraction are left at zero. LastSequenceNumber carries only the
// 16-bit highest sequence number; the wrap-cycle count is not added.
func receiverReport(localSSRC, remoteSSRC uint32, highestSeq uint16, lost uint32) ([]byte, error) {
	rr := &rtcp.ReceiverReport{
		SSRC: localSSRC,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               remoteSSRC,
				TotalLost:          lost,
				LastSequenceNumber: uint32(highestSeq),
			},
		},
	}
	return rr.Marshal()
}
