package media

import (
	"fmt"

	"github.com/pion/rtp"
)

// dtmfPayloadType is the session's negotiated payload type for
// telephone-event (RFC 4733); 101 is the conventional dynamic value
// used across the pack's SIP stacks.
const dtmfPayloadType = 101

var dtmfDigits = map[byte]uint8{
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4,
	'5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
	'*': 10, '#': 11,
	'A': 12, 'B': 13, 'C': 14, 'D': 15,
}

// encodeDTMFEvent builds the telephone-event payload for one digit
// per RFC 4733 §2.3: event code, end-of-event flag, volume and
// duration in clock ticks. The caller sends three packets with the
// same timestamp and increasing duration, setting end on the last.
func encodeDTMFEvent(digit byte, durationSamples uint16, end bool) ([]byte, error) {
	code, ok := dtmfDigits[digit]
	if !ok {
		return nil, fmt.Errorf("media: unsupported DTMF digit %q", digit)
	}
	payload := make([]byte, 4)
	payload[0] = code
	if end {
		payload[1] = 0x80
	}
	payload[2] = byte(durationSamples >> 8)
	payload[3] = byte(durationSamples)
	return payload, nil
}

// decodeDTMFEvent parses an inbound telephone-event RTP packet,
// returning the digit and whether this is the terminal packet for the
// event.
func decodeDTMFEvent(pkt *rtp.Packet) (digit byte, end bool, err error) {
	if len(pkt.Payload) < 4 {
		return 0, false, fmt.Errorf("media: short DTMF payload")
	}
	code := pkt.Payload[0]
	end = pkt.Payload[1]&0x80 != 0
	for d, c := range dtmfDigits {
		if c == code {
			return d, end, nil
		}
	}
	return 0, false, fmt.Errorf("media: unknown DTMF event code %d", code)
}
