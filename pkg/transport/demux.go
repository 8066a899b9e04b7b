package transport

import (
	"bytes"
	"strconv"
	"strings"
)

// Signature classifies a datagram by content, not by port, per
// spec.md §4.2: "Packet demultiplex above the transport is by
// content, not port."
type Signature int

const (
	SigUnknown Signature = iota
	SigSIPRequest
	SigSIPResponse
	SigSTUN
	SigRTP
	SigRTCP
)

var sipMethods = map[string]bool{
	"INVITE": true, "ACK": true, "BYE": true, "CANCEL": true,
	"REGISTER": true, "OPTIONS": true, "INFO": true, "PRACK": true,
	"UPDATE": true, "SUBSCRIBE": true, "NOTIFY": true, "PUBLISH": true,
	"REFER": true, "MESSAGE": true,
}

// stunMagicCookie is RFC 5389 §6's fixed value.
var stunMagicCookie = [4]byte{0x21, 0x12, 0xA4, 0x42}

// Classify inspects buf and returns its Signature. Order matters:
// SIP text messages are checked first since "SIP/2.0" and a known
// method token can't collide with binary STUN/RTP headers.
func Classify(buf []byte) Signature {
	if len(buf) >= 7 && string(buf[:7]) == "SIP/2.0" {
		return SigSIPResponse
	}
	if sig, ok := classifyRequestLine(buf); ok {
		return sig
	}
	if isSTUN(buf) {
		return SigSTUN
	}
	if len(buf) >= 2 {
		pt := buf[1]
		// RFC 3550 §6: RTCP payload types are 200-204; everything else
		// in the dynamic audio/video range is RTP.
		if pt >= 200 && pt <= 204 {
			return SigRTCP
		}
		return SigRTP
	}
	return SigUnknown
}

func classifyRequestLine(buf []byte) (Signature, bool) {
	line := buf
	if idx := bytes.IndexByte(buf, '\r'); idx >= 0 {
		line = buf[:idx]
	} else if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
		line = buf[:idx]
	}
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return SigUnknown, false
	}
	method := strings.ToUpper(string(fields[0]))
	if sipMethods[method] {
		return SigSIPRequest, true
	}
	return SigUnknown, false
}

// isSTUN applies the first-byte class check (top two bits zero) and
// the magic cookie check from RFC 5389 §6.
func isSTUN(buf []byte) bool {
	if len(buf) < 20 {
		return false
	}
	if buf[0]&0xC0 != 0 {
		return false
	}
	return bytes.Equal(buf[4:8], stunMagicCookie[:])
}

// sipframe reassembles SIP messages from a TCP byte stream by
// scanning for the header/body boundary and honoring Content-Length,
// mirroring the teacher's streaming reassembly in pkg/sip/transport.
type sipframe struct {
	buf bytes.Buffer
}

func newSIPFramer() *sipframe { return &sipframe{} }

func (f *sipframe) feed(data []byte) { f.buf.Write(data) }

// next extracts one complete framed message, if the buffer holds one.
func (f *sipframe) next() ([]byte, bool) {
	raw := f.buf.Bytes()
	headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, false
	}
	headers := raw[:headerEnd]
	contentLength := parseContentLength(headers)
	total := headerEnd + 4 + contentLength
	if len(raw) < total {
		return nil, false
	}
	msg := make([]byte, total)
	copy(msg, raw[:total])
	f.buf.Next(total)
	return msg, true
}

func parseContentLength(headers []byte) int {
	for _, line := range bytes.Split(headers, []byte("\r\n")) {
		parts := bytes.SplitN(line, []byte(":"), 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(strings.ToLower(string(parts[0])))
		if name == "content-length" || name == "l" {
			n, err := strconv.Atoi(strings.TrimSpace(string(parts[1])))
			if err == nil && n >= 0 {
				return n
			}
		}
	}
	return 0
}
