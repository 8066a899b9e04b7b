package transport

import "testing"

func TestClassify_SIPResponse(t *testing.T) {
	if got := Classify([]byte("SIP/2.0 200 OK\r\n\r\n")); got != SigSIPResponse {
		t.Fatalf("got %v, want SigSIPResponse", got)
	}
}

func TestClassify_SIPRequest(t *testing.T) {
	if got := Classify([]byte("INVITE sip:bob@example.com SIP/2.0\r\n\r\n")); got != SigSIPRequest {
		t.Fatalf("got %v, want SigSIPRequest", got)
	}
}

func TestClassify_STUN(t *testing.T) {
	buf := make([]byte, 20)
	buf[0] = 0x00 // binding request, top two bits zero
	buf[1] = 0x01
	copy(buf[4:8], stunMagicCookie[:])
	if got := Classify(buf); got != SigSTUN {
		t.Fatalf("got %v, want SigSTUN", got)
	}
}

func TestClassify_RTPvsRTCP(t *testing.T) {
	rtp := []byte{0x80, 0x00, 0, 0}
	if got := Classify(rtp); got != SigRTP {
		t.Fatalf("got %v, want SigRTP", got)
	}
	rtcp := []byte{0x80, 200, 0, 0}
	if got := Classify(rtcp); got != SigRTCP {
		t.Fatalf("got %v, want SigRTCP", got)
	}
}

func TestSIPFramer_AssemblesByContentLength(t *testing.T) {
	f := newSIPFramer()
	msg := "INVITE sip:b@e.com SIP/2.0\r\nContent-Length: 5\r\n\r\nhello"
	f.feed([]byte(msg[:20]))
	if _, ok := f.next(); ok {
		t.Fatalf("expected no complete message yet")
	}
	f.feed([]byte(msg[20:]))
	got, ok := f.next()
	if !ok {
		t.Fatalf("expected complete message")
	}
	if string(got) != msg {
		t.Fatalf("got %q, want %q", got, msg)
	}
}
