package media

// CaptureDevice and PlaybackDevice are the external collaborator
// traits spec.md explicitly keeps out of scope: audio capture/render
// hardware is a host concern. A session only ever reads fixed-size
// PCM frames from one and writes decoded frames to the other.
type CaptureDevice interface {
	// ReadFrame fills buf with one frame's worth of PCM samples and
	// returns the number of bytes written. Returning 0, nil means
	// "nothing available this tick".
	ReadFrame(buf []byte) (int, error)
}

type PlaybackDevice interface {
	WriteFrame(pcm []byte) error
}

// NullCapture and NullPlayback are the teacher's "no device wired"
// defaults (see pkg/media_with_sdp's silence generator): a session
// with no device still runs its RTP/RTCP machinery, it just sends
// silence and discards what it receives.
type NullCapture struct{ FrameSize int }

func (n NullCapture) ReadFrame(buf []byte) (int, error) {
	n_ := n.FrameSize
	if n_ <= 0 || n_ > len(buf) {
		n_ = len(buf)
	}
	for i := 0; i < n_; i++ {
		buf[i] = 0
	}
	return n_, nil
}

type NullPlayback struct{}

func (NullPlayback) WriteFrame(pcm []byte) error { return nil }
