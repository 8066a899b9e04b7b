package media

import (
	"fmt"

	"github.com/zaf/g711"
)

// PayloadCodec is the narrow trait spec.md leaves for payload
// encode/decode: the session drives RTP framing, sequencing and
// timing itself, and only defers to this trait for the bytes-to-bytes
// transform. Device capture/playback stays entirely out of scope; a
// host wires whatever codec and device pair it needs.
type PayloadCodec interface {
	PayloadType() uint8
	Name() string
	ClockRate() uint32
	Encode(pcm []byte) ([]byte, error)
	Decode(payload []byte) ([]byte, error)
}

// pcmuCodec and pcmaCodec bind the default reference codecs to
// zaf/g711, the only audio codec dependency anywhere in the retrieved
// pack (sebacius-switchboard and blitss-sip-tg-bridge both carry it).
type pcmuCodec struct{}

func (pcmuCodec) PayloadType() uint8 { return 0 }
func (pcmuCodec) Name() string       { return "PCMU" }
func (pcmuCodec) ClockRate() uint32  { return 8000 }
func (pcmuCodec) Encode(pcm []byte) ([]byte, error) {
	return g711.EncodeUlaw(pcm), nil
}
func (pcmuCodec) Decode(payload []byte) ([]byte, error) {
	return g711.DecodeUlaw(payload), nil
}

type pcmaCodec struct{}

func (pcmaCodec) PayloadType() uint8 { return 8 }
func (pcmaCodec) Name() string       { return "PCMA" }
func (pcmaCodec) ClockRate() uint32  { return 8000 }
func (pcmaCodec) Encode(pcm []byte) ([]byte, error) {
	return g711.EncodeAlaw(pcm), nil
}
func (pcmaCodec) Decode(payload []byte) ([]byte, error) {
	return g711.DecodeAlaw(payload), nil
}

// NewCodec resolves a codec name from config into a PayloadCodec. An
// unknown name is a configuration error, not a silent fallback.
func NewCodec(name string) (PayloadCodec, error) {
	switch name {
	case "PCMU", "":
		return pcmuCodec{}, nil
	case "PCMA":
		return pcmaCodec{}, nil
	default:
		return nil, fmt.Errorf("media: unknown codec %q", name)
	}
}
