// Package sdpcodec serializes and parses the SDP offer/answer bodies
// the agent and media session exchange (spec.md §4.4 "local SDP
// generation" / "set_remote_sdp"). It builds on pion/sdp/v3's
// SessionDescription marshal/unmarshal engine — the same dependency
// the teacher's pkg/media_sdp/builder.go uses — and layers on the ICE
// ufrag/pwd/candidate fields and offer/answer direction logic spec.md
// requires that a generic SDP library doesn't know about.
package sdpcodec

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pion/sdp/v3"
)

// Direction is the media direction attribute of an m-line.
type Direction int

const (
	DirSendRecv Direction = iota
	DirSendOnly
	DirRecvOnly
	DirInactive
)

func (d Direction) attrName() string {
	switch d {
	case DirSendOnly:
		return "sendonly"
	case DirRecvOnly:
		return "recvonly"
	case DirInactive:
		return "inactive"
	default:
		return "sendrecv"
	}
}

func directionFromAttrs(attrs []sdp.Attribute) Direction {
	for _, a := range attrs {
		switch a.Key {
		case "sendonly":
			return DirSendOnly
		case "recvonly":
			return DirRecvOnly
		case "inactive":
			return DirInactive
		case "sendrecv":
			return DirSendRecv
		}
	}
	return DirSendRecv
}

// CandidateType is the ICE candidate type per RFC 8445 §4.1.1.
type CandidateType string

const (
	CandidateHost  CandidateType = "host"
	CandidateSrflx CandidateType = "srflx"
	CandidateRelay CandidateType = "relay"
)

// Candidate is one parsed/serialized a=candidate line.
type Candidate struct {
	Foundation string
	Component  int
	Protocol   string // "udp" or "tcp"
	Priority   uint32
	IP         string
	Port       int
	Type       CandidateType
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %d %s %d %s %d typ %s",
		c.Foundation, c.Component, strings.ToUpper(c.Protocol), c.Priority, c.IP, c.Port, c.Type)
}

// ParseCandidate parses the value of an a=candidate line (without the
// "candidate:" prefix already stripped by the caller, or with it —
// both are accepted for convenience).
func ParseCandidate(value string) (Candidate, error) {
	value = strings.TrimPrefix(value, "candidate:")
	fields := strings.Fields(value)
	if len(fields) < 8 {
		return Candidate{}, fmt.Errorf("sdpcodec: malformed candidate %q", value)
	}
	component, err := strconv.Atoi(fields[1])
	if err != nil {
		return Candidate{}, fmt.Errorf("sdpcodec: bad candidate component: %w", err)
	}
	var priority uint64
	priority, err = strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Candidate{}, fmt.Errorf("sdpcodec: bad candidate priority: %w", err)
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return Candidate{}, fmt.Errorf("sdpcodec: bad candidate port: %w", err)
	}
	c := Candidate{
		Foundation: fields[0],
		Component:  component,
		Protocol:   strings.ToLower(fields[2]),
		Priority:   uint32(priority),
		IP:         fields[4],
		Port:       port,
	}
	for i := 6; i+1 < len(fields); i += 2 {
		if fields[i] == "typ" {
			c.Type = CandidateType(fields[i+1])
		}
	}
	return c, nil
}

// Codec is one rtpmap entry.
type Codec struct {
	PayloadType uint8
	Name        string
	ClockRate   uint32
	Channels    uint8 // 0 or 1 means unspecified/mono
}

func (c Codec) rtpmap() string {
	if c.Channels > 1 {
		return fmt.Sprintf("%d %s/%d/%d", c.PayloadType, c.Name, c.ClockRate, c.Channels)
	}
	return fmt.Sprintf("%d %s/%d", c.PayloadType, c.Name, c.ClockRate)
}

// MediaLine describes one m= section to emit.
type MediaLine struct {
	Kind      string // "audio" or "video"
	Port      int
	Codecs    []Codec
	Direction Direction
}

// OfferParams is everything Build needs to produce a local SDP body.
type OfferParams struct {
	LocalIP   string
	SessionID uint64 // 0 ⇒ Build derives it from the current time

	Audio MediaLine
	Video *MediaLine // nil ⇒ no video m-line

	// ICE fields; leave IceUfrag empty to omit all ICE attributes,
	// producing a direct-RTP-only offer (spec.md §4.4 RtpDirect mode).
	IceUfrag    string
	IcePwd      string
	Candidates  []Candidate
}

// Build renders params into an SDP offer/answer body: version 0, an
// origin carrying the bound local IPv4 and session id, one connection
// line, t=0 0, one audio m-line plus optional video, rtpmap and
// direction attributes, and — when IceUfrag is set — ICE
// ufrag/pwd/candidate lines, per spec.md §4.4.
func Build(p OfferParams) (string, error) {
	if p.LocalIP == "" {
		return "", fmt.Errorf("sdpcodec: LocalIP required")
	}
	sid := p.SessionID
	if sid == 0 {
		sid = uint64(time.Now().Unix())
	}

	sess := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sid,
			SessionVersion: sid,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: p.LocalIP,
		},
		SessionName: "-",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: p.LocalIP},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
	}

	audioMD, err := buildMediaDescription(p.Audio, p.IceUfrag, p.IcePwd, p.Candidates)
	if err != nil {
		return "", err
	}
	sess.MediaDescriptions = append(sess.MediaDescriptions, audioMD)

	if p.Video != nil {
		videoMD, err := buildMediaDescription(*p.Video, p.IceUfrag, p.IcePwd, p.Candidates)
		if err != nil {
			return "", err
		}
		sess.MediaDescriptions = append(sess.MediaDescriptions, videoMD)
	}

	raw, err := sess.Marshal()
	if err != nil {
		return "", fmt.Errorf("sdpcodec: marshal: %w", err)
	}
	return string(raw), nil
}

func buildMediaDescription(m MediaLine, ufrag, pwd string, candidates []Candidate) (*sdp.MediaDescription, error) {
	if len(m.Codecs) == 0 {
		return nil, fmt.Errorf("sdpcodec: media line %q needs at least one codec", m.Kind)
	}
	formats := make([]string, 0, len(m.Codecs))
	for _, c := range m.Codecs {
		formats = append(formats, strconv.Itoa(int(c.PayloadType)))
	}

	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   m.Kind,
			Port:    sdp.RangedPort{Value: m.Port},
			Protos:  []string{"RTP", "AVP"},
			Formats: formats,
		},
	}
	for _, c := range m.Codecs {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("rtpmap", c.rtpmap()))
	}
	md.Attributes = append(md.Attributes, sdp.NewPropertyAttribute(m.Direction.attrName()))

	if ufrag != "" {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("ice-ufrag", ufrag))
		md.Attributes = append(md.Attributes, sdp.NewAttribute("ice-pwd", pwd))
		for _, c := range candidates {
			md.Attributes = append(md.Attributes, sdp.NewAttribute("candidate", c.String()))
		}
	}
	return md, nil
}

// Parsed is everything agent/mediasession extract from a remote SDP.
type Parsed struct {
	ConnAddr string

	AudioPort   int
	AudioCodecs []Codec
	AudioDir    Direction

	VideoPort   int // 0 ⇒ no video m-line
	VideoCodecs []Codec
	VideoDir    Direction

	IceUfrag   string
	IcePwd     string
	Candidates []Candidate
}

// HasICE reports whether the remote SDP carries any of the ICE
// attributes the transport-mode decision in spec.md §4.4 and §8 item 7
// keys off: ice-ufrag, ice-pwd, or at least one candidate line.
func (p Parsed) HasICE() bool {
	return p.IceUfrag != "" || p.IcePwd != "" || len(p.Candidates) > 0
}

// Parse extracts peer connection address, per-m-line port and codec
// formats, ICE credentials, and candidate tuples from a raw SDP body.
func Parse(raw string) (Parsed, error) {
	var sess sdp.SessionDescription
	if err := sess.Unmarshal([]byte(raw)); err != nil {
		return Parsed{}, fmt.Errorf("sdpcodec: unmarshal: %w", err)
	}

	out := Parsed{}
	if sess.ConnectionInformation != nil && sess.ConnectionInformation.Address != nil {
		out.ConnAddr = sess.ConnectionInformation.Address.Address
	}

	for _, md := range sess.MediaDescriptions {
		connAddr := out.ConnAddr
		if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
			connAddr = md.ConnectionInformation.Address.Address
		}
		codecs := codecsFromMediaDescription(md)
		dir := directionFromAttrs(md.Attributes)
		ufrag, pwd, cands := iceFromAttrs(md.Attributes)
		if ufrag != "" {
			out.IceUfrag = ufrag
		}
		if pwd != "" {
			out.IcePwd = pwd
		}
		out.Candidates = append(out.Candidates, cands...)

		switch md.MediaName.Media {
		case "audio":
			out.AudioPort = md.MediaName.Port.Value
			out.AudioCodecs = codecs
			out.AudioDir = dir
			if out.ConnAddr == "" {
				out.ConnAddr = connAddr
			}
		case "video":
			out.VideoPort = md.MediaName.Port.Value
			out.VideoCodecs = codecs
			out.VideoDir = dir
		}
	}

	// Top-level session ICE attributes (some peers put ufrag/pwd at
	// session level rather than per-media).
	ufrag, pwd, cands := iceFromAttrs(sess.Attributes)
	if out.IceUfrag == "" {
		out.IceUfrag = ufrag
	}
	if out.IcePwd == "" {
		out.IcePwd = pwd
	}
	out.Candidates = append(out.Candidates, cands...)

	if out.AudioPort == 0 {
		return Parsed{}, fmt.Errorf("sdpcodec: no audio m-line found")
	}
	return out, nil
}

func codecsFromMediaDescription(md *sdp.MediaDescription) []Codec {
	rtpmaps := map[uint8]string{}
	for _, a := range md.Attributes {
		if a.Key != "rtpmap" {
			continue
		}
		fields := strings.SplitN(a.Value, " ", 2)
		if len(fields) != 2 {
			continue
		}
		pt, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		rtpmaps[uint8(pt)] = fields[1]
	}

	var codecs []Codec
	for _, f := range md.MediaName.Formats {
		pt, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		codec := Codec{PayloadType: uint8(pt)}
		if rtpmap, ok := rtpmaps[uint8(pt)]; ok {
			parts := strings.Split(rtpmap, "/")
			codec.Name = parts[0]
			if len(parts) > 1 {
				if cr, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
					codec.ClockRate = uint32(cr)
				}
			}
			if len(parts) > 2 {
				if ch, err := strconv.ParseUint(parts[2], 10, 8); err == nil {
					codec.Channels = uint8(ch)
				}
			}
		}
		codecs = append(codecs, codec)
	}
	return codecs
}

func iceFromAttrs(attrs []sdp.Attribute) (ufrag, pwd string, candidates []Candidate) {
	for _, a := range attrs {
		switch a.Key {
		case "ice-ufrag":
			ufrag = a.Value
		case "ice-pwd":
			pwd = a.Value
		case "candidate":
			if c, err := ParseCandidate(a.Value); err == nil {
				candidates = append(candidates, c)
			}
		}
	}
	return
}

// LocalIPv4 picks the first non-loopback IPv4 address on the host,
// used when no explicit bind address is configured. Returns
// "127.0.0.1" if none is found (single-host testing).
func LocalIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
