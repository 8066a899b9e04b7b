package media

import (
	"sort"

	"github.com/pion/rtp"
)

// jitterBuffer reorders RTP packets that arrive out of sequence. A
// packet that is next in sequence is released to the decoder at once;
// behind a sequence gap, packets are held until depth of them are
// queued and then released in order past the gap. It follows the
// buffering scheme in the teacher's
// pkg/media/jitter_buffer.go: a small ordered slide window keyed on
// sequence number rather than a playout clock.
type jitterBuffer struct {
	depth   int
	packets []*rtp.Packet
	started bool
	nextSeq uint16
}

func newJitterBuffer(depthMs, frameDurationMs int) *jitterBuffer {
	depth := depthMs / frameDurationMs
	if depth < 1 {
		depth = 1
	}
	return &jitterBuffer{depth: depth}
}

// push inserts pkt in sequence order. Packets older than the buffer's
// current playout point are dropped as too-late.
func (j *jitterBuffer) push(pkt *rtp.Packet) {
	if j.started && seqLess(pkt.SequenceNumber, j.nextSeq) {
		return
	}
	idx := sort.Search(len(j.packets), func(i int) bool {
		return !seqLess(j.packets[i].SequenceNumber, pkt.SequenceNumber)
	})
	if idx < len(j.packets) && j.packets[idx].SequenceNumber == pkt.SequenceNumber {
		return // duplicate
	}
	j.packets = append(j.packets, nil)
	copy(j.packets[idx+1:], j.packets[idx:])
	j.packets[idx] = pkt
}

// pop releases the next packet once the buffer has accumulated depth
// packets (or there is nothing left to wait for), or returns nil if
// playout should stall waiting for a missing packet.
func (j *jitterBuffer) pop() *rtp.Packet {
	if len(j.packets) == 0 {
		return nil
	}
	if len(j.packets) < j.depth && j.started {
		head := j.packets[0]
		if head.SequenceNumber != j.nextSeq {
			return nil
		}
	}
	head := j.packets[0]
	j.packets = j.packets[1:]
	j.started = true
	j.nextSeq = head.SequenceNumber + 1
	return head
}

func seqLess(a, b uint16) bool {
	return int16(a-b) < 0
}
