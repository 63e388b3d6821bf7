package transport

import (
	"encoding/base64"
	"strings"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/pion/rtp"
)

var startCode = []byte{0, 0, 0, 1}

// H264 NAL unit types.
const (
	nalIDR   = 5
	nalSPS   = 7
	nalPPS   = 8
	nalSTAPA = 24
	nalFUA   = 28
)

// accessUnitAssembler depacketizes H264 RTP into Annex-B access units, one
// per marker bit. SPS/PPS from the codec's fmtp line are injected before
// every IDR that does not carry its own parameter sets.
type accessUnitAssembler struct {
	emit     func(au []byte, timestamp uint32)
	sps, pps []byte

	buf    []byte
	hasPS  bool // SPS or PPS seen in the current access unit
	inFU   bool // inside an FU-A whose start was seen
	broken bool // a fragment went missing, drop the unit
	seq    uint16
	seqOK  bool
}

func newAccessUnitAssembler(codec *core.Codec, emit func(au []byte, timestamp uint32)) *accessUnitAssembler {
	sps, pps := parseSpsPps(codec.FmtpLine)
	return &accessUnitAssembler{emit: emit, sps: sps, pps: pps}
}

func (a *accessUnitAssembler) handlePacket(packet *rtp.Packet) {
	if a.seqOK && packet.SequenceNumber != a.seq+1 && a.inFU {
		a.broken = true
	}
	a.seq, a.seqOK = packet.SequenceNumber, true

	if len(packet.Payload) > 0 {
		a.depacketize(packet.Payload)
	}

	if packet.Marker {
		if len(a.buf) > 0 && !a.broken {
			au := make([]byte, len(a.buf))
			copy(au, a.buf)
			a.emit(au, packet.Timestamp)
		}
		a.reset()
	}
}

func (a *accessUnitAssembler) depacketize(payload []byte) {
	switch nalType := payload[0] & 0x1F; nalType {
	case nalSTAPA:
		offset := 1
		for offset+2 <= len(payload) {
			size := int(payload[offset])<<8 | int(payload[offset+1])
			offset += 2
			if size == 0 || offset+size > len(payload) {
				return
			}
			a.appendNAL(payload[offset : offset+size])
			offset += size
		}
	case nalFUA:
		if len(payload) < 2 {
			return
		}
		fuHeader := payload[1]
		if fuHeader&0x80 != 0 {
			header := payload[0]&0xE0 | fuHeader&0x1F
			a.beginNAL(header)
			a.buf = append(a.buf, payload[2:]...)
			a.inFU = true
			return
		}
		if !a.inFU {
			// continuation without a start
			a.broken = true
			return
		}
		a.buf = append(a.buf, payload[2:]...)
		if fuHeader&0x40 != 0 {
			a.inFU = false
		}
	default:
		a.appendNAL(payload)
	}
}

func (a *accessUnitAssembler) appendNAL(nal []byte) {
	a.beginNAL(nal[0])
	a.buf = append(a.buf, nal[1:]...)
}

// beginNAL writes a start code and NAL header, injecting parameter sets
// before an IDR slice when needed.
func (a *accessUnitAssembler) beginNAL(header byte) {
	switch header & 0x1F {
	case nalSPS, nalPPS:
		a.hasPS = true
	case nalIDR:
		if !a.hasPS {
			a.injectParameterSets()
		}
	}
	a.buf = append(a.buf, startCode...)
	a.buf = append(a.buf, header)
}

func (a *accessUnitAssembler) injectParameterSets() {
	for _, ps := range [][]byte{a.sps, a.pps} {
		if len(ps) > 0 {
			a.buf = append(a.buf, startCode...)
			a.buf = append(a.buf, ps...)
		}
	}
	a.hasPS = true
}

func (a *accessUnitAssembler) reset() {
	a.buf = a.buf[:0]
	a.hasPS = false
	a.inFU = false
	a.broken = false
}

// parseSpsPps extracts SPS and PPS from the codec's fmtp line.
func parseSpsPps(fmtpLine string) (sps, pps []byte) {
	const prefix = "sprop-parameter-sets="

	idx := strings.Index(fmtpLine, prefix)
	if idx < 0 {
		return nil, nil
	}

	value := fmtpLine[idx+len(prefix):]
	if semi := strings.Index(value, ";"); semi >= 0 {
		value = value[:semi]
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}

	sps, _ = base64.StdEncoding.DecodeString(parts[0])
	pps, _ = base64.StdEncoding.DecodeString(parts[1])
	return sps, pps
}
