package packet

import (
	"bytes"
	"strings"
	"sync"
)

// encodeBufPool reuses the scratch buffer Encode needs to size
// RemainingLength before it knows the fixed header's own length.
var encodeBufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// Publish carries a message on a topic. PacketID is present (and must be
// non-zero) iff QoS > 0 (§4.3, §8's PacketIdZero invariant).
type Publish struct {
	FixedHeader

	Topic    string
	PacketID uint16
	Props    *Properties
	Payload  []byte
}

func (p *Publish) Kind() byte { return PUBLISH }

func decodePublish(fh FixedHeader, body []byte) (*Publish, error) {
	topic, n, err := DecodeString(body)
	if err != nil {
		return nil, ErrMalformedTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return nil, ErrProtocolViolationSurplusWildcard
	}
	off := n

	p := &Publish{FixedHeader: fh, Topic: topic}

	if fh.QoS > 0 {
		pid, n, err := DecodeUint16(body[off:])
		if err != nil {
			return nil, ErrMalformedPacketID
		}
		if pid == 0 {
			return nil, ErrPacketIDZero
		}
		p.PacketID = pid
		off += n
	}

	if hasProps(fh.Version) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		p.Props = props
		off += n
	}

	p.Payload = append([]byte(nil), body[off:]...)
	return p, nil
}

func (p *Publish) Encode() []byte {
	buf := encodeBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer encodeBufPool.Put(buf)

	buf.Write(encodeString(p.Topic))
	if p.QoS > 0 {
		buf.Write(encodeUint16(p.PacketID))
	}
	if hasProps(p.Version) {
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		buf.Write(props.Encode())
	}
	buf.Write(p.Payload)

	fh := p.FixedHeader
	fh.Kind = PUBLISH
	fh.RemainingLength = uint32(buf.Len())
	out := fh.encode()
	return append(out, buf.Bytes()...)
}
