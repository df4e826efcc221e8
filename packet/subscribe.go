package packet

// SubscribeFilter is one (topic_filter, options) pair in a Subscribe
// packet's payload. Only the QoS is modeled out of the options byte's
// low two bits; no-local/retain-as-published/retain-handling (v5.0
// bits 2-5) are accepted on the wire but not acted on by the router.
type SubscribeFilter struct {
	Filter string
	QoS    uint8
}

type Subscribe struct {
	FixedHeader

	PacketID uint16
	Props    *Properties
	Filters  []SubscribeFilter
}

func (p *Subscribe) Kind() byte { return SUBSCRIBE }

func decodeSubscribe(fh FixedHeader, body []byte) (*Subscribe, error) {
	pid, n, err := DecodeUint16(body)
	if err != nil {
		return nil, ErrMalformedPacketID
	}
	if pid == 0 {
		return nil, ErrProtocolViolationNoPacketID
	}
	off := n

	s := &Subscribe{FixedHeader: fh, PacketID: pid}
	if hasProps(fh.Version) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		s.Props = props
		off += n
	}

	for off < len(body) {
		filter, n, err := DecodeString(body[off:])
		if err != nil {
			return nil, ErrMalformedTopic
		}
		off += n
		if off >= len(body) {
			return nil, ErrMalformedQos
		}
		opts := body[off]
		off++
		s.Filters = append(s.Filters, SubscribeFilter{Filter: filter, QoS: opts & 0x03})
	}
	if len(s.Filters) == 0 {
		return nil, ErrProtocolViolationNoFilters
	}
	return s, nil
}

func (p *Subscribe) Encode() []byte {
	body := encodeUint16(p.PacketID)
	if hasProps(p.Version) {
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		body = append(body, props.Encode()...)
	}
	for _, f := range p.Filters {
		body = append(body, encodeString(f.Filter)...)
		body = append(body, f.QoS&0x03)
	}
	fh := p.FixedHeader
	fh.Kind = SUBSCRIBE
	fh.Dup, fh.QoS, fh.Retain = 0, 1, 0
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}

// SubAck carries one reason code per requested filter, in request order.
// A code with bit 7 set is a failure; otherwise the low two bits are the
// granted QoS.
type SubAck struct {
	FixedHeader

	PacketID    uint16
	Props       *Properties
	ReasonCodes []uint8
}

func (p *SubAck) Kind() byte { return SUBACK }

func decodeSubAck(fh FixedHeader, body []byte) (*SubAck, error) {
	pid, n, err := DecodeUint16(body)
	if err != nil {
		return nil, ErrMalformedPacketID
	}
	off := n
	s := &SubAck{FixedHeader: fh, PacketID: pid}
	if hasProps(fh.Version) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		s.Props = props
		off += n
	}
	s.ReasonCodes = append([]byte(nil), body[off:]...)
	return s, nil
}

func (p *SubAck) Encode() []byte {
	body := encodeUint16(p.PacketID)
	if hasProps(p.Version) {
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		body = append(body, props.Encode()...)
	}
	body = append(body, p.ReasonCodes...)
	fh := p.FixedHeader
	fh.Kind = SUBACK
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}
