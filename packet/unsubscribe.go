package packet

type Unsubscribe struct {
	FixedHeader

	PacketID uint16
	Props    *Properties
	Filters  []string
}

func (p *Unsubscribe) Kind() byte { return UNSUBSCRIBE }

func decodeUnsubscribe(fh FixedHeader, body []byte) (*Unsubscribe, error) {
	pid, n, err := DecodeUint16(body)
	if err != nil {
		return nil, ErrMalformedPacketID
	}
	if pid == 0 {
		return nil, ErrProtocolViolationNoPacketID
	}
	off := n

	u := &Unsubscribe{FixedHeader: fh, PacketID: pid}
	if hasProps(fh.Version) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		u.Props = props
		off += n
	}
	for off < len(body) {
		filter, n, err := DecodeString(body[off:])
		if err != nil {
			return nil, ErrMalformedTopic
		}
		off += n
		u.Filters = append(u.Filters, filter)
	}
	if len(u.Filters) == 0 {
		return nil, ErrProtocolViolationNoFilters
	}
	return u, nil
}

func (p *Unsubscribe) Encode() []byte {
	body := encodeUint16(p.PacketID)
	if hasProps(p.Version) {
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		body = append(body, props.Encode()...)
	}
	for _, f := range p.Filters {
		body = append(body, encodeString(f)...)
	}
	fh := p.FixedHeader
	fh.Kind = UNSUBSCRIBE
	fh.Dup, fh.QoS, fh.Retain = 0, 1, 0
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}

type UnsubAck struct {
	FixedHeader

	PacketID    uint16
	Props       *Properties
	ReasonCodes []uint8
}

func (p *UnsubAck) Kind() byte { return UNSUBACK }

func decodeUnsubAck(fh FixedHeader, body []byte) (*UnsubAck, error) {
	pid, n, err := DecodeUint16(body)
	if err != nil {
		return nil, ErrMalformedPacketID
	}
	off := n
	u := &UnsubAck{FixedHeader: fh, PacketID: pid}
	if hasProps(fh.Version) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		u.Props = props
		off += n
	}
	u.ReasonCodes = append([]byte(nil), body[off:]...)
	return u, nil
}

func (p *UnsubAck) Encode() []byte {
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
	fh.Kind = UNSUBACK
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}
