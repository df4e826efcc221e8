package packet

// ackBody is the shared shape of PubAck, PubRec, PubRel and PubComp:
// packet id, then (when remaining_len > 2) a reason code and property
// block. remaining_len == 2 is the minimal v5.0 form, implying
// ReasonCode == CodeSuccess and no properties — and the only form
// v3.1.1 ever uses.
type ackBody struct {
	FixedHeader

	PacketID   uint16
	ReasonCode uint8
	Props      *Properties
}

func decodeAckBody(fh FixedHeader, body []byte) (ackBody, error) {
	if len(body) < 2 {
		return ackBody{}, ErrMalformedPacketID
	}
	pid, n, err := DecodeUint16(body)
	if err != nil {
		return ackBody{}, ErrMalformedPacketID
	}
	if pid == 0 {
		return ackBody{}, ErrPacketIDZero
	}
	a := ackBody{FixedHeader: fh, PacketID: pid, ReasonCode: uint8(CodeSuccess.Code)}
	off := n
	if fh.RemainingLength > 2 {
		if off >= len(body) {
			return ackBody{}, ErrMalformedReasonCode
		}
		a.ReasonCode = body[off]
		off++
		if hasProps(fh.Version) && fh.RemainingLength > 3 {
			props, _, err := DecodeProperties(body[off:])
			if err != nil {
				return ackBody{}, err
			}
			a.Props = props
		}
	}
	return a, nil
}

func (a ackBody) encodeBody() []byte {
	if a.ReasonCode == uint8(CodeSuccess.Code) && a.Props == nil {
		return encodeUint16(a.PacketID)
	}
	b := encodeUint16(a.PacketID)
	b = append(b, a.ReasonCode)
	if hasProps(a.Version) {
		props := a.Props
		if props == nil {
			props = &Properties{}
		}
		b = append(b, props.Encode()...)
	}
	return b
}

type PubAck struct{ ackBody }
type PubRec struct{ ackBody }
type PubRel struct{ ackBody }
type PubComp struct{ ackBody }

func (p *PubAck) Kind() byte  { return PUBACK }
func (p *PubRec) Kind() byte  { return PUBREC }
func (p *PubRel) Kind() byte  { return PUBREL }
func (p *PubComp) Kind() byte { return PUBCOMP }

func (p *PubAck) Encode() []byte  { return encodeAck(p.ackBody, PUBACK) }
func (p *PubRec) Encode() []byte  { return encodeAck(p.ackBody, PUBREC) }
func (p *PubRel) Encode() []byte  { return encodeAck(p.ackBody, PUBREL) }
func (p *PubComp) Encode() []byte { return encodeAck(p.ackBody, PUBCOMP) }

func encodeAck(a ackBody, kind byte) []byte {
	body := a.encodeBody()
	fh := a.FixedHeader
	fh.Kind = kind
	if kind == PUBREL {
		fh.Dup, fh.QoS, fh.Retain = 0, 1, 0
	}
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}

func decodePubAck(fh FixedHeader, body []byte) (*PubAck, error) {
	a, err := decodeAckBody(fh, body)
	if err != nil {
		return nil, err
	}
	return &PubAck{a}, nil
}

func decodePubRec(fh FixedHeader, body []byte) (*PubRec, error) {
	a, err := decodeAckBody(fh, body)
	if err != nil {
		return nil, err
	}
	return &PubRec{a}, nil
}

func decodePubRel(fh FixedHeader, body []byte) (*PubRel, error) {
	a, err := decodeAckBody(fh, body)
	if err != nil {
		return nil, err
	}
	return &PubRel{a}, nil
}

func decodePubComp(fh FixedHeader, body []byte) (*PubComp, error) {
	a, err := decodeAckBody(fh, body)
	if err != nil {
		return nil, err
	}
	return &PubComp{a}, nil
}
