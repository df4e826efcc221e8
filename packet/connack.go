package packet

// ConnAck acknowledges a Connect. remaining_len must be >= 2; a v3.1.1
// ConnAck is exactly 2 bytes (flags, return code) with no properties.
type ConnAck struct {
	FixedHeader

	SessionPresent bool
	ReasonCode     uint8
	Props          *Properties
}

func (p *ConnAck) Kind() byte { return CONNACK }

func decodeConnAck(fh FixedHeader, body []byte) (*ConnAck, error) {
	if len(body) < 2 {
		return nil, errMalformedConnAck
	}
	c := &ConnAck{
		FixedHeader:    fh,
		SessionPresent: body[0]&0x01 != 0,
		ReasonCode:     body[1],
	}
	off := 2
	if hasProps(fh.Version) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		c.Props = props
		off += n
	}
	return c, nil
}

func (p *ConnAck) Encode() []byte {
	body := make([]byte, 2)
	if p.SessionPresent {
		body[0] = 0x01
	}
	body[1] = p.ReasonCode
	if hasProps(p.Version) {
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		body = append(body, props.Encode()...)
	}
	fh := p.FixedHeader
	fh.Kind = CONNACK
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}

var errMalformedConnAck = ReasonCode{Code: 0x81, Reason: "malformed packet: connack too short"}
