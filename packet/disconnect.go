package packet

// Disconnect may be sent by either side in v5.0 with an optional reason
// code and properties; v3.1.1 disconnects carry neither (remaining_len
// is always 0), so the frame reader never calls decodeDisconnect for a
// v3.1.1 connection.
type Disconnect struct {
	FixedHeader

	ReasonCode uint8
	Props      *Properties
}

func (p *Disconnect) Kind() byte { return DISCONNECT }

func decodeDisconnect(fh FixedHeader, body []byte) (*Disconnect, error) {
	d := &Disconnect{FixedHeader: fh, ReasonCode: uint8(CodeDisconnect.Code)}
	if len(body) == 0 {
		return d, nil
	}
	d.ReasonCode = body[0]
	if len(body) > 1 && hasProps(fh.Version) {
		props, _, err := DecodeProperties(body[1:])
		if err != nil {
			return nil, err
		}
		d.Props = props
	}
	return d, nil
}

func (p *Disconnect) Encode() []byte {
	var body []byte
	if p.ReasonCode != uint8(CodeDisconnect.Code) || p.Props != nil {
		body = append(body, p.ReasonCode)
		if hasProps(p.Version) {
			props := p.Props
			if props == nil {
				props = &Properties{}
			}
			body = append(body, props.Encode()...)
		}
	}
	fh := p.FixedHeader
	fh.Kind = DISCONNECT
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}
