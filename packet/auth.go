package packet

// Auth is v5.0-only (0xF is Reserved/forbidden in v3.1.1); the frame
// reader never routes a v3.1.1 connection's bytes here since no v3.1.1
// client can legally set the AUTH type nibble.
type Auth struct {
	FixedHeader

	ReasonCode uint8
	Props      *Properties
}

func (p *Auth) Kind() byte { return AUTH }

func decodeAuth(fh FixedHeader, body []byte) (*Auth, error) {
	a := &Auth{FixedHeader: fh, ReasonCode: uint8(CodeSuccess.Code)}
	if len(body) == 0 {
		return a, nil
	}
	a.ReasonCode = body[0]
	if len(body) > 1 {
		props, _, err := DecodeProperties(body[1:])
		if err != nil {
			return nil, err
		}
		a.Props = props
	}
	return a, nil
}

func (p *Auth) Encode() []byte {
	var body []byte
	if p.ReasonCode != uint8(CodeSuccess.Code) || p.Props != nil {
		body = append(body, p.ReasonCode)
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		body = append(body, props.Encode()...)
	}
	fh := p.FixedHeader
	fh.Kind = AUTH
	fh.RemainingLength = uint32(len(body))
	return append(fh.encode(), body...)
}
