package packet

// Connect flags byte bits (MQTT 3.1.2.3): [7]=username [6]=password
// [5]=will retain [4:3]=will qos [2]=will flag [1]=clean session
// [0]=reserved, must be 0.
const (
	connectFlagUsername   = 1 << 7
	connectFlagPassword   = 1 << 6
	connectFlagWillRetain = 1 << 5
	connectFlagWillQoS    = 0b11 << 3
	connectFlagWillFlag   = 1 << 2
	connectFlagCleanStart = 1 << 1
)

// Will carries an MQTT last-will-and-testament, optionally with its own
// v5.0 property bag (delay interval, payload-format indicator, etc).
type Will struct {
	Topic   string
	Payload []byte
	QoS     uint8
	Retain  bool
	Props   *Properties
}

type Connect struct {
	FixedHeader

	ProtocolName  string
	ProtocolLevel byte
	CleanStart    bool
	KeepAlive     uint16

	Props *Properties

	ClientID string
	Will     *Will
	Username string
	Password []byte

	HasUsername bool
	HasPassword bool
}

func (p *Connect) Kind() byte { return CONNECT }

func decodeConnect(fh FixedHeader, body []byte) (*Connect, error) {
	name, n, err := DecodeString(body)
	if err != nil {
		return nil, ErrMalformedProtocolName
	}
	if name != "MQTT" {
		return nil, ErrProtocolViolationProtocolName
	}
	off := n

	if off >= len(body) {
		return nil, ErrMalformedProtocolVersion
	}
	level := body[off]
	off++
	if level != VERSION311 && level != VERSION500 {
		return nil, ErrUnsupportedProtocolVersion
	}
	fh.Version = level

	if off >= len(body) {
		return nil, ErrMalformedFlags
	}
	flags := body[off]
	off++
	if flags&0x01 != 0 {
		return nil, ErrProtocolViolationReservedBit
	}

	keepAlive, n, err := DecodeUint16(body[off:])
	if err != nil {
		return nil, ErrMalformedKeepalive
	}
	off += n

	c := &Connect{
		FixedHeader:   fh,
		ProtocolName:  name,
		ProtocolLevel: level,
		CleanStart:    flags&connectFlagCleanStart != 0,
		KeepAlive:     keepAlive,
	}

	if hasProps(level) {
		props, n, err := DecodeProperties(body[off:])
		if err != nil {
			return nil, err
		}
		c.Props = props
		off += n
	}

	clientID, n, err := DecodeString(body[off:])
	if err != nil {
		return nil, ErrMalformedPacketID
	}
	c.ClientID = clientID
	off += n

	if flags&connectFlagWillFlag != 0 {
		w := &Will{
			QoS:    (flags & connectFlagWillQoS) >> 3,
			Retain: flags&connectFlagWillRetain != 0,
		}
		if hasProps(level) {
			wprops, n, err := DecodeProperties(body[off:])
			if err != nil {
				return nil, ErrMalformedWillProperties
			}
			w.Props = wprops
			off += n
		}
		wtopic, n, err := DecodeString(body[off:])
		if err != nil {
			return nil, ErrMalformedWillTopic
		}
		w.Topic = wtopic
		off += n
		wpayload, n, err := DecodeBinary(body[off:])
		if err != nil {
			return nil, ErrMalformedWillPayload
		}
		w.Payload = wpayload
		off += n
		c.Will = w
	}

	if flags&connectFlagUsername != 0 {
		u, n, err := DecodeString(body[off:])
		if err != nil {
			return nil, ErrMalformedUsername
		}
		c.Username = u
		c.HasUsername = true
		off += n
	} else if flags&connectFlagPassword != 0 {
		return nil, ErrProtocolViolationFlagNoUsername
	}

	if flags&connectFlagPassword != 0 {
		pw, n, err := DecodeBinary(body[off:])
		if err != nil {
			return nil, ErrMalformedPassword
		}
		c.Password = pw
		c.HasPassword = true
		off += n
	}

	return c, nil
}

func (p *Connect) Encode() []byte {
	var body []byte
	body = append(body, encodeString("MQTT")...)
	body = append(body, p.ProtocolLevel)

	var flags byte
	if p.CleanStart {
		flags |= connectFlagCleanStart
	}
	if p.Will != nil {
		flags |= connectFlagWillFlag
		flags |= (p.Will.QoS << 3) & connectFlagWillQoS
		if p.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if p.HasUsername {
		flags |= connectFlagUsername
	}
	if p.HasPassword {
		flags |= connectFlagPassword
	}
	body = append(body, flags)
	body = append(body, encodeUint16(p.KeepAlive)...)

	if hasProps(p.Version) {
		props := p.Props
		if props == nil {
			props = &Properties{}
		}
		body = append(body, props.Encode()...)
	}

	body = append(body, encodeString(p.ClientID)...)

	if p.Will != nil {
		if hasProps(p.Version) {
			wprops := p.Will.Props
			if wprops == nil {
				wprops = &Properties{}
			}
			body = append(body, wprops.Encode()...)
		}
		body = append(body, encodeString(p.Will.Topic)...)
		body = append(body, encodeBinary(p.Will.Payload)...)
	}
	if p.HasUsername {
		body = append(body, encodeString(p.Username)...)
	}
	if p.HasPassword {
		body = append(body, encodeBinary(p.Password)...)
	}

	fh := p.FixedHeader
	fh.Kind = CONNECT
	fh.RemainingLength = uint32(len(body))
	out := fh.encode()
	return append(out, body...)
}
