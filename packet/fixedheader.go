package packet

import "fmt"

// FixedHeader is the first 2-5 bytes of every MQTT control packet: a
// type+flags byte followed by the variable-byte remaining length.
type FixedHeader struct {
	Version byte // carried alongside, not on the wire: selects v3.1.1 vs v5.0 framing for the body

	Kind   byte
	Dup    uint8
	QoS    uint8
	Retain uint8

	RemainingLength uint32
}

func (fh FixedHeader) String() string {
	return fmt.Sprintf("%s: len=%d", Kind[fh.Kind], fh.RemainingLength)
}

// checkFlags enforces the fixed flag bits MQTT mandates per packet type
// (MQTT-2.2.2-1/2): PUBLISH carries real Dup/QoS/Retain bits, PUBREL/
// SUBSCRIBE/UNSUBSCRIBE require exactly 0b0010, everything else requires
// all-zero flags.
func checkFlags(kind, flagsByte byte) (dup, qos, retain uint8, err error) {
	dup = flagsByte & 0b1000 >> 3
	qos = flagsByte & 0b0110 >> 1
	retain = flagsByte & 0b0001

	switch kind {
	case PUBLISH:
		if qos > 2 {
			return 0, 0, 0, ErrProtocolViolationQosOutOfRange
		}
	case PUBREL, SUBSCRIBE, UNSUBSCRIBE:
		if dup != 0 || qos != 1 || retain != 0 {
			return 0, 0, 0, ErrMalformedFlags
		}
	default:
		if dup != 0 || qos != 0 || retain != 0 {
			return 0, 0, 0, ErrMalformedFlags
		}
	}
	return dup, qos, retain, nil
}

func encodeFlagsByte(kind, dup, qos, retain byte) byte {
	return kind<<4 | dup<<3 | qos<<1 | retain
}

func (fh FixedHeader) encode() []byte {
	b := make([]byte, 1, 6)
	b[0] = encodeFlagsByte(fh.Kind, fh.Dup, fh.QoS, fh.Retain)
	return append(b, EncodeVarByte(fh.RemainingLength)...)
}
