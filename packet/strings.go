package packet

import "unicode/utf8"

// DecodeString reads a length-prefixed UTF-8 string (MQTT "UTF-8 encoded
// string") from the front of buf: a 2-byte big-endian length then that
// many bytes. It validates UTF-8 and fails with ErrTopicNotUtf8 rather
// than silently accepting invalid bytes.
func DecodeString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, ErrBoundaryCrossed
	}
	l := int(buf[0])<<8 | int(buf[1])
	if len(buf) < 2+l {
		return "", 0, ErrBoundaryCrossed
	}
	s := buf[2 : 2+l]
	if !utf8.Valid(s) {
		return "", 0, ErrTopicNotUtf8
	}
	return string(s), 2 + l, nil
}

// DecodeBinary reads length-prefixed opaque bytes (no UTF-8 validation).
func DecodeBinary(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrBoundaryCrossed
	}
	l := int(buf[0])<<8 | int(buf[1])
	if len(buf) < 2+l {
		return nil, 0, ErrBoundaryCrossed
	}
	out := make([]byte, l)
	copy(out, buf[2:2+l])
	return out, 2 + l, nil
}

// DecodeStringPair reads a UTF-8 pair: two back-to-back UTF-8 strings
// (used only by user_property).
func DecodeStringPair(buf []byte) (name, value string, n int, err error) {
	name, n1, err := DecodeString(buf)
	if err != nil {
		return "", "", 0, err
	}
	value, n2, err := DecodeString(buf[n1:])
	if err != nil {
		return "", "", 0, err
	}
	return name, value, n1 + n2, nil
}

func encodeString(s string) []byte {
	b := make([]byte, 2, 2+len(s))
	b[0] = byte(len(s) >> 8)
	b[1] = byte(len(s))
	return append(b, s...)
}

func encodeBinary(p []byte) []byte {
	b := make([]byte, 2, 2+len(p))
	b[0] = byte(len(p) >> 8)
	b[1] = byte(len(p))
	return append(b, p...)
}

func encodeStringPair(name, value string) []byte {
	b := encodeString(name)
	return append(b, encodeString(value)...)
}
