package packet

import "testing"

func TestVarByteRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 268435455}
	for _, v := range values {
		enc := EncodeVarByte(v)
		got, n, err := DecodeVarByte(enc)
		if err != nil {
			t.Fatalf("DecodeVarByte(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
		if n != len(enc) {
			t.Fatalf("round trip %d: consumed %d, want %d", v, n, len(enc))
		}
	}
}

func TestVarByteMinimalLength(t *testing.T) {
	cases := map[uint32]int{
		0:         1,
		127:       1,
		128:       2,
		16383:     2,
		16384:     3,
		2097151:   3,
		2097152:   4,
		268435455: 4,
	}
	for v, want := range cases {
		if got := len(EncodeVarByte(v)); got != want {
			t.Errorf("EncodeVarByte(%d) length = %d, want %d", v, got, want)
		}
	}
}

func TestVarByteFifthContinuationByteIsMalformed(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	_, _, err := DecodeVarByte(buf)
	if err != ErrMalformedVariableByteInteger {
		t.Fatalf("got %v, want ErrMalformedVariableByteInteger", err)
	}
}

func TestVarByteShortBufferIsShortRead(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	_, _, err := DecodeVarByte(buf)
	sr, ok := err.(*ShortRead)
	if !ok {
		t.Fatalf("got %T, want *ShortRead", err)
	}
	if sr.ReserveHint <= 0 {
		t.Fatalf("ReserveHint = %d, want > 0", sr.ReserveHint)
	}
}

func TestDecodeStringRejectsInvalidUtf8(t *testing.T) {
	buf := []byte{0x00, 0x02, 0xFF, 0xFE}
	_, _, err := DecodeString(buf)
	if err != ErrTopicNotUtf8 {
		t.Fatalf("got %v, want ErrTopicNotUtf8", err)
	}
}

func TestDecodeStringBoundaryCrossed(t *testing.T) {
	buf := []byte{0x00, 0x05, 'h', 'i'}
	_, _, err := DecodeString(buf)
	if err != ErrBoundaryCrossed {
		t.Fatalf("got %v, want ErrBoundaryCrossed", err)
	}
}
