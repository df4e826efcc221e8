package packet

import (
	"bytes"
	"testing"
)

func decodeOne(t *testing.T, version byte, enc []byte) Packet {
	t.Helper()
	fr := &FrameReader{Version: version}
	pkt, n, err := fr.Next(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d of %d bytes", n, len(enc))
	}
	return pkt
}

func TestConnectRoundTrip(t *testing.T) {
	c := &Connect{
		FixedHeader:   FixedHeader{Version: VERSION500},
		ProtocolLevel: VERSION500,
		CleanStart:    true,
		KeepAlive:     60,
		Props:         &Properties{},
		ClientID:      "client-1",
		Will: &Will{
			Topic:   "dead",
			Payload: []byte("bye"),
			QoS:     1,
			Props:   &Properties{},
		},
		Username:    "alice",
		HasUsername: true,
	}
	enc := c.Encode()
	got, ok := decodeOne(t, VERSION500, enc).(*Connect)
	if !ok {
		t.Fatalf("decode returned %T", got)
	}
	if got.ClientID != c.ClientID || got.KeepAlive != c.KeepAlive || !got.CleanStart {
		t.Errorf("mismatch: %+v", got)
	}
	if got.Will == nil || got.Will.Topic != "dead" || !bytes.Equal(got.Will.Payload, []byte("bye")) {
		t.Errorf("will mismatch: %+v", got.Will)
	}
	if got.Username != "alice" || !got.HasUsername {
		t.Errorf("username mismatch: %+v", got)
	}
}

func TestPublishRoundTripQoS0(t *testing.T) {
	p := &Publish{
		FixedHeader: FixedHeader{Version: VERSION500, QoS: 0},
		Topic:       "a/b",
		Payload:     []byte{0xF1, 0xF2},
	}
	enc := p.Encode()
	got, ok := decodeOne(t, VERSION500, enc).(*Publish)
	if !ok {
		t.Fatalf("decode returned %T", got)
	}
	if got.Topic != "a/b" || !bytes.Equal(got.Payload, []byte{0xF1, 0xF2}) || got.PacketID != 0 {
		t.Errorf("mismatch: %+v", got)
	}
}

func TestPublishQoS1RequiresNonZeroPacketID(t *testing.T) {
	p := &Publish{
		FixedHeader: FixedHeader{Version: VERSION500, QoS: 1},
		Topic:       "a/b",
		PacketID:    0,
		Payload:     []byte("x"),
	}
	enc := p.Encode()
	_, _, err := (&FrameReader{Version: VERSION500}).Next(enc)
	if err != ErrPacketIDZero {
		t.Fatalf("got %v, want ErrPacketIDZero", err)
	}
}

func TestPublishRejectsWildcardTopic(t *testing.T) {
	p := &Publish{FixedHeader: FixedHeader{Version: VERSION500}, Topic: "a/+/c"}
	enc := p.Encode()
	_, _, err := (&FrameReader{Version: VERSION500}).Next(enc)
	if err != ErrProtocolViolationSurplusWildcard {
		t.Fatalf("got %v, want ErrProtocolViolationSurplusWildcard", err)
	}
}

func TestSubscribeSubAckRoundTrip(t *testing.T) {
	s := &Subscribe{
		FixedHeader: FixedHeader{Version: VERSION500},
		PacketID:    7,
		Props:       &Properties{},
		Filters: []SubscribeFilter{
			{Filter: "a/b/c", QoS: 0},
			{Filter: "a/+/c", QoS: 1},
		},
	}
	enc := s.Encode()
	got, ok := decodeOne(t, VERSION500, enc).(*Subscribe)
	if !ok {
		t.Fatalf("decode returned %T", got)
	}
	if len(got.Filters) != 2 || got.Filters[1].Filter != "a/+/c" || got.Filters[1].QoS != 1 {
		t.Errorf("filters mismatch: %+v", got.Filters)
	}

	ack := &SubAck{
		FixedHeader: FixedHeader{Version: VERSION500},
		PacketID:    7,
		Props:       &Properties{},
		ReasonCodes: []uint8{0, 1},
	}
	encAck := ack.Encode()
	gotAck, ok := decodeOne(t, VERSION500, encAck).(*SubAck)
	if !ok {
		t.Fatalf("decode returned %T", gotAck)
	}
	if len(gotAck.ReasonCodes) != 2 || gotAck.ReasonCodes[1] != 1 {
		t.Errorf("reason codes mismatch: %+v", gotAck.ReasonCodes)
	}
}

func TestPubAckMinimalFormOmitsReasonAndProps(t *testing.T) {
	a := &PubAck{ackBody{FixedHeader: FixedHeader{Version: VERSION500}, PacketID: 10, ReasonCode: uint8(CodeSuccess.Code)}}
	enc := a.Encode()
	if len(enc) != 4 {
		t.Fatalf("minimal PubAck should be 4 bytes (header+len+pid), got %d: %x", len(enc), enc)
	}
	got, ok := decodeOne(t, VERSION500, enc).(*PubAck)
	if !ok {
		t.Fatalf("decode returned %T", got)
	}
	if got.PacketID != 10 || got.ReasonCode != uint8(CodeSuccess.Code) {
		t.Errorf("mismatch: %+v", got)
	}
}

func TestConnAckV311HasNoProperties(t *testing.T) {
	c := &ConnAck{
		FixedHeader:    FixedHeader{Version: VERSION311},
		SessionPresent: true,
		ReasonCode:     0,
	}
	enc := c.Encode()
	if len(enc) != 4 {
		t.Fatalf("v3.1.1 ConnAck should be exactly 4 bytes, got %d: %x", len(enc), enc)
	}
	got, ok := decodeOne(t, VERSION311, enc).(*ConnAck)
	if !ok {
		t.Fatalf("decode returned %T", got)
	}
	if !got.SessionPresent {
		t.Errorf("SessionPresent not round-tripped")
	}
}
