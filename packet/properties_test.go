package packet

import "testing"

func TestPropertiesRoundTrip(t *testing.T) {
	p := &Properties{}
	p.MessageExpiryInterval = 3600
	p.set(PresMessageExpiryInterval)
	p.ContentType = "application/json"
	p.CorrelationData = []byte{0x01, 0x02}
	p.set(PresCorrelationData)
	p.UserProperties = []UserProperty{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}

	enc := p.Encode()
	got, n, err := DecodeProperties(enc)
	if err != nil {
		t.Fatalf("DecodeProperties: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if got.MessageExpiryInterval != 3600 || !got.has(PresMessageExpiryInterval) {
		t.Errorf("MessageExpiryInterval not round-tripped: %+v", got)
	}
	if got.ContentType != "application/json" {
		t.Errorf("ContentType = %q", got.ContentType)
	}
	if len(got.UserProperties) != 2 || got.UserProperties[0].Name != "a" {
		t.Errorf("UserProperties = %+v", got.UserProperties)
	}
}

func TestPropertiesEmptyBlock(t *testing.T) {
	p := &Properties{}
	enc := p.Encode()
	if len(enc) != 1 || enc[0] != 0 {
		t.Fatalf("empty properties should encode as a single zero length byte, got %v", enc)
	}
	got, n, err := DecodeProperties(enc)
	if err != nil {
		t.Fatalf("DecodeProperties: %v", err)
	}
	if n != 1 || got.Presence != 0 {
		t.Fatalf("got n=%d presence=%d", n, got.Presence)
	}
}

func TestPropertiesUnknownIdentifier(t *testing.T) {
	// length=2, identifier 0x06 doesn't exist in the table, one value byte.
	buf := []byte{2, 0x06, 0x00}
	_, _, err := DecodeProperties(buf)
	if err != ErrInvalidProperty {
		t.Fatalf("got %v, want ErrInvalidProperty", err)
	}
}
