package router

import "github.com/flowmesh/mqttbroker/packet"

// Session is the part of a connection's state that survives across the
// active/inactive boundary: in-flight QoS1/2 bookkeeping, the will
// message, clean-session flag and the next packet id to hand out.
// Factored out of ActiveConnection/InactiveConnection so it can move
// between the two intact on disconnect/reconnect.
type Session struct {
	ClientID     string
	CleanSession bool
	Will         *packet.Will

	nextPacketID uint16
	// InFlight holds QoS1/2 publishes the broker has sent but not yet
	// had acknowledged, keyed by the packet id assigned on send. Only
	// PUBREC/PUBREL/PUBCOMP syntactic bookkeeping is tracked (§9 open
	// question, resolved: full exactly-once dedup across reconnects is
	// out of scope).
	InFlight map[uint16]*packet.Publish
	// AwaitingPubRel holds packet ids of QoS2 publishes sent by the
	// broker that the peer has PUBRECed: the router answers with PUBREL
	// and keeps the id here until the peer's PUBCOMP arrives. Inbound
	// QoS2 publishes are not recorded here.
	AwaitingPubRel map[uint16]bool
}

func newSession(clientID string, clean bool, will *packet.Will) *Session {
	return &Session{
		ClientID:       clientID,
		CleanSession:   clean,
		Will:           will,
		nextPacketID:   1,
		InFlight:       make(map[uint16]*packet.Publish),
		AwaitingPubRel: make(map[uint16]bool),
	}
}

// AllocatePacketID returns the next packet id, cycling 1..65535 (0 is
// never valid on the wire).
func (s *Session) AllocatePacketID() uint16 {
	id := s.nextPacketID
	if s.nextPacketID == 0xFFFF {
		s.nextPacketID = 1
	} else {
		s.nextPacketID++
	}
	return id
}
