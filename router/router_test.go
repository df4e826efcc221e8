package router

import (
	"testing"

	"github.com/flowmesh/mqttbroker/metrics"
	"github.com/flowmesh/mqttbroker/packet"
)

func newTestRouter() *Router {
	return New(Config{SegmentSize: 1 << 20, SegmentsPerPartition: 10, BatchSize: 64, OutboundBufferSize: 8}, metrics.NewRouter())
}

func connectClient(r *Router, id string, clean bool) chan Outbound {
	out := make(chan Outbound, r.cfg.OutboundBufferSize)
	r.handleConnect(id, &ConnectMsg{CleanSession: clean, Outbound: out})
	<-out // consume the ConnAckReply
	return out
}

func TestConnectThenSubscribeThenFanOut(t *testing.T) {
	r := newTestRouter()
	out := connectClient(r, "sub-1", true)

	r.handlePacket("sub-1", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "a/b", QoS: 1}}})
	if _, ok := (<-out).(AckPacket); !ok {
		t.Fatalf("expected a SubAck reply to the Subscribe")
	}

	r.handlePacket("pub-1-ghost", &packet.Publish{Topic: "a/b", Payload: []byte("hello")})
	// publish from an unregistered client id is dropped, so connect one first
	r.handleConnect("pub-1", &ConnectMsg{CleanSession: true, Outbound: make(chan Outbound, 8)})
	r.handlePacket("pub-1", &packet.Publish{Topic: "a/b", Payload: []byte("hello")})

	r.tick()

	select {
	case o := <-out:
		batch, ok := o.(PublishBatch)
		if !ok {
			t.Fatalf("expected PublishBatch, got %T", o)
		}
		if len(batch.Publishes) != 1 || string(batch.Publishes[0].Payload) != "hello" {
			t.Fatalf("unexpected batch: %+v", batch)
		}
	default:
		t.Fatalf("expected a fanned-out publish")
	}
}

func TestWildcardSubscriptionFanOut(t *testing.T) {
	r := newTestRouter()
	out := connectClient(r, "sub-1", true)
	r.handlePacket("sub-1", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "a/+", QoS: 0}}})

	connectClient(r, "pub-1", true)
	r.handlePacket("pub-1", &packet.Publish{Topic: "a/x", Payload: []byte("one")})
	r.handlePacket("pub-1", &packet.Publish{Topic: "a/y", Payload: []byte("two")})
	r.tick()

	got := 0
	for len(out) > 0 {
		o := <-out
		if batch, ok := o.(PublishBatch); ok {
			got += len(batch.Publishes)
		}
	}
	if got != 2 {
		t.Fatalf("expected 2 fanned-out messages across two topics, got %d", got)
	}
}

func TestRetainedMessageDeliveredOnSubscribe(t *testing.T) {
	r := newTestRouter()
	connectClient(r, "pub-1", true)
	retained := &packet.Publish{Topic: "status", Payload: []byte("online"), FixedHeader: packet.FixedHeader{Retain: 1}}
	r.handlePacket("pub-1", retained)

	out := connectClient(r, "sub-1", true)
	r.handlePacket("sub-1", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "status", QoS: 0}}})

	select {
	case o := <-out:
		batch, ok := o.(PublishBatch)
		if !ok || len(batch.Publishes) != 1 || string(batch.Publishes[0].Payload) != "online" {
			t.Fatalf("expected retained delivery, got %+v", o)
		}
	default:
		t.Fatalf("expected synchronous retained delivery on subscribe")
	}
}

func TestDeathPublishesWill(t *testing.T) {
	r := newTestRouter()
	subOut := connectClient(r, "sub-1", true)
	r.handlePacket("sub-1", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "last-will", QoS: 0}}})
	if _, ok := (<-subOut).(AckPacket); !ok {
		t.Fatalf("expected a SubAck reply to the Subscribe")
	}

	willOut := make(chan Outbound, 8)
	r.handleConnect("doomed", &ConnectMsg{
		CleanSession: true,
		Will:         &packet.Will{Topic: "last-will", Payload: []byte("goodbye")},
		Outbound:     willOut,
	})
	<-willOut

	r.handleDeath("doomed")
	r.tick()

	select {
	case o := <-subOut:
		batch, ok := o.(PublishBatch)
		if !ok || len(batch.Publishes) != 1 || string(batch.Publishes[0].Payload) != "goodbye" {
			t.Fatalf("expected will delivery, got %+v", o)
		}
	default:
		t.Fatalf("expected the will message to be fanned out")
	}
}

func TestQoS2HandshakeForwardsPubRelAndPubComp(t *testing.T) {
	r := newTestRouter()
	out := connectClient(r, "c1", true)

	r.handlePacket("c1", &packet.PubRec{})
	select {
	case o := <-out:
		ack, ok := o.(AckPacket)
		if !ok {
			t.Fatalf("expected AckPacket, got %T", o)
		}
		if _, ok := ack.Packet.(*packet.PubRel); !ok {
			t.Fatalf("expected PubRel in reply to PubRec, got %T", ack.Packet)
		}
	default:
		t.Fatalf("expected a PubRel reply")
	}

	r.handlePacket("c1", &packet.PubRel{})
	select {
	case o := <-out:
		ack, ok := o.(AckPacket)
		if !ok {
			t.Fatalf("expected AckPacket, got %T", o)
		}
		if _, ok := ack.Packet.(*packet.PubComp); !ok {
			t.Fatalf("expected PubComp in reply to PubRel, got %T", ack.Packet)
		}
	default:
		t.Fatalf("expected a PubComp reply")
	}
}

func TestDuplicateConnectTakesOverSession(t *testing.T) {
	r := newTestRouter()
	first := connectClient(r, "dup", false)

	second := make(chan Outbound, 8)
	r.handleConnect("dup", &ConnectMsg{CleanSession: false, Outbound: second})

	select {
	case o := <-first:
		if _, ok := o.(SessionTakenOver); !ok {
			t.Fatalf("expected SessionTakenOver on the displaced connection, got %T", o)
		}
	default:
		t.Fatalf("expected the first connection to be notified of takeover")
	}
	if _, ok := r.active["dup"]; !ok {
		t.Fatalf("expected the new connection to own the active session")
	}
}

func TestPersistentSessionSurvivesDisconnectAndResumes(t *testing.T) {
	r := newTestRouter()
	out := connectClient(r, "persist", false)
	r.handlePacket("persist", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "x", QoS: 0}}})
	r.handlePacket("persist", &packet.Disconnect{})

	if _, ok := r.active["persist"]; ok {
		t.Fatalf("expected connection removed from active set after disconnect")
	}
	if _, ok := r.inactive["persist"]; !ok {
		t.Fatalf("expected a persistent session to move to inactive")
	}
	_ = out

	resumed := make(chan Outbound, 8)
	r.handleConnect("persist", &ConnectMsg{CleanSession: false, Outbound: resumed})
	ack := (<-resumed).(ConnAckReply)
	if !ack.SessionPresent {
		t.Fatalf("expected SessionPresent=true on session resume")
	}
}

func TestSlowConsumerEvictedOnFullOutboundChannel(t *testing.T) {
	r := New(Config{SegmentSize: 1 << 20, SegmentsPerPartition: 10, BatchSize: 1, OutboundBufferSize: 2}, metrics.NewRouter())
	out := connectClient(r, "slow", true)
	r.handlePacket("slow", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "a", QoS: 0}}})
	// the SubAck just sent already occupies one of the two outbound slots
	connectClient(r, "pub", true)

	r.handlePacket("pub", &packet.Publish{Topic: "a", Payload: []byte("1")})
	r.tick() // fills the remaining outbound slot
	r.handlePacket("pub", &packet.Publish{Topic: "a", Payload: []byte("2")})
	r.tick() // try-send now fails because out is still full

	if _, ok := r.active["slow"]; ok {
		t.Fatalf("expected slow consumer to be evicted from the active set")
	}
	_ = out
}

func TestPublishAcknowledgedByQoS(t *testing.T) {
	r := newTestRouter()
	out := connectClient(r, "pub-1", true)

	r.handlePacket("pub-1", &packet.Publish{FixedHeader: packet.FixedHeader{QoS: 1}, Topic: "a", PacketID: 7})
	ack, ok := (<-out).(AckPacket)
	if !ok {
		t.Fatalf("expected an AckPacket for the QoS1 publish")
	}
	pa, ok := ack.Packet.(*packet.PubAck)
	if !ok || pa.PacketID != 7 {
		t.Fatalf("expected PubAck(7), got %+v", ack.Packet)
	}

	r.handlePacket("pub-1", &packet.Publish{FixedHeader: packet.FixedHeader{QoS: 2}, Topic: "a", PacketID: 8})
	ack, ok = (<-out).(AckPacket)
	if !ok {
		t.Fatalf("expected an AckPacket for the QoS2 publish")
	}
	pr, ok := ack.Packet.(*packet.PubRec)
	if !ok || pr.PacketID != 8 {
		t.Fatalf("expected PubRec(8), got %+v", ack.Packet)
	}

	r.handlePacket("pub-1", &packet.Publish{Topic: "a"})
	select {
	case o := <-out:
		t.Fatalf("expected no ack for a QoS0 publish, got %+v", o)
	default:
	}
}

func TestSubscribeAndUnsubscribeAcknowledged(t *testing.T) {
	r := newTestRouter()
	out := connectClient(r, "sub-1", true)

	r.handlePacket("sub-1", &packet.Subscribe{PacketID: 3, Filters: []packet.SubscribeFilter{{Filter: "a/b", QoS: 2}}})
	ack, ok := (<-out).(AckPacket)
	if !ok {
		t.Fatalf("expected an AckPacket for the Subscribe")
	}
	sa, ok := ack.Packet.(*packet.SubAck)
	if !ok || sa.PacketID != 3 || len(sa.ReasonCodes) != 1 || sa.ReasonCodes[0] != 2 {
		t.Fatalf("expected SubAck(3) granting QoS2, got %+v", ack.Packet)
	}

	r.handlePacket("sub-1", &packet.Unsubscribe{PacketID: 4, Filters: []string{"a/b"}})
	ack, ok = (<-out).(AckPacket)
	if !ok {
		t.Fatalf("expected an AckPacket for the Unsubscribe")
	}
	ua, ok := ack.Packet.(*packet.UnsubAck)
	if !ok || ua.PacketID != 4 || len(ua.ReasonCodes) != 1 {
		t.Fatalf("expected UnsubAck(4), got %+v", ack.Packet)
	}
}

func TestForwardedPublishGetsPerSubscriberPacketID(t *testing.T) {
	r := newTestRouter()
	subOut := connectClient(r, "sub-1", true)
	r.handlePacket("sub-1", &packet.Subscribe{Filters: []packet.SubscribeFilter{{Filter: "a/b", QoS: 2}}})
	if _, ok := (<-subOut).(AckPacket); !ok {
		t.Fatalf("expected a SubAck reply to the Subscribe")
	}

	connectClient(r, "pub-1", true)
	r.handlePacket("pub-1", &packet.Publish{FixedHeader: packet.FixedHeader{QoS: 2}, Topic: "a/b", PacketID: 99, Payload: []byte("hi")})
	r.tick()

	batch, ok := (<-subOut).(PublishBatch)
	if !ok || len(batch.Publishes) != 1 {
		t.Fatalf("expected one fanned-out publish, got %+v", batch)
	}
	delivered := batch.Publishes[0]
	if delivered.PacketID == 99 {
		t.Fatalf("expected a fresh per-subscriber packet id, not the publisher's own id")
	}
	sub := r.active["sub-1"]
	if _, tracked := sub.session.InFlight[delivered.PacketID]; !tracked {
		t.Fatalf("expected the delivered QoS2 publish to be tracked in the subscriber's InFlight table")
	}
}
