package router

import (
	"log"
	"time"

	"github.com/flowmesh/mqttbroker/metrics"
	"github.com/flowmesh/mqttbroker/packet"
)

// Outbound is whatever the router hands back to a connection's I/O loop
// over its bounded outbound channel.
type Outbound interface{ outboundMarker() }

// ConnAckReply answers a Connect: whether a prior session was resumed,
// and (for a resumed persistent session) the inactive record's
// pendingQueue. Nothing in the router appends to that queue, so Pending
// is always empty; publishes made while a persistent session was
// inactive reach it through its kept subscription cursors on later
// ticks instead.
type ConnAckReply struct {
	SessionPresent bool
	Pending        []*packet.Publish
}

// PublishBatch is a fan-out delivery of one or more publishes for a
// single subscription.
type PublishBatch struct{ Publishes []*packet.Publish }

// AckPacket forwards a single protocol packet verbatim (PubRel emitted
// in reply to PubRec, PubComp in reply to PubRel, SubAck, UnsubAck).
type AckPacket struct{ Packet packet.Packet }

// SessionTakenOver tells a displaced connection its client id has been
// claimed by a newer Connect (§9 resolved open question: takeover, not
// reject).
type SessionTakenOver struct{}

func (ConnAckReply) outboundMarker()     {}
func (PublishBatch) outboundMarker()     {}
func (AckPacket) outboundMarker()        {}
func (SessionTakenOver) outboundMarker() {}

// ConnectMsg is the payload of an inbound Connect router message.
type ConnectMsg struct {
	CleanSession bool
	Will         *packet.Will
	Outbound     chan<- Outbound
}

// Inbound is one message on the router's single inbound channel,
// addressed by client id per §3/§4.7.
type Inbound struct {
	ClientID string

	Connect *ConnectMsg
	Packet  packet.Packet
	Death   bool
}

type activeConnection struct {
	session  *Session
	outbound chan<- Outbound
	subs     *subscriptionIndex
}

type inactiveConnection struct {
	session      *Session
	subs         *subscriptionIndex
	pendingQueue []*packet.Publish
}

// Config bundles the tunables §6 calls out as configuration inputs with
// sensible defaults.
type Config struct {
	SegmentSize          int
	SegmentsPerPartition int
	TickInterval         time.Duration
	BatchSize            int
	OutboundBufferSize   int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.OutboundBufferSize <= 0 {
		c.OutboundBufferSize = 128
	}
	return c
}

// Router owns the commit log, the active/inactive connection maps and
// the subscription indices nested inside them. All of that state is
// touched only from within Run's goroutine — the single-writer loop
// described in §5, which is why none of it is guarded by a mutex.
type Router struct {
	cfg       Config
	commitLog CommitLog
	active    map[string]*activeConnection
	inactive  map[string]*inactiveConnection

	inbound chan Inbound
	metrics *metrics.Router
}

func New(cfg Config, m *metrics.Router) *Router {
	cfg = cfg.withDefaults()
	return &Router{
		cfg:       cfg,
		commitLog: *NewCommitLog(cfg.SegmentSize, cfg.SegmentsPerPartition),
		active:    make(map[string]*activeConnection),
		inactive:  make(map[string]*inactiveConnection),
		inbound:   make(chan Inbound, 1024),
		metrics:   m,
	}
}

// Inbound returns the channel connection I/O loops send (client_id,
// RouterMessage) pairs on.
func (r *Router) Inbound() chan<- Inbound { return r.inbound }

// Run is the single-writer event loop: select over the inbound channel
// and the fan-out tick timer, exiting when done is closed. It owns every
// mutation of commit log, active map, inactive map and subscription
// indices — no other goroutine may touch them.
func (r *Router) Run(done <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-r.inbound:
			r.handle(msg)
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Router) handle(msg Inbound) {
	switch {
	case msg.Connect != nil:
		r.handleConnect(msg.ClientID, msg.Connect)
	case msg.Death:
		r.handleDeath(msg.ClientID)
	case msg.Packet != nil:
		r.handlePacket(msg.ClientID, msg.Packet)
	}
}

func (r *Router) handleConnect(clientID string, cm *ConnectMsg) {
	if existing, ok := r.active[clientID]; ok {
		select {
		case existing.outbound <- SessionTakenOver{}:
		default:
		}
		delete(r.active, clientID)
	}

	if cm.CleanSession {
		delete(r.inactive, clientID)
		sess := newSession(clientID, true, cm.Will)
		r.active[clientID] = &activeConnection{session: sess, outbound: cm.Outbound, subs: newSubscriptionIndex()}
		cm.Outbound <- ConnAckReply{SessionPresent: false}
		r.metrics.ConnectionOpened()
		return
	}

	if ic, ok := r.inactive[clientID]; ok {
		delete(r.inactive, clientID)
		ic.session.Will = cm.Will
		r.active[clientID] = &activeConnection{session: ic.session, outbound: cm.Outbound, subs: ic.subs}
		cm.Outbound <- ConnAckReply{SessionPresent: true, Pending: ic.pendingQueue}
		r.metrics.ConnectionOpened()
		return
	}

	sess := newSession(clientID, false, cm.Will)
	r.active[clientID] = &activeConnection{session: sess, outbound: cm.Outbound, subs: newSubscriptionIndex()}
	cm.Outbound <- ConnAckReply{SessionPresent: false}
	r.metrics.ConnectionOpened()
}

func (r *Router) handleDeath(clientID string) {
	conn, ok := r.active[clientID]
	if !ok {
		return
	}
	if conn.session.Will != nil {
		r.publishWill(conn.session.Will)
	}
	r.deactivate(clientID, conn)
}

// publishWill converts a last-will into a Publish and appends it to the
// commit log exactly as a normal publish would be (§4.7 Death handling).
func (r *Router) publishWill(w *packet.Will) {
	var retain uint8
	if w.Retain {
		retain = 1
	}
	r.commitLog.Fill(&packet.Publish{
		FixedHeader: packet.FixedHeader{QoS: w.QoS, Retain: retain},
		Topic:       w.Topic,
		Payload:     w.Payload,
		Props:       w.Props,
	})
}

func (r *Router) deactivate(clientID string, conn *activeConnection) {
	delete(r.active, clientID)
	r.metrics.ConnectionClosed()
	if conn.session.CleanSession {
		return
	}
	r.inactive[clientID] = &inactiveConnection{
		session: conn.session,
		subs:    conn.subs,
	}
}

func (r *Router) handlePacket(clientID string, p packet.Packet) {
	conn, ok := r.active[clientID]
	if !ok {
		return
	}
	switch pk := p.(type) {
	case *packet.Publish:
		r.commitLog.Fill(pk)
		r.metrics.PublishAccepted()
		r.ackPublish(conn, pk)
	case *packet.Subscribe:
		r.handleSubscribe(conn, pk)
	case *packet.Unsubscribe:
		for _, f := range pk.Filters {
			conn.subs.Unsubscribe(f)
		}
		reply := &packet.UnsubAck{ReasonCodes: make([]uint8, len(pk.Filters))}
		reply.PacketID = pk.PacketID
		reply.Version = pk.Version
		conn.outbound <- AckPacket{Packet: reply}
	case *packet.Disconnect:
		r.deactivate(clientID, conn)
	case *packet.PubAck:
		delete(conn.session.InFlight, pk.PacketID)
	case *packet.PubRec:
		conn.session.AwaitingPubRel[pk.PacketID] = true
		reply := &packet.PubRel{}
		reply.PacketID = pk.PacketID
		reply.Version = pk.Version
		conn.outbound <- AckPacket{Packet: reply}
	case *packet.PubRel:
		reply := &packet.PubComp{}
		reply.PacketID = pk.PacketID
		reply.Version = pk.Version
		conn.outbound <- AckPacket{Packet: reply}
	case *packet.PubComp:
		delete(conn.session.InFlight, pk.PacketID)
		delete(conn.session.AwaitingPubRel, pk.PacketID)
	}
}

// ackPublish replies to an inbound Publish on the publisher's own
// connection: PubAck for QoS1, PubRec for QoS2 (§8 scenario 2). QoS0
// carries no acknowledgement.
func (r *Router) ackPublish(conn *activeConnection, pk *packet.Publish) {
	switch pk.QoS {
	case 1:
		reply := &packet.PubAck{}
		reply.PacketID = pk.PacketID
		reply.Version = pk.Version
		conn.outbound <- AckPacket{Packet: reply}
	case 2:
		reply := &packet.PubRec{}
		reply.PacketID = pk.PacketID
		reply.Version = pk.Version
		conn.outbound <- AckPacket{Packet: reply}
	}
}

func (r *Router) handleSubscribe(conn *activeConnection, pk *packet.Subscribe) {
	reasonCodes := make([]uint8, len(pk.Filters))
	for i, f := range pk.Filters {
		conn.subs.Subscribe(f.Filter, f.QoS)
		reasonCodes[i] = f.QoS
		r.emitRetained(conn, f.Filter, f.QoS)
	}
	reply := &packet.SubAck{ReasonCodes: reasonCodes}
	reply.PacketID = pk.PacketID
	reply.Version = pk.Version
	conn.outbound <- AckPacket{Packet: reply}
}

// emitRetained synchronously delivers any retained publish matching
// filter to the newly subscribing connection (§4.7's Subscribe branch),
// capped to subQoS exactly like a fan-out delivery.
func (r *Router) emitRetained(conn *activeConnection, filter string, subQoS uint8) {
	var matches []*packet.Publish
	for topic, pub := range r.commitLog.Retained {
		if topic == filter || matchTopic(filter, topic) {
			matches = append(matches, r.prepareDelivery(conn, subQoS, pub))
		}
	}
	if len(matches) == 0 {
		return
	}
	select {
	case conn.outbound <- PublishBatch{Publishes: matches}:
	default:
		r.evictSlow(conn)
	}
}

// tick is the periodic fan-out pass (§4.7): for every active
// connection's subscriptions, pull the next batch from the commit log
// and try-send it, advancing the cursor only on success.
func (r *Router) tick() {
	start := time.Now()
	defer func() { r.metrics.ObserveTick(time.Since(start)) }()
	for clientID, conn := range r.active {
		evicted := r.tickConn(conn)
		if evicted {
			r.evictSlow(conn)
			delete(r.active, clientID)
		}
	}
}

func (r *Router) tickConn(conn *activeConnection) (slow bool) {
	for _, sub := range conn.subs.concrete {
		if r.deliver(conn, sub) {
			return true
		}
	}
	for filter, sub := range conn.subs.wild {
		for topic := range r.commitLog.Partitions {
			if !matchTopic(filter, topic) {
				continue
			}
			if r.deliverTopic(conn, sub, topic) {
				return true
			}
		}
	}
	return false
}

func (r *Router) deliver(conn *activeConnection, sub *Subscription) (slow bool) {
	return r.deliverTopic(conn, sub, sub.Filter)
}

func (r *Router) deliverTopic(conn *activeConnection, sub *Subscription, topic string) (slow bool) {
	cur := sub.cursorFor(topic)
	batch, ok := r.commitLog.Get(topic, cur.SegmentID, cur.LogOffset, r.cfg.BatchSize)
	if !ok {
		return false
	}
	publishes := make([]*packet.Publish, len(batch.Publishes))
	for i, pub := range batch.Publishes {
		publishes[i] = r.prepareDelivery(conn, sub.QoS, pub)
	}
	select {
	case conn.outbound <- PublishBatch{Publishes: publishes}:
		cur.SegmentID = batch.SegmentID
		cur.LogOffset = batch.LogOffset + 1
		r.metrics.MessagesFannedOut(len(publishes))
		return false
	default:
		return true
	}
}

// prepareDelivery caps pub's QoS to the subscription's granted QoS
// (§4.6) and, for QoS>0, allocates a packet id scoped to this
// subscriber's own session — never the original publisher's id, since
// two subscribers delivering the same commit-log entry must not share
// an in-flight slot — tracking the copy in Session.InFlight until
// PubAck/PubComp retires it.
func (r *Router) prepareDelivery(conn *activeConnection, subQoS uint8, pub *packet.Publish) *packet.Publish {
	qos := pub.QoS
	if subQoS < qos {
		qos = subQoS
	}
	if qos == 0 && pub.QoS == 0 {
		return pub
	}
	out := *pub
	out.QoS = qos
	if qos == 0 {
		out.PacketID = 0
		return &out
	}
	out.PacketID = conn.session.AllocatePacketID()
	conn.session.InFlight[out.PacketID] = &out
	return &out
}

// evictSlow implements the slow-consumer policy (§4.7): a try-send
// failure removes the connection from active, demoting it to inactive
// if persistent.
func (r *Router) evictSlow(conn *activeConnection) {
	log.Printf("router: evicting slow consumer %s", conn.session.ClientID)
	r.metrics.SlowConsumerEvicted()
	r.deactivate(conn.session.ClientID, conn)
}
