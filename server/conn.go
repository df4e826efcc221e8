package server

import (
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/golang-io/requests"

	"github.com/flowmesh/mqttbroker/packet"
	"github.com/flowmesh/mqttbroker/router"
)

const panicBufSize = 64 << 10

// conn is the server side of one MQTT connection: a read loop that
// feeds bytes to a packet.FrameReader and forwards decoded packets to
// the router, and a write loop that drains whatever the router hands
// back on outbound. Grounded on the teacher's conn.go, replacing its
// blocking packet.Unpack/inFight bookkeeping with the frame reader and
// the router's channel protocol.
type conn struct {
	srv        *Server
	rwc        net.Conn
	remoteAddr string

	clientID string
	version  byte

	outbound chan router.Outbound
	done     chan struct{}

	mu sync.Mutex // guards writes to rwc
}

func (s *Server) newConn(rwc net.Conn) *conn {
	return &conn{
		srv:      s,
		rwc:      rwc,
		outbound: make(chan router.Outbound, s.cfg.Router.OutboundBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *conn) serve() {
	if ra := c.rwc.RemoteAddr(); ra != nil {
		c.remoteAddr = ra.String()
	}
	log.Printf("mqtt: connection opened: remote=%s", c.remoteAddr)

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, panicBufSize)
			buf = buf[:runtime.Stack(buf, false)]
			log.Printf("mqtt: panic serving %s: %v\n%s", c.remoteAddr, r, buf)
		}
		c.cleanup()
	}()

	if tlsConn, ok := c.rwc.(*tls.Conn); ok {
		deadline := time.Now().Add(10 * time.Second)
		_ = c.rwc.SetDeadline(deadline)
		if err := tlsConn.Handshake(); err != nil {
			log.Printf("mqtt: TLS handshake error from %s: %v", c.remoteAddr, err)
			return
		}
		_ = c.rwc.SetDeadline(time.Time{})
	}

	fr := &packet.FrameReader{MaxPayloadSize: uint32(c.srv.cfg.Router.MaxPayloadSize)}
	buf := make([]byte, 0, 4096)
	reserve := 4
	readBuf := make([]byte, 4096)
	connected := false

	for {
		for {
			pkt, n, err := fr.Next(buf)
			if err != nil {
				var sr *packet.ShortRead
				if errors.As(err, &sr) {
					reserve = sr.ReserveHint
					break
				}
				log.Printf("mqtt: decode error from %s: %v", c.remoteAddr, err)
				return
			}
			c.srv.metrics.PacketsReceived.Inc()
			buf = buf[n:]

			if !connected {
				cn, ok := pkt.(*packet.Connect)
				if !ok {
					log.Printf("mqtt: first packet from %s was not CONNECT", c.remoteAddr)
					return
				}
				if !c.handleConnect(cn) {
					return
				}
				fr.Version = c.version
				connected = true
				continue
			}
			c.handlePacket(pkt)
		}

		if len(readBuf) < reserve {
			readBuf = make([]byte, reserve)
		}
		n, err := c.rwc.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
			c.srv.metrics.BytesReceived.Add(float64(n))
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("mqtt: read error from %s: %v", c.remoteAddr, err)
			}
			return
		}
	}
}

// handleConnect authenticates the CONNECT, starts the write loop, and
// forwards the connect to the router. It returns false if the
// connection should be torn down immediately (bad credentials). An
// unsupported protocol version never reaches it: decoding the CONNECT
// already fails.
func (c *conn) handleConnect(cn *packet.Connect) bool {
	c.version = cn.ProtocolLevel
	reason := c.authenticate(cn)

	if reason.Code != 0 {
		ack := &packet.ConnAck{FixedHeader: packet.FixedHeader{Version: c.version}, ReasonCode: reason.Code}
		c.write(ack.Encode())
		log.Printf("mqtt: auth failed for client=%s remote=%s: %s", cn.ClientID, c.remoteAddr, reason.Reason)
		return false
	}

	c.clientID = cn.ClientID
	if c.clientID == "" {
		c.clientID = "mqtt-" + requests.GenId()
	}
	go c.writeLoop()

	c.srv.router.Inbound() <- router.Inbound{
		ClientID: c.clientID,
		Connect: &router.ConnectMsg{
			CleanSession: cn.CleanStart,
			Will:         cn.Will,
			Outbound:     c.outbound,
		},
	}
	log.Printf("mqtt: client connected: id=%s remote=%s version=%d", c.clientID, c.remoteAddr, c.version)
	return true
}

// authenticate mirrors the teacher's CONFIG.GetAuth lookup, returning
// the reason code to place in the CONNACK (CodeSuccess on success).
func (c *conn) authenticate(cn *packet.Connect) packet.ReasonCode {
	password, ok := c.srv.cfg.GetAuth(cn.Username)
	if !ok || password != string(cn.Password) {
		if c.version == packet.VERSION500 {
			return packet.ErrBadUsernameOrPassword
		}
		return packet.ErrMalformedUsernameOrPassword
	}
	return packet.CodeSuccess
}

func (c *conn) handlePacket(pkt packet.Packet) {
	switch p := pkt.(type) {
	case *packet.PingReq:
		c.outbound <- router.AckPacket{Packet: &packet.PingResp{FixedHeader: packet.FixedHeader{Version: c.version}}}
	case *packet.Disconnect:
		c.srv.router.Inbound() <- router.Inbound{ClientID: c.clientID, Packet: p}
		_ = c.rwc.Close()
	default:
		c.srv.router.Inbound() <- router.Inbound{ClientID: c.clientID, Packet: pkt}
	}
}

// writeLoop drains whatever the router (or handlePacket's local
// PINGRESP shortcut) places on outbound until done is closed.
func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case out := <-c.outbound:
			c.writeOutbound(out)
		}
	}
}

func (c *conn) writeOutbound(out router.Outbound) {
	switch o := out.(type) {
	case router.ConnAckReply:
		ack := &packet.ConnAck{
			FixedHeader:    packet.FixedHeader{Version: c.version},
			SessionPresent: o.SessionPresent,
			ReasonCode:     uint8(packet.CodeSuccess.Code),
		}
		c.write(ack.Encode())
		for _, p := range o.Pending {
			c.write(p.Encode())
		}
	case router.PublishBatch:
		for _, p := range o.Publishes {
			c.write(p.Encode())
		}
	case router.AckPacket:
		c.write(o.Packet.Encode())
	case router.SessionTakenOver:
		d := &packet.Disconnect{FixedHeader: packet.FixedHeader{Version: c.version}, ReasonCode: uint8(packet.ErrSessionTakenOver.Code)}
		c.write(d.Encode())
		_ = c.rwc.Close()
	}
}

func (c *conn) write(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.rwc.Write(b)
	if err != nil {
		log.Printf("mqtt: write error to %s: %v", c.remoteAddr, err)
		return
	}
	c.srv.metrics.PacketsSent.Inc()
	c.srv.metrics.BytesSent.Add(float64(n))
}

func (c *conn) cleanup() {
	close(c.done)
	_ = c.rwc.Close()
	if c.clientID != "" {
		c.srv.router.Inbound() <- router.Inbound{ClientID: c.clientID, Death: true}
	}
	log.Printf("mqtt: connection closed: id=%s remote=%s", c.clientID, c.remoteAddr)
}
