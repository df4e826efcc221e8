// Package server adapts the teacher's net.Listener/conn plumbing to
// front the channel-based router: it owns the TCP/TLS/WebSocket
// listeners and per-connection read/write loops, translating MQTT
// packets to and from router.Inbound/router.Outbound messages.
package server

import (
	"crypto/tls"
	"errors"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/flowmesh/mqttbroker/config"
	"github.com/flowmesh/mqttbroker/metrics"
	"github.com/flowmesh/mqttbroker/router"
)

const shutdownPollIntervalMax = 500 * time.Millisecond

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("mqtt: server closed")

// Server owns a set of listeners and hands every accepted connection
// to the router. The zero value is not usable; construct with New.
type Server struct {
	cfg     *config.Config
	router  *router.Router
	metrics *metrics.Server

	inShutdown atomic.Bool

	mu         sync.Mutex
	listeners  map[*net.Listener]struct{}
	activeConn map[*conn]struct{}
	listenerWG sync.WaitGroup
}

func New(cfg *config.Config, r *router.Router, m *metrics.Server) *Server {
	return &Server{
		cfg:        cfg,
		router:     r,
		metrics:    m,
		listeners:  make(map[*net.Listener]struct{}),
		activeConn: make(map[*conn]struct{}),
	}
}

// ListenAndServeAll binds every listener named in the config
// (MQTT, MQTTs, WebSocket) and blocks until one returns an error or
// Shutdown is called.
func (s *Server) ListenAndServeAll() error {
	var wg sync.WaitGroup
	errs := make(chan error, 3)

	if s.cfg.MQTT.URL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.listenAndServeTCP(s.cfg.MQTT.URL)
		}()
	}
	if s.cfg.MQTTsEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.listenAndServeTLS(s.cfg.MQTTs.URL, s.cfg.MQTTs.CertFile, s.cfg.MQTTs.KeyFile)
		}()
	}
	if s.cfg.WebSocketEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.listenAndServeWebsocket(s.cfg.WebSocket.URL)
		}()
	}

	go func() { wg.Wait(); close(errs) }()

	for err := range errs {
		if err != nil && !errors.Is(err, ErrServerClosed) {
			return err
		}
	}
	return nil
}

func (s *Server) listenAndServeTCP(rawURL string) error {
	host, err := hostPort(rawURL)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", host)
	if err != nil {
		return err
	}
	log.Printf("mqtt: serving on %s", host)
	return s.Serve(ln)
}

func (s *Server) listenAndServeTLS(rawURL, certFile, keyFile string) error {
	host, err := hostPort(rawURL)
	if err != nil {
		return err
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	ln, err := tls.Listen("tcp", host, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return err
	}
	log.Printf("mqtts: serving on %s", host)
	return s.Serve(ln)
}

// listenAndServeWebsocket serves MQTT-over-WebSocket by handing
// x/net/websocket's server-side handshake an http.Server, the same
// library the teacher wired in (its ListenAndServeWebsocket left this
// path as a TODO; here it is completed).
func (s *Server) listenAndServeWebsocket(rawURL string) error {
	host, err := hostPort(rawURL)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", host)
	if err != nil {
		return err
	}
	if !s.trackListener(&ln, true) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(&ln, false)

	handler := websocket.Handler(func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		c := s.newConn(ws)
		s.trackConn(c, true)
		defer s.trackConn(c, false)
		c.serve()
	})

	log.Printf("websocket: serving on %s", host)
	err = http.Serve(ln, handler)
	if s.shuttingDown() {
		return ErrServerClosed
	}
	return err
}

func hostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host != "" {
		return u.Host, nil
	}
	return u.Opaque, nil
}

// Serve accepts connections off l until it errors, spawning one
// goroutine per connection the way the teacher's Serve did.
func (s *Server) Serve(l net.Listener) error {
	defer l.Close()
	if !s.trackListener(&l, true) {
		return ErrServerClosed
	}
	defer s.trackListener(&l, false)

	for {
		rw, err := l.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			return err
		}
		c := s.newConn(rw)
		s.trackConn(c, true)
		go func() {
			defer s.trackConn(c, false)
			c.serve()
		}()
	}
}

func (s *Server) trackConn(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.activeConn[c] = struct{}{}
	} else {
		delete(s.activeConn, c)
	}
}

func (s *Server) trackListener(ln *net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.shuttingDown() {
			return false
		}
		s.listeners[ln] = struct{}{}
		s.listenerWG.Add(1)
	} else {
		delete(s.listeners, ln)
		s.listenerWG.Done()
	}
	return true
}

func (s *Server) shuttingDown() bool { return s.inShutdown.Load() }

// Shutdown closes all listeners, waits for their accept loops to
// return, then closes every tracked connection. closeIdle removes each
// connection from the tracking set as it closes it, so the capped,
// jittered polling loop ends on its first check: Shutdown does not wait
// for connection goroutines to finish. Closing done also ends the loop.
func (s *Server) Shutdown(done <-chan struct{}) error {
	s.inShutdown.Store(true)
	s.mu.Lock()
	var lnErr error
	for ln := range s.listeners {
		if err := (*ln).Close(); err != nil && lnErr == nil {
			lnErr = err
		}
	}
	s.mu.Unlock()
	s.listenerWG.Wait()

	base := time.Millisecond
	for {
		if s.closeIdle() {
			return lnErr
		}
		interval := base + time.Duration(rand.Intn(int(base/10)+1))
		base *= 2
		if base > shutdownPollIntervalMax {
			base = shutdownPollIntervalMax
		}
		select {
		case <-done:
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Server) closeIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.activeConn {
		_ = c.rwc.Close()
		delete(s.activeConn, c)
	}
	return len(s.activeConn) == 0
}
