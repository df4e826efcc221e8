// Package config loads the broker's JSON configuration file, adapted
// from the teacher's package-level config/Options split: listener
// addresses and the auth table stay data-driven the way CONFIG did,
// while the router's commit-log tunables are new fields this broker
// needs that the teacher's pub/sub-over-HTTP design never had.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Listen is one network endpoint the server should bind, optionally
// with TLS material for MQTTs/WebSockets.
type Listen struct {
	URL      string `json:"url"`
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`
}

func (l Listen) enabled() bool { return l.URL != "" }

// Router carries the commit-log and fan-out tunables §6 calls out as
// configuration inputs.
type Router struct {
	MaxPayloadSize       int           `json:"maxPayloadSize"`
	SegmentSize          int           `json:"segmentSize"`
	SegmentsPerPartition int           `json:"segmentsPerPartition"`
	TickInterval         time.Duration `json:"tickInterval"`
	BatchSize            int           `json:"batchSize"`
	OutboundBufferSize   int           `json:"outboundBufferSize"`
}

// Config is the full broker configuration, loaded from a single JSON
// file the way the teacher's config was a package-level struct filled
// in at init — here made explicit and file-backed instead of a global.
type Config struct {
	MQTT      Listen            `json:"mqtt"`
	MQTTs     Listen            `json:"mqtts"`
	WebSocket Listen            `json:"websocket"`
	HTTP      Listen            `json:"http"`
	Auth      map[string]string `json:"auth"`
	Router    Router            `json:"router"`
}

// Default mirrors the teacher's CONFIG global: a single MQTT listener
// on the standard port, an anonymous-allowed auth table, and the
// router's built-in defaults.
func Default() *Config {
	return &Config{
		MQTT: Listen{URL: "tcp://0.0.0.0:1883"},
		HTTP: Listen{URL: "tcp://0.0.0.0:9090"},
		Auth: map[string]string{"": ""},
		Router: Router{
			MaxPayloadSize:       10 << 20,
			SegmentSize:          10 << 20,
			SegmentsPerPartition: 100,
			TickInterval:         100 * time.Millisecond,
			BatchSize:            64,
			OutboundBufferSize:   128,
		},
	}
}

// Load reads and merges a JSON config file over Default. A missing
// file is not an error: the broker runs on defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// GetAuth mirrors the teacher's config.GetAuth lookup.
func (c *Config) GetAuth(username string) (string, bool) {
	password, ok := c.Auth[username]
	return password, ok
}

// MQTTsEnabled reports whether a TLS listener was configured.
func (c *Config) MQTTsEnabled() bool { return c.MQTTs.enabled() }

// WebSocketEnabled reports whether a websocket listener was configured.
func (c *Config) WebSocketEnabled() bool { return c.WebSocket.enabled() }
