// internal/writer/redis/publisher.go
package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redigo "github.com/garyburd/redigo/redis"

	"github.com/tamzrod/lnictl/internal/status"
)

// Config locates the redis server.
type Config struct {
	Address string
	Prefix  string
	Timeout time.Duration
}

// Publisher mirrors port status into redis hashes and publishes
// link events on <prefix>:events.
type Publisher struct {
	pool   *redigo.Pool
	prefix string
}

// New builds a Publisher. No connection is made until the first write.
func New(cfg Config) (*Publisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("writer redis: address required")
	}
	timeout := cfg.Timeout
	dial := func() (redigo.Conn, error) {
		return redigo.Dial("tcp", cfg.Address,
			redigo.DialConnectTimeout(timeout),
			redigo.DialReadTimeout(timeout),
			redigo.DialWriteTimeout(timeout),
		)
	}
	return newPublisher(cfg.Prefix, dial), nil
}

func newPublisher(prefix string, dial func() (redigo.Conn, error)) *Publisher {
	return &Publisher{
		pool: &redigo.Pool{
			Dial:        dial,
			MaxIdle:     2,
			IdleTimeout: time.Minute,
		},
		prefix: prefix,
	}
}

// Close releases pooled connections.
func (p *Publisher) Close() error {
	return p.pool.Close()
}

// Port returns the writer for one port's hash, <prefix>:<id>.
func (p *Publisher) Port(id string) *PortWriter {
	return &PortWriter{
		pub:  p,
		id:   id,
		hash: p.prefix + ":" + id,
	}
}

func (p *Publisher) eventChannel() string {
	return p.prefix + ":events"
}

// PortWriter implements writer.StatusWriter for one port.
type PortWriter struct {
	pub  *Publisher
	id   string
	hash string
}

// WriteStatus sets every snapshot field in the port hash.
func (w *PortWriter) WriteStatus(s status.Snapshot) error {
	conn := w.pub.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("HSET", redigo.Args{}.Add(w.hash).AddFlat(&s)...); err != nil {
		return fmt.Errorf("writer redis: hset %s: %w", w.hash, err)
	}
	return nil
}

// Event is one link event as published.
type Event struct {
	Port     string `json:"port"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Previous string `json:"previous,omitempty"`
	Reason   uint8  `json:"reason,omitempty"`
	Neighbor uint8  `json:"neighbor,omitempty"`
	Speed    uint16 `json:"speed,omitempty"`
	At       int64  `json:"at"`
}

// Event kinds.
const (
	EventLinkUp     = "link_up"
	EventPortActive = "port_active"
	EventPortError  = "port_error"
)

// Publish sends ev on the events channel. The port id is filled in.
func (w *PortWriter) Publish(ev Event) error {
	ev.Port = w.id
	if ev.At == 0 {
		ev.At = time.Now().Unix()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	conn := w.pub.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PUBLISH", w.pub.eventChannel(), b); err != nil {
		return fmt.Errorf("writer redis: publish: %w", err)
	}
	return nil
}
