package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"orderup/internal/store"
)

// publishConn is the slice of *nats.Conn the publisher needs.
type publishConn interface {
	Publish(subj string, data []byte) error
}

// NATS publishes JSON events on fixed subjects.
type NATS struct {
	conn publishConn
}

func NewNATS(conn publishConn) *NATS {
	return &NATS{conn: conn}
}

// Connect dials the broker and keeps reconnecting forever in the background.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("WARN: [Events] disconnected from nats: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[Events] reconnected to nats at %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// HealthCheck fails while the connection is down or reconnecting.
func HealthCheck(nc *nats.Conn) error {
	if nc == nil || !nc.IsConnected() {
		return errors.New("nats connection is not established")
	}
	return nil
}

func (n *NATS) PublishPresence(ev PresenceEvent) error {
	return n.publish(SubjectPresence, ev)
}

func (n *NATS) PublishMatchResult(result store.MatchResult) error {
	return n.publish(SubjectMatchResult, result)
}

func (n *NATS) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
