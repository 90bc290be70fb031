// Package bus mirrors tournament lifecycle events onto NATS subjects
// for out-of-process consumers. It can run an embedded server or
// connect to an external one; either way the tracker itself never
// depends on the bus being up.
package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ernie/tourney-tracker/internal/config"
	"github.com/ernie/tourney-tracker/internal/domain"
)

// Publisher publishes lifecycle events to NATS
type Publisher struct {
	conn     *nats.Conn
	embedded *server.Server // nil when connected to an external server
	prefix   string
}

// New starts the publisher. With cfg.Embedded an in-process NATS
// server is launched and connected to over a local port.
func New(cfg config.BusConfig) (*Publisher, error) {
	url := cfg.URL
	var embedded *server.Server

	if cfg.Embedded {
		srv, err := server.NewServer(&server.Options{
			Host: "127.0.0.1",
			Port: cfg.ListenPort,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedded nats server: %w", err)
		}
		go srv.Start()
		if !srv.ReadyForConnections(5 * time.Second) {
			srv.Shutdown()
			return nil, fmt.Errorf("embedded nats server not ready")
		}
		embedded = srv
		url = srv.ClientURL()
		log.Printf("Embedded NATS server listening on %s", url)
	}

	conn, err := nats.Connect(url, nats.Name("tourney-tracker"))
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &Publisher{
		conn:     conn,
		embedded: embedded,
		prefix:   cfg.SubjectPrefix,
	}, nil
}

// Publish sends one lifecycle event to its subject
// (<prefix>.tournament.<type>)
func (p *Publisher) Publish(event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	subject := fmt.Sprintf("%s.tournament.%s", p.prefix, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection and stops the embedded server if one
// was started
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("Error draining nats connection: %v", err)
	}
	if p.embedded != nil {
		p.embedded.Shutdown()
		p.embedded.WaitForShutdown()
	}
}
