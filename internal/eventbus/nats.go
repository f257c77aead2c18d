/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus republishes in-process engine events to NATS so external
// collaborators (timeline UIs, MES integrations) can follow schedule changes
// without polling.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/opsfloor/lineplan/internal/events"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "lineplan.events."

// bridgedEvents are the local bus events forwarded to NATS.
var bridgedEvents = []events.EventType{
	events.EventRunCreated,
	events.EventRunDeleted,
	events.EventRunCancelled,
	events.EventRunRelocated,
	events.EventRunMoved,
	events.EventRunStatusChanged,
	events.EventDayOptimized,
}

// Bridge forwards bus events to NATS subjects.
type Bridge struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	stop   chan struct{}
}

// NewBridge connects to NATS and starts forwarding bus events. Returns an
// error when the server is unreachable; callers treat the bridge as
// optional.
func NewBridge(url string, bus *events.Bus, logger zerolog.Logger) (*Bridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	b := &Bridge{
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus").Logger(),
		stop:   make(chan struct{}),
	}

	for _, eventType := range bridgedEvents {
		go b.forward(eventType, bus.Subscribe(eventType))
	}

	b.logger.Info().Str("url", url).Msg("nats event bridge connected")
	return b, nil
}

func (b *Bridge) forward(eventType events.EventType, sub events.Subscriber) {
	subject := SubjectPrefix + string(eventType)
	for {
		select {
		case <-b.stop:
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(payload)
			if err != nil {
				b.logger.Debug().Err(err).Str("subject", subject).Msg("event payload not serializable")
				continue
			}
			if err := b.conn.Publish(subject, data); err != nil {
				b.logger.Warn().Err(err).Str("subject", subject).Msg("nats publish failed")
			}
		}
	}
}

// Close stops forwarding and drains the connection.
func (b *Bridge) Close() error {
	close(b.stop)
	return b.conn.Drain()
}
