/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/opsfloor/lineplan/internal/events"
)

// streamedEvents are pushed to websocket timeline clients.
var streamedEvents = []events.EventType{
	events.EventRunCreated,
	events.EventRunDeleted,
	events.EventRunCancelled,
	events.EventRunRelocated,
	events.EventRunMoved,
	events.EventRunStatusChanged,
	events.EventDayOptimized,
}

type wsEvent struct {
	Type    string         `json:"type"`
	Payload events.Payload `json:"payload"`
}

// handleEventsWS streams schedule events to a websocket client so timeline
// UIs can refresh without polling.
func (a *API) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, nil)
	if err != nil {
		a.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	merged := make(chan wsEvent, 32)
	done := make(chan struct{})
	defer close(done)

	for _, eventType := range streamedEvents {
		sub := a.bus.Subscribe(eventType)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer a.bus.Unsubscribe(eventType, sub)
			for {
				select {
				case <-done:
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- wsEvent{Type: string(eventType), Payload: payload}:
					default:
					}
				}
			}
		}(eventType, sub)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-merged:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
