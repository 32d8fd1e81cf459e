/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/friendsincode/intermission/internal/events"
	ws "nhooyr.io/websocket"
)

// handleIntermissionWS streams the published intermission window and
// seekability flag to an observer (e.g. the presentation layer). The
// current snapshot is sent on connect; afterwards every republication is
// forwarded as it happens.
func (s *Server) handleIntermissionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx := r.Context()

	updates := s.bus.Subscribe(events.EventIntermissionUpdate)
	defer s.bus.Unsubscribe(events.EventIntermissionUpdate, updates)
	seeks := s.bus.Subscribe(events.EventCanSeekChange)
	defer s.bus.Unsubscribe(events.EventCanSeekChange, seeks)

	initial := map[string]any{
		"type":         "snapshot",
		"intermission": s.director.Snapshot(),
		"canSeek":      s.director.CanSeek(),
	}
	if err := writeWS(ctx, conn, initial); err != nil {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case payload, ok := <-updates:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "stream ended")
				return
			}
			msg := map[string]any{"type": "intermission", "intermission": payload["intermission"]}
			if err := writeWS(ctx, conn, msg); err != nil {
				return
			}
		case payload, ok := <-seeks:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "stream ended")
				return
			}
			msg := map[string]any{"type": "canSeek", "canSeek": payload["can_seek"]}
			if err := writeWS(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func writeWS(ctx context.Context, conn *ws.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
