/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package caspar

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hypebeast/go-osc/osc"
)

// ListenOSC starts the UDP listener for playback telemetry. CasparCG
// reports the foreground clip name and frame position per channel/layer;
// only the bound layer is surfaced. The server stops when ctx is
// cancelled.
func (c *Client) ListenOSC(ctx context.Context, bind string, port int) error {
	addr := fmt.Sprintf("%s:%d", bind, port)
	prefix := fmt.Sprintf("/channel/%d/stage/layer/%d/foreground/file", c.channel, c.layer)

	dispatcher := osc.NewStandardDispatcher()
	if err := dispatcher.AddMsgHandler(prefix+"/name", c.handleForegroundName); err != nil {
		return fmt.Errorf("register osc handler: %w", err)
	}
	if err := dispatcher.AddMsgHandler(prefix+"/frame", c.handleForegroundFrame); err != nil {
		return fmt.Errorf("register osc handler: %w", err)
	}

	server := &osc.Server{Addr: addr, Dispatcher: dispatcher}
	go func() {
		<-ctx.Done()
		_ = server.CloseConnection()
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Str("addr", addr).Msg("osc listener stopped")
		}
	}()

	c.logger.Info().Str("addr", addr).Msg("listening for caspar osc telemetry")
	return nil
}

// handleForegroundName dedupes repeated reports of the same clip, so one
// playback surfaces as exactly one ClipStarted. ResetState clears the
// dedupe, which is what lets the same clip play twice in a row.
func (c *Client) handleForegroundName(msg *osc.Message) {
	if len(msg.Arguments) < 1 {
		return
	}
	name, ok := msg.Arguments[0].(string)
	if !ok || name == "" {
		return
	}

	c.fgMu.Lock()
	if name == c.lastForeground {
		c.fgMu.Unlock()
		return
	}
	c.lastForeground = name
	c.fgMu.Unlock()

	select {
	case c.clipStarted <- ClipStarted{Filename: name}:
	default:
		c.logger.Warn().Str("filename", name).Msg("dropping clip-started event, consumer too slow")
	}
}

func (c *Client) handleForegroundFrame(msg *osc.Message) {
	if len(msg.Arguments) < 2 {
		return
	}
	current, ok1 := oscInt(msg.Arguments[0])
	total, ok2 := oscInt(msg.Arguments[1])
	if !ok1 || !ok2 {
		return
	}

	select {
	case c.frameProgress <- FrameProgress{CurrentFrame: current, TotalFrames: total}:
	default:
	}
}

func oscInt(arg any) (int, bool) {
	switch v := arg.(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
