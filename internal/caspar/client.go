/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package caspar talks to a CasparCG playback server: AMCP commands over
// TCP, playback telemetry over OSC, and a replicated view of the server's
// media registry.
package caspar

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// File describes one entry of the device media registry.
type File struct {
	NameWithExt string
	Type        string // "video", "image" or "audio"
	Frames      int
	FrameRate   float64
}

// ClipStarted reports that a clip became the foreground producer.
type ClipStarted struct {
	Filename string
}

// FrameProgress reports device-side playback position for the foreground clip.
type FrameProgress struct {
	CurrentFrame int
	TotalFrames  int
}

type response struct {
	code  int
	lines []string
	err   error
}

// Client is an AMCP client bound to one channel/layer pair.
type Client struct {
	logger  zerolog.Logger
	channel int
	layer   int

	conn    net.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   []chan response

	filesMu   sync.RWMutex
	files     []File
	filesSubs []func(old, new []File)

	fgMu           sync.Mutex
	lastForeground string

	clipStarted   chan ClipStarted
	frameProgress chan FrameProgress

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the AMCP port and starts the response reader.
func Dial(host string, amcpPort, channel, layer int, logger zerolog.Logger) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(amcpPort))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial caspar amcp: %w", err)
	}

	c := &Client{
		logger:        logger.With().Str("component", "caspar").Logger(),
		channel:       channel,
		layer:         layer,
		conn:          conn,
		clipStarted:   make(chan ClipStarted, 16),
		frameProgress: make(chan FrameProgress, 64),
		closed:        make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close tears down the AMCP connection and fails all pending commands.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		c.pendingMu.Lock()
		for _, ch := range c.pending {
			ch <- response{err: fmt.Errorf("connection closed")}
		}
		c.pending = nil
		c.pendingMu.Unlock()
	})
	return err
}

// Play starts a clip in the foreground of the bound layer.
func (c *Client) Play(ctx context.Context, clipName string) error {
	_, err := c.send(ctx, fmt.Sprintf("PLAY %d-%d %s", c.channel, c.layer, quote(clipName)))
	return err
}

// LoadbgAuto preloads a clip in the background with auto-advance, so the
// device cuts to it when the foreground clip ends.
func (c *Client) LoadbgAuto(ctx context.Context, clipName string) error {
	_, err := c.send(ctx, fmt.Sprintf("LOADBG %d-%d %s AUTO", c.channel, c.layer, quote(clipName)))
	return err
}

// Clear stops everything on the bound channel.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.send(ctx, fmt.Sprintf("CLEAR %d", c.channel))
	return err
}

// ResetState forgets the last observed foreground clip, so the next
// foreground report is delivered even if the same file plays again.
func (c *Client) ResetState() {
	c.fgMu.Lock()
	c.lastForeground = ""
	c.fgMu.Unlock()
}

// Files returns a snapshot of the media registry.
func (c *Client) Files() []File {
	c.filesMu.RLock()
	defer c.filesMu.RUnlock()
	return append([]File(nil), c.files...)
}

// OnFilesChange subscribes to media registry changes.
func (c *Client) OnFilesChange(fn func(old, new []File)) {
	c.filesMu.Lock()
	c.filesSubs = append(c.filesSubs, fn)
	c.filesMu.Unlock()
}

// ClipStartedEvents returns the foreground-clip event stream.
func (c *Client) ClipStartedEvents() <-chan ClipStarted {
	return c.clipStarted
}

// FrameProgressEvents returns the frame telemetry stream.
func (c *Client) FrameProgressEvents() <-chan FrameProgress {
	return c.frameProgress
}

// RunFilesRefresh polls the media registry until ctx is cancelled.
func (c *Client) RunFilesRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.refreshFiles(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-ticker.C:
			c.refreshFiles(ctx)
		}
	}
}

func (c *Client) refreshFiles(ctx context.Context) {
	resp, err := c.send(ctx, "CLS")
	if err != nil {
		c.logger.Error().Err(err).Msg("media registry refresh failed")
		return
	}

	files := make([]File, 0, len(resp.lines))
	for _, line := range resp.lines {
		file, err := parseCLSLine(line)
		if err != nil {
			c.logger.Warn().Err(err).Str("line", line).Msg("skipping unparseable CLS line")
			continue
		}
		files = append(files, file)
	}

	c.filesMu.Lock()
	old := c.files
	changed := !filesEqual(old, files)
	if changed {
		c.files = files
	}
	subs := append(([]func(old, new []File))(nil), c.filesSubs...)
	c.filesMu.Unlock()

	if changed {
		c.logger.Debug().Int("files", len(files)).Msg("media registry updated")
		for _, fn := range subs {
			fn(old, files)
		}
	}
}

func (c *Client) send(ctx context.Context, cmd string) (response, error) {
	ch := make(chan response, 1)

	c.pendingMu.Lock()
	c.pending = append(c.pending, ch)
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	_, err := c.conn.Write([]byte(cmd + "\r\n"))
	c.writeMu.Unlock()
	if err != nil {
		return response{}, fmt.Errorf("write %q: %w", cmd, err)
	}

	select {
	case <-ctx.Done():
		return response{}, ctx.Err()
	case resp := <-ch:
		if resp.err != nil {
			return response{}, resp.err
		}
		if resp.code >= 400 {
			return response{}, fmt.Errorf("%q failed: %d", cmd, resp.code)
		}
		return resp, nil
	}
}

// readLoop parses AMCP responses. Responses arrive in command order, so
// they pair with pending commands FIFO.
func (c *Client) readLoop() {
	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Error().Err(err).Msg("amcp connection lost")
				_ = c.Close()
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")

		code, rest, ok := parseStatusLine(line)
		if !ok {
			c.logger.Warn().Str("line", line).Msg("unexpected amcp line")
			continue
		}

		resp := response{code: code}
		switch {
		case code == 200:
			// Multi-line data terminated by an empty line.
			for {
				data, err := reader.ReadString('\n')
				if err != nil {
					resp.err = err
					break
				}
				data = strings.TrimRight(data, "\r\n")
				if data == "" {
					break
				}
				resp.lines = append(resp.lines, data)
			}
		case code == 201 || code == 400:
			// One data line follows.
			data, err := reader.ReadString('\n')
			if err != nil {
				resp.err = err
			} else {
				resp.lines = append(resp.lines, strings.TrimRight(data, "\r\n"))
			}
		}
		_ = rest

		c.pendingMu.Lock()
		if len(c.pending) == 0 {
			c.pendingMu.Unlock()
			c.logger.Warn().Int("code", code).Msg("amcp response with no pending command")
			continue
		}
		ch := c.pending[0]
		c.pending = c.pending[1:]
		c.pendingMu.Unlock()
		ch <- resp
	}
}

func parseStatusLine(line string) (code int, rest string, ok bool) {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) == 0 {
		return 0, "", false
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil || code < 100 || code > 599 {
		return 0, "", false
	}
	if len(fields) == 2 {
		rest = fields[1]
	}
	return code, rest, true
}

// parseCLSLine parses one line of a CLS listing, e.g.
//
//	"media/sponsor_a.mp4"  MOVIE  6445960 20240629190220 268 1/60
func parseCLSLine(line string) (File, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "\"") {
		return File{}, fmt.Errorf("missing quoted clip name")
	}
	end := strings.Index(line[1:], "\"")
	if end < 0 {
		return File{}, fmt.Errorf("unterminated clip name")
	}
	name := line[1 : 1+end]
	fields := strings.Fields(line[end+2:])
	if len(fields) < 1 {
		return File{}, fmt.Errorf("missing clip type")
	}

	file := File{NameWithExt: name}
	switch strings.ToUpper(fields[0]) {
	case "MOVIE":
		file.Type = "video"
	case "STILL":
		file.Type = "image"
	case "AUDIO":
		file.Type = "audio"
	default:
		return File{}, fmt.Errorf("unknown clip type %q", fields[0])
	}

	if len(fields) >= 4 {
		if frames, err := strconv.Atoi(fields[3]); err == nil {
			file.Frames = frames
		}
	}
	if len(fields) >= 5 {
		file.FrameRate = parseTimebase(fields[4])
	}
	return file, nil
}

// parseTimebase converts a CasparCG timebase like "1/60" to frames per second.
func parseTimebase(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		value, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return value
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || n == 0 {
		return 0
	}
	return d / n
}

func filesEqual(a, b []File) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// quote wraps a clip name in AMCP quotes when it contains whitespace.
func quote(name string) string {
	if strings.ContainsAny(name, " \t") {
		return "\"" + name + "\""
	}
	return name
}

// ClipName strips the extension from an ad filename, which is how AMCP
// addresses clips.
func ClipName(filename string) string {
	ext := path.Ext(filename)
	return strings.TrimSuffix(filename, ext)
}
