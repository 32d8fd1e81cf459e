/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package obs is a minimal obs-websocket v5 client covering the one
// operation the orchestrator needs: switching the program scene.
package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
)

const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opRequest         = 6
	opRequestResponse = 7

	rpcVersion = 1
)

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestResponseData struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
}

// Client talks to one OBS instance.
type Client struct {
	logger zerolog.Logger
	url    string
	pass   string

	mu      sync.Mutex
	conn    *ws.Conn
	pending map[string]chan requestResponseData

	closed chan struct{}
	once   sync.Once
}

// Dial connects and completes the Hello/Identify handshake.
func Dial(ctx context.Context, url, password string, logger zerolog.Logger) (*Client, error) {
	c := &Client{
		logger:  logger.With().Str("component", "obs").Logger(),
		url:     url,
		pass:    password,
		pending: make(map[string]chan requestResponseData),
		closed:  make(chan struct{}),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := ws.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial obs: %w", err)
	}

	var hello envelope
	if err := readEnvelope(ctx, conn, &hello); err != nil {
		conn.Close(ws.StatusProtocolError, "bad hello")
		return fmt.Errorf("read obs hello: %w", err)
	}
	if hello.Op != opHello {
		conn.Close(ws.StatusProtocolError, "bad hello")
		return fmt.Errorf("unexpected obs op %d, want hello", hello.Op)
	}

	var helloPayload helloData
	if err := json.Unmarshal(hello.D, &helloPayload); err != nil {
		conn.Close(ws.StatusProtocolError, "bad hello")
		return fmt.Errorf("parse obs hello: %w", err)
	}

	identify := map[string]any{"rpcVersion": rpcVersion}
	if helloPayload.Authentication != nil {
		identify["authentication"] = authString(c.pass, helloPayload.Authentication.Salt, helloPayload.Authentication.Challenge)
	}
	if err := writeEnvelope(ctx, conn, opIdentify, identify); err != nil {
		conn.Close(ws.StatusProtocolError, "identify failed")
		return fmt.Errorf("send obs identify: %w", err)
	}

	var identified envelope
	if err := readEnvelope(ctx, conn, &identified); err != nil {
		conn.Close(ws.StatusProtocolError, "identify failed")
		return fmt.Errorf("read obs identified: %w", err)
	}
	if identified.Op != opIdentified {
		conn.Close(ws.StatusPolicyViolation, "not identified")
		return fmt.Errorf("obs rejected identify (op %d)", identified.Op)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	c.logger.Info().Str("url", c.url).Msg("connected to obs")
	return nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close(ws.StatusNormalClosure, "shutting down")
	}
	return nil
}

// SetScene switches the program scene. Reconnects once if the connection
// has dropped since the last call.
func (c *Client) SetScene(ctx context.Context, name string) error {
	err := c.request(ctx, "SetCurrentProgramScene", map[string]any{"sceneName": name})
	if err == nil {
		return nil
	}

	select {
	case <-c.closed:
		return err
	default:
	}

	c.logger.Warn().Err(err).Msg("scene request failed, reconnecting")
	if rerr := c.connect(ctx); rerr != nil {
		return fmt.Errorf("set scene %q: %w", name, err)
	}
	return c.request(ctx, "SetCurrentProgramScene", map[string]any{"sceneName": name})
}

func (c *Client) request(ctx context.Context, requestType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("obs not connected")
	}
	id := uuid.NewString()
	ch := make(chan requestResponseData, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := requestData{RequestType: requestType, RequestID: id, RequestData: data}
	if err := writeEnvelope(ctx, conn, opRequest, req); err != nil {
		return fmt.Errorf("send %s: %w", requestType, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-ch:
		if !resp.RequestStatus.Result {
			return fmt.Errorf("%s failed: code %d %s", requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("%s timed out", requestType)
	}
}

func (c *Client) readLoop(conn *ws.Conn) {
	ctx := context.Background()
	for {
		var env envelope
		if err := readEnvelope(ctx, conn, &env); err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Error().Err(err).Msg("obs connection lost")
			}
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}

		if env.Op != opRequestResponse {
			continue
		}
		var resp requestResponseData
		if err := json.Unmarshal(env.D, &resp); err != nil {
			c.logger.Warn().Err(err).Msg("unparseable obs response")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// authString derives the obs-websocket v5 auth response:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func authString(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func readEnvelope(ctx context.Context, conn *ws.Conn, env *envelope) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, env)
}

func writeEnvelope(ctx context.Context, conn *ws.Conn, op int, d any) error {
	payload, err := json.Marshal(envelope{Op: op, D: mustJSON(d)})
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, payload)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
