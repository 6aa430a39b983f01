package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// State is the handshake state of one gateway connection.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingChallenge
	StateHandshaking
	StateReady
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingChallenge:
		return "awaiting_challenge"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// ErrNotReady is returned when application traffic is attempted before the
// handshake completed.
var ErrNotReady = errors.New("gateway: connection not ready")

// RejectedError is terminal for the connection: the same transport must not
// be reused for another handshake attempt.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway: handshake rejected: %s (%s)", e.Message, e.Code)
}

// Options configure one gateway client.
type Options struct {
	Identity ClientInfo
	Role     string
	Scopes   []string
	Caps     []string
	Token    string
	Device   *DeviceInfo
}

// DefaultIdentity is the descriptor a headless bridge presents.
func DefaultIdentity(version string) ClientInfo {
	return ClientInfo{ID: "cli", Version: version, Platform: "linux", Mode: "headless"}
}

// Client is a handshaking gateway connection. Connect dials a fresh
// transport; after a rejection a new Connect call is the only way to retry.
type Client struct {
	url  string
	opts Options

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
	token string
}

// New creates a disconnected Client for the given ws:// URL.
func New(url string, opts Options) *Client {
	return &Client{url: url, opts: opts, state: StateDisconnected}
}

// State returns the current handshake state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the session token granted by the gateway, empty before READY.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Connect dials the gateway and runs the handshake: wait for the
// server-initiated challenge, send one connect request, match the response
// by id. On rejection the transport is closed and a *RejectedError returned.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("gateway.Client.Connect: %w", err)
	}

	c.setConn(conn, StateAwaitingChallenge)

	// No application traffic is allowed before the challenge arrives.
	for {
		frame, readErr := c.readFrame(ctx)
		if readErr != nil {
			c.fail(conn)
			return fmt.Errorf("gateway.Client.Connect: waiting for challenge: %w", readErr)
		}
		if frame.Type == FrameTypeEvent && frame.Event == EventConnectChallenge {
			break
		}
		log.Debug().Str("type", frame.Type).Str("event", frame.Event).Msg("ignoring pre-challenge frame")
	}

	c.setState(StateHandshaking)

	params := ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      c.opts.Identity,
		Role:        c.opts.Role,
		Scopes:      c.opts.Scopes,
		Caps:        c.opts.Caps,
		Device:      c.opts.Device,
	}
	if c.opts.Token != "" {
		params.Auth = &AuthInfo{Token: c.opts.Token}
	}

	reqID := uuid.NewString()
	if err := c.writeFrame(ctx, Frame{Type: FrameTypeRequest, ID: reqID, Method: MethodConnect, Params: mustMarshal(params)}); err != nil {
		c.fail(conn)
		return fmt.Errorf("gateway.Client.Connect: %w", err)
	}

	res, err := c.awaitResponse(ctx, reqID)
	if err != nil {
		c.fail(conn)
		return fmt.Errorf("gateway.Client.Connect: %w", err)
	}

	if !res.OK {
		rej := &RejectedError{Code: "UNKNOWN", Message: "connection rejected"}
		if res.Error != nil {
			rej.Code = res.Error.Code
			rej.Message = res.Error.Message
		}
		c.mu.Lock()
		c.state = StateRejected
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "rejected")
		log.Warn().Str("code", rej.Code).Str("reason", rej.Message).Msg("gateway handshake rejected")
		return fmt.Errorf("gateway.Client.Connect: %w", rej)
	}

	var hello helloPayload
	if len(res.Payload) > 0 {
		if err := json.Unmarshal(res.Payload, &hello); err != nil {
			c.fail(conn)
			return fmt.Errorf("gateway.Client.Connect: hello payload: %w", err)
		}
	}

	c.mu.Lock()
	c.state = StateReady
	if hello.Auth != nil {
		c.token = hello.Auth.DeviceToken
	}
	c.mu.Unlock()

	log.Info().Int("protocol", hello.Protocol).Msg("gateway handshake complete")
	return nil
}

// Send issues one request and waits for its matching response. Fails with
// ErrNotReady unless the handshake completed.
func (c *Client) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, fmt.Errorf("gateway.Client.Send: state %s: %w", c.state, ErrNotReady)
	}
	c.mu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("gateway.Client.Send: %w", err)
	}

	reqID := uuid.NewString()
	if err := c.writeFrame(ctx, Frame{Type: FrameTypeRequest, ID: reqID, Method: method, Params: raw}); err != nil {
		return nil, fmt.Errorf("gateway.Client.Send: %w", err)
	}

	res, err := c.awaitResponse(ctx, reqID)
	if err != nil {
		return nil, fmt.Errorf("gateway.Client.Send: %w", err)
	}
	if !res.OK {
		msg := "request failed"
		if res.Error != nil {
			msg = res.Error.Message
		}
		return nil, fmt.Errorf("gateway.Client.Send: %s: %s", method, msg)
	}

	return res.Payload, nil
}

// Close tears down the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.token = ""
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "closing")
}

// awaitResponse reads frames until the response with the given id arrives;
// interleaved events are skipped.
func (c *Client) awaitResponse(ctx context.Context, id string) (*Frame, error) {
	for {
		frame, err := c.readFrame(ctx)
		if err != nil {
			return nil, err
		}
		if frame.Type == FrameTypeResponse && frame.ID == id {
			return frame, nil
		}
		log.Debug().Str("type", frame.Type).Str("id", frame.ID).Msg("skipping non-matching frame")
	}
}

func (c *Client) readFrame(ctx context.Context) (*Frame, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotReady
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	return &frame, nil
}

func (c *Client) writeFrame(ctx context.Context, frame Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotReady
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) setConn(conn *websocket.Conn, state State) {
	c.mu.Lock()
	c.conn = conn
	c.state = state
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) fail(conn *websocket.Conn) {
	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close(websocket.StatusInternalError, "handshake failed")
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
