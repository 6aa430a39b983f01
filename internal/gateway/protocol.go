// Package gateway implements the client side of the upstream gateway
// handshake: connect, challenge, capability negotiation, then traffic.
package gateway

import "encoding/json"

// ProtocolVersion is the wire protocol version this client speaks.
const ProtocolVersion = 3

// Frame types.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// EventConnectChallenge is the server-initiated event that opens the
// handshake window.
const EventConnectChallenge = "connect.challenge"

// MethodConnect is the single handshake request method.
const MethodConnect = "connect"

// Frame is one JSON message in either direction. Which fields are set
// depends on Type.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// ErrorShape is a structured error from the server.
type ErrorShape struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ConnectParams is the body of the connect request.
type ConnectParams struct {
	MinProtocol int         `json:"minProtocol"`
	MaxProtocol int         `json:"maxProtocol"`
	Client      ClientInfo  `json:"client"`
	Role        string      `json:"role,omitempty"`
	Scopes      []string    `json:"scopes,omitempty"`
	Caps        []string    `json:"caps,omitempty"`
	Auth        *AuthInfo   `json:"auth,omitempty"`
	Device      *DeviceInfo `json:"device,omitempty"`
}

// ClientInfo identifies this client to the gateway.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

// AuthInfo carries an opaque bearer token, passed through unmodified.
type AuthInfo struct {
	Token string `json:"token,omitempty"`
}

// DeviceInfo is the optional device identity for device-bound auth.
type DeviceInfo struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	SignedAt  int64  `json:"signedAt"`
}

// helloPayload is the subset of the connect response payload the client
// retains. The session token lives in memory for the life of the connection
// and is never written to disk.
type helloPayload struct {
	Protocol int `json:"protocol"`
	Auth     *struct {
		DeviceToken string   `json:"deviceToken,omitempty"`
		Role        string   `json:"role,omitempty"`
		Scopes      []string `json:"scopes,omitempty"`
	} `json:"auth,omitempty"`
}
