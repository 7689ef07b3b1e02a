package chat

import "strings"

// InboundType tags a client frame.
type InboundType string

const (
	InboundPing      InboundType = "ping"
	InboundHeartbeat InboundType = "heartbeat"
	InboundText      InboundType = "text"
	InboundAudio     InboundType = "audio"
	InboundUnknown   InboundType = "unknown"
)

// ParseInboundType decodes the wire tag; anything unrecognised is InboundUnknown.
func ParseInboundType(raw string) InboundType {
	switch InboundType(strings.TrimSpace(raw)) {
	case InboundPing:
		return InboundPing
	case InboundHeartbeat:
		return InboundHeartbeat
	case InboundText:
		return InboundText
	case InboundAudio:
		return InboundAudio
	default:
		return InboundUnknown
	}
}

// Inbound is the client→server envelope. Audio content is base64.
type Inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Kind reports the decoded tag of the envelope.
func (m Inbound) Kind() InboundType {
	return ParseInboundType(m.Type)
}

// Kind is the delivery kind of a server→client message.
type Kind string

const (
	KindHeartbeat     Kind = "heartbeat"
	KindAgentUpdate   Kind = "agent_update"
	KindTableResponse Kind = "table_response"
	KindTextResponse  Kind = "text_response"
	KindError         Kind = "error"
	KindEvent         Kind = "event_response"
	// KindDirect is written as a raw text frame without an envelope.
	KindDirect Kind = "direct_message"
)

// Outbound is the server→client envelope.
type Outbound struct {
	Type      string `json:"type"`
	Content   any    `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Welcome is the first frame written on a new connection.
type Welcome struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Delivery is published on the broker and routed to one live session.
type Delivery struct {
	SessionID string
	Kind      Kind
	Content   any
}

// Frame types written by the session layer itself.
const (
	FramePong            = "pong"
	FrameHeartbeatAck    = "heartbeat_ack"
	FrameHeartbeat       = "heartbeat"
	FrameConnectionCheck = "connection_check"
)

// Error messages reported to clients without closing the connection.
const (
	ErrInvalidJSON       = "Invalid JSON format"
	ErrUnknownTypePrefix = "Unknown request type: "
)
