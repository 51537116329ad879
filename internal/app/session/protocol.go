package session

import (
	"time"

	"github.com/dinefind/dinefind/internal/app/models"
)

// ProtocolVersion is stamped on every server frame.
const ProtocolVersion = 1

// Channel is the event stream family a subscription attaches to.
type Channel string

const (
	ChannelSearch    Channel = "search"
	ChannelAssistant Channel = "assistant"
)

// ValidChannel reports whether s names a known channel.
func ValidChannel(s string) bool {
	return s == string(ChannelSearch) || s == string(ChannelAssistant)
}

// Client frame types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Server frame types.
const (
	TypeSubAck      = "sub_ack"
	TypeSubNack     = "sub_nack"
	TypeStatus      = "status"
	TypeResults     = "results"
	TypeResultPatch = "result.patch"
	TypeStreamDone  = "stream.done"
	TypePong        = "pong"
)

// Subscribe nack reasons.
const (
	NackMissingRequestID = "missing_requestId"
	NackInvalidChannel   = "invalid_channel"
	NackNotAuthenticated = "not_authenticated"
	NackUserMismatch     = "user_mismatch"
	NackSessionMismatch  = "session_mismatch"
	NackInternal         = "internal"
)

// Request status values carried by status frames.
const (
	StatusPending   = "pending"
	StatusStreaming = "streaming"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Close codes. Hard policy violations use 1008 and must not trigger client
// reconnect.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	ClosePolicy    = 1008
)

// Policy close reasons sent with 1008.
const (
	PolicyNotAuthorized  = "NOT_AUTHORIZED"
	PolicyOriginBlocked  = "ORIGIN_BLOCKED"
	PolicyBadSubscribe   = "BAD_SUBSCRIBE"
	PolicyInvalidRequest = "INVALID_REQUEST"
)

// ClientMessage is an inbound frame.
type ClientMessage struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ServerMessage is an outbound frame. Payload holds the type-specific body.
type ServerMessage struct {
	V         int     `json:"v"`
	Type      string  `json:"type"`
	Channel   Channel `json:"channel,omitempty"`
	RequestID string  `json:"requestId,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Status    string  `json:"status,omitempty"`
	Payload   any     `json:"payload,omitempty"`
}

// PatchBody is the providers fragment of a result.patch frame.
type PatchBody struct {
	Providers map[string]models.ProviderSlot `json:"providers"`
}

// ResultPatch is the payload of a result.patch frame.
type ResultPatch struct {
	RequestID string    `json:"requestId"`
	PlaceID   string    `json:"placeId"`
	Patch     PatchBody `json:"patch"`
}

func NewSubAck(channel Channel, requestID string) ServerMessage {
	return ServerMessage{V: ProtocolVersion, Type: TypeSubAck, Channel: channel, RequestID: requestID}
}

func NewSubNack(channel Channel, requestID, reason string) ServerMessage {
	return ServerMessage{V: ProtocolVersion, Type: TypeSubNack, Channel: channel, RequestID: requestID, Reason: reason}
}

func NewStatus(requestID, status string) ServerMessage {
	return ServerMessage{V: ProtocolVersion, Type: TypeStatus, Channel: ChannelSearch, RequestID: requestID, Status: status}
}

func NewResults(requestID string, response *models.SearchResponse) ServerMessage {
	return ServerMessage{V: ProtocolVersion, Type: TypeResults, Channel: ChannelSearch, RequestID: requestID, Payload: response}
}

func NewResultPatch(requestID, placeID, provider string, slot models.ProviderSlot) ServerMessage {
	return ServerMessage{
		V:         ProtocolVersion,
		Type:      TypeResultPatch,
		Channel:   ChannelSearch,
		RequestID: requestID,
		Payload: ResultPatch{
			RequestID: requestID,
			PlaceID:   placeID,
			Patch:     PatchBody{Providers: map[string]models.ProviderSlot{provider: slot}},
		},
	}
}

func NewStreamDone(requestID, fullText string) ServerMessage {
	payload := map[string]string{"requestId": requestID}
	if fullText != "" {
		payload["fullText"] = fullText
	}
	return ServerMessage{V: ProtocolVersion, Type: TypeStreamDone, Channel: ChannelAssistant, RequestID: requestID, Payload: payload}
}

func NewPong() ServerMessage {
	return ServerMessage{V: ProtocolVersion, Type: TypePong}
}

// Publisher is the port the orchestrator and enrichment workers publish
// through. Implemented by the Hub.
type Publisher interface {
	Publish(channel Channel, requestID string, msg ServerMessage)
}

// Identity is who a connection authenticated as. Anonymous connections carry
// SessionID "anonymous" and an empty UserID.
type Identity struct {
	UserID    string
	SessionID string
}

// Subscriber receives frames for keys it subscribed to.
type Subscriber interface {
	Send(msg ServerMessage) error
	Identity() Identity
}

// OwnerRecord authorizes subscriptions to a job's events.
type OwnerRecord struct {
	UserID    string
	SessionID string
	CreatedAt time.Time
}
