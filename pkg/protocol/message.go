// Package protocol defines the JSON envelope exchanged over the multiplexed
// connection between a client and the endpoint server.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// MessageType is the wire tag of an envelope
type MessageType string

const (
	MessageTypeRegisterEndpoints MessageType = "register-endpoints"
	MessageTypeChatMessage       MessageType = "on-chat-message"
	MessageTypeChatTitleCreated  MessageType = "on-chat-title-created"
)

// String returns the wire tag
func (mt MessageType) String() string {
	return string(mt)
}

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
)

var validate = validator.New()

// Envelope is a single frame on the wire.
// Data is kept raw until Payload is called.
type Envelope struct {
	Type     MessageType     `json:"type"`
	Endpoint *string         `json:"endpoint"`
	Data     json.RawMessage `json:"data"`
}

// Encode encodes the envelope into a JSON frame
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode decodes a JSON frame into the envelope
func (e *Envelope) Decode(data []byte) error {
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}
	*e = decoded
	return nil
}

// EndpointName returns the endpoint address carried by the envelope, if any.
func (e Envelope) EndpointName() (string, bool) {
	if e.Endpoint == nil {
		return "", false
	}
	return *e.Endpoint, true
}

// Payload decodes Data according to Type.
// The result is one of RegisterEndpoints, ChatMessage or ChatTitleCreated.
func (e Envelope) Payload() (Payload, error) {
	switch e.Type {
	case MessageTypeRegisterEndpoints:
		var p RegisterEndpoints
		if isNull(e.Data) {
			return nil, fmt.Errorf("%w: %s without data", ErrInvalidPayload, e.Type)
		}
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, nil
	case MessageTypeChatMessage:
		return ChatMessage{Data: e.Data}, nil
	case MessageTypeChatTitleCreated:
		var p ChatTitleCreated
		if !isNull(e.Data) {
			if err := json.Unmarshal(e.Data, &p); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

// Payload is the decoded, type-specific content of an envelope.
// The set of implementations is closed.
type Payload interface {
	MessageType() MessageType
	isPayload()
}

// RegisterEndpoints carries the authoritative list of endpoint addresses.
type RegisterEndpoints struct {
	Endpoints []string `json:"endpoints"`
}

func (RegisterEndpoints) MessageType() MessageType { return MessageTypeRegisterEndpoints }
func (RegisterEndpoints) isPayload()               {}

// ChatMessage carries backend specific data addressed to one endpoint.
type ChatMessage struct {
	Data json.RawMessage
}

func (ChatMessage) MessageType() MessageType { return MessageTypeChatMessage }
func (ChatMessage) isPayload()               {}

// Value exposes the opaque backend data as a protobuf dynamic value.
func (p ChatMessage) Value() (*structpb.Value, error) {
	if isNull(p.Data) {
		return structpb.NewNullValue(), nil
	}
	v := &structpb.Value{}
	if err := protojson.Unmarshal(p.Data, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}

// ChatTitleCreated announces the generated title of a chat session.
type ChatTitleCreated struct {
	ChatID *int64 `json:"chatId" validate:"required"`
	Title  string `json:"title" validate:"required"`
}

func (ChatTitleCreated) MessageType() MessageType { return MessageTypeChatTitleCreated }
func (ChatTitleCreated) isPayload()               {}

// Validate reports whether the chat id is present and the title non-empty.
func (p ChatTitleCreated) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// NewRegisterEndpoints builds a register-endpoints envelope.
func NewRegisterEndpoints(endpoints []string) (Envelope, error) {
	if endpoints == nil {
		endpoints = []string{}
	}
	return newEnvelope(MessageTypeRegisterEndpoints, nil, RegisterEndpoints{Endpoints: endpoints})
}

// NewChatMessage builds an envelope addressed to endpoint.
// Byte slices inside data are sent as BinaryData.
func NewChatMessage(endpoint string, data any) (Envelope, error) {
	return newEnvelope(MessageTypeChatMessage, &endpoint, data)
}

// NewChatTitleCreated builds a chat-title-created envelope. title must not be
// empty.
func NewChatTitleCreated(chatID int64, title string) (Envelope, error) {
	payload := ChatTitleCreated{ChatID: &chatID, Title: title}
	if err := payload.Validate(); err != nil {
		return Envelope{}, err
	}
	return newEnvelope(MessageTypeChatTitleCreated, nil, payload)
}

func newEnvelope(mt MessageType, endpoint *string, data any) (Envelope, error) {
	raw, err := Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: mt, Endpoint: endpoint, Data: raw}, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
