package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/omochice/endpoint-mux/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Decode(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantType     protocol.MessageType
		wantEndpoint string
		hasEndpoint  bool
		wantErr      bool
	}{
		{
			name:     "decode register-endpoints",
			data:     `{"type":"register-endpoints","endpoint":null,"data":{"endpoints":["a","b"]}}`,
			wantType: protocol.MessageTypeRegisterEndpoints,
		},
		{
			name:         "decode chat message with endpoint",
			data:         `{"type":"on-chat-message","endpoint":"http://gpu-1:11434","data":{"token":"hi"}}`,
			wantType:     protocol.MessageTypeChatMessage,
			wantEndpoint: "http://gpu-1:11434",
			hasEndpoint:  true,
		},
		{
			name:     "decode envelope without endpoint key",
			data:     `{"type":"on-chat-title-created","data":{"chatId":1,"title":"t"}}`,
			wantType: protocol.MessageTypeChatTitleCreated,
		},
		{
			name:    "fail on invalid json",
			data:    `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			var env protocol.Envelope
			err := env.Decode([]byte(tt.data))
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.Equal(tt.wantType, env.Type)
			endpoint, ok := env.EndpointName()
			req.Equal(tt.hasEndpoint, ok)
			req.Equal(tt.wantEndpoint, endpoint)
		})
	}
}

func TestEnvelope_EncodeDecode(t *testing.T) {
	req := require.New(t)
	env, err := protocol.NewChatMessage("a", map[string]any{"content": "hello"})
	req.NoError(err)

	data, err := env.Encode()
	req.NoError(err)

	var decoded protocol.Envelope
	req.NoError(decoded.Decode(data))
	req.Equal(protocol.MessageTypeChatMessage, decoded.Type)
	req.NotNil(decoded.Endpoint)
	req.Equal("a", *decoded.Endpoint)
	req.JSONEq(`{"content":"hello"}`, string(decoded.Data))
}

func TestEnvelope_EncodeNullEndpoint(t *testing.T) {
	req := require.New(t)
	env, err := protocol.NewRegisterEndpoints(nil)
	req.NoError(err)

	data, err := env.Encode()
	req.NoError(err)
	req.JSONEq(`{"type":"register-endpoints","endpoint":null,"data":{"endpoints":[]}}`, string(data))
}

func TestEnvelope_Payload(t *testing.T) {
	tests := []struct {
		name    string
		env     protocol.Envelope
		want    protocol.Payload
		wantErr error
	}{
		{
			name: "register endpoints",
			env: protocol.Envelope{
				Type: protocol.MessageTypeRegisterEndpoints,
				Data: json.RawMessage(`{"endpoints":["a","b"]}`),
			},
			want: protocol.RegisterEndpoints{Endpoints: []string{"a", "b"}},
		},
		{
			name:    "register endpoints without data",
			env:     protocol.Envelope{Type: protocol.MessageTypeRegisterEndpoints},
			wantErr: protocol.ErrInvalidPayload,
		},
		{
			name: "register endpoints with wrong shape",
			env: protocol.Envelope{
				Type: protocol.MessageTypeRegisterEndpoints,
				Data: json.RawMessage(`{"endpoints":"a"}`),
			},
			wantErr: protocol.ErrInvalidPayload,
		},
		{
			name: "chat message stays opaque",
			env: protocol.Envelope{
				Type: protocol.MessageTypeChatMessage,
				Data: json.RawMessage(`[1,2,3]`),
			},
			want: protocol.ChatMessage{Data: json.RawMessage(`[1,2,3]`)},
		},
		{
			name: "chat title with null chat id",
			env: protocol.Envelope{
				Type: protocol.MessageTypeChatTitleCreated,
				Data: json.RawMessage(`{"chatId":null,"title":"x"}`),
			},
			want: protocol.ChatTitleCreated{Title: "x"},
		},
		{
			name:    "unknown type",
			env:     protocol.Envelope{Type: "on-something-else"},
			wantErr: protocol.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := tt.env.Payload()
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
			req.Equal(tt.env.Type, got.MessageType())
		})
	}
}

func TestChatTitleCreated_Validate(t *testing.T) {
	id := int64(0)
	tests := []struct {
		name    string
		payload protocol.ChatTitleCreated
		wantErr bool
	}{
		{name: "valid with zero id", payload: protocol.ChatTitleCreated{ChatID: &id, Title: "Intro"}},
		{name: "missing chat id", payload: protocol.ChatTitleCreated{Title: "Intro"}, wantErr: true},
		{name: "empty title", payload: protocol.ChatTitleCreated{ChatID: &id}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, protocol.ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestChatMessage_Value(t *testing.T) {
	req := require.New(t)
	msg := protocol.ChatMessage{Data: json.RawMessage(`{"done":true,"response":"ok"}`)}

	v, err := msg.Value()
	req.NoError(err)
	fields := v.GetStructValue().GetFields()
	req.True(fields["done"].GetBoolValue())
	req.Equal("ok", fields["response"].GetStringValue())

	null, err := protocol.ChatMessage{}.Value()
	req.NoError(err)
	req.NotNil(null.GetKind())
}

func TestNewChatTitleCreated_EmptyTitle(t *testing.T) {
	_, err := protocol.NewChatTitleCreated(7, "")

	require.Error(t, err)
}
