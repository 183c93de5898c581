package protocol

import (
	"encoding/json"

	"avatarkit/lipsync"
)

// MessageType enumerates the websocket chat message types.
type MessageType string

const (
	// Client -> server
	MsgChat MessageType = "chat"
	MsgPing MessageType = "ping"

	// Server -> client
	MsgMessages MessageType = "messages"
	MsgError    MessageType = "error"
	MsgPong     MessageType = "pong"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"` // Echoed back on the reply so clients can match requests.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatRequest is the body of POST /chat and the payload of a "chat" envelope.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatMessage is one line the avatar speaks.
type ChatMessage struct {
	Text             string        `json:"text"`
	FacialExpression string        `json:"facialExpression"`
	Animation        string        `json:"animation"`
	Audio            string        `json:"audio,omitempty"`         // Base64 encoded.
	AudioMimeType    string        `json:"audioMimeType,omitempty"` // Defaults to audio/mpeg on the client.
	Lipsync          *lipsync.Data `json:"lipsync,omitempty"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Messages []ChatMessage `json:"messages"`
}

// ErrorResponse is returned with non-2xx statuses and as the "error" payload.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
