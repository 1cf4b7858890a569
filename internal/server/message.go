// Package server provides the HTTP API and WebSocket realtime channel. The
// HTTP surface handles authentication, system info, and command execution;
// the WebSocket channel carries status updates, log lines, and command
// round-trips for connected peers.
package server

import (
	"encoding/json"
	"log"
)

// MessageType identifies the kind of message on the realtime channel.
type MessageType string

const (
	// MessageTypePing is a client liveness probe; answered with pong.
	MessageTypePing MessageType = "ping"

	// MessageTypePong answers a ping.
	MessageTypePong MessageType = "pong"

	// MessageTypeAuth is sent by clients to authenticate the socket with a
	// session token. Payload: AuthPayload.
	MessageTypeAuth MessageType = "auth"

	// MessageTypeAuthSuccess confirms socket authentication.
	MessageTypeAuthSuccess MessageType = "auth_success"

	// MessageTypeAuthError rejects socket authentication.
	// Payload: ErrorPayload.
	MessageTypeAuthError MessageType = "auth_error"

	// MessageTypeStatusUpdate carries periodic host vitals.
	// Payload: StatusUpdatePayload.
	MessageTypeStatusUpdate MessageType = "status_update"

	// MessageTypeLog streams a host log line to clients.
	// Payload: LogPayload.
	MessageTypeLog MessageType = "log"

	// MessageTypeCommandRequest is sent by clients to run a command.
	// Payload: CommandRequestPayload.
	MessageTypeCommandRequest MessageType = "command_request"

	// MessageTypeCommandResponse answers a command request.
	// Payload: CommandResponsePayload.
	MessageTypeCommandResponse MessageType = "command_response"

	// MessageTypeError reports a protocol-level failure.
	// Payload: ErrorPayload.
	MessageTypeError MessageType = "error"
)

// Message is the wire envelope: a type tag plus a type-specific payload.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthPayload carries the session token for socket authentication.
type AuthPayload struct {
	Token string `json:"token"`
}

// StatusUpdatePayload carries host vitals for the periodic broadcast.
type StatusUpdatePayload struct {
	Online      bool    `json:"online"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

// LogPayload streams one host log line.
type LogPayload struct {
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// CommandRequestPayload asks the host to run a command. The ID is echoed in
// the response so clients can match round-trips.
type CommandRequestPayload struct {
	ID      string   `json:"id"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// CommandResponsePayload answers a command request.
type CommandResponsePayload struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// ErrorPayload carries a human-readable failure message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// newMessage builds an envelope around a payload. A nil payload yields an
// envelope with no data field.
func newMessage(t MessageType, payload any) Message {
	if payload == nil {
		return Message{Type: t}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("server: marshal %s payload: %v", t, err)
		return Message{Type: t}
	}
	return Message{Type: t, Data: data}
}

// NewStatusUpdateMessage builds a status broadcast.
func NewStatusUpdateMessage(cpu, memory float64) Message {
	return newMessage(MessageTypeStatusUpdate, StatusUpdatePayload{
		Online:      true,
		CPUUsage:    cpu,
		MemoryUsage: memory,
	})
}

// NewLogMessage builds a log broadcast.
func NewLogMessage(ts int64, level, text string) Message {
	return newMessage(MessageTypeLog, LogPayload{Timestamp: ts, Level: level, Message: text})
}

// NewErrorMessage builds a protocol error.
func NewErrorMessage(text string) Message {
	return newMessage(MessageTypeError, ErrorPayload{Message: text})
}
