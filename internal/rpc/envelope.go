// Package rpc is the request/response transport between services: JSON
// commands posted to /rpc/<cmd>, answered with a {success, message, data}
// envelope.
package rpc

import "encoding/json"

// Envelope is the wire shape of every reply.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Reply is what a command handler returns when it did not fail outright.
// A Reply with Success=false is a business outcome (a declined charge, say)
// and still travels with status 200.
type Reply struct {
	Success bool
	Message string
	Data    any
}

func OK(message string, data any) Reply {
	return Reply{Success: true, Message: message, Data: data}
}

func Fail(message string, data any) Reply {
	return Reply{Success: false, Message: message, Data: data}
}

// Result is the caller's view of a reply that came back without a transport
// or status error.
type Result struct {
	Success bool
	Message string
	Status  int
}
