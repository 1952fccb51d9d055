/*
Package event defines the wire events exchanged with chat clients.

Both directions are closed sets tagged by a "type" discriminator: Outbound is implemented only
by the server event structs in this file, Inbound only by the client event structs in inbound.go.
*/
package event

import (
	"encoding/json"

	"strangerchat/internal/pkg/errs"
)

// Type is the value of the "type" discriminator.
type Type string

// Outbound event types.
const (
	TypePaired    Type = "paired"
	TypeMessage   Type = "message"
	TypeTyping    Type = "typing"
	TypeSystem    Type = "system"
	TypeQueueSize Type = "queue_size"
	TypeError     Type = "error"
)

// SystemCode is the code carried by a system event.
type SystemCode string

const (
	// CodeIdle tells the client it is neither paired nor queued.
	CodeIdle SystemCode = "idle"

	// CodeSearching tells the client it was put back in the wait queue.
	CodeSearching SystemCode = "searching"

	// CodeReconnected tells the client its room survived the reconnect.
	CodeReconnected SystemCode = "reconnected"
)

// Outbound is a server-to-client event.
type Outbound interface {
	OutboundType() Type
}

// Partner describes the other participant of a room.
type Partner struct {
	ID     string `json:"id"`
	Avatar string `json:"avatar"`
}

// Paired announces a new room to one of its participants.
type Paired struct {
	Room      string  `json:"room"`
	Partner   Partner `json:"partner"`
	StartedAt int64   `json:"startedAt"`
}

// Message is a chat message relayed inside a room.
type Message struct {
	Room   string `json:"room"`
	Text   string `json:"text"`
	SentAt int64  `json:"sentAt"`
}

// Typing is a typing indicator relayed to the partner.
type Typing struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

// System is a lifecycle notice for the client.
type System struct {
	Code    SystemCode `json:"code"`
	Message string     `json:"message"`
}

// QueueSize carries the current wait-queue length.
type QueueSize struct {
	Count int `json:"count"`
}

// Error reports a rejected inbound event.
type Error struct {
	Message string `json:"message"`
}

func (Paired) OutboundType() Type    { return TypePaired }
func (Message) OutboundType() Type   { return TypeMessage }
func (Typing) OutboundType() Type    { return TypeTyping }
func (System) OutboundType() Type    { return TypeSystem }
func (QueueSize) OutboundType() Type { return TypeQueueSize }
func (Error) OutboundType() Type     { return TypeError }

// Canned system events.
var (
	PartnerLeft    = System{Code: CodeIdle, Message: "Partner left."}
	Searching      = System{Code: CodeSearching, Message: "Searching for the next stranger…"}
	Reconnected    = System{Code: CodeReconnected, Message: "Restored"}
	SessionExpired = System{Code: CodeIdle, Message: "Session expired"}
)

// FromError converts an application error into an error event.
func FromError(err *errs.CustomError) Error {
	if err == nil {
		err = errs.NewError(errs.ErrUnknown)
	}
	return Error{Message: err.Message}
}

// Encode serializes ev with its "type" discriminator inlined.
func Encode(ev Outbound) ([]byte, error) {
	return json.Marshal(ev)
}

func (e Paired) MarshalJSON() ([]byte, error) {
	type body Paired
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypePaired, body(e)})
}

func (e Message) MarshalJSON() ([]byte, error) {
	type body Message
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeMessage, body(e)})
}

func (e Typing) MarshalJSON() ([]byte, error) {
	type body Typing
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeTyping, body(e)})
}

func (e System) MarshalJSON() ([]byte, error) {
	type body System
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeSystem, body(e)})
}

func (e QueueSize) MarshalJSON() ([]byte, error) {
	type body QueueSize
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeQueueSize, body(e)})
}

func (e Error) MarshalJSON() ([]byte, error) {
	type body Error
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeError, body(e)})
}
