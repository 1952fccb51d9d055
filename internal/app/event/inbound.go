package event

import (
	"encoding/json"

	"strangerchat/internal/pkg/errs"
)

// Inbound event types.
const (
	TypeJoinQueue    Type = "join_queue"
	TypeReconnect    Type = "reconnect"
	TypeRegisterPush Type = "register_push"
	TypeNext         Type = "next"
	TypeLeave        Type = "leave"
)

// Inbound is a client-to-server event.
type Inbound interface {
	InboundType() Type
}

// JoinQueue registers the connection under UserID and queues it for pairing.
type JoinQueue struct {
	UserID string
	Avatar string
}

// Reconnect reattaches a dropped session to this connection.
type Reconnect struct {
	UserID string
}

// RegisterPush forwards a device push token to the token store. UserID may be empty.
type RegisterPush struct {
	UserID     string
	Token      string
	DeviceName string
}

// SendMessage relays a chat message to the room.
type SendMessage struct {
	Room   string
	Text   string
	SentAt int64
}

// SetTyping relays a typing indicator to the partner.
type SetTyping struct {
	Room     string
	IsTyping bool
}

// Next abandons the current room and queues again.
type Next struct{}

// Leave abandons the current room and ends the session.
type Leave struct{}

func (JoinQueue) InboundType() Type    { return TypeJoinQueue }
func (Reconnect) InboundType() Type    { return TypeReconnect }
func (RegisterPush) InboundType() Type { return TypeRegisterPush }
func (SendMessage) InboundType() Type  { return TypeMessage }
func (SetTyping) InboundType() Type    { return TypeTyping }
func (Next) InboundType() Type         { return TypeNext }
func (Leave) InboundType() Type        { return TypeLeave }

// wireInbound is the flat union of every inbound field.
type wireInbound struct {
	Type       Type   `json:"type"`
	UserID     string `json:"userId"`
	Avatar     string `json:"avatar"`
	Token      string `json:"token"`
	DeviceName string `json:"deviceName"`
	Room       string `json:"room"`
	Text       string `json:"text"`
	SentAt     int64  `json:"sentAt"`
	IsTyping   bool   `json:"isTyping"`
}

// Decode parses one inbound frame. Unparseable frames, unknown types and missing
// join/reconnect fields are reported as CustomErrors and must not change any state.
func Decode(data []byte) (Inbound, *errs.CustomError) {
	var w wireInbound
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.NewError(errs.ErrInvalidJSONFormat)
	}

	switch w.Type {
	case TypeJoinQueue:
		if w.UserID == "" || w.Avatar == "" {
			return nil, errs.NewError(errs.ErrMissingJoinFields)
		}
		return JoinQueue{UserID: w.UserID, Avatar: w.Avatar}, nil

	case TypeReconnect:
		if w.UserID == "" {
			return nil, errs.NewError(errs.ErrMissingUserID)
		}
		return Reconnect{UserID: w.UserID}, nil

	case TypeRegisterPush:
		return RegisterPush{UserID: w.UserID, Token: w.Token, DeviceName: w.DeviceName}, nil

	case TypeMessage:
		return SendMessage{Room: w.Room, Text: w.Text, SentAt: w.SentAt}, nil

	case TypeTyping:
		return SetTyping{Room: w.Room, IsTyping: w.IsTyping}, nil

	case TypeNext:
		return Next{}, nil

	case TypeLeave:
		return Leave{}, nil

	default:
		return nil, errs.NewError(errs.ErrUnknownEventType)
	}
}
