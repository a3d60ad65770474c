package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	TypeAuth               = "auth"
	TypeMessageSend        = "message.send"
	TypeMessageRead        = "message.read"
	TypeMessageEdit        = "message.edit"
	TypeTypingStart        = "typing.start"
	TypeTypingStop         = "typing.stop"
	TypeFriendRequest      = "friend.request"
	TypeFriendAccept       = "friend.accept"
	TypeFriendReject       = "friend.reject"
	TypeFriendCancel       = "friend.cancel"
	TypeFriendRemove       = "friend.remove"
	TypeAllianceAction     = "alliance.action"
	TypeConversationCreate = "conversation.create"
	TypeConversationLeave  = "conversation.leave"
)

// Inbound is implemented by every client event payload.
type Inbound interface {
	InboundType() string
}

type MessageSend struct {
	ReceiverID     *uuid.UUID `json:"receiver_id" validate:"required_without=ConversationID"`
	ConversationID *uuid.UUID `json:"conversation_id" validate:"required_without=ReceiverID"`
	Text           string     `json:"text" validate:"max=4000"`
}

type MessageRead struct {
	MessageID uuid.UUID `json:"message_id" validate:"required"`
}

type MessageEdit struct {
	MessageID uuid.UUID `json:"message_id" validate:"required"`
	Text      string    `json:"text" validate:"max=4000"`
}

type TypingStart struct {
	ReceiverID     uuid.UUID  `json:"receiver_id" validate:"required"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

type TypingStop struct {
	ReceiverID     uuid.UUID  `json:"receiver_id" validate:"required"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

type FriendRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
}

type FriendAccept struct {
	RequestID uuid.UUID `json:"request_id" validate:"required"`
}

type FriendReject struct {
	RequestID uuid.UUID `json:"request_id" validate:"required"`
}

type FriendCancel struct {
	RequestID uuid.UUID `json:"request_id" validate:"required"`
}

type FriendRemove struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

type AllianceAction struct {
	AllianceID uuid.UUID       `json:"alliance_id" validate:"required"`
	Type       string          `json:"type" validate:"required,max=64"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type ConversationCreate struct {
	Title          string      `json:"title" validate:"required,max=120"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1,max=49"`
}

type ConversationLeave struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
}

func (MessageSend) InboundType() string        { return TypeMessageSend }
func (MessageRead) InboundType() string        { return TypeMessageRead }
func (MessageEdit) InboundType() string        { return TypeMessageEdit }
func (TypingStart) InboundType() string        { return TypeTypingStart }
func (TypingStop) InboundType() string         { return TypeTypingStop }
func (FriendRequest) InboundType() string      { return TypeFriendRequest }
func (FriendAccept) InboundType() string       { return TypeFriendAccept }
func (FriendReject) InboundType() string       { return TypeFriendReject }
func (FriendCancel) InboundType() string       { return TypeFriendCancel }
func (FriendRemove) InboundType() string       { return TypeFriendRemove }
func (AllianceAction) InboundType() string     { return TypeAllianceAction }
func (ConversationCreate) InboundType() string { return TypeConversationCreate }
func (ConversationLeave) InboundType() string  { return TypeConversationLeave }

// inboundDecoders maps an event type to a decoder of its data object.
var inboundDecoders = map[string]func([]byte) (Inbound, error){
	TypeMessageSend:        decodeInto[MessageSend],
	TypeMessageRead:        decodeInto[MessageRead],
	TypeMessageEdit:        decodeInto[MessageEdit],
	TypeTypingStart:        decodeInto[TypingStart],
	TypeTypingStop:         decodeInto[TypingStop],
	TypeFriendRequest:      decodeInto[FriendRequest],
	TypeFriendAccept:       decodeInto[FriendAccept],
	TypeFriendReject:       decodeInto[FriendReject],
	TypeFriendCancel:       decodeInto[FriendCancel],
	TypeFriendRemove:       decodeInto[FriendRemove],
	TypeAllianceAction:     decodeInto[AllianceAction],
	TypeConversationCreate: decodeInto[ConversationCreate],
	TypeConversationLeave:  decodeInto[ConversationLeave],
}

func decodeInto[T Inbound](data []byte) (Inbound, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if err := validate.Struct(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
