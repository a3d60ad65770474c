package protocol

import (
	"encoding/json"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"github.com/google/uuid"
)

const (
	TypeSessionEstablished     = "session.established"
	TypeMessageReceived        = "message.received"
	TypeMessageSent            = "message.sent"
	TypeMessageReadNotice      = "message.read"
	TypeMessageEdited          = "message.edited"
	TypeTypingIndicator        = "typing.indicator"
	TypeFriendRequestReceived  = "friend.request.received"
	TypeFriendRequestSent      = "friend.request.sent"
	TypeFriendAccepted         = "friend.accepted"
	TypeFriendRequestRejected  = "friend.request.rejected"
	TypeFriendRequestCancelled = "friend.request.cancelled"
	TypeFriendRemoved          = "friend.removed"
	TypeAllianceUpdate         = "alliance.update"
	TypeConversationCreated    = "conversation.created"
	TypeConversationLeft       = "conversation.left"
	TypeUserOnline             = "user.online"
	TypeUserOffline            = "user.offline"
	TypeError                  = "error"
)

// Outbound is implemented by every server event payload.
type Outbound interface {
	OutboundType() string
}

// Frame is the wire envelope of an outbound event.
type Frame struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Data      Outbound  `json:"data"`
	SentAt    time.Time `json:"sent_at"`
}

// Encode wraps ev in a Frame. requestID is echoed on acks and errors only.
func Encode(requestID string, ev Outbound) ([]byte, error) {
	return json.Marshal(Frame{
		Type:      ev.OutboundType(),
		RequestID: requestID,
		Data:      ev,
		SentAt:    time.Now().UTC(),
	})
}

type MessageView struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Text           string     `json:"text"`
	Seq            int64      `json:"seq"`
	CreatedAt      time.Time  `json:"created_at"`
	IsRead         bool       `json:"is_read"`
	IsEdited       bool       `json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
}

func NewMessageView(m *models.Message) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Content,
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt,
		IsRead:         m.IsRead,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
	}
}

type FriendRequestView struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Status     string    `json:"status"`
}

func NewFriendRequestView(r *models.FriendRequest) FriendRequestView {
	return FriendRequestView{ID: r.ID, SenderID: r.SenderID, ReceiverID: r.ReceiverID, Status: r.Status}
}

type SessionEstablished struct {
	SessionID  uuid.UUID  `json:"session_id"`
	UserID     uuid.UUID  `json:"user_id"`
	AllianceID *uuid.UUID `json:"alliance_id,omitempty"`
}

type MessageReceived struct {
	Message MessageView `json:"message"`
}

type MessageSent struct {
	Message             MessageView `json:"message"`
	ConversationCreated bool        `json:"conversation_created"`
}

type MessageReadNotice struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

type MessageEdited struct {
	Message MessageView `json:"message"`
}

type TypingIndicator struct {
	UserID         uuid.UUID  `json:"user_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Typing         bool       `json:"typing"`
}

type FriendRequestReceived struct {
	Request FriendRequestView `json:"request"`
}

type FriendRequestSent struct {
	Request FriendRequestView `json:"request"`
}

type FriendAccepted struct {
	Request FriendRequestView `json:"request"`
}

type FriendRequestRejected struct {
	Request FriendRequestView `json:"request"`
}

type FriendRequestCancelled struct {
	Request FriendRequestView `json:"request"`
}

type FriendRemoved struct {
	UserID uuid.UUID `json:"user_id"`
}

type AllianceUpdate struct {
	AllianceID uuid.UUID       `json:"alliance_id"`
	ActorID    uuid.UUID       `json:"actor_id"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type ConversationCreated struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	Kind           string      `json:"kind"`
	Title          *string     `json:"title,omitempty"`
	CreatorID      uuid.UUID   `json:"creator_id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type ConversationLeft struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
}

type UserOnline struct {
	UserID uuid.UUID `json:"user_id"`
}

type UserOffline struct {
	UserID   uuid.UUID `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

func (SessionEstablished) OutboundType() string     { return TypeSessionEstablished }
func (MessageReceived) OutboundType() string        { return TypeMessageReceived }
func (MessageSent) OutboundType() string            { return TypeMessageSent }
func (MessageReadNotice) OutboundType() string      { return TypeMessageReadNotice }
func (MessageEdited) OutboundType() string          { return TypeMessageEdited }
func (TypingIndicator) OutboundType() string        { return TypeTypingIndicator }
func (FriendRequestReceived) OutboundType() string  { return TypeFriendRequestReceived }
func (FriendRequestSent) OutboundType() string      { return TypeFriendRequestSent }
func (FriendAccepted) OutboundType() string         { return TypeFriendAccepted }
func (FriendRequestRejected) OutboundType() string  { return TypeFriendRequestRejected }
func (FriendRequestCancelled) OutboundType() string { return TypeFriendRequestCancelled }
func (FriendRemoved) OutboundType() string          { return TypeFriendRemoved }
func (AllianceUpdate) OutboundType() string         { return TypeAllianceUpdate }
func (ConversationCreated) OutboundType() string    { return TypeConversationCreated }
func (ConversationLeft) OutboundType() string       { return TypeConversationLeft }
func (UserOnline) OutboundType() string             { return TypeUserOnline }
func (UserOffline) OutboundType() string            { return TypeUserOffline }
func (Error) OutboundType() string                  { return TypeError }
