package websocket

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/protocol"
	"github.com/anjiri1684/guild_social/services"
)

// Services are the collaborators event handlers may call.
type Services struct {
	Identity      services.IdentityVerifier
	Conversations *services.ConversationService
	Friends       *services.FriendService
	Alliances     *services.AllianceService
	LastSeen      services.LastSeenStore
}

// Broadcast is one room delivery produced by a handler. Except names a
// session that must not receive it.
type Broadcast struct {
	Room   string
	Event  protocol.Outbound
	Except uuid.UUID
}

// Result is what a successful handler asks the gateway to send: an optional
// ack for the originating session and any number of room broadcasts.
type Result struct {
	Ack        protocol.Outbound
	Broadcasts []Broadcast
}

func (r *Result) toUsers(ids []uuid.UUID, ev protocol.Outbound) {
	for _, id := range ids {
		r.Broadcasts = append(r.Broadcasts, Broadcast{Room: UserRoom(id), Event: ev})
	}
}

type handlerFunc func(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error)

var dispatch = map[string]handlerFunc{
	protocol.TypeMessageSend:        handleMessageSend,
	protocol.TypeMessageRead:        handleMessageRead,
	protocol.TypeMessageEdit:        handleMessageEdit,
	protocol.TypeTypingStart:        handleTyping,
	protocol.TypeTypingStop:         handleTyping,
	protocol.TypeFriendRequest:      handleFriendRequest,
	protocol.TypeFriendAccept:       handleFriendAccept,
	protocol.TypeFriendReject:       handleFriendReject,
	protocol.TypeFriendCancel:       handleFriendCancel,
	protocol.TypeFriendRemove:       handleFriendRemove,
	protocol.TypeAllianceAction:     handleAllianceAction,
	protocol.TypeConversationCreate: handleConversationCreate,
	protocol.TypeConversationLeave:  handleConversationLeave,
}

func unexpected(ev protocol.Inbound) error {
	return fmt.Errorf("unexpected payload %T", ev)
}

func handleMessageSend(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.MessageSend)
	if !ok {
		return nil, unexpected(ev)
	}

	delivery, err := svc.Conversations.SendMessage(ctx, services.SendMessageInput{
		SenderID:       s.UserID(),
		ReceiverID:     in.ReceiverID,
		ConversationID: in.ConversationID,
		Text:           in.Text,
	})
	if err != nil {
		return nil, err
	}

	view := protocol.NewMessageView(delivery.Message)
	res := &Result{Ack: protocol.MessageSent{Message: view, ConversationCreated: delivery.ConversationCreated}}
	res.toUsers(delivery.RecipientIDs, protocol.MessageReceived{Message: view})
	return res, nil
}

func handleMessageRead(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.MessageRead)
	if !ok {
		return nil, unexpected(ev)
	}

	msg, changed, err := svc.Conversations.MarkRead(ctx, in.MessageID, s.UserID())
	if err != nil {
		return nil, err
	}

	notice := protocol.MessageReadNotice{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		ReaderID:       s.UserID(),
	}
	if msg.ReadAt != nil {
		notice.ReadAt = *msg.ReadAt
	}

	res := &Result{Ack: notice}
	if changed {
		res.toUsers([]uuid.UUID{msg.SenderID}, notice)
	}
	return res, nil
}

func handleMessageEdit(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.MessageEdit)
	if !ok {
		return nil, unexpected(ev)
	}

	msg, recipients, err := svc.Conversations.EditMessage(ctx, in.MessageID, s.UserID(), in.Text)
	if err != nil {
		return nil, err
	}

	edited := protocol.MessageEdited{Message: protocol.NewMessageView(msg)}
	res := &Result{Ack: edited}
	res.toUsers(recipients, edited)
	return res, nil
}

// Typing is never persisted and has no ack.
func handleTyping(_ context.Context, _ *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	var indicator protocol.TypingIndicator
	var receiver uuid.UUID

	switch in := ev.(type) {
	case protocol.TypingStart:
		receiver = in.ReceiverID
		indicator = protocol.TypingIndicator{UserID: s.UserID(), ConversationID: in.ConversationID, Typing: true}
	case protocol.TypingStop:
		receiver = in.ReceiverID
		indicator = protocol.TypingIndicator{UserID: s.UserID(), ConversationID: in.ConversationID, Typing: false}
	default:
		return nil, unexpected(ev)
	}

	if receiver == s.UserID() {
		return nil, services.ValidationError("cannot send typing indicators to yourself")
	}

	res := &Result{}
	res.toUsers([]uuid.UUID{receiver}, indicator)
	return res, nil
}

func handleFriendRequest(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.FriendRequest)
	if !ok {
		return nil, unexpected(ev)
	}

	req, err := svc.Friends.SendRequest(ctx, s.UserID(), in.ReceiverID)
	if err != nil {
		return nil, err
	}

	view := protocol.NewFriendRequestView(req)
	res := &Result{Ack: protocol.FriendRequestSent{Request: view}}
	res.toUsers([]uuid.UUID{req.ReceiverID}, protocol.FriendRequestReceived{Request: view})
	return res, nil
}

func handleFriendAccept(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.FriendAccept)
	if !ok {
		return nil, unexpected(ev)
	}

	req, err := svc.Friends.Accept(ctx, in.RequestID, s.UserID())
	if err != nil {
		return nil, err
	}

	accepted := protocol.FriendAccepted{Request: protocol.NewFriendRequestView(req)}
	res := &Result{Ack: accepted}
	res.toUsers([]uuid.UUID{req.SenderID}, accepted)
	return res, nil
}

func handleFriendReject(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.FriendReject)
	if !ok {
		return nil, unexpected(ev)
	}

	req, err := svc.Friends.Reject(ctx, in.RequestID, s.UserID())
	if err != nil {
		return nil, err
	}
	return &Result{Ack: protocol.FriendRequestRejected{Request: protocol.NewFriendRequestView(req)}}, nil
}

func handleFriendCancel(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.FriendCancel)
	if !ok {
		return nil, unexpected(ev)
	}

	req, err := svc.Friends.Cancel(ctx, in.RequestID, s.UserID())
	if err != nil {
		return nil, err
	}

	cancelled := protocol.FriendRequestCancelled{Request: protocol.NewFriendRequestView(req)}
	res := &Result{Ack: cancelled}
	res.toUsers([]uuid.UUID{req.ReceiverID}, cancelled)
	return res, nil
}

func handleFriendRemove(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.FriendRemove)
	if !ok {
		return nil, unexpected(ev)
	}

	if _, err := svc.Friends.Remove(ctx, s.UserID(), in.UserID); err != nil {
		return nil, err
	}

	res := &Result{Ack: protocol.FriendRemoved{UserID: in.UserID}}
	res.toUsers([]uuid.UUID{in.UserID}, protocol.FriendRemoved{UserID: s.UserID()})
	return res, nil
}

// The acting session gets the update as its ack, so it is excluded from the
// room broadcast.
func handleAllianceAction(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.AllianceAction)
	if !ok {
		return nil, unexpected(ev)
	}

	if err := svc.Alliances.RequireActiveMember(ctx, in.AllianceID, s.UserID()); err != nil {
		return nil, err
	}

	update := protocol.AllianceUpdate{
		AllianceID: in.AllianceID,
		ActorID:    s.UserID(),
		Action:     in.Type,
		Payload:    in.Payload,
	}
	return &Result{
		Ack:        update,
		Broadcasts: []Broadcast{{Room: AllianceRoom(in.AllianceID), Event: update, Except: s.ID()}},
	}, nil
}

func handleConversationCreate(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.ConversationCreate)
	if !ok {
		return nil, unexpected(ev)
	}

	conv, members, err := svc.Conversations.CreateGroup(ctx, s.UserID(), in.Title, in.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	created := protocol.ConversationCreated{
		ConversationID: conv.ID,
		Kind:           models.ConversationGroup,
		Title:          conv.Title,
		CreatorID:      s.UserID(),
		ParticipantIDs: members,
	}
	res := &Result{Ack: created}
	res.toUsers(members[1:], created)
	return res, nil
}

func handleConversationLeave(ctx context.Context, svc *Services, s *Session, ev protocol.Inbound) (*Result, error) {
	in, ok := ev.(protocol.ConversationLeave)
	if !ok {
		return nil, unexpected(ev)
	}

	conv, remaining, err := svc.Conversations.Leave(ctx, in.ConversationID, s.UserID())
	if err != nil {
		return nil, err
	}

	left := protocol.ConversationLeft{ConversationID: conv.ID, UserID: s.UserID()}
	res := &Result{Ack: left}
	res.toUsers(remaining, left)
	return res, nil
}
