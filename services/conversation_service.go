package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anjiri1684/guild_social/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxMessageLength  = 4000
	maxGroupSize      = 50
	defaultPageSize   = 50
	maxPageSize       = 200
	maxGroupTitleSize = 120
)

type conversationStore interface {
	UserStore
	ConversationStore
	MessageStore
}

type ConversationService struct {
	store   conversationStore
	logger  *zap.Logger
	pairs   *KeyedMutex
	appends *KeyedMutex
	now     func() time.Time
}

// ChatDelivery is the result of a successful send: the stored message and
// the users that should receive it.
type ChatDelivery struct {
	Conversation        *models.Conversation
	Message             *models.Message
	RecipientIDs        []uuid.UUID
	ConversationCreated bool
}

type SendMessageInput struct {
	SenderID       uuid.UUID
	ReceiverID     *uuid.UUID
	ConversationID *uuid.UUID
	Text           string
}

func NewConversationService(store conversationStore, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		store:   store,
		logger:  logger,
		pairs:   NewKeyedMutex(),
		appends: NewKeyedMutex(),
		now:     time.Now,
	}
}

// ResolveOrCreateDirect returns the single direct conversation of the pair,
// creating it when missing. Creation is serialized per pair in-process and
// backed by the store's unique direct key; losing a create race falls back to
// reading the winner.
func (s *ConversationService) ResolveOrCreateDirect(ctx context.Context, a, b uuid.UUID) (*models.Conversation, bool, error) {
	if a == b {
		return nil, false, validationError("cannot start a conversation with yourself")
	}

	key := models.DirectKey(a, b)
	unlock := s.pairs.Lock(key)
	defer unlock()

	conv, err := s.store.FindDirectConversation(ctx, key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, false, storageError("find direct conversation", err)
	}

	conv = &models.Conversation{Kind: models.ConversationDirect, DirectKey: &key}
	err = s.store.CreateDirectConversation(ctx, conv, a, b)
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, ErrDuplicateRecord) {
		return nil, false, storageError("create direct conversation", err)
	}

	s.logger.Debug("direct conversation create lost race, reading winner", zap.String("direct_key", key))
	winner, err := s.store.FindDirectConversation(ctx, key)
	if err != nil {
		return nil, false, storageError("find direct conversation after conflict", err)
	}
	return winner, false, nil
}

// openDirect returns the pair's existing conversation for the caller to
// append to. When there is none it creates the conversation in the same
// write as the first message and returns the finished delivery, so a failed
// first send leaves nothing behind.
func (s *ConversationService) openDirect(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*ChatDelivery, error) {
	key := models.DirectKey(senderID, receiverID)
	unlock := s.pairs.Lock(key)
	defer unlock()

	conv, err := s.store.FindDirectConversation(ctx, key)
	if err == nil {
		return &ChatDelivery{Conversation: conv}, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, storageError("find direct conversation", err)
	}

	conv = &models.Conversation{Kind: models.ConversationDirect, DirectKey: &key}
	msg := &models.Message{
		SenderID:  senderID,
		Content:   text,
		Seq:       1,
		CreatedAt: s.now().UTC(),
	}
	err = s.store.StartDirectConversation(ctx, conv, senderID, receiverID, msg)
	if err == nil {
		return &ChatDelivery{
			Conversation:        conv,
			Message:             msg,
			RecipientIDs:        []uuid.UUID{receiverID},
			ConversationCreated: true,
		}, nil
	}
	if !errors.Is(err, ErrDuplicateRecord) {
		return nil, storageError("start direct conversation", err)
	}

	s.logger.Debug("direct conversation start lost race, reading winner", zap.String("direct_key", key))
	winner, err := s.store.FindDirectConversation(ctx, key)
	if err != nil {
		return nil, storageError("find direct conversation after conflict", err)
	}
	return &ChatDelivery{Conversation: winner}, nil
}

// CreateGroup creates a group conversation containing the creator and the
// given members.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID uuid.UUID, title string, memberIDs []uuid.UUID) (*models.Conversation, []uuid.UUID, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil, validationError("group title is required")
	}
	if utf8.RuneCountInString(title) > maxGroupTitleSize {
		return nil, nil, validationError("group title is too long")
	}

	seen := map[uuid.UUID]struct{}{creatorID: {}}
	members := []uuid.UUID{creatorID}
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return nil, nil, validationError("a group needs at least one other participant")
	}
	if len(members) > maxGroupSize {
		return nil, nil, validationError("too many participants")
	}

	for _, id := range members[1:] {
		if err := s.requireActiveUser(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	conv := &models.Conversation{Kind: models.ConversationGroup, Title: &title}
	if err := s.store.CreateGroupConversation(ctx, conv, members); err != nil {
		return nil, nil, storageError("create group conversation", err)
	}
	return conv, members, nil
}

// SendMessage validates the text, resolves the target conversation and
// appends the message.
func (s *ConversationService) SendMessage(ctx context.Context, in SendMessageInput) (*ChatDelivery, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, validationError("message text must not be empty")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, validationError("message text is too long")
	}

	var (
		conv *models.Conversation
		err  error
	)

	switch {
	case in.ConversationID != nil:
		conv, err = s.findConversation(ctx, *in.ConversationID)
		if err != nil {
			return nil, err
		}
	case in.ReceiverID != nil:
		if *in.ReceiverID == in.SenderID {
			return nil, validationError("cannot send a message to yourself")
		}
		if err := s.requireActiveUser(ctx, *in.ReceiverID); err != nil {
			return nil, err
		}
		d, err := s.openDirect(ctx, in.SenderID, *in.ReceiverID, text)
		if err != nil {
			return nil, err
		}
		if d.Message != nil {
			return d, nil
		}
		conv = d.Conversation
	default:
		return nil, validationError("receiver_id or conversation_id is required")
	}

	participants, err := s.store.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, storageError("list participants", err)
	}
	if !isActiveParticipant(participants, in.SenderID) {
		return nil, authorizationError("not a participant of this conversation")
	}
	if in.ConversationID != nil && in.ReceiverID != nil && !isActiveParticipant(participants, *in.ReceiverID) {
		return nil, validationError("receiver is not a participant of this conversation")
	}

	msg, err := s.AppendMessage(ctx, conv, in.SenderID, text)
	if err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Conversation: conv,
		Message:      msg,
		RecipientIDs: otherActive(participants, in.SenderID),
	}, nil
}

// AppendMessage assigns the next sequence number of the conversation and a
// created_at that never goes backwards, then persists both atomically.
func (s *ConversationService) AppendMessage(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, text string) (*models.Message, error) {
	unlock := s.appends.Lock(conv.ID.String())
	defer unlock()

	current, err := s.store.FindConversation(ctx, conv.ID)
	if err != nil {
		return nil, storageError("reload conversation", err)
	}

	createdAt := s.now().UTC()
	if current.LastMessageAt != nil && createdAt.Before(*current.LastMessageAt) {
		createdAt = *current.LastMessageAt
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        text,
		Seq:            current.LastSeq + 1,
		CreatedAt:      createdAt,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, storageError("append message", err)
	}

	conv.LastSeq = msg.Seq
	conv.LastMessageID = &msg.ID
	conv.LastMessageAt = &msg.CreatedAt
	return msg, nil
}

// MarkRead marks the message read on behalf of its receiver. The second
// return value is false when the message was already read.
func (s *ConversationService) MarkRead(ctx context.Context, messageID, readerID uuid.UUID) (*models.Message, bool, error) {
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if msg.SenderID == readerID {
		return nil, false, authorizationError("only the receiver may mark a message read")
	}

	participants, err := s.store.ListParticipants(ctx, msg.ConversationID)
	if err != nil {
		return nil, false, storageError("list participants", err)
	}
	if !isActiveParticipant(participants, readerID) {
		return nil, false, authorizationError("only the receiver may mark a message read")
	}

	if msg.IsRead {
		return msg, false, nil
	}

	readAt := s.now().UTC()
	changed, err := s.store.MarkMessageRead(ctx, messageID, readAt)
	if err != nil {
		return nil, false, storageError("mark message read", err)
	}
	if changed {
		msg.IsRead = true
		msg.ReadAt = &readAt
	}
	return msg, changed, nil
}

// EditMessage replaces the text of a message. Only its sender may edit it.
func (s *ConversationService) EditMessage(ctx context.Context, messageID, editorID uuid.UUID, text string) (*models.Message, []uuid.UUID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, validationError("message text must not be empty")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, nil, validationError("message text is too long")
	}

	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.SenderID != editorID {
		return nil, nil, authorizationError("only the sender may edit a message")
	}

	participants, err := s.store.ListParticipants(ctx, msg.ConversationID)
	if err != nil {
		return nil, nil, storageError("list participants", err)
	}
	if !isActiveParticipant(participants, editorID) {
		return nil, nil, authorizationError("not a participant of this conversation")
	}

	editedAt := s.now().UTC()
	if err := s.store.UpdateMessageContent(ctx, messageID, text, editedAt); err != nil {
		return nil, nil, storageError("edit message", err)
	}
	msg.Content = text
	msg.IsEdited = true
	msg.EditedAt = &editedAt

	return msg, otherActive(participants, editorID), nil
}

// Leave flips the user's participation to inactive. History stays with the
// remaining participants, who are returned.
func (s *ConversationService) Leave(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, []uuid.UUID, error) {
	conv, err := s.findConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv.Kind == models.ConversationDirect {
		return nil, nil, validationError("direct conversations cannot be left")
	}

	participants, err := s.store.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, nil, storageError("list participants", err)
	}

	var member *models.ConversationParticipant
	for i := range participants {
		if participants[i].UserID == userID {
			member = &participants[i]
			break
		}
	}
	if member == nil {
		return nil, nil, authorizationError("not a participant of this conversation")
	}
	if !member.Active {
		return nil, nil, conflictError("already left this conversation")
	}

	if err := s.store.DeactivateParticipant(ctx, conversationID, userID, s.now().UTC()); err != nil {
		return nil, nil, storageError("leave conversation", err)
	}
	return conv, otherActive(participants, userID), nil
}

// ListForUser returns the conversations the user takes part in.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	convs, err := s.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, storageError("list conversations", err)
	}
	return convs, nil
}

// History pages through a conversation by sequence. Former participants can
// still read it.
func (s *ConversationService) History(ctx context.Context, conversationID, userID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if afterSeq < 0 {
		return nil, validationError("after_seq must not be negative")
	}

	participants, err := s.store.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, storageError("list participants", err)
	}
	found := false
	for _, p := range participants {
		if p.UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return nil, authorizationError("not a participant of this conversation")
	}

	messages, err := s.store.ListMessages(ctx, conversationID, afterSeq, limit)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	return messages, nil
}

func (s *ConversationService) findConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.FindConversation(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFoundError("conversation not found")
		}
		return nil, storageError("find conversation", err)
	}
	return conv, nil
}

func (s *ConversationService) findMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	msg, err := s.store.FindMessage(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFoundError("message not found")
		}
		return nil, storageError("find message", err)
	}
	return msg, nil
}

func (s *ConversationService) requireActiveUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.store.FindUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return notFoundError("user not found")
		}
		return storageError("find user", err)
	}
	if !user.IsActive {
		return notFoundError("user not found")
	}
	return nil
}

func isActiveParticipant(participants []models.ConversationParticipant, userID uuid.UUID) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return p.Active
		}
	}
	return false
}

func otherActive(participants []models.ConversationParticipant, userID uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.Active && p.UserID != userID {
			out = append(out, p.UserID)
		}
	}
	return out
}
