package services

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"github.com/google/uuid"
)

// Store implementations return these sentinels; any other error is treated
// as a storage failure.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")
)

type UserStore interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AllianceStore interface {
	FindAllianceMembership(ctx context.Context, allianceID, userID uuid.UUID) (*models.AllianceMember, error)
	// FindMembershipForUser returns the user's active membership, if any.
	FindMembershipForUser(ctx context.Context, userID uuid.UUID) (*models.AllianceMember, error)
}

type ConversationStore interface {
	FindDirectConversation(ctx context.Context, directKey string) (*models.Conversation, error)
	// CreateDirectConversation returns ErrDuplicateRecord when another
	// conversation already holds conv.DirectKey.
	CreateDirectConversation(ctx context.Context, conv *models.Conversation, a, b uuid.UUID) error
	// StartDirectConversation creates the pair's conversation together with
	// its first message, or nothing at all. It returns ErrDuplicateRecord like
	// CreateDirectConversation.
	StartDirectConversation(ctx context.Context, conv *models.Conversation, a, b uuid.UUID, first *models.Message) error
	CreateGroupConversation(ctx context.Context, conv *models.Conversation, members []uuid.UUID) error
	FindConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationParticipant, error)
	DeactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
	ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
}

type MessageStore interface {
	// AppendMessage inserts msg and moves the conversation's last-message
	// pointer and sequence in one transaction.
	AppendMessage(ctx context.Context, msg *models.Message) error
	FindMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// MarkMessageRead reports false when the message was already read.
	MarkMessageRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateMessageContent(ctx context.Context, id uuid.UUID, text string, at time.Time) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error)
}

type FriendStore interface {
	// FindLiveFriendRequest returns the pending or accepted request for pairKey.
	FindLiveFriendRequest(ctx context.Context, pairKey string) (*models.FriendRequest, error)
	CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error
	FindFriendRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	// TransitionFriendRequest moves the request from one status to another
	// and returns ErrRecordNotFound when it is no longer in status from.
	TransitionFriendRequest(ctx context.Context, id uuid.UUID, from, to string, at time.Time) error
	DeleteFriendRequest(ctx context.Context, id uuid.UUID) error
	ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type Store interface {
	UserStore
	AllianceStore
	ConversationStore
	MessageStore
	FriendStore
	Ping(ctx context.Context) error
}
