package database

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the gorm implementation of services.Store.
type Store struct {
	db *gorm.DB
}

var _ services.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return services.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return services.ErrDuplicateRecord
	default:
		return err
	}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindAllianceMembership(ctx context.Context, allianceID, userID uuid.UUID) (*models.AllianceMember, error) {
	var member models.AllianceMember
	err := s.db.WithContext(ctx).
		Where("alliance_id = ? AND user_id = ?", allianceID, userID).
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (s *Store) FindMembershipForUser(ctx context.Context, userID uuid.UUID) (*models.AllianceMember, error) {
	var member models.AllianceMember
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("joined_at desc").
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (s *Store) FindDirectConversation(ctx context.Context, directKey string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Where("direct_key = ?", directKey).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *Store) CreateDirectConversation(ctx context.Context, conv *models.Conversation, a, b uuid.UUID) error {
	if conv.DirectKey == nil {
		key := models.DirectKey(a, b)
		conv.DirectKey = &key
	}
	return s.createConversation(ctx, conv, []uuid.UUID{a, b}, nil)
}

func (s *Store) StartDirectConversation(ctx context.Context, conv *models.Conversation, a, b uuid.UUID, first *models.Message) error {
	if conv.DirectKey == nil {
		key := models.DirectKey(a, b)
		conv.DirectKey = &key
	}
	if first.ID == uuid.Nil {
		first.ID = uuid.New()
	}
	id, at := first.ID, first.CreatedAt
	conv.LastSeq = first.Seq
	conv.LastMessageID = &id
	conv.LastMessageAt = &at
	return s.createConversation(ctx, conv, []uuid.UUID{a, b}, first)
}

func (s *Store) CreateGroupConversation(ctx context.Context, conv *models.Conversation, members []uuid.UUID) error {
	return s.createConversation(ctx, conv, members, nil)
}

// createConversation inserts the conversation, its participants and, when
// given, its first message in one transaction.
func (s *Store) createConversation(ctx context.Context, conv *models.Conversation, members []uuid.UUID, first *models.Message) error {
	conv.Participants = nil
	var participants []models.ConversationParticipant

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		participants = make([]models.ConversationParticipant, 0, len(members))
		for _, userID := range members {
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         userID,
				Active:         true,
				JoinedAt:       now,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}

		if first == nil {
			return nil
		}
		first.ConversationID = conv.ID
		return tx.Create(first).Error
	})
	if err != nil {
		return translate(err)
	}

	conv.Participants = participants
	return nil
}

func (s *Store) FindConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *Store) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at asc").
		Find(&participants).Error
	if err != nil {
		return nil, translate(err)
	}
	return participants, nil
}

func (s *Store) DeactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{"active": false, "left_at": at})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Order("COALESCE(conversations.last_message_at, conversations.created_at) DESC").
		Find(&convs).Error
	if err != nil {
		return nil, translate(err)
	}
	return convs, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND last_seq < ?", msg.ConversationID, msg.Seq).
			Updates(map[string]interface{}{
				"last_seq":        msg.Seq,
				"last_message_id": msg.ID,
				"last_message_at": msg.CreatedAt,
				"updated_at":      time.Now().UTC(),
			}).Error
	})
	return translate(err)
}

func (s *Store) FindMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *Store) MarkMessageRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if _, err := s.FindMessage(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) UpdateMessageContent(ctx context.Context, id uuid.UUID, text string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": text, "is_edited": true, "edited_at": at})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, afterSeq).
		Order("seq asc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, translate(err)
	}
	return messages, nil
}

func (s *Store) FindLiveFriendRequest(ctx context.Context, pairKey string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := s.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *Store) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	return translate(s.db.WithContext(ctx).Create(req).Error)
}

func (s *Store) FindFriendRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *Store) TransitionFriendRequest(ctx context.Context, id uuid.UUID, from, to string, at time.Time) error {
	updates := map[string]interface{}{
		"status":       to,
		"responded_at": at,
		"updated_at":   at,
	}
	if to == models.FriendRequestRejected {
		updates["pair_key"] = nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeleteFriendRequest(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.FriendRequest{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var requests []models.FriendRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND (sender_id = ? OR receiver_id = ?)", models.FriendRequestAccepted, userID, userID).
		Find(&requests).Error
	if err != nil {
		return nil, translate(err)
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for i := range requests {
		ids = append(ids, requests[i].Counterpart(userID))
	}
	return ids, nil
}
