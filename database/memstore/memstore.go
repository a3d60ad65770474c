// Package memstore is an in-process implementation of services.Store. It
// backs STORE_DRIVER=memory and the service and gateway tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/services"
	"github.com/google/uuid"
)

type participantKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

type memberKey struct {
	allianceID uuid.UUID
	userID     uuid.UUID
}

type Store struct {
	mu sync.RWMutex

	users          map[uuid.UUID]models.User
	alliances      map[uuid.UUID]models.Alliance
	members        map[memberKey]models.AllianceMember
	conversations  map[uuid.UUID]models.Conversation
	directKeys     map[string]uuid.UUID
	participants   map[participantKey]models.ConversationParticipant
	messages       map[uuid.UUID]models.Message
	messageSeqs    map[uuid.UUID]map[int64]uuid.UUID
	friendRequests map[uuid.UUID]models.FriendRequest
	friendPairs    map[string]uuid.UUID
}

var _ services.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:          make(map[uuid.UUID]models.User),
		alliances:      make(map[uuid.UUID]models.Alliance),
		members:        make(map[memberKey]models.AllianceMember),
		conversations:  make(map[uuid.UUID]models.Conversation),
		directKeys:     make(map[string]uuid.UUID),
		participants:   make(map[participantKey]models.ConversationParticipant),
		messages:       make(map[uuid.UUID]models.Message),
		messageSeqs:    make(map[uuid.UUID]map[int64]uuid.UUID),
		friendRequests: make(map[uuid.UUID]models.FriendRequest),
		friendPairs:    make(map[string]uuid.UUID),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// AddUser registers a user. Seeding helper; there is no user CRUD here.
func (s *Store) AddUser(user models.User) models.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	return user
}

// SetUserActive flips a user's active flag.
func (s *Store) SetUserActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = active
		s.users[id] = u
	}
}

func (s *Store) AddAlliance(name string) models.Alliance {
	a := models.Alliance{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.alliances[a.ID] = a
	s.mu.Unlock()
	return a
}

// SetAllianceMember upserts a membership.
func (s *Store) SetAllianceMember(allianceID, userID uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{allianceID, userID}
	m, ok := s.members[key]
	if !ok {
		m = models.AllianceMember{AllianceID: allianceID, UserID: userID, Role: "member", JoinedAt: time.Now().UTC()}
	}
	m.Active = active
	if !active {
		now := time.Now().UTC()
		m.LeftAt = &now
	}
	s.members[key] = m
}

func (s *Store) FindUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, services.ErrRecordNotFound
}

func (s *Store) FindAllianceMembership(_ context.Context, allianceID, userID uuid.UUID) (*models.AllianceMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{allianceID, userID}]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	return &m, nil
}

func (s *Store) FindMembershipForUser(_ context.Context, userID uuid.UUID) (*models.AllianceMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.UserID == userID && m.Active {
			return &m, nil
		}
	}
	return nil, services.ErrRecordNotFound
}

func (s *Store) FindDirectConversation(_ context.Context, directKey string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.directKeys[directKey]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	conv := s.conversations[id]
	return &conv, nil
}

func (s *Store) CreateDirectConversation(_ context.Context, conv *models.Conversation, a, b uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.DirectKey == nil {
		key := models.DirectKey(a, b)
		conv.DirectKey = &key
	}
	if _, exists := s.directKeys[*conv.DirectKey]; exists {
		return services.ErrDuplicateRecord
	}
	s.insertConversation(conv, []uuid.UUID{a, b})
	s.directKeys[*conv.DirectKey] = conv.ID
	return nil
}

func (s *Store) StartDirectConversation(_ context.Context, conv *models.Conversation, a, b uuid.UUID, first *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.DirectKey == nil {
		key := models.DirectKey(a, b)
		conv.DirectKey = &key
	}
	if _, exists := s.directKeys[*conv.DirectKey]; exists {
		return services.ErrDuplicateRecord
	}

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if first.ID == uuid.Nil {
		first.ID = uuid.New()
	}
	first.ConversationID = conv.ID
	id, at := first.ID, first.CreatedAt
	conv.LastSeq = first.Seq
	conv.LastMessageID = &id
	conv.LastMessageAt = &at

	s.insertConversation(conv, []uuid.UUID{a, b})
	s.directKeys[*conv.DirectKey] = conv.ID
	s.messages[first.ID] = *first
	s.messageSeqs[conv.ID] = map[int64]uuid.UUID{first.Seq: first.ID}
	return nil
}

func (s *Store) CreateGroupConversation(_ context.Context, conv *models.Conversation, members []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertConversation(conv, members)
	return nil
}

func (s *Store) insertConversation(conv *models.Conversation, members []uuid.UUID) {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now().UTC()
	conv.CreatedAt, conv.UpdatedAt = now, now

	participants := make([]models.ConversationParticipant, 0, len(members))
	for _, userID := range members {
		p := models.ConversationParticipant{ConversationID: conv.ID, UserID: userID, Active: true, JoinedAt: now}
		s.participants[participantKey{conv.ID, userID}] = p
		participants = append(participants, p)
	}
	conv.Participants = participants

	stored := *conv
	stored.Participants = nil
	s.conversations[conv.ID] = stored
}

func (s *Store) FindConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	return &conv, nil
}

func (s *Store) ListParticipants(_ context.Context, conversationID uuid.UUID) ([]models.ConversationParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ConversationParticipant, 0, 2)
	for key, p := range s.participants {
		if key.conversationID == conversationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) DeactivateParticipant(_ context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participantKey{conversationID, userID}
	p, ok := s.participants[key]
	if !ok {
		return services.ErrRecordNotFound
	}
	p.Active = false
	p.LeftAt = &at
	s.participants[key] = p
	return nil
}

func (s *Store) ListConversationsForUser(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0)
	for key := range s.participants {
		if key.userID != userID {
			continue
		}
		if conv, ok := s.conversations[key.conversationID]; ok {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i]).After(lastActivity(out[j])) })
	return out, nil
}

func lastActivity(c models.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (s *Store) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return services.ErrRecordNotFound
	}
	seqs := s.messageSeqs[msg.ConversationID]
	if seqs == nil {
		seqs = make(map[int64]uuid.UUID)
		s.messageSeqs[msg.ConversationID] = seqs
	}
	if _, taken := seqs[msg.Seq]; taken {
		return services.ErrDuplicateRecord
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	s.messages[msg.ID] = *msg
	seqs[msg.Seq] = msg.ID

	if msg.Seq > conv.LastSeq {
		conv.LastSeq = msg.Seq
		id, at := msg.ID, msg.CreatedAt
		conv.LastMessageID = &id
		conv.LastMessageAt = &at
	}
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conv.ID] = conv
	return nil
}

func (s *Store) FindMessage(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	return &m, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return false, services.ErrRecordNotFound
	}
	if m.IsRead {
		return false, nil
	}
	m.IsRead = true
	m.ReadAt = &at
	s.messages[id] = m
	return true, nil
}

func (s *Store) UpdateMessageContent(_ context.Context, id uuid.UUID, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return services.ErrRecordNotFound
	}
	m.Content = text
	m.IsEdited = true
	m.EditedAt = &at
	s.messages[id] = m
	return nil
}

func (s *Store) ListMessages(_ context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, 0)
	for seq, id := range s.messageSeqs[conversationID] {
		if seq > afterSeq {
			out = append(out, s.messages[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindLiveFriendRequest(_ context.Context, pairKey string) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.friendPairs[pairKey]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	req := s.friendRequests[id]
	return &req, nil
}

func (s *Store) CreateFriendRequest(_ context.Context, req *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.PairKey != nil {
		if _, exists := s.friendPairs[*req.PairKey]; exists {
			return services.ErrDuplicateRecord
		}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now

	s.friendRequests[req.ID] = *req
	if req.PairKey != nil {
		s.friendPairs[*req.PairKey] = req.ID
	}
	return nil
}

func (s *Store) FindFriendRequest(_ context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.friendRequests[id]
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	return &req, nil
}

func (s *Store) TransitionFriendRequest(_ context.Context, id uuid.UUID, from, to string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.friendRequests[id]
	if !ok || req.Status != from {
		return services.ErrRecordNotFound
	}
	req.Status = to
	req.RespondedAt = &at
	req.UpdatedAt = at
	if to == models.FriendRequestRejected && req.PairKey != nil {
		delete(s.friendPairs, *req.PairKey)
		req.PairKey = nil
	}
	s.friendRequests[id] = req
	return nil
}

func (s *Store) DeleteFriendRequest(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.friendRequests[id]
	if !ok {
		return services.ErrRecordNotFound
	}
	if req.PairKey != nil {
		delete(s.friendPairs, *req.PairKey)
	}
	delete(s.friendRequests, id)
	return nil
}

func (s *Store) ListFriendIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]uuid.UUID, 0)
	for _, req := range s.friendRequests {
		if req.Status != models.FriendRequestAccepted {
			continue
		}
		switch userID {
		case req.SenderID:
			out = append(out, req.ReceiverID)
		case req.ReceiverID:
			out = append(out, req.SenderID)
		}
	}
	return out, nil
}
