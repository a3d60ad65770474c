package services

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type friendStore interface {
	UserStore
	FriendStore
}

// FriendService owns the friend graph. Every mutation of a pair runs under
// that pair's lock, so at most one pending or accepted request exists per
// unordered pair.
type FriendService struct {
	store  friendStore
	logger *zap.Logger
	pairs  *KeyedMutex
	now    func() time.Time
}

func NewFriendService(store friendStore, logger *zap.Logger) *FriendService {
	return &FriendService{
		store:  store,
		logger: logger,
		pairs:  NewKeyedMutex(),
		now:    time.Now,
	}
}

func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, validationError("cannot send a friend request to yourself")
	}

	receiver, err := s.store.FindUser(ctx, receiverID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, storageError("find user", err)
	}
	if !receiver.IsActive {
		return nil, notFoundError("user not found")
	}

	key := models.DirectKey(senderID, receiverID)
	unlock := s.pairs.Lock(key)
	defer unlock()

	existing, err := s.store.FindLiveFriendRequest(ctx, key)
	switch {
	case err == nil:
		if existing.Status == models.FriendRequestAccepted {
			return nil, conflictError("already friends")
		}
		return nil, conflictError("a friend request is already pending")
	case !errors.Is(err, ErrRecordNotFound):
		return nil, storageError("find friend request", err)
	}

	req := &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendRequestPending,
		PairKey:    &key,
	}
	if err := s.store.CreateFriendRequest(ctx, req); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return nil, conflictError("a friend request is already pending")
		}
		return nil, storageError("create friend request", err)
	}
	return req, nil
}

func (s *FriendService) Accept(ctx context.Context, requestID, actorID uuid.UUID) (*models.FriendRequest, error) {
	return s.respond(ctx, requestID, actorID, models.FriendRequestAccepted)
}

func (s *FriendService) Reject(ctx context.Context, requestID, actorID uuid.UUID) (*models.FriendRequest, error) {
	return s.respond(ctx, requestID, actorID, models.FriendRequestRejected)
}

func (s *FriendService) respond(ctx context.Context, requestID, actorID uuid.UUID, to string) (*models.FriendRequest, error) {
	req, unlock, err := s.lockRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if req.ReceiverID != actorID {
		return nil, authorizationError("only the receiver may respond to a friend request")
	}
	if req.Status != models.FriendRequestPending {
		return nil, conflictError("friend request is already " + req.Status)
	}

	at := s.now().UTC()
	if err := s.store.TransitionFriendRequest(ctx, requestID, models.FriendRequestPending, to, at); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, conflictError("friend request is no longer pending")
		}
		return nil, storageError("update friend request", err)
	}

	req.Status = to
	req.RespondedAt = &at
	if to == models.FriendRequestRejected {
		req.PairKey = nil
	}
	return req, nil
}

// Cancel withdraws a pending request on behalf of its sender. The pair
// returns to having no relationship.
func (s *FriendService) Cancel(ctx context.Context, requestID, actorID uuid.UUID) (*models.FriendRequest, error) {
	req, unlock, err := s.lockRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if req.SenderID != actorID {
		return nil, authorizationError("only the sender may cancel a friend request")
	}
	if req.Status != models.FriendRequestPending {
		return nil, conflictError("friend request is already " + req.Status)
	}

	if err := s.store.DeleteFriendRequest(ctx, requestID); err != nil {
		return nil, storageError("cancel friend request", err)
	}
	return req, nil
}

// Remove ends an accepted friendship from either side.
func (s *FriendService) Remove(ctx context.Context, actorID, friendID uuid.UUID) (*models.FriendRequest, error) {
	if actorID == friendID {
		return nil, validationError("cannot unfriend yourself")
	}

	key := models.DirectKey(actorID, friendID)
	unlock := s.pairs.Lock(key)
	defer unlock()

	req, err := s.store.FindLiveFriendRequest(ctx, key)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFoundError("not friends")
		}
		return nil, storageError("find friend request", err)
	}
	if req.Status != models.FriendRequestAccepted {
		return nil, notFoundError("not friends")
	}

	if err := s.store.DeleteFriendRequest(ctx, req.ID); err != nil {
		return nil, storageError("remove friend", err)
	}
	return req, nil
}

// Friends lists the users with an accepted request involving userID.
func (s *FriendService) Friends(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.store.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, storageError("list friends", err)
	}
	return ids, nil
}

// lockRequest loads the request, takes its pair lock and reloads it so the
// caller sees the state as of holding the lock.
func (s *FriendService) lockRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, func(), error) {
	req, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.pairs.Lock(models.DirectKey(req.SenderID, req.ReceiverID))
	req, err = s.findRequest(ctx, requestID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return req, unlock, nil
}

func (s *FriendService) findRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.store.FindFriendRequest(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFoundError("friend request not found")
		}
		return nil, storageError("find friend request", err)
	}
	return req, nil
}
