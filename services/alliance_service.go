package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type AllianceService struct {
	store AllianceStore
}

func NewAllianceService(store AllianceStore) *AllianceService {
	return &AllianceService{store: store}
}

// RequireActiveMember checks membership against the store on every call;
// membership can change while a session is open.
func (s *AllianceService) RequireActiveMember(ctx context.Context, allianceID, userID uuid.UUID) error {
	member, err := s.store.FindAllianceMembership(ctx, allianceID, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return authorizationError("not a member of this alliance")
		}
		return storageError("find alliance membership", err)
	}
	if !member.Active {
		return authorizationError("not a member of this alliance")
	}
	return nil
}
