package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anjiri1684/guild_social/database/memstore"
	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/services"
)

func newFriends(t *testing.T) (*services.FriendService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return services.NewFriendService(store, zap.NewNop()), store
}

func TestSendRequestRejectsSelfAndUnknown(t *testing.T) {
	svc, store := newFriends(t)
	a := addUser(store, "ari")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.SendRequest(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestSendRequestConflictsInEitherDirection(t *testing.T) {
	svc, store := newFriends(t)
	a, b := addUser(store, "ari"), addUser(store, "bex")
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, req.Status)

	_, err = svc.SendRequest(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
	_, err = svc.SendRequest(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = svc.Accept(ctx, req.ID, b.ID)
	require.NoError(t, err)

	_, err = svc.SendRequest(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestOnlyReceiverMayRespond(t *testing.T) {
	svc, store := newFriends(t)
	a, b, c := addUser(store, "ari"), addUser(store, "bex"), addUser(store, "cai")
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	for _, actor := range []uuid.UUID{a.ID, c.ID} {
		_, err = svc.Accept(ctx, req.ID, actor)
		assert.ErrorIs(t, err, services.ErrAuthorization)
		_, err = svc.Reject(ctx, req.ID, actor)
		assert.ErrorIs(t, err, services.ErrAuthorization)
	}

	_, err = svc.Accept(ctx, uuid.New(), b.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestTerminalRequestsCannotTransition(t *testing.T) {
	svc, store := newFriends(t)
	a, b, c := addUser(store, "ari"), addUser(store, "bex"), addUser(store, "cai")
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	services.SetFriendClock(svc, func() time.Time { return fixed })

	accepted, err := svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	got, err := svc.Accept(ctx, accepted.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RespondedAt)
	assert.Equal(t, fixed, *got.RespondedAt)

	_, err = svc.Accept(ctx, accepted.ID, b.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
	_, err = svc.Reject(ctx, accepted.ID, b.ID)
	assert.ErrorIs(t, err, services.ErrConflict)

	rejected, err := svc.SendRequest(ctx, a.ID, c.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, rejected.ID, c.ID)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, rejected.ID, c.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestRejectedPairMayRequestAgain(t *testing.T) {
	svc, store := newFriends(t)
	a, b := addUser(store, "ari"), addUser(store, "bex")
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, req.ID, b.ID)
	require.NoError(t, err)

	again, err := svc.SendRequest(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, again.ID)
}

func TestCancelAndRemoveReturnPairToNoRelationship(t *testing.T) {
	svc, store := newFriends(t)
	a, b := addUser(store, "ari"), addUser(store, "bex")
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, req.ID, b.ID)
	assert.ErrorIs(t, err, services.ErrAuthorization)

	_, err = svc.Cancel(ctx, req.ID, a.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, req.ID, b.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	req, err = svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = svc.Remove(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, services.ErrNotFound, "a pending request is not a friendship")

	_, err = svc.Accept(ctx, req.ID, b.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, req.ID, a.ID)
	assert.ErrorIs(t, err, services.ErrConflict)

	friends, err := svc.Friends(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, friends)

	_, err = svc.Remove(ctx, b.ID, a.ID)
	require.NoError(t, err)

	friends, err = svc.Friends(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)

	_, err = svc.SendRequest(ctx, b.ID, a.ID)
	require.NoError(t, err)
}

func TestConcurrentCrossRequestsYieldOne(t *testing.T) {
	svc, store := newFriends(t)
	a, b := addUser(store, "ari"), addUser(store, "bex")
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = b.ID, a.ID
		}
		wg.Add(1)
		go func(from, to uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := svc.SendRequest(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, services.ErrConflict):
				conflicts++
			}
		}(from, to)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 19, conflicts)
}
