package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/anjiri1684/guild_social/database/memstore"
	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/services"
)

func TestRequireActiveMember(t *testing.T) {
	store := memstore.New()
	svc := services.NewAllianceService(store)
	ctx := context.Background()

	u := store.AddUser(models.User{DisplayName: "ari", Email: "ari@guild.test", IsActive: true})
	alliance := store.AddAlliance("Vanguard")

	err := svc.RequireActiveMember(ctx, alliance.ID, u.ID)
	require.ErrorIs(t, err, services.ErrAuthorization)

	store.SetAllianceMember(alliance.ID, u.ID, true)
	require.NoError(t, svc.RequireActiveMember(ctx, alliance.ID, u.ID))

	// membership is re-read on every call
	store.SetAllianceMember(alliance.ID, u.ID, false)
	require.ErrorIs(t, svc.RequireActiveMember(ctx, alliance.ID, u.ID), services.ErrAuthorization)

	require.ErrorIs(t, svc.RequireActiveMember(ctx, uuid.New(), u.ID), services.ErrAuthorization)
}
