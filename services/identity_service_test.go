package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/anjiri1684/guild_social/database/memstore"
	"github.com/anjiri1684/guild_social/models"
	"github.com/anjiri1684/guild_social/services"
)

const secret = "identity-secret"

func TestVerifyResolvesIdentityAndAlliance(t *testing.T) {
	store := memstore.New()
	u := addUser(store, "ari")
	alliance := store.AddAlliance("Vanguard")
	store.SetAllianceMember(alliance.ID, u.ID, true)

	token, err := services.IssueToken(secret, &u, time.Hour)
	require.NoError(t, err)

	identity, err := services.NewJWTVerifier(secret, store).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)
	assert.Equal(t, "ari", identity.DisplayName)
	require.NotNil(t, identity.AllianceID)
	assert.Equal(t, alliance.ID, *identity.AllianceID)
}

func TestVerifyWithoutAlliance(t *testing.T) {
	store := memstore.New()
	u := addUser(store, "ari")
	alliance := store.AddAlliance("Vanguard")
	store.SetAllianceMember(alliance.ID, u.ID, false)

	token, err := services.IssueToken(secret, &u, time.Hour)
	require.NoError(t, err)

	identity, err := services.NewJWTVerifier(secret, store).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, identity.AllianceID)
}

func TestVerifyRejections(t *testing.T) {
	store := memstore.New()
	active := addUser(store, "ari")
	inactive := addUser(store, "bex")
	store.SetUserActive(inactive.ID, false)
	unknown := models.User{ID: uuid.New(), DisplayName: "ghost"}

	sign := func(claims jwt.MapClaims, key string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}
	issue := func(u models.User, ttl time.Duration) string {
		s, err := services.IssueToken(secret, &u, ttl)
		require.NoError(t, err)
		return s
	}

	cases := map[string]string{
		"empty":         "",
		"garbage":       "not.a.jwt",
		"expired":       issue(active, -time.Minute),
		"wrong secret":  sign(jwt.MapClaims{"user_id": active.ID.String(), "exp": time.Now().Add(time.Hour).Unix()}, "other"),
		"no user_id":    sign(jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, secret),
		"bad user_id":   sign(jwt.MapClaims{"user_id": "42", "exp": time.Now().Add(time.Hour).Unix()}, secret),
		"inactive user": issue(inactive, time.Hour),
		"unknown user":  issue(unknown, time.Hour),
	}

	verifier := services.NewJWTVerifier(secret, store)
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), token)
			require.Error(t, err)
			assert.ErrorIs(t, err, services.ErrAuth)
			assert.Equal(t, "authentication error", services.PublicMessage(err))
		})
	}
}

func TestLogin(t *testing.T) {
	store := memstore.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	u := store.AddUser(models.User{DisplayName: "ari", Email: "ari@guild.test", Password: string(hash), IsActive: true})
	ctx := context.Background()

	token, got, err := services.Login(ctx, store, secret, " ARI@guild.test ", "hunter22", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	identity, err := services.NewJWTVerifier(secret, store).Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)

	_, _, err = services.Login(ctx, store, secret, "ari@guild.test", "wrong", time.Hour)
	assert.ErrorIs(t, err, services.ErrAuth)
	_, _, err = services.Login(ctx, store, secret, "nobody@guild.test", "hunter22", time.Hour)
	assert.ErrorIs(t, err, services.ErrAuth)
}
