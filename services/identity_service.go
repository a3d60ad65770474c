package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Identity is what an authenticated connection knows about its user. The
// alliance is resolved once at connect time for room membership only;
// alliance actions re-check membership per event.
type Identity struct {
	UserID      uuid.UUID
	DisplayName string
	AllianceID  *uuid.UUID
}

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityStore interface {
	UserStore
	AllianceStore
}

type JWTVerifier struct {
	secret []byte
	store  identityStore
}

func NewJWTVerifier(secret string, store identityStore) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), store: store}
}

// Verify never returns anything but ErrAuth-kind errors; the cause is kept
// in the wrapped error for logs.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, authError(errors.New("missing token"))
	}

	claims, err := v.parseToken(tokenString)
	if err != nil {
		return nil, authError(err)
	}

	rawID, ok := claims["user_id"].(string)
	if !ok {
		return nil, authError(errors.New("token has no user_id claim"))
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, authError(fmt.Errorf("invalid user_id claim: %w", err))
	}

	user, err := v.store.FindUser(ctx, userID)
	if err != nil {
		return nil, authError(fmt.Errorf("lookup user %s: %w", userID, err))
	}
	if !user.IsActive {
		return nil, authError(fmt.Errorf("user %s is deactivated", userID))
	}

	identity := &Identity{UserID: user.ID, DisplayName: user.DisplayName}

	membership, err := v.store.FindMembershipForUser(ctx, userID)
	switch {
	case err == nil && membership.Active:
		allianceID := membership.AllianceID
		identity.AllianceID = &allianceID
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		return nil, authError(fmt.Errorf("lookup alliance for %s: %w", userID, err))
	}

	return identity, nil
}

func (v *JWTVerifier) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// IssueToken signs an HS256 token carrying user_id, in the same shape the
// account service issues.
func IssueToken(secret string, user *models.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"name":    user.DisplayName,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Login checks an email/password pair against the bcrypt hash on the
// account and returns a signed token. It backs the demo login route only.
func Login(ctx context.Context, store UserStore, secret, email, password string, ttl time.Duration) (string, *models.User, error) {
	invalid := &Error{Kind: KindAuth, Message: "invalid email or password"}

	user, err := store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", nil, invalid
		}
		return "", nil, storageError("find user by email", err)
	}
	if !user.IsActive {
		return "", nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, invalid
	}

	token, err := IssueToken(secret, user, ttl)
	if err != nil {
		return "", nil, storageError("sign token", err)
	}
	return token, user, nil
}
