package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

var ErrWrongTokenType = errors.New("unexpected token type")

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, accessTTLMinutes, refreshTTLMinutes int) *TokenManager {
	if accessTTLMinutes <= 0 {
		accessTTLMinutes = 60
	}
	if refreshTTLMinutes <= 0 {
		refreshTTLMinutes = 60 * 24
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessTTLMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshTTLMinutes) * time.Minute,
		now:        time.Now,
	}
}

// Claims describes JWT payload.
type Claims struct {
	UserID int64            `json:"uid,string"`
	Role   domain.Role      `json:"role"`
	Type   domain.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// IssuePair signs a fresh access and refresh token for the user.
func (tm *TokenManager) IssuePair(user *domain.User) (*domain.TokenPair, error) {
	access, accessExp, err := tm.sign(user.ID, user.Role, domain.TokenTypeAccess, tm.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := tm.sign(user.ID, user.Role, domain.TokenTypeRefresh, tm.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess signs an access token only.
func (tm *TokenManager) IssueAccess(user *domain.User) (string, time.Time, error) {
	return tm.sign(user.ID, user.Role, domain.TokenTypeAccess, tm.accessTTL)
}

func (tm *TokenManager) sign(userID int64, role domain.Role, typ domain.TokenType, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the signature and expiry and checks the token type.
func (tm *TokenManager) ParseToken(tokenStr string, want domain.TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
