package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/choreboard/choreboard/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the decoded content of an access token.
type Claims struct {
	UserID    int64
	FamilyID  int64
	Role      model.Role
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret string, duration time.Duration) *TokenIssuer {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), duration: duration, now: time.Now}
}

// Issue signs a token for the user. The token expires after the configured duration.
func (t *TokenIssuer) Issue(u *model.User) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.duration)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(u.ID, 10),
		"fid":  u.FamilyID,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies the signature and expiry of a token and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, err := mc.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}

	// Numeric claims decode as float64.
	fid, ok := mc["fid"].(float64)
	if !ok || fid <= 0 {
		return nil, ErrInvalidToken
	}
	role, _ := mc["role"].(string)
	if !model.Role(role).Valid() {
		return nil, ErrInvalidToken
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		UserID:    userID,
		FamilyID:  int64(fid),
		Role:      model.Role(role),
		ExpiresAt: exp.Time,
	}, nil
}
