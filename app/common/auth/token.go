package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyKey     = errors.New("jwt key is empty")
	ErrInvalidToken = errors.New("invalid token")
)

// DefaultTTL token 默认有效期
const DefaultTTL = 24 * time.Hour

// Claims 调用方身份
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issue 签发 HS256 token
func Issue(key, username string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(key))
}

// Parse 校验签名与有效期
func Parse(key, raw string) (*Claims, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
