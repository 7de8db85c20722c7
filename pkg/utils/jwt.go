package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 自定义JWT声明结构
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发和解析会话 token
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, expiration time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), expiration: expiration, now: time.Now}, nil
}

// 生成JWT令牌
func (i *TokenIssuer) Generate(userID uint, username string) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			// 过期时间
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiration)),
			// 签发时间
			IssuedAt: jwt.NewNumericDate(now),
			// 生效时间
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// 解析JWT令牌
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
