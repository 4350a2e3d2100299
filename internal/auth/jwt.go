package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/momchat/internal/config"
)

// token 类型，防止 refresh token 被当作 access token 使用
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair 登录/注册/刷新返回的一对 token
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// GenerateTokens 生成 access + refresh token，各自使用独立密钥
func GenerateTokens(cfg *config.JWTConfig, userID, email string) (*TokenPair, error) {
	now := time.Now()
	access, err := sign(cfg.Secret, TypeAccess, userID, email, now, cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := sign(cfg.RefreshSecret, TypeRefresh, userID, email, now, cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func sign(secret, typ, userID, email string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken 校验签名、有效期与类型
func ParseAccessToken(cfg *config.JWTConfig, tokenStr string) (*Claims, error) {
	return parse(cfg.Secret, TypeAccess, tokenStr)
}

// ParseRefreshToken 校验 refresh token
func ParseRefreshToken(cfg *config.JWTConfig, tokenStr string) (*Claims, error) {
	return parse(cfg.RefreshSecret, TypeRefresh, tokenStr)
}

func parse(secret, typ, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
