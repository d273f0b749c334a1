package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/membership-gin/internal/apperror"
)

// 调用方类型
const (
	ActorMember = "member"
	ActorAdmin  = "admin"
)

// Identity 已认证调用方身份
type Identity struct {
	ActorID   string `json:"actorId"`
	ActorType string `json:"actorType"` // member, admin
	Role      string `json:"role"`      // 会员为 member,管理员为 super_admin/admin/reviewer
}

// Claims JWT 声明
type Claims struct {
	ActorType string `json:"actor_type"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager HS256 令牌签发与校验
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "membership-gin",
		now:    time.Now,
	}
}

// Issue 签发令牌,返回令牌和过期时间
func (m *TokenManager) Issue(identity Identity) (string, time.Time, error) {
	if identity.ActorID == "" {
		return "", time.Time{}, errors.New("actor ID is required")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		ActorType: identity.ActorType,
		Role:      identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ActorID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse 校验令牌并返回身份,失败时返回 AuthenticationError
func (m *TokenManager) Parse(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.NewAuthentication("token expired")
		}
		return nil, apperror.NewAuthentication("invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperror.NewAuthentication("invalid token")
	}
	if claims.ActorType != ActorMember && claims.ActorType != ActorAdmin {
		return nil, apperror.NewAuthentication("invalid token")
	}

	return &Identity{
		ActorID:   claims.Subject,
		ActorType: claims.ActorType,
		Role:      claims.Role,
	}, nil
}
