package token

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hertz-contrib/jwt"

	"StaffOps/config"
)

const (
	IdentityKey = "uid"
	RoleKey     = "role"
	TypeKey     = "typ"

	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrGeneratorNotInitialized = errors.New("token generator is not initialized")
	ErrInvalidToken            = errors.New("invalid token")
	ErrInvalidTokenType        = errors.New("invalid token type")
	ErrWorkerIDNotFound        = errors.New("worker id not found in token")
)

// Claims 与 hertz-contrib/jwt 解析出的 MapClaims 字段一致
type Claims struct {
	WorkerID string `json:"uid"`
	Role     string `json:"role"`
	Type     string `json:"typ"`
	jwtv5.RegisteredClaims
}

// 鉴权中间件与签发共用同一份密钥、时长与时钟
var sharedGenerator *jwt.HertzJWTMiddleware

func Init() error {
	cfg := config.Cfg
	g, err := jwt.New(&jwt.HertzJWTMiddleware{
		Key:         []byte(cfg.JWTSecret),
		Timeout:     time.Duration(cfg.JWTExpireMinutes) * time.Minute,
		MaxRefresh:  time.Duration(cfg.JWTRefreshDays) * 24 * time.Hour,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}
	sharedGenerator = g
	return nil
}

func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// GenerateTokenPair 签发一组令牌；refresh 带 jti，轮换后旧值与新值必然不同
func GenerateTokenPair(workerID, role string) (Pair, error) {
	g := sharedGenerator
	if g == nil {
		return Pair{}, ErrGeneratorNotInitialized
	}
	now := g.TimeFunc()

	access, err := sign(g.Key, Claims{
		WorkerID: workerID,
		Role:     role,
		Type:     TypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(g.Timeout)),
		},
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, err := sign(g.Key, Claims{
		WorkerID: workerID,
		Role:     role,
		Type:     TypeRefresh,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(g.MaxRefresh)),
		},
	})
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int(g.Timeout.Seconds())}, nil
}

func sign(key []byte, c Claims) (string, error) {
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, c).SignedString(key)
}

// ValidateRefreshToken 校验签名、过期与类型，返回 worker_id
func ValidateRefreshToken(raw string) (string, error) {
	g := sharedGenerator
	if g == nil {
		return "", ErrGeneratorNotInitialized
	}

	var claims Claims
	tok, err := jwtv5.ParseWithClaims(raw, &claims,
		func(*jwtv5.Token) (interface{}, error) { return g.Key, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(g.TimeFunc),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Type != TypeRefresh {
		return "", ErrInvalidTokenType
	}
	if claims.WorkerID == "" {
		return "", ErrWorkerIDNotFound
	}
	return claims.WorkerID, nil
}
