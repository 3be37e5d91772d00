package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/config"
)

// OperatorTokenService issues and validates operator access tokens. The
// operator id becomes decided_by and initiated_by on governed actions.
type OperatorTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type operatorClaims struct {
	Role    string `json:"role,omitempty"`
	Channel string `json:"channel,omitempty"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

func NewOperatorTokenService(cfg *config.Config) (*OperatorTokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, config.ErrMissingJWTSecret
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &OperatorTokenService{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *OperatorTokenService) GenerateAccessToken(claims outbound.TokenClaims) (string, error) {
	if claims.OperatorID == "" {
		return "", fmt.Errorf("operator id is required")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, operatorClaims{
		Role:    claims.Role,
		Channel: claims.Channel,
		Type:    "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.OperatorID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

func (s *OperatorTokenService) ValidateAccessToken(tokenString string) (*outbound.TokenClaims, error) {
	var claims operatorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, s.handleValidationError(err)
	}
	if !token.Valid || claims.Type != "access" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &outbound.TokenClaims{
		OperatorID: claims.Subject,
		Role:       claims.Role,
		Channel:    claims.Channel,
	}, nil
}

func (s *OperatorTokenService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
