package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zacode-app/zacode-auth/internal/models"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for any token that fails signature, expiry, or
// claim validation. Callers must not distinguish further to avoid oracles.
var ErrInvalidToken = errors.New("jwt: invalid or expired token")

// JWTConfig bundles the configuration required to build a JWTService. Access
// and refresh tokens are signed with independent secrets so leaking one class
// cannot forge the other.
type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Clock           func() time.Time
}

// AccessClaims is the payload embedded in short-lived access tokens.
type AccessClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	LoginType string `json:"loginType"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload embedded in long-lived refresh tokens.
type RefreshClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// JWTService issues and validates the two bearer token classes.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService constructs a JWTService from the provided configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("jwt: access secret must be provided")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("jwt: refresh secret must be provided")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}, nil
}

// RefreshTokenTTL exposes the configured refresh token lifetime so callers
// can align persisted expiry with the signed expiry.
func (s *JWTService) RefreshTokenTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken issues a signed access token for the user.
func (s *JWTService) GenerateAccessToken(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("jwt: user is required")
	}

	now := s.now()
	claims := &AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.UserType,
		LoginType: user.LoginType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken issues a signed refresh token for the user.
func (s *JWTService) GenerateRefreshToken(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("jwt: user is required")
	}

	now := s.now()
	claims := &RefreshClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign refresh token: %w", err)
	}
	return signed, nil
}

// GeneratePair issues an access/refresh token pair.
func (s *JWTService) GeneratePair(user *models.User) (TokenPair, error) {
	access, err := s.GenerateAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.GenerateRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccessToken parses and validates an access token.
func (s *JWTService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := s.parse(tokenString, &claims, s.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// VerifyRefreshToken parses and validates a refresh token.
func (s *JWTService) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.parse(tokenString, &claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	if tokenString == "" {
		return ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if s.issuer != "" {
		issuer, issuerErr := claims.GetIssuer()
		if issuerErr != nil || issuer != s.issuer {
			return ErrInvalidToken
		}
	}

	return nil
}
