package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/gallery/internal/domain"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// TokenConfig is the immutable token configuration built once at startup.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

func (c TokenConfig) validate() error {
	switch {
	case c.AccessSecret == "" || c.RefreshSecret == "":
		return errors.New("token secrets must not be empty")
	case c.AccessSecret == c.RefreshSecret:
		return errors.New("access and refresh secrets must differ")
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

// Claims is the JWT body of both token classes.
type Claims struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// VerificationStatus is the outcome of verifying a token.
type VerificationStatus int

const (
	StatusMalformed VerificationStatus = iota
	StatusExpired
	StatusValid
)

func (s VerificationStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "malformed"
	}
}

// Verification is the result of verifying a token. Identity is set only when
// Status is StatusValid.
type Verification struct {
	Status   VerificationStatus
	Identity domain.Identity
}

// Valid reports whether the token verified.
func (v Verification) Valid() bool { return v.Status == StatusValid }

// Err converts the result to TOKEN_EXPIRED or TOKEN_INVALID, or nil when valid.
func (v Verification) Err() error {
	switch v.Status {
	case StatusValid:
		return nil
	case StatusExpired:
		return domain.ErrTokenExpired()
	default:
		return domain.ErrTokenInvalid()
	}
}

// Codec mints and verifies access and refresh tokens.
type Codec struct {
	cfg TokenConfig
	now func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec. The two secrets must be set and distinct.
func NewCodec(cfg TokenConfig, opts ...CodecOption) (*Codec, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// CreateAccessToken signs a short-lived access token for id.
func (c *Codec) CreateAccessToken(id domain.Identity) (string, error) {
	token, err := c.sign(id, tokenUseAccess, c.cfg.AccessSecret, c.cfg.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// CreateRefreshToken signs a long-lived refresh token for id.
func (c *Codec) CreateRefreshToken(id domain.Identity) (string, error) {
	token, err := c.sign(id, tokenUseRefresh, c.cfg.RefreshSecret, c.cfg.RefreshTTL)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, nil
}

// CreatePair mints a fresh access and refresh token for id.
func (c *Codec) CreatePair(id domain.Identity) (domain.TokenPair, error) {
	access, err := c.CreateAccessToken(id)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := c.CreateRefreshToken(id)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken checks signature, expiry and class of an access token.
func (c *Codec) VerifyAccessToken(token string) Verification {
	return c.verify(token, tokenUseAccess, c.cfg.AccessSecret)
}

// VerifyRefreshToken checks signature, expiry and class of a refresh token.
func (c *Codec) VerifyRefreshToken(token string) Verification {
	return c.verify(token, tokenUseRefresh, c.cfg.RefreshSecret)
}

func (c *Codec) sign(id domain.Identity, use, secret string, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := &Claims{
		UserID:   id.ID,
		Email:    id.Email,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (c *Codec) verify(token, use, secret string) Verification {
	if token == "" {
		return Verification{Status: StatusMalformed}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		// Only reported once the signature has been checked.
		return Verification{Status: StatusExpired}
	default:
		return Verification{Status: StatusMalformed}
	}

	if claims.TokenUse != use || claims.UserID == "" {
		return Verification{Status: StatusMalformed}
	}
	return Verification{
		Status:   StatusValid,
		Identity: domain.Identity{ID: claims.UserID, Email: claims.Email},
	}
}
