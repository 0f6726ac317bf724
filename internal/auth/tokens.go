package auth

import (
	"errors"
	"fmt"
	stdtime "time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
	"github.com/kuitang/noteful/internal/errs"
)

// ErrInvalidToken is returned for any token that fails parsing, signature or claim checks.
var ErrInvalidToken = errs.New(errs.Unauthenticated, "Unauthorized")

// MinSecretLength is the shortest HMAC secret accepted by NewTokenService.
const MinSecretLength = 32

// TokenUser is the identity embedded in the "user" claim.
type TokenUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

// Claims are the registered claims plus the embedded user.
type Claims struct {
	jwt.Claims
	User TokenUser `json:"user"`
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	issuer string
	expiry stdtime.Duration
	clock  Clock
}

// NewTokenService creates a token service.
func NewTokenService(secret, issuer string, expiry stdtime.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: token secret must be at least %d bytes", MinSecretLength)
	}
	if expiry <= 0 {
		return nil, errors.New("auth: token expiry must be positive")
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
		clock:  realClock{},
	}, nil
}

// SetClock replaces the clock used for iat/exp and validation. Intended for testing.
func (s *TokenService) SetClock(c Clock) {
	s.clock = c
}

// Issue signs a token for the user.
func (s *TokenService) Issue(u TokenUser) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		Claims: jwt.Claims{
			Subject:  u.Username,
			Issuer:   s.issuer,
			ID:       uuid.New().String(),
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(s.expiry)),
		},
		User: u,
	}

	signerOpts := jose.SignerOptions{}
	signerOpts.WithType("JWT")
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: s.secret}, &signerOpts)
	if err != nil {
		return "", fmt.Errorf("auth: failed to create signer: %w", err)
	}
	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, issuer and expiry and returns the claims.
// Every failure maps to ErrInvalidToken.
func (s *TokenService) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, errs.Wrap(errs.Unauthenticated, "Unauthorized", err)
	}
	if len(parsed.Headers) != 1 || parsed.Headers[0].Algorithm != string(jose.HS256) {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if err := parsed.Claims(s.secret, claims); err != nil {
		return nil, errs.Wrap(errs.Unauthenticated, "Unauthorized", err)
	}
	if claims.Expiry == nil {
		return nil, ErrInvalidToken
	}
	expected := jwt.Expected{
		Issuer: s.issuer,
		Time:   s.clock.Now(),
	}
	if err := claims.Validate(expected); err != nil {
		return nil, errs.Wrap(errs.Unauthenticated, "Unauthorized", err)
	}
	if claims.User.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh verifies a token and issues a new one for the same user.
func (s *TokenService) Refresh(token string) (string, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	return s.Issue(claims.User)
}
