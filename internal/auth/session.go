// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every reconnection token.
const Issuer = "tablehost"

// ErrInvalidToken covers every reason a reconnection token is refused.
var ErrInvalidToken = errors.New("invalid reconnection token")

// Signer issues and checks reconnection tokens for one hosted session. The
// token subject is the player id the guest may reclaim.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 => never expires
}

// NewSigner generates a fresh ed25519 key pair. Tokens from a previous host
// process will not verify against it.
func NewSigner(ttl time.Duration) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Signer{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewSignerFromKey wraps an existing private key.
func NewSignerFromKey(priv ed25519.PrivateKey, ttl time.Duration) *Signer {
	return &Signer{
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
		ttl:        ttl,
	}
}

// LoadSigner reads an ed25519 private key (raw 64 bytes, or a 32 byte seed)
// from path, so tokens survive a host restart.
func LoadSigner(path string, ttl time.Duration) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	switch len(data) {
	case ed25519.PrivateKeySize:
		return NewSignerFromKey(ed25519.PrivateKey(data), ttl), nil
	case ed25519.SeedSize:
		return NewSignerFromKey(ed25519.NewKeyFromSeed(data), ttl), nil
	default:
		return nil, fmt.Errorf("private key file %s has %d bytes, want %d or %d", path, len(data), ed25519.PrivateKeySize, ed25519.SeedSize)
	}
}

// ParseTTL reads a token lifetime setting. "never", "0" and "" mean tokens
// carry no exp claim.
func ParseTTL(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Issue creates a signed token with "sub" = playerID.
func (s *Signer) Issue(playerID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  playerID,
		Issuer:   Issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// Verify checks a token and returns its player id.
func (s *Signer) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims.Subject, nil
}
