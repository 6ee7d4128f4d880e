package token

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/conductorhq/conductor/pkg/policy"
)

const (
	// DefaultTTL is the default token lifetime. Tokens gate a single
	// proxied request path, so seconds-to-minutes is plenty.
	DefaultTTL = 5 * time.Minute

	// minKeyLength rejects keys too short for HS256
	minKeyLength = 32
)

var (
	// ErrInvalidSignature indicates the token signature did not verify
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired indicates the token is past its expiry
	ErrExpired = errors.New("token expired")
	// ErrAudienceMismatch indicates the token was minted for a different audience
	ErrAudienceMismatch = errors.New("token audience mismatch")
)

// Claims is the bundle of claims carried by a scoped token
type Claims struct {
	Audience string        `json:"aud"`
	Subject  string        `json:"sub"`
	Roles    []policy.Role `json:"roles"`
	Email    string        `json:"email"`
	FullName string        `json:"full_name"`
	IssuedAt time.Time     `json:"-"`
	Expiry   time.Time     `json:"-"`
}

// privateClaims holds the non-registered claims for serialization
type privateClaims struct {
	Roles    []policy.Role `json:"roles"`
	Email    string        `json:"email"`
	FullName string        `json:"full_name"`
}

// Audience builds the composite audience string for a deployment service.
// Binding tokens to hostname+release prevents replay across tenants.
func Audience(hostname, releaseName string) string {
	return hostname + "/" + releaseName
}

// ServiceAccountIdentity builds the synthetic identity label used in place
// of an email for service-account subjects.
func ServiceAccountIdentity(subjectID string) string {
	return "service-account-" + subjectID
}

// Issuer signs and verifies scoped tokens with a process-wide symmetric key
type Issuer struct {
	mu  sync.RWMutex
	key []byte
	ttl time.Duration
}

// NewIssuer creates an issuer from a signing key. An unusable key is an
// error here so that callers fail at process start, not per request.
func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) < minKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", minKeyLength, len(key))
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{key: key, ttl: ttl}, nil
}

// Issue signs a claims bundle and returns the compact JWT. IssuedAt and
// Expiry are stamped here; any values on the input are ignored.
func (i *Issuer) Issue(claims Claims) (string, error) {
	i.mu.RLock()
	key := i.key
	i.mu.RUnlock()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Audience: jwt.Audience{claims.Audience},
		Subject:  claims.Subject,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(i.ttl)),
	}
	private := privateClaims{
		Roles:    claims.Roles,
		Email:    strings.ToLower(claims.Email),
		FullName: claims.FullName,
	}

	raw, err := jwt.Signed(signer).Claims(registered).Claims(private).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return raw, nil
}

// Verify parses and verifies a token against the signing key and the
// expected audience. Returns the claims on success.
func (i *Issuer) Verify(raw, expectedAudience string) (*Claims, error) {
	parsed, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	i.mu.RLock()
	key := i.key
	i.mu.RUnlock()

	var registered jwt.Claims
	var private privateClaims
	if err := parsed.Claims(key, &registered, &private); err != nil {
		return nil, ErrInvalidSignature
	}

	if registered.Expiry != nil && registered.Expiry.Time().Before(time.Now()) {
		return nil, ErrExpired
	}
	if !registered.Audience.Contains(expectedAudience) {
		return nil, ErrAudienceMismatch
	}

	claims := &Claims{
		Subject:  registered.Subject,
		Roles:    private.Roles,
		Email:    private.Email,
		FullName: private.FullName,
	}
	if len(registered.Audience) > 0 {
		claims.Audience = registered.Audience[0]
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time()
	}
	if registered.Expiry != nil {
		claims.Expiry = registered.Expiry.Time()
	}
	return claims, nil
}

// rotate swaps the signing key. Used by the key file watcher.
func (i *Issuer) rotate(key []byte) error {
	if len(key) < minKeyLength {
		return fmt.Errorf("rotated signing key must be at least %d bytes, got %d", minKeyLength, len(key))
	}
	i.mu.Lock()
	i.key = key
	i.mu.Unlock()
	return nil
}
