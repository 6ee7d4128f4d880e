package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/conductorhq/conductor/pkg/policy"
)

// ErrNoSession indicates the request carried no usable session
var ErrNoSession = errors.New("no authenticated session")

// SessionResolver turns an incoming request into the authenticated subject
type SessionResolver interface {
	Resolve(r *http.Request) (*policy.Subject, error)
}

// SubjectStore loads a subject and its role bindings from the data layer
type SubjectStore interface {
	GetSubject(ctx context.Context, subjectID string) (*policy.Subject, error)
}

// OIDCSessionResolver verifies the session ID token minted by the identity
// provider at login and loads the subject it names. The login flow itself
// is owned elsewhere; the gateway only consumes its result.
type OIDCSessionResolver struct {
	verifier *oidc.IDTokenVerifier
	subjects SubjectStore
}

// NewOIDCSessionResolver builds a resolver against an OIDC issuer. Reaching
// the issuer's discovery document at startup is required; failure here is
// fatal for the process.
func NewOIDCSessionResolver(ctx context.Context, issuerURL, clientID string, subjects SubjectStore) (*OIDCSessionResolver, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to reach OIDC issuer %s: %w", issuerURL, err)
	}
	return &OIDCSessionResolver{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		subjects: subjects,
	}, nil
}

// Resolve verifies the session token and loads the subject
func (r *OIDCSessionResolver) Resolve(req *http.Request) (*policy.Subject, error) {
	raw := sessionToken(req)
	if raw == "" {
		return nil, ErrNoSession
	}

	idToken, err := r.verifier.Verify(req.Context(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	subject, err := r.subjects.GetSubject(req.Context(), idToken.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown subject %s", ErrNoSession, idToken.Subject)
	}
	return subject, nil
}

// sessionToken extracts the raw session token from the Authorization
// header or the session cookie
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}
