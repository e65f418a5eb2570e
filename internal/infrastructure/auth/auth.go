// Package auth resolves request credentials to identities and decides whether
// an identity may act for another.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/vitos/yield_staking/internal/domain"
)

// Direct lets a caller act only for itself, plus an optional set of delegates
// (for example a fee router depositing on behalf of the treasury).
type Direct struct {
	delegates map[domain.Identity]map[domain.Identity]bool
}

func NewDirect() *Direct {
	return &Direct{delegates: make(map[domain.Identity]map[domain.Identity]bool)}
}

// Delegate allows caller to act for subject.
func (d *Direct) Delegate(caller, subject domain.Identity) {
	if d.delegates[caller] == nil {
		d.delegates[caller] = make(map[domain.Identity]bool)
	}
	d.delegates[caller][subject] = true
}

func (d *Direct) Authorize(_ context.Context, caller, subject domain.Identity) error {
	if caller == "" {
		return fmt.Errorf("%w: anonymous caller", domain.ErrUnauthorized)
	}
	if caller == subject || d.delegates[caller][subject] {
		return nil
	}
	return fmt.Errorf("%w: %s may not act for %s", domain.ErrUnauthorized, caller, subject)
}

// TokenAuthenticator maps static bearer tokens to identities.
type TokenAuthenticator struct {
	tokens map[string]domain.Identity
}

func NewTokenAuthenticator(tokens map[string]domain.Identity) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens}
}

// Authenticate resolves an Authorization header value of the form
// "Bearer <token>".
func (a *TokenAuthenticator) Authenticate(header string) (domain.Identity, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}
	for known, id := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
}
