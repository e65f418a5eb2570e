// Package proof provides ProofVerifier implementations. Proof formats are
// owned by the anti-manipulation service; these adapters only gate on it.
package proof

import (
	"context"
	"fmt"

	"github.com/vitos/yield_staking/internal/domain"
)

// AcceptAll passes every proof.
type AcceptAll struct{}

func (AcceptAll) Verify(context.Context, []byte) bool { return true }

// RequireNonEmpty passes any proof carrying at least one byte.
type RequireNonEmpty struct{}

func (RequireNonEmpty) Verify(_ context.Context, proof []byte) bool { return len(proof) > 0 }

// Func adapts a function to ProofVerifier.
type Func func(ctx context.Context, proof []byte) bool

func (f Func) Verify(ctx context.Context, proof []byte) bool { return f(ctx, proof) }

const (
	ModeAcceptAll = "accept_all"
	ModeNonEmpty  = "non_empty"
)

// FromMode returns the verifier named by a config mode.
func FromMode(mode string) (domain.ProofVerifier, error) {
	switch mode {
	case ModeAcceptAll, "":
		return AcceptAll{}, nil
	case ModeNonEmpty:
		return RequireNonEmpty{}, nil
	default:
		return nil, fmt.Errorf("unknown proof mode %q", mode)
	}
}
