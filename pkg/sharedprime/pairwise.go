package sharedprime

import (
	"context"
	"math/big"

	"github.com/mahdiidarabi/rsa-sharedprime/internal/parallel"
)

// PairwiseEngine factors moduli by computing gcd(n_i, n_j) for pairs of
// moduli. It costs O(N²) GCDs and serves as the fallback of BatchEngine.
type PairwiseEngine struct {
	Config EngineConfig
	Primes PrimalityTester
}

// NewPairwiseEngine creates a pairwise engine with default settings.
func NewPairwiseEngine() *PairwiseEngine {
	cfg := DefaultEngineConfig()
	return &PairwiseEngine{
		Config: cfg,
		Primes: cfg.primality(),
	}
}

// WithConfig sets the engine configuration.
func (e *PairwiseEngine) WithConfig(config EngineConfig) *PairwiseEngine {
	e.Config = config
	e.Primes = config.primality()
	return e
}

// WithPrimalityTester replaces the tester used to validate factors.
func (e *PairwiseEngine) WithPrimalityTester(primes PrimalityTester) *PairwiseEngine {
	e.Primes = primes
	return e
}

// Name returns the name of this engine.
func (e *PairwiseEngine) Name() string {
	return "Pairwise"
}

// Factor implements the Engine interface.
//
// Each modulus is resolved by the first partner, in index order, it shares a
// prime with. This matches scanning unordered pairs (i, j), i < j, in
// lexicographic order and keeping the first hit per index, and it keeps the
// result independent of how the indices are spread over workers.
func (e *PairwiseEngine) Factor(ctx context.Context, moduli []*big.Int) (*FactorResult, error) {
	if err := checkModuli(moduli); err != nil {
		return nil, err
	}

	pairs := make([]FactorPair, len(moduli))
	resolved := make([]bool, len(moduli))

	err := parallel.ForEach(ctx, len(moduli), e.Config.NumWorkers, func(ctx context.Context, k int) error {
		pair, ok, err := resolvePairwise(ctx, k, moduli, e.Primes)
		if err != nil {
			return err
		}
		pairs[k], resolved[k] = pair, ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	for k, ok := range resolved {
		if !ok {
			return nil, indexError(ErrFactorization, k, moduli[k], nil)
		}
	}
	return &FactorResult{Pairs: pairs}, nil
}

// resolvePairwise searches the whole set for the first partner of moduli[k].
// It reports false when no modulus shares a prime with moduli[k].
func resolvePairwise(ctx context.Context, k int, moduli []*big.Int, primes PrimalityTester) (FactorPair, bool, error) {
	n := moduli[k]
	for m, other := range moduli {
		if m == k {
			continue
		}
		if err := ctx.Err(); err != nil {
			return FactorPair{}, false, err
		}

		p := sharedFactor(n, other)
		if p == nil {
			continue
		}
		pair, err := splitModulus(k, n, p, primes)
		if err != nil {
			return FactorPair{}, false, err
		}
		return pair, true, nil
	}
	return FactorPair{}, false, nil
}

// checkModuli rejects values that cannot be RSA moduli.
func checkModuli(moduli []*big.Int) error {
	for i, n := range moduli {
		if n == nil || n.Cmp(bigOne) <= 0 {
			return indexError(ErrInvalidKeyParameters, i, n, nil)
		}
	}
	return nil
}
