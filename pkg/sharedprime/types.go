package sharedprime

import (
	"context"
	"math/big"
)

// FactorPair is the factorization of one modulus. P is the prime the modulus
// shares with another modulus of the set and Q = n / P.
type FactorPair struct {
	P *big.Int
	Q *big.Int
}

// Modulus returns P·Q.
func (f FactorPair) Modulus() *big.Int {
	return new(big.Int).Mul(f.P, f.Q)
}

// FactorResult is the output of an Engine, aligned with the input moduli.
type FactorResult struct {
	Pairs     []FactorPair // Pairs[i] factors moduli[i]
	Escalated []int        // indices the batch engine resolved pairwise, ascending
}

// Engine factors a set of RSA moduli that share primes with each other.
type Engine interface {
	// Factor returns one FactorPair per modulus, in input order. It fails if
	// any modulus cannot be factored; no partial result is returned.
	Factor(ctx context.Context, moduli []*big.Int) (*FactorResult, error)

	// Name returns a short identifier for logs.
	Name() string
}

// EngineConfig tunes the factorization engines.
type EngineConfig struct {
	// NumWorkers controls parallelization (0 = one worker per CPU)
	NumWorkers int

	// PrimalityRounds is the Miller-Rabin round count used to validate factors
	PrimalityRounds int
}

// DefaultEngineConfig returns the configuration used by NewBatchEngine and
// NewPairwiseEngine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		NumWorkers:      0,
		PrimalityRounds: 20,
	}
}

func (c EngineConfig) primality() PrimalityTester {
	rounds := c.PrimalityRounds
	if rounds <= 0 {
		rounds = DefaultEngineConfig().PrimalityRounds
	}
	return ProbablyPrime{Rounds: rounds}
}
