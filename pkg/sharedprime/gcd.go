package sharedprime

import (
	"math/big"

	"github.com/pkg/errors"
)

var bigOne = big.NewInt(1)

// GCD returns gcd(a, b) as a new integer. The operands are left untouched and
// may have any bit length.
func GCD(a, b *big.Int) *big.Int {
	return new(big.Int).GCD(nil, nil, a, b)
}

// LCM returns lcm(a, b) for positive a and b.
func LCM(a, b *big.Int) *big.Int {
	g := GCD(a, b)
	l := new(big.Int).Quo(a, g)
	return l.Mul(l, b)
}

// PrimalityTester decides whether an extracted factor is prime. It is only used
// to validate engine output, never to search for factors.
type PrimalityTester interface {
	IsPrime(n *big.Int) bool
}

// ProbablyPrime tests with big.Int.ProbablyPrime: Baillie-PSW plus Rounds
// Miller-Rabin rounds.
type ProbablyPrime struct {
	Rounds int
}

// IsPrime implements PrimalityTester.
func (p ProbablyPrime) IsPrime(n *big.Int) bool {
	if n == nil || n.Sign() <= 0 {
		return false
	}
	return n.ProbablyPrime(p.Rounds)
}

// sharedFactor reports the nontrivial common factor of a and b, or nil when
// gcd(a, b) is 1 or not strictly smaller than both operands.
func sharedFactor(a, b *big.Int) *big.Int {
	g := GCD(a, b)
	if g.Cmp(bigOne) <= 0 || g.Cmp(a) >= 0 || g.Cmp(b) >= 0 {
		return nil
	}
	return g
}

// splitModulus divides n by the shared prime p and validates both halves.
func splitModulus(index int, n, p *big.Int, primes PrimalityTester) (FactorPair, error) {
	q, r := new(big.Int).QuoRem(n, p, new(big.Int))
	if r.Sign() != 0 {
		return FactorPair{}, indexError(ErrInternal, index, n, nil)
	}
	if p.Cmp(q) == 0 {
		// n = p², not a two-prime modulus
		return FactorPair{}, indexError(ErrFactorization, index, n, nil)
	}
	if !primes.IsPrime(p) {
		return FactorPair{}, indexError(ErrPrimalityViolation, index, n, errors.Errorf("factor %s", abbreviate(p)))
	}
	if !primes.IsPrime(q) {
		return FactorPair{}, indexError(ErrPrimalityViolation, index, n, errors.Errorf("cofactor %s", abbreviate(q)))
	}
	return FactorPair{P: p, Q: q}, nil
}
