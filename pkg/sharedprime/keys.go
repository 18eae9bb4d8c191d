package sharedprime

import (
	"crypto/rsa"
	"math/big"
	"runtime"

	"github.com/pkg/errors"
)

// ReconstructKey derives the private key for the modulus pair.P·pair.Q.
//
// The private exponent is d = e⁻¹ mod lcm(p-1, q-1). The function fails with
// ErrInvalidKeyParameters when e is not invertible modulo that lcm or when the
// pair does not hold two distinct factors.
func ReconstructKey(e int, pair FactorPair) (*rsa.PrivateKey, error) {
	if pair.P == nil || pair.Q == nil || pair.P.Cmp(bigOne) <= 0 || pair.Q.Cmp(bigOne) <= 0 {
		return nil, errors.Wrap(ErrInvalidKeyParameters, "factors must be greater than 1")
	}
	if pair.P.Cmp(pair.Q) == 0 {
		return nil, errors.Wrap(ErrInvalidKeyParameters, "factors must be distinct")
	}
	if e < 2 {
		return nil, errors.Wrapf(ErrInvalidKeyParameters, "exponent too small: %d", e)
	}

	lambda := carmichael(pair.P, pair.Q)
	bigE := big.NewInt(int64(e))
	if GCD(bigE, lambda).Cmp(bigOne) != 0 {
		return nil, errors.Wrapf(ErrInvalidKeyParameters, "exponent %d is not coprime to lcm(p-1, q-1)", e)
	}
	d := new(big.Int).ModInverse(bigE, lambda)
	if d == nil {
		return nil, errors.Wrapf(ErrInvalidKeyParameters, "exponent %d has no inverse", e)
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: pair.Modulus(),
			E: e,
		},
		D:      d,
		Primes: []*big.Int{new(big.Int).Set(pair.P), new(big.Int).Set(pair.Q)},
	}
	key.Precompute()
	return key, nil
}

// ReconstructKeys runs ReconstructKey for every pair, in order. The first
// failure aborts and carries the index of the offending pair.
func ReconstructKeys(e int, pairs []FactorPair) ([]*rsa.PrivateKey, error) {
	keys := make([]*rsa.PrivateKey, 0, len(pairs))
	for i, pair := range pairs {
		key, err := ReconstructKey(e, pair)
		if err != nil {
			for _, k := range keys {
				WipeKey(k)
			}
			return nil, indexError(ErrInvalidKeyParameters, i, safeModulus(pair), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// VerifyPublicKey checks that priv is the private half of pub: the moduli and
// exponents must be equal and d·e ≡ 1 (mod lcm(p-1, q-1)).
func VerifyPublicKey(pub *rsa.PublicKey, priv *rsa.PrivateKey) error {
	if pub == nil || priv == nil || pub.N == nil || priv.N == nil {
		return errors.Wrap(ErrKeyMismatch, "missing key")
	}
	if pub.N.Cmp(priv.N) != 0 {
		return errors.Wrap(ErrKeyMismatch, "modulus differs")
	}
	if pub.E != priv.E {
		return errors.Wrapf(ErrKeyMismatch, "exponent differs: %d != %d", pub.E, priv.E)
	}
	if len(priv.Primes) != 2 {
		return errors.Wrapf(ErrKeyMismatch, "expected 2 primes, got %d", len(priv.Primes))
	}

	lambda := carmichael(priv.Primes[0], priv.Primes[1])
	check := new(big.Int).Mul(priv.D, big.NewInt(int64(priv.E)))
	if check.Mod(check, lambda).Cmp(bigOne) != 0 {
		return errors.Wrap(ErrKeyMismatch, "d·e is not 1 mod lcm(p-1, q-1)")
	}
	return nil
}

// CheckExponents returns the exponent shared by every key. It fails with
// ErrHeterogeneousExponent naming the first key that differs from keys[0].
func CheckExponents(keys []*rsa.PublicKey) (int, error) {
	if len(keys) == 0 {
		return 0, ErrNoKeys
	}
	for i, k := range keys {
		if k == nil || k.N == nil {
			return 0, indexError(ErrInvalidKeyParameters, i, nil, errors.New("missing public key"))
		}
	}

	e := keys[0].E
	for i, k := range keys[1:] {
		if k.E != e {
			return 0, indexError(ErrHeterogeneousExponent, i+1, k.N, errors.Errorf("e=%d, expected %d", k.E, e))
		}
	}
	return e, nil
}

// WipeKey overwrites the secret values of key. The key is unusable afterwards.
//
// The Go runtime may still hold copies made by crypto/rsa or the garbage
// collector, so this narrows but does not close the exposure window.
func WipeKey(key *rsa.PrivateKey) {
	if key == nil {
		return
	}
	wipeInt(key.D)
	for _, p := range key.Primes {
		wipeInt(p)
	}
	wipeInt(key.Precomputed.Dp)
	wipeInt(key.Precomputed.Dq)
	wipeInt(key.Precomputed.Qinv)
	key.D = nil
	key.Primes = nil
	key.Precomputed = rsa.PrecomputedValues{}
}

func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	runtime.KeepAlive(words)
	x.SetInt64(0)
}

// carmichael returns lcm(p-1, q-1).
func carmichael(p, q *big.Int) *big.Int {
	pm := new(big.Int).Sub(p, bigOne)
	qm := new(big.Int).Sub(q, bigOne)
	return LCM(pm, qm)
}

func safeModulus(pair FactorPair) *big.Int {
	if pair.P == nil || pair.Q == nil {
		return nil
	}
	return pair.Modulus()
}
