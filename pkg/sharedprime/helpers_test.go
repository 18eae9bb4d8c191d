package sharedprime

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const testExponent = 65537

// primePool returns count distinct primes of the given size with p-1 coprime
// to testExponent.
func primePool(t *testing.T, count, bits int) []*big.Int {
	t.Helper()

	e := big.NewInt(testExponent)
	pool := make([]*big.Int, 0, count)
	for len(pool) < count {
		p, err := rand.Prime(rand.Reader, bits)
		require.NoError(t, err)

		pm := new(big.Int).Sub(p, bigOne)
		if new(big.Int).Mod(pm, e).Sign() == 0 {
			continue
		}
		duplicate := false
		for _, q := range pool {
			if q.Cmp(p) == 0 {
				duplicate = true
			}
		}
		if !duplicate {
			pool = append(pool, p)
		}
	}
	return pool
}

// weakKeys builds one public key per layout entry; entry {a, b} uses
// pool[a]·pool[b] as modulus.
func weakKeys(pool []*big.Int, layout [][2]int) []*rsa.PublicKey {
	keys := make([]*rsa.PublicKey, len(layout))
	for i, idx := range layout {
		keys[i] = &rsa.PublicKey{
			N: new(big.Int).Mul(pool[idx[0]], pool[idx[1]]),
			E: testExponent,
		}
	}
	return keys
}

func moduliOf(keys []*rsa.PublicKey) []*big.Int {
	moduli := make([]*big.Int, len(keys))
	for i, k := range keys {
		moduli[i] = k.N
	}
	return moduli
}

func encryptOAEP(t *testing.T, pub *rsa.PublicKey, msg []byte) []byte {
	t.Helper()
	ct, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, msg, nil)
	require.NoError(t, err)
	return ct
}

func ints(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func pair(p, q int64) FactorPair {
	return FactorPair{P: big.NewInt(p), Q: big.NewInt(q)}
}

func requirePairs(t *testing.T, want, got []FactorPair) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Zerof(t, want[i].P.Cmp(got[i].P), "index %d: p = %s, want %s", i, got[i].P, want[i].P)
		require.Zerof(t, want[i].Q.Cmp(got[i].Q), "index %d: q = %s, want %s", i, got[i].Q, want[i].Q)
	}
}

func quietLogger() *slog.Logger {
	return textLogger(io.Discard)
}

func textLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
