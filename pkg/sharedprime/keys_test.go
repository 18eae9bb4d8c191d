package sharedprime

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructKey_SmallPrimes(t *testing.T) {
	key, err := ReconstructKey(3, pair(5, 11))
	require.NoError(t, err)

	assert.Equal(t, int64(55), key.N.Int64())
	assert.Equal(t, 3, key.E)
	assert.Equal(t, int64(7), key.D.Int64())

	check := new(big.Int).Mul(key.D, big.NewInt(3))
	assert.Equal(t, int64(1), check.Mod(check, big.NewInt(20)).Int64())
	require.NoError(t, VerifyPublicKey(&rsa.PublicKey{N: big.NewInt(55), E: 3}, key))
}

func TestReconstructKey_ExponentNotInvertible(t *testing.T) {
	// lcm(4, 12) = 12 and gcd(3, 12) = 3
	_, err := ReconstructKey(3, pair(5, 13))
	assert.ErrorIs(t, err, ErrInvalidKeyParameters)

	key, err := ReconstructKey(7, pair(5, 13))
	require.NoError(t, err)
	check := new(big.Int).Mul(key.D, big.NewInt(7))
	assert.Equal(t, int64(1), check.Mod(check, big.NewInt(12)).Int64())
}

func TestReconstructKey_InvalidPair(t *testing.T) {
	tests := []struct {
		name string
		e    int
		pair FactorPair
	}{
		{"equal factors", 3, pair(5, 5)},
		{"unit factor", 3, pair(1, 11)},
		{"missing factor", 3, FactorPair{P: big.NewInt(5)}},
		{"exponent too small", 1, pair(5, 11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReconstructKey(tt.e, tt.pair)
			assert.ErrorIs(t, err, ErrInvalidKeyParameters)
		})
	}
}

func TestReconstructKey_RoundTrip(t *testing.T) {
	original, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	pub := &original.PublicKey
	key, err := ReconstructKey(pub.E, FactorPair{P: original.Primes[0], Q: original.Primes[1]})
	require.NoError(t, err)

	require.NoError(t, VerifyPublicKey(pub, key))
	assert.True(t, pub.Equal(&key.PublicKey))

	msg := []byte("round trip")
	plaintext, err := (&OAEPDecrypter{}).Decrypt(key, encryptOAEP(t, pub, msg))
	require.NoError(t, err)
	assert.Equal(t, msg, plaintext)
}

func TestReconstructKeys_ReportsIndex(t *testing.T) {
	keys, err := ReconstructKeys(3, []FactorPair{pair(5, 11), pair(5, 13)})
	require.ErrorIs(t, err, ErrInvalidKeyParameters)
	assert.Nil(t, keys)

	var idxErr *IndexError
	require.True(t, errors.As(err, &idxErr))
	assert.Equal(t, 1, idxErr.Index)
	assert.Equal(t, int64(65), idxErr.Modulus.Int64())
}

func TestVerifyPublicKey_Mismatch(t *testing.T) {
	key, err := ReconstructKey(3, pair(5, 11))
	require.NoError(t, err)

	assert.ErrorIs(t, VerifyPublicKey(&rsa.PublicKey{N: big.NewInt(65), E: 3}, key), ErrKeyMismatch)
	assert.ErrorIs(t, VerifyPublicKey(&rsa.PublicKey{N: big.NewInt(55), E: 7}, key), ErrKeyMismatch)
	assert.ErrorIs(t, VerifyPublicKey(nil, key), ErrKeyMismatch)

	key.D = big.NewInt(9)
	assert.ErrorIs(t, VerifyPublicKey(&rsa.PublicKey{N: big.NewInt(55), E: 3}, key), ErrKeyMismatch)
}

func TestCheckExponents(t *testing.T) {
	keys := []*rsa.PublicKey{
		{N: big.NewInt(55), E: 3},
		{N: big.NewInt(65), E: 3},
	}
	e, err := CheckExponents(keys)
	require.NoError(t, err)
	assert.Equal(t, 3, e)

	keys = append(keys, &rsa.PublicKey{N: big.NewInt(85), E: 65537})
	_, err = CheckExponents(keys)
	require.ErrorIs(t, err, ErrHeterogeneousExponent)

	var idxErr *IndexError
	require.True(t, errors.As(err, &idxErr))
	assert.Equal(t, 2, idxErr.Index)

	_, err = CheckExponents(nil)
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = CheckExponents([]*rsa.PublicKey{nil})
	assert.ErrorIs(t, err, ErrInvalidKeyParameters)
}

func TestWipeKey(t *testing.T) {
	key, err := ReconstructKey(3, pair(5, 11))
	require.NoError(t, err)

	d, p := key.D, key.Primes[0]
	WipeKey(key)

	assert.Nil(t, key.D)
	assert.Nil(t, key.Primes)
	assert.Zero(t, d.Sign())
	assert.Zero(t, p.Sign())
	assert.Equal(t, int64(55), key.N.Int64(), "public modulus survives")

	WipeKey(key)
	WipeKey(nil)
}
