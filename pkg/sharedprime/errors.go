package sharedprime

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// Error kinds. Every failure returned by this package matches exactly one of
// these through errors.Is.
var (
	// ErrFactorization reports a modulus that shares no prime with any other
	// modulus in the set.
	ErrFactorization = errors.New("modulus shares no factor with the set")

	// ErrPrimalityViolation reports an extracted factor or cofactor that is not
	// prime.
	ErrPrimalityViolation = errors.New("extracted factor is not prime")

	// ErrInvalidKeyParameters reports an exponent that is not invertible modulo
	// lcm(p-1, q-1), or a factor pair that cannot form an RSA modulus.
	ErrInvalidKeyParameters = errors.New("invalid key parameters")

	// ErrKeyMismatch reports a reconstructed key whose public half differs from
	// the original public key.
	ErrKeyMismatch = errors.New("reconstructed key does not match public key")

	// ErrHeterogeneousExponent reports a key set that does not share one public
	// exponent.
	ErrHeterogeneousExponent = errors.New("public keys do not share one exponent")

	// ErrPadding reports a ciphertext that failed padding removal.
	ErrPadding = errors.New("padding check failed")

	// ErrNoKeys reports an empty key set.
	ErrNoKeys = errors.New("no public keys")

	// ErrInternal reports a broken engine invariant.
	ErrInternal = errors.New("internal invariant violated")
)

// IndexError ties a failure to the position of the key or modulus it concerns.
type IndexError struct {
	Index   int
	Modulus *big.Int // nil when the failure is not about a modulus
	Kind    error
	Err     error // optional underlying cause
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("index %d: %v", e.Index, e.Kind)
	if e.Modulus != nil {
		msg += fmt.Sprintf(" (n=%s)", abbreviate(e.Modulus))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *IndexError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func indexError(kind error, index int, n *big.Int, cause error) *IndexError {
	return &IndexError{Index: index, Modulus: n, Kind: kind, Err: cause}
}

// abbreviate keeps error strings readable for 4096-bit moduli.
func abbreviate(n *big.Int) string {
	s := n.Text(16)
	if len(s) <= 24 {
		return "0x" + s
	}
	return fmt.Sprintf("0x%s...%s (%d bits)", s[:8], s[len(s)-8:], n.BitLen())
}
