package sharedprime

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Decrypter removes the padding of one ciphertext with a recovered key.
type Decrypter interface {
	// Decrypt returns the plaintext. Padding failures match ErrPadding.
	Decrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, error)
}

// OAEPDecrypter decrypts RSAES-OAEP ciphertexts.
type OAEPDecrypter struct {
	NewHash func() hash.Hash // OAEP and MGF1 hash (default: SHA-1)
	Label   []byte
}

// NewOAEPDecrypter creates an OAEP decrypter using the named hash. See
// HashByName for the accepted names.
func NewOAEPDecrypter(hashName string) (*OAEPDecrypter, error) {
	newHash, err := HashByName(hashName)
	if err != nil {
		return nil, err
	}
	return &OAEPDecrypter{NewHash: newHash}, nil
}

// Decrypt implements the Decrypter interface.
func (d *OAEPDecrypter) Decrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	newHash := d.NewHash
	if newHash == nil {
		newHash = sha1.New
	}
	plaintext, err := rsa.DecryptOAEP(newHash(), rand.Reader, key, ciphertext, d.Label)
	if err != nil {
		return nil, paddingError(err)
	}
	return plaintext, nil
}

// HashByName maps a hash name to its constructor. Accepted names are "sha1"
// (also the empty string), "sha256", "sha512" and "sha3-256".
func HashByName(name string) (func() hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha1", "sha-1":
		return sha1.New, nil
	case "sha256", "sha-256":
		return sha256.New, nil
	case "sha512", "sha-512":
		return sha512.New, nil
	case "sha3-256", "sha3_256":
		return sha3.New256, nil
	default:
		return nil, errors.Errorf("unsupported OAEP hash %q", name)
	}
}

// paddingErr tags a crypto/rsa failure as ErrPadding and keeps the original
// cause reachable through errors.Is.
type paddingErr struct {
	cause error
}

func paddingError(cause error) error {
	return &paddingErr{cause: cause}
}

func (e *paddingErr) Error() string {
	return ErrPadding.Error() + ": " + e.cause.Error()
}

func (e *paddingErr) Unwrap() []error {
	return []error{ErrPadding, e.cause}
}
