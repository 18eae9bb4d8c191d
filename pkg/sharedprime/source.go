package sharedprime

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// KeySource supplies the public keys under attack and, by index, the
// ciphertext encrypted to each of them.
type KeySource interface {
	// PublicKeys returns the keys in a stable order.
	PublicKeys() ([]*rsa.PublicKey, error)

	// Ciphertext returns the ciphertext for the key at index i.
	Ciphertext(i int) ([]byte, error)
}

// KeyFormat names an on-disk public key encoding.
type KeyFormat string

const (
	FormatAuto KeyFormat = ""    // detect from content
	FormatPEM  KeyFormat = "pem" // PKIX, PKCS#1 or certificate PEM block
	FormatSSH  KeyFormat = "ssh" // OpenSSH authorized_keys line
)

// ParseKeyFormat validates a format name given on the command line.
func ParseKeyFormat(s string) (KeyFormat, error) {
	switch f := KeyFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatPEM, FormatSSH:
		return f, nil
	case "auto":
		return FormatAuto, nil
	default:
		return "", errors.Errorf("unknown key format %q", s)
	}
}

// ParsePublicKey decodes an RSA public key.
//
// PEM input may hold a "PUBLIC KEY" (PKIX), "RSA PUBLIC KEY" (PKCS#1) or
// "CERTIFICATE" block. SSH input is a single authorized_keys line.
func ParsePublicKey(data []byte, format KeyFormat) (*rsa.PublicKey, error) {
	if format == FormatAuto {
		format = FormatSSH
		if bytes.Contains(data, []byte("-----BEGIN")) {
			format = FormatPEM
		}
	}

	switch format {
	case FormatPEM:
		return parsePEMPublicKey(data)
	case FormatSSH:
		return parseSSHPublicKey(data)
	default:
		return nil, errors.Errorf("unknown key format %q", format)
	}
}

func parsePEMPublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}

	var pub any
	var err error
	switch block.Type {
	case "PUBLIC KEY":
		pub, err = x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		pub, err = x509.ParsePKCS1PublicKey(block.Bytes)
	case "CERTIFICATE":
		var cert *x509.Certificate
		cert, err = x509.ParseCertificate(block.Bytes)
		if err == nil {
			pub = cert.PublicKey
		}
	default:
		return nil, errors.Errorf("unsupported PEM block type %q", block.Type)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse public key")
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("not an RSA public key: %T", pub)
	}
	return rsaPub, nil
}

func parseSSHPublicKey(data []byte) (*rsa.PublicKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse authorized key")
	}
	if pub.Type() != ssh.KeyAlgoRSA {
		return nil, errors.Errorf("not an RSA public key: %s", pub.Type())
	}

	cryptoPub, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, errors.Errorf("cannot extract key material from %s", pub.Type())
	}
	rsaPub, ok := cryptoPub.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("not an RSA public key: %T", cryptoPub.CryptoPublicKey())
	}
	return rsaPub, nil
}

// DirSource reads keys and ciphertexts from a directory laid out as
// <i>.key and <i>.enc for i = 0, 1, ...
type DirSource struct {
	Dir       string
	Count     int       // number of keys (0 = every contiguous index from 0)
	Format    KeyFormat // key encoding (default: detect)
	KeyExt    string    // key file extension (default: ".key")
	CipherExt string    // ciphertext file extension (default: ".enc")
}

// PublicKeys implements the KeySource interface.
func (s *DirSource) PublicKeys() ([]*rsa.PublicKey, error) {
	count := s.Count
	if count < 0 {
		return nil, errors.Errorf("negative key count %d", count)
	}
	if count == 0 {
		count = s.discover()
	}
	if count == 0 {
		return nil, errors.Wrapf(ErrNoKeys, "no %s files in %s", s.keyExt(), s.Dir)
	}

	keys := make([]*rsa.PublicKey, 0, count)
	for i := 0; i < count; i++ {
		path := s.path(i, s.keyExt())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read key %d", i)
		}
		key, err := ParsePublicKey(data, s.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "key %s", path)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Ciphertext implements the KeySource interface.
func (s *DirSource) Ciphertext(i int) ([]byte, error) {
	data, err := os.ReadFile(s.path(i, s.cipherExt()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read ciphertext %d", i)
	}
	return data, nil
}

func (s *DirSource) discover() int {
	n := 0
	for {
		if _, err := os.Stat(s.path(n, s.keyExt())); err != nil {
			return n
		}
		n++
	}
}

func (s *DirSource) path(i int, ext string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d%s", i, ext))
}

func (s *DirSource) keyExt() string {
	if s.KeyExt == "" {
		return ".key"
	}
	return s.KeyExt
}

func (s *DirSource) cipherExt() string {
	if s.CipherExt == "" {
		return ".enc"
	}
	return s.CipherExt
}

// MemorySource serves keys and ciphertexts already held in memory.
type MemorySource struct {
	Keys        []*rsa.PublicKey
	Ciphertexts [][]byte
}

// PublicKeys implements the KeySource interface.
func (s *MemorySource) PublicKeys() ([]*rsa.PublicKey, error) {
	if len(s.Keys) == 0 {
		return nil, ErrNoKeys
	}
	return s.Keys, nil
}

// Ciphertext implements the KeySource interface.
func (s *MemorySource) Ciphertext(i int) ([]byte, error) {
	if i < 0 || i >= len(s.Ciphertexts) {
		return nil, errors.Errorf("no ciphertext for key %d", i)
	}
	return s.Ciphertexts[i], nil
}
