package sharedprime

import (
	"bytes"
	"context"
	"crypto/rsa"
	"log/slog"
	"math/big"

	"github.com/pkg/errors"

	"github.com/mahdiidarabi/rsa-sharedprime/internal/logging"
)

// Stage is a step of the recovery pipeline. Stages run strictly in order.
type Stage int

const (
	StageLoaded Stage = iota
	StageExponentChecked
	StageFactored
	StageKeyed
	StageDecrypted
)

func (s Stage) String() string {
	switch s {
	case StageLoaded:
		return "loaded"
	case StageExponentChecked:
		return "exponent_checked"
	case StageFactored:
		return "factored"
	case StageKeyed:
		return "keyed"
	case StageDecrypted:
		return "decrypted"
	default:
		return "unknown"
	}
}

// KeyHook observes every validated private key before it is used.
type KeyHook func(index int, key *rsa.PrivateKey) error

// Client provides a high-level API for the shared-prime attack.
type Client struct {
	engine    Engine
	decrypter Decrypter
	logger    logging.Logger
	keyHook   KeyHook
}

// NewClient creates a new client with default settings: batch GCD engine and
// OAEP with SHA-1.
func NewClient() *Client {
	return &Client{
		engine:    NewBatchEngine(),
		decrypter: &OAEPDecrypter{},
		logger:    logging.New(nil),
	}
}

// WithEngine sets the factorization engine.
func (c *Client) WithEngine(engine Engine) *Client {
	c.engine = engine
	return c
}

// WithDecrypter sets the padding scheme used on ciphertexts.
func (c *Client) WithDecrypter(decrypter Decrypter) *Client {
	c.decrypter = decrypter
	return c
}

// WithLogger sets the pipeline logger. The client is silent until one is set.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logging.New(logger)
	return c
}

// WithKeyHook registers fn to be called with each recovered key after it has
// been validated against its public key.
func (c *Client) WithKeyHook(fn KeyHook) *Client {
	c.keyHook = fn
	return c
}

// Recover runs the whole pipeline against src and returns the ordered
// concatenation of every decrypted ciphertext.
//
// Recovery is all-or-nothing: any failure aborts the run and no partial
// plaintext is returned.
func (c *Client) Recover(ctx context.Context, src KeySource) ([]byte, error) {
	pubs, err := src.PublicKeys()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load public keys")
	}
	c.enter(ctx, StageLoaded, "keys", len(pubs))

	keys, _, err := c.RecoverKeys(ctx, pubs)
	if err != nil {
		return nil, err
	}
	return c.DecryptAll(ctx, keys, src)
}

// RecoverKeys checks the exponents, factors the moduli and rebuilds one
// private key per public key, index-aligned with pubs.
func (c *Client) RecoverKeys(ctx context.Context, pubs []*rsa.PublicKey) ([]*rsa.PrivateKey, *FactorResult, error) {
	e, err := CheckExponents(pubs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "exponent check")
	}
	c.enter(ctx, StageExponentChecked, "e", e)

	moduli := make([]*big.Int, len(pubs))
	for i, pub := range pubs {
		moduli[i] = pub.N
	}

	result, err := c.engine.Factor(ctx, moduli)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "factor moduli (%s)", c.engine.Name())
	}
	if result == nil || len(result.Pairs) != len(pubs) {
		got := 0
		if result != nil {
			got = len(result.Pairs)
		}
		return nil, nil, errors.Wrapf(ErrInternal, "engine %s returned %d pairs for %d keys", c.engine.Name(), got, len(pubs))
	}
	c.enter(ctx, StageFactored, "engine", c.engine.Name(), "escalated", len(result.Escalated))

	keys, err := ReconstructKeys(e, result.Pairs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reconstruct keys")
	}
	for i, key := range keys {
		if err := VerifyPublicKey(pubs[i], key); err != nil {
			wipeAll(keys)
			return nil, nil, errors.Wrap(indexError(ErrKeyMismatch, i, pubs[i].N, err), "verify keys")
		}
		c.logger.Debug(ctx, "key rebuilt", "index", i, "bits", key.N.BitLen(), logging.Redacted("d"))
	}

	if c.keyHook != nil {
		for i, key := range keys {
			if err := c.keyHook(i, key); err != nil {
				wipeAll(keys)
				return nil, nil, errors.Wrapf(err, "key hook at index %d", i)
			}
		}
	}
	c.enter(ctx, StageKeyed, "keys", len(keys))
	return keys, result, nil
}

// DecryptAll decrypts the ciphertext of every key, in index order, and
// concatenates the plaintexts. Each key is wiped once it has been used, and
// all remaining keys are wiped on failure.
func (c *Client) DecryptAll(ctx context.Context, keys []*rsa.PrivateKey, src KeySource) ([]byte, error) {
	defer wipeAll(keys)

	var message bytes.Buffer
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ciphertext, err := src.Ciphertext(i)
		if err != nil {
			return nil, errors.Wrap(err, "load ciphertext")
		}
		plaintext, err := c.decrypter.Decrypt(key, ciphertext)
		if err != nil {
			return nil, indexError(ErrPadding, i, key.N, err)
		}
		message.Write(plaintext)
		wipe(key)
		c.logger.Debug(ctx, "ciphertext decrypted", "index", i, "bytes", len(plaintext))
	}
	c.enter(ctx, StageDecrypted, "bytes", message.Len())
	return message.Bytes(), nil
}

func (c *Client) enter(ctx context.Context, stage Stage, args ...any) {
	c.logger.Info(ctx, "stage complete", append([]any{"stage", stage.String()}, args...)...)
}

// wipe is replaced in tests to observe which keys are discarded.
var wipe = WipeKey

func wipeAll(keys []*rsa.PrivateKey) {
	for _, k := range keys {
		wipe(k)
	}
}
