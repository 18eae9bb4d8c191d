package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mahdiidarabi/rsa-sharedprime/internal/logging"
	"github.com/mahdiidarabi/rsa-sharedprime/pkg/sharedprime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("recovery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dir        = fs.String("dir", "", "Directory holding <i>.key public keys and <i>.enc ciphertexts")
		count      = fs.Int("count", 0, "Number of keys to load (0 = every contiguous index from 0)")
		format     = fs.String("format", "auto", "Public key format (auto, pem or ssh)")
		engineName = fs.String("engine", "batch", "Factorization engine (batch or pairwise)")
		numWorkers = fs.Int("workers", 0, "Number of parallel workers (0 = auto-detect based on CPU cores)")
		oaepHash   = fs.String("oaep-hash", "sha1", "OAEP hash (sha1, sha256, sha512 or sha3-256)")
		keysOut    = fs.String("keys-out", "", "Directory to write recovered private keys to (PKCS#1 PEM)")
		verbose    = fs.Bool("v", false, "Verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dir == "" {
		fs.Usage()
		return errors.New("-dir is required")
	}

	keyFormat, err := sharedprime.ParseKeyFormat(*format)
	if err != nil {
		return err
	}
	decrypter, err := sharedprime.NewOAEPDecrypter(*oaepHash)
	if err != nil {
		return err
	}

	logger := logging.NewText(stderr, *verbose)
	config := sharedprime.EngineConfig{
		NumWorkers:      *numWorkers,
		PrimalityRounds: sharedprime.DefaultEngineConfig().PrimalityRounds,
	}

	var engine sharedprime.Engine
	switch strings.ToLower(*engineName) {
	case "batch":
		engine = sharedprime.NewBatchEngine().WithConfig(config).WithLogger(logger)
	case "pairwise":
		engine = sharedprime.NewPairwiseEngine().WithConfig(config)
	default:
		return errors.Errorf("unknown engine %q", *engineName)
	}

	client := sharedprime.NewClient().
		WithEngine(engine).
		WithDecrypter(decrypter).
		WithLogger(logger)

	if *keysOut != "" {
		if err := os.MkdirAll(*keysOut, 0o700); err != nil {
			return errors.Wrap(err, "failed to create key output directory")
		}
		client = client.WithKeyHook(saveKey(*keysOut))
	}

	src := &sharedprime.DirSource{Dir: *dir, Count: *count, Format: keyFormat}
	plaintext, err := client.Recover(ctx, src)
	if err != nil {
		return err
	}

	_, err = stdout.Write(plaintext)
	return err
}

// saveKey writes each recovered key to dir/<i>.pem.
func saveKey(dir string) sharedprime.KeyHook {
	return func(index int, key *rsa.PrivateKey) error {
		data := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		path := filepath.Join(dir, fmt.Sprintf("%d.pem", index))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
		return nil
	}
}
