// Package sharedprime recovers RSA private keys from public keys whose moduli
// share prime factors, and decrypts the ciphertexts encrypted to them.
//
// Two moduli n₁ = p·q₁ and n₂ = p·q₂ generated from a poorly seeded prime pool
// reveal p through gcd(n₁, n₂). BatchEngine finds every such factor with a
// product tree and a remainder tree; PairwiseEngine does the same with one GCD
// per pair and is used as the fallback for moduli the batch method cannot split.
//
// # Quick Start
//
//	import "github.com/mahdiidarabi/rsa-sharedprime/pkg/sharedprime"
//
//	client := sharedprime.NewClient()
//
//	message, err := client.Recover(ctx, &sharedprime.DirSource{Dir: "data"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(string(message))
//
// # Customization
//
//	engine := sharedprime.NewBatchEngine().
//	    WithConfig(sharedprime.EngineConfig{
//	        NumWorkers:      8,
//	        PrimalityRounds: 32,
//	    })
//
//	decrypter, err := sharedprime.NewOAEPDecrypter("sha256")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := sharedprime.NewClient().
//	    WithEngine(engine).
//	    WithDecrypter(decrypter)
//
// # Lower-level API
//
// The pipeline steps are exported individually: CheckExponents, Engine.Factor,
// ReconstructKey / ReconstructKeys, VerifyPublicKey and Decrypter.Decrypt.
// Failures match one of the Err* kinds with errors.Is, and IndexError (via
// errors.As) reports the position of the offending key.
package sharedprime
