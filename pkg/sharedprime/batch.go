package sharedprime

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/mahdiidarabi/rsa-sharedprime/internal/logging"
	"github.com/mahdiidarabi/rsa-sharedprime/internal/parallel"
)

// BatchEngine finds shared primes with a product tree and a remainder tree,
// using O(N log N) big-integer operations instead of O(N²) GCDs.
//
// A modulus whose two primes are both shared with the rest of the set yields
// gcd = n and cannot be split from the tree alone; such indices are resolved
// with a pairwise search over the whole set and listed in
// FactorResult.Escalated. Each escalation costs O(N) GCDs.
type BatchEngine struct {
	Config EngineConfig
	Primes PrimalityTester
	logger logging.Logger
}

// NewBatchEngine creates a batch engine with default settings.
func NewBatchEngine() *BatchEngine {
	cfg := DefaultEngineConfig()
	return &BatchEngine{
		Config: cfg,
		Primes: cfg.primality(),
		logger: logging.New(nil),
	}
}

// WithConfig sets the engine configuration.
func (e *BatchEngine) WithConfig(config EngineConfig) *BatchEngine {
	e.Config = config
	e.Primes = config.primality()
	return e
}

// WithPrimalityTester replaces the tester used to validate factors.
func (e *BatchEngine) WithPrimalityTester(primes PrimalityTester) *BatchEngine {
	e.Primes = primes
	return e
}

// WithLogger sets the logger used for progress and escalation records.
func (e *BatchEngine) WithLogger(logger *slog.Logger) *BatchEngine {
	e.logger = logging.New(logger)
	return e
}

// Name returns the name of this engine.
func (e *BatchEngine) Name() string {
	return "BatchGCD"
}

// Factor implements the Engine interface.
func (e *BatchEngine) Factor(ctx context.Context, moduli []*big.Int) (*FactorResult, error) {
	if err := checkModuli(moduli); err != nil {
		return nil, err
	}
	if len(moduli) == 0 {
		return &FactorResult{Pairs: []FactorPair{}}, nil
	}

	workers := e.Config.NumWorkers
	log := e.logger.With("engine", e.Name())

	tree, err := buildProductTree(ctx, moduli, workers)
	if err != nil {
		return nil, err
	}
	log.Debug(ctx, "product tree built", "moduli", len(moduli), "levels", len(tree.levels), "root_bits", tree.root().BitLen())

	rems, err := tree.leafRemainders(ctx, workers)
	if err != nil {
		return nil, err
	}

	pairs := make([]FactorPair, len(moduli))
	resolved := make([]bool, len(moduli))
	escalated := make([]bool, len(moduli))

	err = parallel.ForEach(ctx, len(moduli), workers, func(ctx context.Context, i int) error {
		n := moduli[i]
		quo := new(big.Int).Quo(rems[i], n)
		g := GCD(n, quo)

		switch c := g.Cmp(n); {
		case g.Cmp(bigOne) == 0:
			return nil
		case c < 0:
			pair, err := splitModulus(i, n, g, e.Primes)
			if err != nil {
				return err
			}
			pairs[i], resolved[i] = pair, true
			return nil
		case c == 0:
			escalated[i] = true
			pair, ok, err := resolvePairwise(ctx, i, moduli, e.Primes)
			if err != nil {
				return err
			}
			pairs[i], resolved[i] = pair, ok
			return nil
		default:
			return indexError(ErrInternal, i, n, nil)
		}
	})
	if err != nil {
		return nil, err
	}

	result := &FactorResult{Pairs: pairs, Escalated: []int{}}
	for i := range moduli {
		if escalated[i] {
			result.Escalated = append(result.Escalated, i)
		}
	}
	if len(result.Escalated) > 0 {
		log.Warn(ctx, "moduli resolved by pairwise fallback", "count", len(result.Escalated), "indices", result.Escalated)
	}

	for i, ok := range resolved {
		if !ok {
			return nil, indexError(ErrFactorization, i, moduli[i], nil)
		}
	}
	return result, nil
}

// productTree is a binary product tree stored level by level in one slice.
// Level 0 holds the moduli; node k of level l+1 is the product of nodes 2k and
// 2k+1 of level l, or a copy of node 2k when level l has odd length.
type productTree struct {
	nodes  []*big.Int
	levels []span
}

type span struct {
	start int
	size  int
}

func (t *productTree) level(l int) []*big.Int {
	s := t.levels[l]
	return t.nodes[s.start : s.start+s.size]
}

func (t *productTree) root() *big.Int {
	return t.level(len(t.levels) - 1)[0]
}

func buildProductTree(ctx context.Context, moduli []*big.Int, workers int) (*productTree, error) {
	total := 0
	for size := len(moduli); ; size = (size + 1) / 2 {
		total += size
		if size == 1 {
			break
		}
	}

	t := &productTree{
		nodes:  make([]*big.Int, len(moduli), total),
		levels: []span{{start: 0, size: len(moduli)}},
	}
	copy(t.nodes, moduli)

	for prev := t.levels[0]; prev.size > 1; prev = t.levels[len(t.levels)-1] {
		next := span{start: len(t.nodes), size: (prev.size + 1) / 2}
		t.nodes = t.nodes[:next.start+next.size]
		children := t.nodes[prev.start : prev.start+prev.size]
		parents := t.nodes[next.start : next.start+next.size]

		err := parallel.ForEach(ctx, next.size, workers, func(_ context.Context, k int) error {
			left := children[2*k]
			if 2*k+1 == len(children) {
				parents[k] = left
				return nil
			}
			parents[k] = new(big.Int).Mul(left, children[2*k+1])
			return nil
		})
		if err != nil {
			return nil, err
		}
		t.levels = append(t.levels, next)
	}
	return t, nil
}

// leafRemainders walks the tree top-down. The root carries the full product P
// and every node c receives (remainder of its parent) mod c². The returned
// slice holds P mod n_i² for every leaf i.
func (t *productTree) leafRemainders(ctx context.Context, workers int) ([]*big.Int, error) {
	top := len(t.levels) - 1
	upper := []*big.Int{t.root()}

	for l := top - 1; l >= 0; l-- {
		nodes := t.level(l)
		parentRems := upper
		rems := make([]*big.Int, len(nodes))

		err := parallel.ForEach(ctx, len(nodes), workers, func(_ context.Context, k int) error {
			c := nodes[k]
			sq := new(big.Int).Mul(c, c)
			rems[k] = new(big.Int).Mod(parentRems[k/2], sq)
			return nil
		})
		if err != nil {
			return nil, err
		}
		upper = rems
	}

	if top == 0 {
		// single modulus: P mod n² = n
		return []*big.Int{new(big.Int).Set(upper[0])}, nil
	}
	return upper, nil
}
