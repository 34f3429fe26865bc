package shifter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	cr "github.com/project-89/Quantum-Veil/internal/crypto"
)

var (
	ErrWeightSumInvalid = errors.New("shifter: timeline weights must sum to 1.0")
	ErrFragmentStore    = errors.New("shifter: fragment store failed")
	ErrFragmentRetrieve = errors.New("shifter: fragment retrieve failed")
)

// weightEpsilon is the tolerance on the fracture weight sum.
const weightEpsilon = 0.001

var fractureAAD = []byte("fracture:v1")

// Shifter splits encrypted payloads into fragments spread across storage
// backends, one per timeline, and reassembles them on demand. The fragment
// cache is process-lifetime only.
type Shifter struct {
	primary  Backend
	backends map[Timeline]Backend

	mu    sync.RWMutex
	cache map[string]*Fragment
}

// New builds a Shifter with a mandatory primary backend and optional
// per-timeline overrides. Timelines without an override fall back to the
// primary for both store and retrieve.
func New(primary Backend, backends map[Timeline]Backend) *Shifter {
	if backends == nil {
		backends = make(map[Timeline]Backend)
	}
	return &Shifter{
		primary:  primary,
		backends: backends,
		cache:    make(map[string]*Fragment),
	}
}

// Fracture encrypts the payload, slices the ciphertext across timelines by
// weight, and stores every fragment concurrently. It returns the fragment
// ids on success. Any single store failure (or cancellation) fails the
// whole operation; fragments already stored are left in place, so callers
// needing atomicity must compensate themselves.
func (s *Shifter) Fracture(ctx context.Context, asset string, plaintext, keyMaterial []byte, weights map[Timeline]float64) ([]string, error) {
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	// Fragmentation operates on ciphertext only; the payload is sealed
	// once, with the same AEAD the vault uses.
	key, nonce := cr.DeriveFromSeed(keyMaterial)
	defer cr.Zero(key)
	ciphertext, err := cr.Seal(key, nonce, plaintext, fractureAAD)
	if err != nil {
		return nil, err
	}

	fragments := sliceByWeight(asset, ciphertext, weights)
	linkAll(fragments)

	g, gctx := errgroup.WithContext(ctx)
	for _, frag := range fragments {
		frag := frag
		backend := s.backendFor(frag.Timeline)
		g.Go(func() error {
			ref, err := backend.Store(gctx, frag)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrFragmentStore, frag.ID, err)
			}
			frag.Location.Ref = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrFragmentStore) {
			err = fmt.Errorf("%w: %v", ErrFragmentStore, err)
		}
		return nil, err
	}

	ids := make([]string, len(fragments))
	s.mu.Lock()
	for i, frag := range fragments {
		ids[i] = frag.ID
		s.cache[frag.ID] = frag
	}
	s.mu.Unlock()
	return ids, nil
}

// Reassemble resolves every fragment, restores ciphertext byte order by
// sequence index, and opens the result with the given key material. Any
// unresolved fragment fails the whole reassembly.
func (s *Shifter) Reassemble(ctx context.Context, ids []string, keyMaterial []byte) ([]byte, error) {
	fragments := make([]*Fragment, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		if frag := s.cached(id); frag != nil {
			fragments[i] = frag
			continue
		}
		g.Go(func() error {
			frag, err := s.retrieve(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrFragmentRetrieve, id, err)
			}
			fragments[i] = frag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrFragmentRetrieve) {
			err = fmt.Errorf("%w: %v", ErrFragmentRetrieve, err)
		}
		return nil, err
	}

	s.mu.Lock()
	for _, frag := range fragments {
		s.cache[frag.ID] = frag
	}
	s.mu.Unlock()

	ordered := append([]*Fragment(nil), fragments...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var ciphertext []byte
	for _, frag := range ordered {
		ciphertext = append(ciphertext, frag.Data...)
	}

	key, nonce := cr.DeriveFromSeed(keyMaterial)
	defer cr.Zero(key)
	return cr.Open(key, nonce, ciphertext, fractureAAD)
}

// Fragment returns a cached fragment by id, if present.
func (s *Shifter) Fragment(id string) (*Fragment, bool) {
	frag := s.cached(id)
	return frag, frag != nil
}

func (s *Shifter) cached(id string) *Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[id]
}

// retrieve probes every registered backend for the fragment and falls back
// to the primary when none claims it.
func (s *Shifter) retrieve(ctx context.Context, id string) (*Fragment, error) {
	for _, backend := range s.backends {
		ok, err := backend.Exists(ctx, id)
		if err != nil || !ok {
			continue
		}
		return backend.Retrieve(ctx, id)
	}
	return s.primary.Retrieve(ctx, id)
}

func (s *Shifter) backendFor(t Timeline) Backend {
	if b, ok := s.backends[t]; ok {
		return b
	}
	return s.primary
}

func validateWeights(weights map[Timeline]float64) error {
	var sum float64
	for t, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for %s", ErrWeightSumInvalid, t)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: got %.4f", ErrWeightSumInvalid, sum)
	}
	return nil
}

// sliceByWeight cuts the ciphertext into contiguous per-timeline fragments.
// Sizes truncate toward zero and are capped at the bytes still unallocated,
// so a weight sum slightly over 1.0 (inside the validation tolerance) cannot
// run past the ciphertext. Any leftover bytes land on the Primary timeline,
// or on the first timeline in iteration order when Primary carries no
// weight. Every ciphertext byte is allocated exactly once.
func sliceByWeight(asset string, ciphertext []byte, weights map[Timeline]float64) []*Fragment {
	timelines := make([]Timeline, 0, len(weights))
	for t := range weights {
		timelines = append(timelines, t)
	}
	sort.Slice(timelines, func(i, j int) bool { return timelines[i] < timelines[j] })

	total := len(ciphertext)
	sizes := make(map[Timeline]int, len(timelines))
	allocated := 0
	for _, t := range timelines {
		n := int(float64(total) * weights[t])
		if n > total-allocated {
			n = total - allocated
		}
		sizes[t] = n
		allocated += n
	}
	if rest := total - allocated; rest > 0 {
		if _, ok := sizes[Primary]; ok {
			sizes[Primary] += rest
		} else {
			sizes[timelines[0]] += rest
		}
	}

	now := time.Now()
	var fragments []*Fragment
	offset := 0
	seq := 0
	for _, t := range timelines {
		n := sizes[t]
		if n == 0 {
			continue
		}
		data := append([]byte(nil), ciphertext[offset:offset+n]...)
		offset += n
		fragments = append(fragments, &Fragment{
			ID:        newFragmentID(asset, t, now),
			Timeline:  t,
			Seq:       seq,
			Data:      data,
			CreatedAt: now.Unix(),
			Location:  Location{Kind: t.RecommendedLocation()},
		})
		seq++
	}
	return fragments
}

// linkAll wires the full-mesh link graph: each fragment links to every
// other fragment from the same fracture operation.
func linkAll(fragments []*Fragment) {
	for _, f := range fragments {
		for _, other := range fragments {
			if other.ID != f.ID {
				f.Links = append(f.Links, other.ID)
			}
		}
	}
}
