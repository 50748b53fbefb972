package sandbox

import (
	"math/rand/v2"
	"reflect"
	"sync"
)

// Random is the source behind the candidate's top-level math/rand and
// math/rand/v2 functions. The global generators of the host cannot be seeded
// any more, so the interpreter sees these closures instead.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	r := &Random{}
	r.Seed(seed)
	return r
}

func (r *Random) Seed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func (r *Random) with(fn func(g *rand.Rand)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.rng)
}

func (r *Random) Float64() (v float64) {
	r.with(func(g *rand.Rand) { v = g.Float64() })
	return v
}

func (r *Random) Float32() (v float32) {
	r.with(func(g *rand.Rand) { v = g.Float32() })
	return v
}

func (r *Random) NormFloat64() (v float64) {
	r.with(func(g *rand.Rand) { v = g.NormFloat64() })
	return v
}

func (r *Random) ExpFloat64() (v float64) {
	r.with(func(g *rand.Rand) { v = g.ExpFloat64() })
	return v
}

func (r *Random) IntN(n int) (v int) {
	r.with(func(g *rand.Rand) { v = g.IntN(n) })
	return v
}

func (r *Random) Int64N(n int64) (v int64) {
	r.with(func(g *rand.Rand) { v = g.Int64N(n) })
	return v
}

func (r *Random) Int32N(n int32) (v int32) {
	r.with(func(g *rand.Rand) { v = g.Int32N(n) })
	return v
}

func (r *Random) Int() (v int) {
	r.with(func(g *rand.Rand) { v = g.Int() })
	return v
}

// Int63 matches math/rand: a non-negative 63-bit value.
func (r *Random) Int63() (v int64) {
	r.with(func(g *rand.Rand) { v = g.Int64() })
	return v
}

func (r *Random) Int31() (v int32) {
	r.with(func(g *rand.Rand) { v = g.Int32() })
	return v
}

func (r *Random) Uint32() (v uint32) {
	r.with(func(g *rand.Rand) { v = g.Uint32() })
	return v
}

func (r *Random) Uint64() (v uint64) {
	r.with(func(g *rand.Rand) { v = g.Uint64() })
	return v
}

func (r *Random) Perm(n int) (v []int) {
	r.with(func(g *rand.Rand) { v = g.Perm(n) })
	return v
}

func (r *Random) Shuffle(n int, swap func(i, j int)) {
	// swap runs under the lock; it is candidate code and must not call back
	// into the generator, so take a permutation first.
	var perm []int
	r.with(func(g *rand.Rand) {
		perm = make([]int, n)
		for i := n - 1; i > 0; i-- {
			perm[i] = g.IntN(i + 1)
		}
	})
	for i := n - 1; i > 0; i-- {
		swap(i, perm[i])
	}
}

// overrides returns replacement symbols for the package-level functions of
// math/rand ("v1") or math/rand/v2 ("v2"), keyed the way the interpreter's
// symbol tables are.
func (r *Random) overrides(version string) map[string]reflect.Value {
	common := map[string]reflect.Value{
		"Float64":     reflect.ValueOf(r.Float64),
		"Float32":     reflect.ValueOf(r.Float32),
		"NormFloat64": reflect.ValueOf(r.NormFloat64),
		"ExpFloat64":  reflect.ValueOf(r.ExpFloat64),
		"Int":         reflect.ValueOf(r.Int),
		"Uint32":      reflect.ValueOf(r.Uint32),
		"Uint64":      reflect.ValueOf(r.Uint64),
		"Perm":        reflect.ValueOf(r.Perm),
		"Shuffle":     reflect.ValueOf(r.Shuffle),
	}
	switch version {
	case "v1":
		common["Intn"] = reflect.ValueOf(r.IntN)
		common["Int63"] = reflect.ValueOf(r.Int63)
		common["Int63n"] = reflect.ValueOf(r.Int64N)
		common["Int31"] = reflect.ValueOf(r.Int31)
		common["Int31n"] = reflect.ValueOf(r.Int32N)
		// Seeding from candidate code reseeds the per-run source.
		common["Seed"] = reflect.ValueOf(func(seed int64) { r.Seed(seed) })
	case "v2":
		common["IntN"] = reflect.ValueOf(r.IntN)
		common["Int64"] = reflect.ValueOf(r.Int63)
		common["Int64N"] = reflect.ValueOf(r.Int64N)
		common["Int32"] = reflect.ValueOf(r.Int31)
		common["Int32N"] = reflect.ValueOf(r.Int32N)
	}
	return common
}

