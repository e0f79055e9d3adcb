package surface

// DefaultSeed is the generator state before any SeedRnd call.
const DefaultSeed = 1234567

// Rand is the linear congruential generator behind Rnd and SeedRnd. The
// same seed yields the same sequence in every runtime implementation.
type Rand struct {
	seed uint32
}

// NewRand returns a generator in its initial state.
func NewRand() *Rand {
	return &Rand{seed: DefaultSeed}
}

// Seed resets the state from s, truncated to 32 bits.
func (r *Rand) Seed(s float64) {
	r.seed = ToUint32(s)
}

// State returns the current generator state.
func (r *Rand) State() uint32 {
	return r.seed
}

// next advances the generator and returns a value in [0, 1].
func (r *Rand) next() float64 {
	r.seed = 1664525*r.seed + 1013904223
	return float64(r.seed) / 0xffffffff
}

// Rnd returns a value in [0, a).
func (r *Rand) Rnd(a float64) float64 {
	return r.next() * a
}

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + r.next()*(hi-lo)
}
