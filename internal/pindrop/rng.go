package pindrop

// seqRand is a tiny deterministic generator. Two players seeded with the
// same challenge key see the identical location sequence, which keeps
// head-to-head rounds fair without shipping locations over the wire.
type seqRand struct {
	state int64
}

const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

func newSeqRand(seed string) *seqRand {
	return &seqRand{state: hashSeed(seed)}
}

// hashSeed folds a string into a non-negative 32-bit value using the
// shift-and-subtract hash the mobile clients already use, so server and
// client sequences agree.
func hashSeed(seed string) int64 {
	var h int32
	for _, ch := range seed {
		h = h<<5 - h + int32(ch)
	}
	if h < 0 {
		h = -h
	}
	return int64(h)
}

// next returns a float in [0, 1).
func (r *seqRand) next() float64 {
	r.state = (r.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(r.state) / lcgModulus
}

// intn returns an int in [0, n).
func (r *seqRand) intn(n int) int {
	return int(r.next() * float64(n))
}
