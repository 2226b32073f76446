package captcha

import (
	"math/rand/v2"
	"sync"
)

// Source is the random primitive consumed by the generator and renderer.
type Source interface {
	IntN(n int) int
	Float64() float64
}

type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource is backed by the top-level math/rand/v2 functions and is safe
// for concurrent use.
var DefaultSource Source = globalSource{}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a reproducible Source guarded by a mutex.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// RandRange returns a value in [start, end). An empty range yields start.
func RandRange(src Source, start, end int) int {
	if end <= start {
		return start
	}
	return start + src.IntN(end-start)
}

func coinFlip(src Source) bool {
	return src.IntN(2) == 0
}
