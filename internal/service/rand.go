package service

import "math/rand/v2"

// Rand is the randomness used by rewards. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }
func (systemRand) IntN(n int) int   { return rand.IntN(n) }

// SystemRand is safe for concurrent use.
func SystemRand() Rand { return systemRand{} }
