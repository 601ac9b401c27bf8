// Package ring implements the slave's fixed-size sample store (spec §4.B):
// a power-of-two ring of recent raw samples with O(1) indexed access
// relative to the current sample.
package ring

import "github.com/algolion/battery-sos/internal/sample"

const (
	// Size is the ring capacity; must be a power of two so indexing can use
	// the low bits of the sample counter.
	Size = 128
	mask = Size - 1

	// TPMax is the largest number of samples a single Transition Period
	// entry can hold (spec §3 invariants).
	TPMax = 30

	// StartOffset anchors the "inspection point" several samples behind the
	// head so the recogniser has room to look forward and back (spec §4.B).
	StartOffset = TPMax - 5
)

// Ring is the fixed-size sample store. Zero value is ready to use.
type Ring struct {
	buf [Size]sample.Raw
	n   int64
}

// Push writes sample s to slot n mod Size and advances n.
func (r *Ring) Push(s sample.Raw) {
	r.buf[r.n&mask] = s
	r.n++
}

// N returns the number of samples pushed so far.
func (r *Ring) N() int64 { return r.n }

// Ready reports whether the ring has been filled at least once; reads of
// slots ahead of the fill point must be avoided by the caller before this
// is true (spec §4.B). Package slave does not attempt detection until N()
// reaches StartOffset plus the minimum QCC count.
func (r *Ring) Ready() bool { return r.n >= Size }

// At returns a pointer to the sample at slot (n - StartOffset + offset) mod
// Size, i.e. offset samples relative to the inspection point.
func (r *Ring) At(offset int64) *sample.Raw {
	idx := (r.n - StartOffset + offset) & mask
	return &r.buf[idx]
}

// AtAbs returns a pointer to the sample at slot (n - 1 - back) mod Size, i.e.
// `back` samples behind the most recently pushed sample (AtAbs(0) is Last()).
// It indexes relative to the head rather than the inspection point.
func (r *Ring) AtAbs(back int64) *sample.Raw {
	idx := (r.n - 1 - back) & mask
	return &r.buf[idx]
}

// Last returns the most recently pushed sample.
func (r *Ring) Last() *sample.Raw {
	idx := (r.n - 1) & mask
	return &r.buf[idx]
}

// DrainAdvance slides the inspection point one sample forward without
// pushing new data, exposing the most-recently-pushed, not-yet-inspected
// samples near the head. Used only by Slave.Terminate's drain pass (spec
// §4.G: "run the recogniser up to 10 additional times to flush any
// in-flight TP") once the real sample stream has stopped.
func (r *Ring) DrainAdvance() { r.n++ }
