// Package posw verifies proof-of-sequential-work claims embedded in
// captured typing events.
//
// A claim is an iterated SHA-256 chain: recomputing it costs the same
// sequential work the capture spent, so the iteration count
// lower-bounds real wall-clock time. A log whose timestamps claim more
// elapsed time than its embedded work could cover was fabricated
// faster than genuine typing.
//
// Iterated hashing is deliberately simple: verification recomputes the
// chain (unlike Wesolowski/Pietrzak constructions), which is auditable
// and cheap at the per-keystroke scale these claims run at.
package posw

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"
)

// Params defines the work calibration for a machine.
type Params struct {
	// IterationsPerSecond is how many sequential SHA-256 iterations
	// represent one second of delay.
	IterationsPerSecond uint64 `json:"iterationsPerSecond"`

	// MinIterations is the floor for any claim.
	MinIterations uint64 `json:"minIterations"`

	// MaxIterations caps a single claim to bound verification cost.
	MaxIterations uint64 `json:"maxIterations"`
}

// DefaultParams returns conservative defaults for modern hardware.
// Calibrate per machine when generating proofs.
func DefaultParams() Params {
	return Params{
		IterationsPerSecond: 1_000_000,
		MinIterations:       1_000,
		MaxIterations:       600_000_000, // ~10 minutes between events
	}
}

// Calibrate measures this machine's SHA-256 rate over the given
// duration and returns matching parameters.
func Calibrate(duration time.Duration) (Params, error) {
	if duration < 100*time.Millisecond {
		return Params{}, errors.New("calibration duration too short")
	}

	var hash [32]byte
	copy(hash[:], "typedcode-calibration-input-v1")

	iterations := uint64(0)
	start := time.Now()
	deadline := start.Add(duration)
	for time.Now().Before(deadline) {
		// Batch to keep time.Now() off the hot path.
		for i := 0; i < 1000; i++ {
			hash = sha256.Sum256(hash[:])
			iterations++
		}
	}
	elapsed := time.Since(start)

	perSecond := uint64(float64(iterations) / elapsed.Seconds())
	return Params{
		IterationsPerSecond: perSecond,
		MinIterations:       perSecond / 1000,
		MaxIterations:       perSecond * 600,
	}, nil
}

// ChainInput derives the starting hash for an event's work chain,
// binding it to that event's position in the hash chain.
func ChainInput(eventHash, prevHash [32]byte, index uint64) [32]byte {
	h := sha256.New()
	h.Write([]byte("typedcode-posw-v1"))
	h.Write(eventHash[:])
	h.Write(prevHash[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	h.Write(buf[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Compute runs the sequential chain. Used by fixture generation and
// tests; capture does the real computing.
func Compute(input [32]byte, iterations uint64) [32]byte {
	hash := input
	for i := uint64(0); i < iterations; i++ {
		hash = sha256.Sum256(hash[:])
	}
	return hash
}

// Verify recomputes the chain and compares against the claimed
// output. Costs the same sequential work as generation.
func Verify(input [32]byte, iterations uint64, output [32]byte) bool {
	return Compute(input, iterations) == output
}
