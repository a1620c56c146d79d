package posw

import (
	"encoding/hex"
	"fmt"

	"typedcode/internal/proof"
)

// fabricationMargin is how many times faster than the calibrated rate
// a claim may run before it is flagged. Covers hardware faster than
// the calibration machine.
const fabricationMargin = 2

// Stats aggregates the PoSW claims of one log.
type Stats struct {
	Count       int     `json:"count"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	TotalTimeMs float64 `json:"totalTimeMs"`
	Iterations  uint64  `json:"iterations"`
}

// CheckLog validates every PoSW claim in the log: the work chain must
// recompute to its claimed output from the chained input, and the
// iteration count must be consistent with the wall-clock delta the
// timestamps record. Violations come back as
// *proof.TimingIntegrityError values; they downgrade trust without
// failing the hash-chain check.
func CheckLog(log proof.EventLog, params Params) (*Stats, []error) {
	stats := &Stats{}
	var violations []error

	var prevHash [32]byte
	var prevTS int64
	for i := range log {
		e := &log[i]
		eventHash, err := e.HashBytes()
		if err != nil {
			// The chain walk reports malformed hashes; the work check
			// just skips them.
			continue
		}

		if e.PoSW != nil {
			if verr := checkClaim(e, eventHash, prevHash, uint64(i), prevTS, params); verr != nil {
				violations = append(violations, verr)
			}
			stats.Count++
			stats.Iterations += e.PoSW.Iterations
			stats.TotalTimeMs += e.PoSW.TimeMs
		}

		prevHash = eventHash
		prevTS = e.Timestamp
	}

	if stats.Count > 0 {
		stats.AvgTimeMs = stats.TotalTimeMs / float64(stats.Count)
	}
	return stats, violations
}

func checkClaim(e *proof.Event, eventHash, prevHash [32]byte, index uint64, prevTS int64, params Params) error {
	claim := e.PoSW

	if claim.Iterations > params.MaxIterations {
		return &proof.TimingIntegrityError{
			Index:      int(index),
			Iterations: claim.Iterations,
			Required:   params.MaxIterations,
			ElapsedMs:  e.Timestamp - prevTS,
		}
	}

	output, err := decodeOutput(claim.Output)
	if err != nil {
		return fmt.Errorf("posw at event %d: %w", index, err)
	}

	input := ChainInput(eventHash, prevHash, index)
	if !Verify(input, claim.Iterations, output) {
		return fmt.Errorf("posw at event %d: output does not recompute", index)
	}

	// The claimed elapsed time must be coverable by the embedded work.
	// With iterations/sec calibrated, elapsed milliseconds require at
	// least elapsed*rate/1000 iterations, divided by the fabrication
	// margin for fast hardware.
	elapsed := e.Timestamp - prevTS
	required := uint64(elapsed) * params.IterationsPerSecond / 1000 / fabricationMargin
	if required < params.MinIterations {
		required = params.MinIterations
	}
	if claim.Iterations < required {
		return &proof.TimingIntegrityError{
			Index:      int(index),
			Iterations: claim.Iterations,
			Required:   required,
			ElapsedMs:  elapsed,
		}
	}

	return nil
}

func decodeOutput(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("bad output hash: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("output hash is %d bytes, want 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Attach computes and embeds PoSW claims for every event of a sealed
// log, sized to the recorded timestamp deltas. Fixture/test helper.
func Attach(log proof.EventLog, params Params) error {
	var prevHash [32]byte
	var prevTS int64
	for i := range log {
		e := &log[i]
		eventHash, err := e.HashBytes()
		if err != nil {
			return fmt.Errorf("event %d not sealed: %w", i, err)
		}

		elapsed := e.Timestamp - prevTS
		iterations := uint64(elapsed) * params.IterationsPerSecond / 1000
		if iterations < params.MinIterations {
			iterations = params.MinIterations
		}
		if iterations > params.MaxIterations {
			iterations = params.MaxIterations
		}

		input := ChainInput(eventHash, prevHash, uint64(i))
		output := Compute(input, iterations)
		e.PoSW = &proof.PoSWClaim{
			Iterations: iterations,
			Output:     hex.EncodeToString(output[:]),
			TimeMs:     float64(elapsed),
		}

		prevHash = eventHash
		prevTS = e.Timestamp
	}
	return nil
}
