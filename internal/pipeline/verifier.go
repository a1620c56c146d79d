package pipeline

import (
	"fmt"
	"strings"

	"typedcode/internal/chain"
	"typedcode/internal/posw"
	"typedcode/internal/proof"
)

// progressStride bounds how often the chain walk emits progress
// messages.
const progressStride = 250

// verifier runs the phased verification of one already-parsed proof.
// It is invoked only from the worker goroutine.
type verifier struct {
	posw   posw.Params
	sample chain.SamplePolicy
	emit   func(Message)
}

// run executes the phases in strict order. A phase that fails hard
// returns an error, which becomes the item's terminal error message;
// integrity findings (broken chain, timing violations) are not hard
// failures, they land in the result instead.
func (v *verifier) run(id string, raw []byte, doc *proof.Document) (*VerificationResultData, error) {
	log := doc.Events()
	result := &VerificationResultData{
		MetadataValid: true,
		ChainValid:    true,
		PoSWValid:     true,
		IsPureTyping:  true,
	}

	// Phase 1: metadata.
	v.emit(Message{Type: MsgProgress, ID: id, Phase: PhaseMetadata, Current: 0, Total: 1})
	if err := proof.ValidateSchema(raw); err != nil {
		result.MetadataValid = false
		result.Message = err.Error()
	}
	v.emit(Message{Type: MsgProgress, ID: id, Phase: PhaseMetadata, Current: 1, Total: 1})

	// Phase 2: chain integrity, exhaustive or sampled.
	if doc.HasCheckpoints() {
		result.VerificationMethod = MethodSampled
		v.runSampled(id, log, doc.Checkpoints, result)
	} else {
		result.VerificationMethod = MethodFull
		v.runFull(id, log, result)
	}

	// Proof-of-sequential-work, independent of the chain outcome.
	stats, violations := posw.CheckLog(log, v.posw)
	if stats.Count > 0 {
		result.PoSWStats = stats
	}
	if len(violations) > 0 {
		result.PoSWValid = false
		appendMessage(result, fmt.Sprintf("%d posw violation(s); first: %v", len(violations), violations[0]))
	}

	result.IsPureTyping = pureTyping(log)

	v.emit(Message{Type: MsgProgress, ID: id, Phase: PhaseComplete, Current: 1, Total: 1, TotalEvents: len(log)})
	return result, nil
}

func (v *verifier) runFull(id string, log proof.EventLog, result *VerificationResultData) {
	err := chain.Walk(log, func(current, total int) {
		if current%progressStride == 0 || current == total {
			v.emit(Message{
				Type: MsgProgress, ID: id, Phase: PhaseChain,
				Current: current, Total: total, TotalEvents: total,
			})
		}
	})
	if err != nil {
		recordChainError(v, id, PhaseChain, len(log), result, err)
	}
}

func (v *verifier) runSampled(id string, log proof.EventLog, cps []proof.Checkpoint, result *VerificationResultData) {
	sampled, err := chain.VerifySampled(log, cps, v.sample, func(current, total int) {
		v.emit(Message{
			Type: MsgProgress, ID: id, Phase: PhaseCheckpoint,
			Current: current, Total: total, TotalEvents: len(log),
		})
	})
	result.SampledResult = sampled
	if err != nil {
		recordChainError(v, id, PhaseCheckpoint, len(log), result, err)
	}
}

func recordChainError(v *verifier, id, phase string, totalEvents int, result *VerificationResultData, err error) {
	result.ChainValid = false
	appendMessage(result, err.Error())

	if ce, ok := err.(*proof.ChainIntegrityError); ok {
		idx := ce.Index
		result.ErrorAt = &idx
		v.emit(Message{
			Type: MsgProgress, ID: id, Phase: phase,
			Current: ce.Index, Total: totalEvents, TotalEvents: totalEvents,
			HashInfo: &HashInfo{Index: ce.Index, Expected: ce.Expected, Computed: ce.Computed},
		})
	}
}

func appendMessage(result *VerificationResultData, msg string) {
	if result.Message == "" {
		result.Message = msg
		return
	}
	result.Message = strings.Join([]string{result.Message, msg}, "; ")
}

// pureTyping reports whether the log is free of external content
// insertion (paste, drop, externally-sourced edits).
func pureTyping(log proof.EventLog) bool {
	for i := range log {
		if log[i].External() {
			return false
		}
	}
	return true
}
