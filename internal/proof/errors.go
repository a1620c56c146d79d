package proof

import "fmt"

// CaptureFormatError reports a malformed or unparsable proof input.
// It is surfaced synchronously at ingestion and never reaches the
// verification pipeline.
type CaptureFormatError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *CaptureFormatError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("proof format: %s: %s", e.Filename, e.Reason)
	}
	return fmt.Sprintf("proof format: %s", e.Reason)
}

func (e *CaptureFormatError) Unwrap() error { return e.Err }

// ChainIntegrityError reports a hash-chain mismatch at a specific
// event index. Expected is the hash stored in the log; Computed is the
// value the verifier derived from the chain. It fails the chain check
// for that proof but never the process.
type ChainIntegrityError struct {
	Index    int
	Expected string
	Computed string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("hash chain broken at event %d: stored %s, computed %s",
		e.Index, e.Expected, e.Computed)
}

// TimingIntegrityError reports a proof-of-sequential-work claim that
// is inconsistent with the elapsed wall-time the log records. It
// downgrades trust without necessarily failing the chain check.
type TimingIntegrityError struct {
	Index      int
	Iterations uint64
	Required   uint64
	ElapsedMs  int64
}

func (e *TimingIntegrityError) Error() string {
	return fmt.Sprintf("posw at event %d: %d iterations cannot cover %dms of claimed elapsed time (need >= %d)",
		e.Index, e.Iterations, e.ElapsedMs, e.Required)
}

// ExecutionFault reports a crash inside the verification execution
// unit. The queue recovers it, reports it as that item's terminal
// error, and keeps dispatching.
type ExecutionFault struct {
	ID    string
	Panic any
}

func (e *ExecutionFault) Error() string {
	return fmt.Sprintf("verification execution fault: %v", e.Panic)
}
