// Package trust reduces verification, attestation and
// screenshot-integrity signals to a three-level trust verdict.
//
// The reduction is pure: same inputs, same verdict. Callers recompute
// it whenever any input changes; a TrustResult is never mutated in
// place.
package trust

import (
	"fmt"

	"typedcode/internal/pipeline"
	"typedcode/internal/sourcecheck"
)

// Level is the trust verdict.
type Level string

const (
	LevelVerified Level = "verified"
	LevelPartial  Level = "partial"
	LevelFailed   Level = "failed"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one itemized finding, tagged for display.
type Issue struct {
	Component string `json:"component"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// Result is the derived trust verdict with its itemized issues.
type Result struct {
	Level   Level   `json:"level"`
	Summary string  `json:"summary"`
	Issues  []Issue `json:"issues"`
}

// AttestationResult is the outcome of the (out-of-scope) human
// attestation flow, handed in by the caller. A nil value means
// attestation was never requested and carries no penalty.
type AttestationResult struct {
	Attested bool   `json:"attested"`
	Reason   string `json:"reason,omitempty"`
}

// Evaluator computes trust verdicts. The optional source comparison
// is evaluator state so the Calculate signature stays stable for
// callers that never wire a source file.
type Evaluator struct {
	sourceCmp *sourcecheck.Comparison
}

// NewEvaluator creates an evaluator with no source comparison wired.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// SetSourceComparison wires (or clears, with nil) the external source
// file comparison. Callers re-run Calculate after changing it.
func (e *Evaluator) SetSourceComparison(cmp *sourcecheck.Comparison) {
	e.sourceCmp = cmp
}

// Calculate reduces the inputs to a verdict. Any error-severity
// finding yields failed; otherwise any warning yields partial;
// otherwise verified. Every applicable issue is collected regardless
// of the final level — the priority rule picks the level, it never
// short-circuits the issue list.
func (e *Evaluator) Calculate(verification *pipeline.VerificationResultData, attestation *AttestationResult, screenshots *sourcecheck.ScreenshotSummary) Result {
	var issues []Issue

	if verification != nil {
		if !verification.MetadataValid {
			issues = append(issues, Issue{
				Component: "metadata",
				Severity:  SeverityError,
				Message:   "proof metadata failed validation",
			})
		}
		if !verification.ChainValid {
			msg := "event hash chain is broken"
			if verification.ErrorAt != nil {
				msg = fmt.Sprintf("event hash chain is broken at event %d", *verification.ErrorAt)
			}
			issues = append(issues, Issue{
				Component: "hash-chain",
				Severity:  SeverityError,
				Message:   msg,
			})
		}
		if !verification.IsPureTyping {
			issues = append(issues, Issue{
				Component: "typing",
				Severity:  SeverityWarning,
				Message:   "log contains externally sourced content (paste or drop)",
			})
		}
		if !verification.PoSWValid {
			issues = append(issues, Issue{
				Component: "timing",
				Severity:  SeverityWarning,
				Message:   "sequential-work claims are inconsistent with recorded timing",
			})
		}
	}

	if attestation != nil && !attestation.Attested {
		msg := "human attestation failed"
		if attestation.Reason != "" {
			msg = fmt.Sprintf("human attestation failed: %s", attestation.Reason)
		}
		issues = append(issues, Issue{
			Component: "attestation",
			Severity:  SeverityWarning,
			Message:   msg,
		})
	}

	if screenshots != nil {
		if screenshots.Tampered > 0 {
			issues = append(issues, Issue{
				Component: "screenshots",
				Severity:  SeverityError,
				Message:   fmt.Sprintf("%d screenshot(s) do not match their recorded hashes", screenshots.Tampered),
			})
		}
		if screenshots.Missing {
			issues = append(issues, Issue{
				Component: "screenshots",
				Severity:  SeverityWarning,
				Message:   "screenshots are missing from the capture",
			})
		}
	}

	if e.sourceCmp != nil && !e.sourceCmp.Match {
		msg := "associated source file diverges from the proof's recorded content"
		if e.sourceCmp.Reason != "" {
			msg = e.sourceCmp.Reason
		}
		issues = append(issues, Issue{
			Component: "source",
			Severity:  SeverityWarning,
			Message:   msg,
		})
	}

	level := LevelVerified
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			level = LevelFailed
			break
		}
		level = LevelPartial
	}

	return Result{
		Level:   level,
		Summary: summarize(level, issues),
		Issues:  issues,
	}
}

func summarize(level Level, issues []Issue) string {
	switch level {
	case LevelVerified:
		return "proof verified: hash chain, timing and typing provenance all check out"
	case LevelPartial:
		return fmt.Sprintf("proof partially verified: %d warning(s)", len(issues))
	default:
		errs := 0
		for _, issue := range issues {
			if issue.Severity == SeverityError {
				errs++
			}
		}
		return fmt.Sprintf("proof failed verification: %d error(s), %d issue(s) total", errs, len(issues))
	}
}
