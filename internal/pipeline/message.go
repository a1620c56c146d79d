// Package pipeline runs cryptographic verification of typing proofs
// off the critical path: a single-flight FIFO queue dispatches one
// proof at a time to a worker goroutine, and progress, results and
// errors travel back as asynchronous messages. The wire shapes mirror
// the capture format's worker protocol exactly, so previously captured
// proof files and their tooling keep working.
package pipeline

import (
	"encoding/json"

	"typedcode/internal/chain"
	"typedcode/internal/posw"
)

// Message types of the worker protocol.
const (
	MsgVerify   = "verify"
	MsgProgress = "progress"
	MsgResult   = "result"
	MsgError    = "error"
)

// Verification phases, reported in progress messages in strict order.
const (
	PhaseMetadata   = "metadata"
	PhaseChain      = "chain"      // exhaustive walk (no checkpoints)
	PhaseCheckpoint = "checkpoint" // sampled segment verification
	PhaseComplete   = "complete"
)

// Verification methods tagged on results.
const (
	MethodFull    = "full"
	MethodSampled = "sampled"
)

// HashInfo carries mismatch diagnostics in progress messages.
type HashInfo struct {
	Index    int    `json:"index"`
	Expected string `json:"expected"`
	Computed string `json:"computed"`
}

// Message is the union wire shape of the worker protocol:
//
//	{ type: "verify",   id, proofData }
//	{ type: "progress", id, current, total, phase, totalEvents?, hashInfo? }
//	{ type: "result",   id, result }
//	{ type: "error",    id, error }
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id"`

	ProofData json.RawMessage `json:"proofData,omitempty"`

	Current     int       `json:"current,omitempty"`
	Total       int       `json:"total,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	TotalEvents int       `json:"totalEvents,omitempty"`
	HashInfo    *HashInfo `json:"hashInfo,omitempty"`

	Result *VerificationResultData `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// VerificationResultData is the immutable outcome of one verification
// run. It is produced exactly once per submission.
type VerificationResultData struct {
	MetadataValid      bool   `json:"metadataValid"`
	ChainValid         bool   `json:"chainValid"`
	IsPureTyping       bool   `json:"isPureTyping"`
	PoSWValid          bool   `json:"poswValid"`
	VerificationMethod string `json:"verificationMethod"`

	ErrorAt *int   `json:"errorAt,omitempty"`
	Message string `json:"message,omitempty"`

	PoSWStats     *posw.Stats          `json:"poswStats,omitempty"`
	SampledResult *chain.SampledResult `json:"sampledResult,omitempty"`
}

// Progress is the callback-side view of a progress message.
type Progress struct {
	ID          string
	Current     int
	Total       int
	Phase       string
	TotalEvents int
	HashInfo    *HashInfo
}
