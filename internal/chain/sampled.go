package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"

	"typedcode/internal/proof"
)

// sampleTag domain-separates the sampling seed from event digests.
const sampleTag = "typedcode-sample-v1"

// SamplePolicy controls how many checkpoint segments a sampled
// verification recomputes.
type SamplePolicy struct {
	// Coverage is the fraction of segments to verify, (0, 1].
	Coverage float64
}

// DefaultSamplePolicy verifies 20% of segments, at least one, always
// including the final segment.
func DefaultSamplePolicy() SamplePolicy {
	return SamplePolicy{Coverage: 0.2}
}

// SegmentResult records the outcome for one verified segment.
type SegmentResult struct {
	Segment    int    `json:"segment"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
}

// SampledResult summarizes a sampled verification. It always reports
// verified-versus-total event counts so a sampled run is never
// mistaken for an exhaustive one.
type SampledResult struct {
	Segments            []SegmentResult `json:"segments"`
	TotalSegments       int             `json:"totalSegments"`
	TotalEventsVerified int             `json:"totalEventsVerified"`
	TotalEvents         int             `json:"totalEvents"`
}

// SelectSegments picks which segment ordinals to verify. The choice is
// a pure function of the log's final chain hash: seeded pseudo-random,
// reproducible by any verifier from the proof alone, and not
// influenceable without re-mining the whole chain. The final segment
// is always selected because it binds the log's tail.
func SelectSegments(total int, finalHash [32]byte, policy SamplePolicy) []int {
	if total <= 0 {
		return nil
	}

	coverage := policy.Coverage
	if coverage <= 0 || coverage > 1 {
		coverage = DefaultSamplePolicy().Coverage
	}
	want := int(float64(total)*coverage + 0.999999)
	if want < 1 {
		want = 1
	}
	if want > total {
		want = total
	}

	seedInput := sha256.Sum256(append([]byte(sampleTag), finalHash[:]...))
	seed := int64(binary.BigEndian.Uint64(seedInput[:8]))
	rng := rand.New(rand.NewSource(seed))

	// Fisher-Yates prefix over the non-final ordinals, then force the
	// final segment in.
	perm := rng.Perm(total - 1)
	selected := map[int]struct{}{total - 1: {}}
	for _, ordinal := range perm {
		if len(selected) >= want {
			break
		}
		selected[ordinal] = struct{}{}
	}

	out := make([]int, 0, len(selected))
	for ordinal := range selected {
		out = append(out, ordinal)
	}
	sort.Ints(out)
	return out
}

// VerifySampled recomputes only the selected checkpoint segments.
// It returns the sampling summary plus the first chain error, if any;
// unselected segments are not inspected at all, which is the conscious
// probabilistic trade-off sampled verification makes.
func VerifySampled(log proof.EventLog, cps []proof.Checkpoint, policy SamplePolicy, onProgress ProgressFunc) (*SampledResult, error) {
	finalHash, err := log.FinalHash()
	if err != nil {
		return nil, &proof.ChainIntegrityError{
			Index:    len(log) - 1,
			Expected: log[len(log)-1].Hash,
			Computed: "",
		}
	}

	selected := SelectSegments(len(cps), finalHash, policy)
	result := &SampledResult{
		Segments:      make([]SegmentResult, 0, len(selected)),
		TotalSegments: len(cps),
		TotalEvents:   len(log),
	}

	var firstErr error
	for n, ordinal := range selected {
		cp := cps[ordinal]
		sr := SegmentResult{
			Segment:    ordinal,
			StartIndex: cp.StartIndex,
			EndIndex:   cp.EndIndex,
			Valid:      true,
		}

		if err := verifySegment(log, cp); err != nil {
			sr.Valid = false
			sr.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}

		result.Segments = append(result.Segments, sr)
		result.TotalEventsVerified += cp.EndIndex - cp.StartIndex
		if onProgress != nil {
			onProgress(n+1, len(selected))
		}
	}

	return result, firstErr
}

// verifySegment walks one segment from its recorded entering hash and
// checks the exit hash matches the checkpoint.
func verifySegment(log proof.EventLog, cp proof.Checkpoint) error {
	start, err := decodeHash(cp.StartHash)
	if err != nil {
		return fmt.Errorf("segment [%d,%d): bad start hash: %w", cp.StartIndex, cp.EndIndex, err)
	}
	want, err := decodeHash(cp.EndHash)
	if err != nil {
		return fmt.Errorf("segment [%d,%d): bad end hash: %w", cp.StartIndex, cp.EndIndex, err)
	}

	if err := walkFrom(log, cp.StartIndex, cp.EndIndex, start, nil); err != nil {
		return err
	}

	got, err := log[cp.EndIndex-1].HashBytes()
	if err != nil || got != want {
		return &proof.ChainIntegrityError{
			Index:    cp.EndIndex - 1,
			Expected: cp.EndHash,
			Computed: log[cp.EndIndex-1].Hash,
		}
	}
	return nil
}

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("hash is %d bytes, want 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
