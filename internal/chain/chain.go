// Package chain implements the tamper-evident event hash chain: each
// event's hash is derived from the previous event's hash plus its own
// payload, so any edit to a recorded event breaks every hash after it.
package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"typedcode/internal/proof"
)

// domainTag separates event digests from every other SHA-256 use in
// the proof format.
const domainTag = "typedcode-event-v1"

// EventDigest computes the chain hash for the event at the given
// index. The digest covers the previous chain value and the event's
// canonical payload; it deliberately excludes the stored hash and the
// PoSW claim (the PoSW output is bound to the chain separately).
func EventDigest(prev [32]byte, index uint64, e *proof.Event) [32]byte {
	h := sha256.New()
	h.Write([]byte(domainTag))
	h.Write(prev[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(e.Timestamp))
	h.Write(buf[:])

	writeString(h.Write, e.Type)
	writeString(h.Write, e.Data.Text)
	writeString(h.Write, e.Data.Source)

	writeOptInt(h.Write, e.RangeOffset)
	writeOptInt(h.Write, e.RangeLength)

	if e.Range != nil {
		h.Write([]byte{1})
		for _, v := range [...]int{e.Range.StartLine, e.Range.StartCol, e.Range.EndLine, e.Range.EndCol} {
			binary.BigEndian.PutUint64(buf[:], uint64(v))
			h.Write(buf[:])
		}
	} else {
		h.Write([]byte{0})
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// writeString writes a length-prefixed string so adjacent fields
// cannot be shifted into each other.
func writeString(w func([]byte) (int, error), s string) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
	w(buf[:])
	w([]byte(s))
}

func writeOptInt(w func([]byte) (int, error), v *int) {
	if v == nil {
		w([]byte{0})
		return
	}
	var buf [8]byte
	w([]byte{1})
	binary.BigEndian.PutUint64(buf[:], uint64(*v))
	w(buf[:])
}

// ProgressFunc receives (events verified so far, total events to
// verify) during a chain walk.
type ProgressFunc func(current, total int)

// Walk verifies the entire hash chain from genesis. The first
// mismatch aborts the walk with a *proof.ChainIntegrityError carrying
// the event index, the hash stored in the log and the hash the walk
// computed.
func Walk(log proof.EventLog, onProgress ProgressFunc) error {
	var prev [32]byte
	return walkFrom(log, 0, len(log), prev, onProgress)
}

// walkFrom recomputes the chain over log[start:end) with the given
// entering chain value. Indices in errors are absolute.
func walkFrom(log proof.EventLog, start, end int, prev [32]byte, onProgress ProgressFunc) error {
	total := end - start
	for i := start; i < end; i++ {
		e := &log[i]
		computed := EventDigest(prev, uint64(i), e)

		stored, err := e.HashBytes()
		if err != nil || stored != computed {
			return &proof.ChainIntegrityError{
				Index:    i,
				Expected: e.Hash,
				Computed: hex.EncodeToString(computed[:]),
			}
		}

		prev = computed
		if onProgress != nil {
			onProgress(i-start+1, total)
		}
	}
	return nil
}

// Seal computes and stores the chain hash of every event in place.
// Capture normally does this incrementally; Seal exists for fixture
// generation and tests.
func Seal(log proof.EventLog) {
	var prev [32]byte
	for i := range log {
		d := EventDigest(prev, uint64(i), &log[i])
		log[i].Hash = hex.EncodeToString(d[:])
		prev = d
	}
}

// BuildCheckpoints derives checkpoint segments of the given size from
// a sealed log. Fixture/test helper; real proofs carry checkpoints
// written by the capture layer.
func BuildCheckpoints(log proof.EventLog, segmentSize int) []proof.Checkpoint {
	if segmentSize <= 0 || len(log) == 0 {
		return nil
	}

	var cps []proof.Checkpoint
	var prev [32]byte
	start := 0
	for start < len(log) {
		end := start + segmentSize
		if end > len(log) {
			end = len(log)
		}
		endHash, err := log[end-1].HashBytes()
		if err != nil {
			return nil
		}
		cps = append(cps, proof.Checkpoint{
			StartIndex: start,
			EndIndex:   end,
			StartHash:  hex.EncodeToString(prev[:]),
			EndHash:    hex.EncodeToString(endHash[:]),
		})
		prev = endHash
		start = end
	}
	return cps
}
