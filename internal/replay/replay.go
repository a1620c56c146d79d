// Package replay reconstructs document text at any point of a typing
// proof's event log.
//
// Replay is best-effort reconstruction for display. Malformed ranges
// are clamped, never rejected: integrity validation is the
// verification pipeline's job, and a divergence introduced by clamping
// is exactly what the hash chain would catch.
package replay

import (
	"sort"
	"strings"

	"typedcode/internal/proof"
)

// DefaultSnapshotInterval is how many resolved indices pass between
// memoized snapshots. Repeated nearby lookups replay at most one
// interval of events, regardless of how deep into the log they are.
const DefaultSnapshotInterval = 100

// Replayer resolves document content at event indices over one frozen
// log. It is owned by a single document view; exactly one playback or
// seek operation touches it at a time, so it carries no locks.
type Replayer struct {
	log      proof.EventLog
	interval int

	// snapshots memoizes index -> text. anchors keeps the keys sorted
	// for the largest-anchor-below lookup.
	snapshots map[int]string
	anchors   []int
}

// New creates a replayer over a frozen event log.
func New(log proof.EventLog) *Replayer {
	return NewWithInterval(log, DefaultSnapshotInterval)
}

// NewWithInterval creates a replayer with a custom snapshot interval.
func NewWithInterval(log proof.EventLog, interval int) *Replayer {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &Replayer{
		log:       log,
		interval:  interval,
		snapshots: make(map[int]string),
	}
}

// Len returns the number of events in the log.
func (r *Replayer) Len() int {
	return len(r.log)
}

// ContentAt returns the document text exactly as it existed
// immediately after event index-1: the empty string at 0, the log's
// final known content at Len(). Indices outside [0, Len()] are
// clamped. The result is a pure function of (log, index); the
// snapshot cache only bounds cost.
func (r *Replayer) ContentAt(index int) string {
	if index < 0 {
		index = 0
	}
	if index > len(r.log) {
		index = len(r.log)
	}

	anchor, text := r.nearestAnchor(index)
	for i := anchor; i < index; i++ {
		e := &r.log[i]
		if e.MutatesContent() {
			text = applyEvent(text, e)
		}
		resolved := i + 1
		if resolved%r.interval == 0 || e.Type == proof.EventSnapshot {
			r.memoize(resolved, text)
		}
	}
	return text
}

// nearestAnchor finds the largest cached index <= target.
func (r *Replayer) nearestAnchor(target int) (int, string) {
	pos := sort.SearchInts(r.anchors, target+1)
	if pos == 0 {
		return 0, ""
	}
	anchor := r.anchors[pos-1]
	return anchor, r.snapshots[anchor]
}

func (r *Replayer) memoize(index int, text string) {
	if _, ok := r.snapshots[index]; ok {
		return
	}
	r.snapshots[index] = text
	pos := sort.SearchInts(r.anchors, index)
	r.anchors = append(r.anchors, 0)
	copy(r.anchors[pos+1:], r.anchors[pos:])
	r.anchors[pos] = index
}

// applyEvent applies one content-mutating event.
func applyEvent(text string, e *proof.Event) string {
	if e.Type == proof.EventSnapshot {
		// Wholesale replacement; incremental history before this
		// point no longer matters.
		return e.Data.Text
	}

	switch {
	case e.Range != nil:
		return applyRangeEdit(text, *e.Range, e.Data.Text)
	case e.RangeOffset != nil:
		length := 0
		if e.RangeLength != nil {
			length = *e.RangeLength
		}
		return applyOffsetEdit(text, *e.RangeOffset, length, e.Data.Text)
	default:
		// No position recorded; best effort is appending.
		return text + e.Data.Text
	}
}

// applyOffsetEdit splices by absolute offset, clamping both the offset
// and the deletion length into the current text.
func applyOffsetEdit(text string, offset, deleteLength int, inserted string) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	if deleteLength < 0 {
		deleteLength = 0
	}
	if offset+deleteLength > len(text) {
		deleteLength = len(text) - offset
	}
	return text[:offset] + inserted + text[offset+deleteLength:]
}

// applyRangeEdit splices by line/column range. Lines beyond the
// current length are padded in as blanks before the splice; inverted
// ranges collapse to their start position.
func applyRangeEdit(text string, rng proof.Range, inserted string) string {
	lines := strings.Split(text, "\n")

	start, end := clampPosition(rng.StartLine, rng.StartCol), clampPosition(rng.EndLine, rng.EndCol)
	need := start.line
	if end.line > need {
		need = end.line
	}
	for len(lines) <= need {
		lines = append(lines, "")
	}

	if end.line < start.line || (end.line == start.line && end.col < start.col) {
		end = start
	}

	startCol := clampCol(lines[start.line], start.col)
	endCol := clampCol(lines[end.line], end.col)

	prefix := strings.Join(lines[:start.line], "\n")
	if start.line > 0 {
		prefix += "\n"
	}
	prefix += lines[start.line][:startCol]

	suffix := lines[end.line][endCol:]
	if end.line+1 < len(lines) {
		suffix += "\n" + strings.Join(lines[end.line+1:], "\n")
	}

	return prefix + inserted + suffix
}

type position struct {
	line, col int
}

func clampPosition(line, col int) position {
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return position{line: line, col: col}
}

func clampCol(line string, col int) int {
	if col > len(line) {
		return len(line)
	}
	return col
}
