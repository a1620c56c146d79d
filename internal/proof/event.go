// Package proof defines the typedcode proof document model: the typed
// event log captured while a human typed a piece of code, plus the
// metadata, checkpoints and attestation material that travel with it.
//
// A proof document is frozen once parsed. Replay and verification
// treat the event log as immutable; appending to a live capture is a
// capture-side concern and never happens here.
package proof

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Event types recorded by the capture layer.
const (
	EventChange   = "change"          // incremental edit (typing, deletion)
	EventSnapshot = "contentSnapshot" // wholesale content replacement
	EventPaste    = "paste"           // external content insertion
	EventDrop     = "drop"            // drag-and-drop content insertion
	EventSave     = "save"
	EventFocus    = "focus"
	EventBlur     = "blur"
)

// Range addresses a span of the document by line and column.
type Range struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// EventData is the variant payload of an event. Older captures encode
// it as a bare string; newer ones as an object.
type EventData struct {
	// Text is the inserted text (change/paste/drop) or the full
	// document content (contentSnapshot).
	Text string `json:"text,omitempty"`

	// Source identifies where inserted content came from, when the
	// capture layer could tell ("keyboard", "external", ...).
	Source string `json:"source,omitempty"`
}

// UnmarshalJSON accepts both the legacy bare-string encoding and the
// object encoding.
func (d *EventData) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d.Text = s
		d.Source = ""
		return nil
	}

	type alias EventData
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = EventData(a)
	return nil
}

// MarshalJSON always emits the object encoding.
func (d EventData) MarshalJSON() ([]byte, error) {
	type alias EventData
	return json.Marshal(alias(d))
}

// PoSWClaim is the proof-of-sequential-work material embedded in an
// event: an iterated-hash output whose iteration count lower-bounds
// the wall-clock time spent since the previous event.
type PoSWClaim struct {
	Iterations uint64  `json:"iterations"`
	Output     string  `json:"output"` // hex SHA-256
	TimeMs     float64 `json:"timeMs"` // claimed compute time
}

// Event is one entry of the captured typing log. Its position in the
// log is its stable ordinal index; Timestamp is milliseconds since
// capture start and never decreases across the log.
type Event struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Data      EventData `json:"data"`

	// Absolute edit encoding.
	RangeOffset *int `json:"rangeOffset,omitempty"`
	RangeLength *int `json:"rangeLength,omitempty"`

	// Line/column edit encoding.
	Range *Range `json:"range,omitempty"`

	// Hash is this event's hash-chain value (hex SHA-256).
	Hash string `json:"hash,omitempty"`

	// PoSW is the optional sequential-work claim.
	PoSW *PoSWClaim `json:"posw,omitempty"`
}

// MutatesContent reports whether replaying this event changes the
// document text.
func (e *Event) MutatesContent() bool {
	switch e.Type {
	case EventChange, EventSnapshot, EventPaste, EventDrop:
		return true
	}
	return false
}

// External reports whether the event inserted content that did not
// come from the keyboard.
func (e *Event) External() bool {
	if e.Type == EventPaste || e.Type == EventDrop {
		return true
	}
	return e.Type == EventChange && e.Data.Source == "external"
}

// HashBytes decodes the stored chain hash.
func (e *Event) HashBytes() ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(e.Hash)
	if err != nil {
		return out, fmt.Errorf("decode event hash: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("event hash is %d bytes, want 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// EventLog is the frozen, ordered event sequence of one proof.
type EventLog []Event

// FinalHash returns the chain value after the last event, or the
// all-zero genesis value for an empty log.
func (l EventLog) FinalHash() ([32]byte, error) {
	if len(l) == 0 {
		return [32]byte{}, nil
	}
	return l[len(l)-1].HashBytes()
}
