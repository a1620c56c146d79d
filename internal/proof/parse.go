package proof

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// SupportedVersion is the newest proof document version this engine
// understands.
const SupportedVersion = 1

// Parse decodes and sanity-checks a proof document. It is synchronous
// and fail-fast: any malformed input yields a *CaptureFormatError so
// broken submissions never occupy the verification execution slot.
func Parse(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &CaptureFormatError{Reason: "invalid JSON", Err: err}
	}

	if doc.Metadata.Timestamp <= 0 {
		return nil, &CaptureFormatError{Reason: "metadata.timestamp missing or non-positive"}
	}
	if doc.Metadata.Version == 0 {
		doc.Metadata.Version = 1
	}
	if doc.Metadata.Version > SupportedVersion {
		return nil, &CaptureFormatError{
			Reason: fmt.Sprintf("unsupported proof version %d (max %d)", doc.Metadata.Version, SupportedVersion),
		}
	}
	if doc.Proof.Events == nil {
		return nil, &CaptureFormatError{Reason: "proof.events missing"}
	}

	if err := checkEvents(doc.Proof.Events); err != nil {
		return nil, err
	}
	if err := checkCheckpoints(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// ParseFile reads and parses a proof document from disk.
func ParseFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &CaptureFormatError{Filename: path, Reason: "unreadable", Err: err}
	}
	doc, err := Parse(raw)
	if err != nil {
		if fe, ok := err.(*CaptureFormatError); ok {
			fe.Filename = path
		}
		return nil, err
	}
	return doc, nil
}

func checkEvents(log EventLog) error {
	var last int64
	for i := range log {
		e := &log[i]
		if e.Type == "" {
			return &CaptureFormatError{Reason: fmt.Sprintf("event %d: missing type", i)}
		}
		if e.Timestamp < 0 {
			return &CaptureFormatError{Reason: fmt.Sprintf("event %d: negative timestamp", i)}
		}
		if e.Timestamp < last {
			return &CaptureFormatError{
				Reason: fmt.Sprintf("event %d: timestamp %d decreases below %d", i, e.Timestamp, last),
			}
		}
		last = e.Timestamp
	}
	return nil
}

func checkCheckpoints(doc *Document) error {
	n := len(doc.Proof.Events)
	prevEnd := 0
	for i, cp := range doc.Checkpoints {
		if cp.StartIndex < 0 || cp.EndIndex > n || cp.StartIndex >= cp.EndIndex {
			return &CaptureFormatError{
				Reason: fmt.Sprintf("checkpoint %d: bad range [%d,%d) over %d events", i, cp.StartIndex, cp.EndIndex, n),
			}
		}
		if cp.StartIndex < prevEnd {
			return &CaptureFormatError{
				Reason: fmt.Sprintf("checkpoint %d: overlaps previous segment", i),
			}
		}
		if cp.StartHash == "" || cp.EndHash == "" {
			return &CaptureFormatError{
				Reason: fmt.Sprintf("checkpoint %d: missing boundary hash", i),
			}
		}
		prevEnd = cp.EndIndex
	}
	return nil
}
