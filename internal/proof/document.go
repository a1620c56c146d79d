package proof

// Metadata describes the capture that produced a proof.
type Metadata struct {
	Version   int    `json:"version"`
	Timestamp int64  `json:"timestamp"` // capture start, Unix ms
	Editor    string `json:"editor,omitempty"`
	Language  string `json:"language,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Checkpoint bounds a contiguous segment of the event log with known
// chain values. StartHash is the chain value entering StartIndex (the
// hash of event StartIndex-1, or all-zero for index 0); EndHash is the
// hash of event EndIndex-1. Segments cover [StartIndex, EndIndex).
type Checkpoint struct {
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	StartHash  string `json:"startHash"`
	EndHash    string `json:"endHash"`
}

// AttestationToken is an opaque human-attestation token recorded at
// capture time. The engine never calls out to validate it; it only
// records whether one is present and what the capture layer concluded.
type AttestationToken struct {
	Issuer   string `json:"issuer,omitempty"`
	Token    string `json:"token"`
	Verified bool   `json:"verified,omitempty"`
}

// ScreenshotEntry is one entry of the periodic screenshot manifest.
type ScreenshotEntry struct {
	Index    int    `json:"index"` // event index the screenshot was taken at
	Filename string `json:"filename"`
	Hash     string `json:"hash"` // hex SHA-256 of the image file
}

// Body wraps the event log under the document's "proof" key.
type Body struct {
	Events EventLog `json:"events"`
}

// Document is a complete captured typing proof as loaded from disk.
type Document struct {
	Metadata    Metadata          `json:"metadata"`
	Proof       Body              `json:"proof"`
	Content     string            `json:"content"` // final document text
	Checkpoints []Checkpoint      `json:"checkpoints,omitempty"`
	Attestation *AttestationToken `json:"attestation,omitempty"`
	Screenshots []ScreenshotEntry `json:"screenshots,omitempty"`
}

// Events returns the document's event log.
func (d *Document) Events() EventLog {
	return d.Proof.Events
}

// HasCheckpoints reports whether the proof carries embedded
// checkpoints, enabling sampled verification.
func (d *Document) HasCheckpoints() bool {
	return len(d.Checkpoints) > 0
}
