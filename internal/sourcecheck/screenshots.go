package sourcecheck

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"typedcode/internal/proof"
)

// ScreenshotSummary condenses the screenshot manifest check for the
// trust evaluator.
type ScreenshotSummary struct {
	Total    int  `json:"total"`
	Tampered int  `json:"tampered"`
	Missing  bool `json:"missing"`
}

// CheckScreenshots hashes the files named in the proof's screenshot
// manifest against their recorded hashes. A manifest entry whose file
// is absent counts as missing; one whose hash differs counts as
// tampered. A proof with no manifest at all is reported as missing.
func CheckScreenshots(doc *proof.Document, dir string) *ScreenshotSummary {
	summary := &ScreenshotSummary{Total: len(doc.Screenshots)}
	if len(doc.Screenshots) == 0 {
		summary.Missing = true
		return summary
	}

	for _, entry := range doc.Screenshots {
		data, err := os.ReadFile(filepath.Join(dir, filepath.Base(entry.Filename)))
		if err != nil {
			summary.Missing = true
			continue
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != entry.Hash {
			summary.Tampered++
		}
	}
	return summary
}
