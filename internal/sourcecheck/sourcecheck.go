// Package sourcecheck compares an on-disk source file against the
// final content a typing proof records, and can watch the file so the
// comparison stays current while a proof is open for review.
package sourcecheck

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"typedcode/internal/proof"
)

// Comparison is the outcome of checking a source file against a
// proof's recorded content.
type Comparison struct {
	Path      string `json:"path"`
	Match     bool   `json:"match"`
	Reason    string `json:"reason,omitempty"`
	ProofHash string `json:"proofHash"`
	FileHash  string `json:"fileHash,omitempty"`
}

// Compare hashes the file at path against the proof's recorded final
// content. A file that cannot be read is a non-match, not an error
// surface: review continues, trust just carries the warning.
func Compare(doc *proof.Document, path string) *Comparison {
	proofSum := sha256.Sum256([]byte(doc.Content))
	cmp := &Comparison{
		Path:      path,
		ProofHash: hex.EncodeToString(proofSum[:]),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		cmp.Reason = fmt.Sprintf("source unreadable: %v", err)
		return cmp
	}

	fileSum := sha256.Sum256(data)
	cmp.FileHash = hex.EncodeToString(fileSum[:])
	if fileSum == proofSum {
		cmp.Match = true
		return cmp
	}
	cmp.Reason = "source file content diverges from the proof's recorded content"
	return cmp
}

// Watcher re-runs the comparison whenever the source file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	doc       *proof.Document
	path      string
	onChange  func(*Comparison)

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Watch starts watching the file's directory (watching the file
// itself breaks on editors that replace-on-save) and invokes onChange
// with a fresh comparison after every relevant write. The initial
// comparison is delivered before Watch returns.
func Watch(doc *proof.Document, path string, onChange func(*Comparison)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		doc:       doc,
		path:      absPath,
		onChange:  onChange,
		done:      make(chan struct{}),
	}

	onChange(Compare(doc, absPath))

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.onChange(Compare(w.doc, w.path))
		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}
