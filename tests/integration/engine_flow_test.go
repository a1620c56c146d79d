//go:build integration

// Package integration holds end-to-end tests for the typedcode
// verification engine: capture document in, verdict out.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typedcode/internal/archive"
	"typedcode/internal/chain"
	"typedcode/internal/pipeline"
	"typedcode/internal/posw"
	"typedcode/internal/proof"
	"typedcode/internal/replay"
	"typedcode/internal/sourcecheck"
	"typedcode/internal/trust"
)

func intp(v int) *int { return &v }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

var testPoSW = posw.Params{IterationsPerSecond: 1000, MinIterations: 10, MaxIterations: 100_000}

// captureDocument simulates a capture session typing `text` one rune at
// a time, sealing the hash chain and mining sequential-work claims the
// way the capture layer does.
func captureDocument(t *testing.T, text string, withCheckpoints bool) (*proof.Document, []byte) {
	t.Helper()

	log := make(proof.EventLog, 0, len(text))
	for i, r := range text {
		log = append(log, proof.Event{
			Type:        proof.EventChange,
			Timestamp:   int64(i * 80),
			Data:        proof.EventData{Text: string(r), Source: "keyboard"},
			RangeOffset: intp(i),
			RangeLength: intp(0),
		})
	}
	chain.Seal(log)
	require.NoError(t, posw.Attach(log, testPoSW))

	doc := &proof.Document{
		Metadata: proof.Metadata{Version: 1, Timestamp: 1_700_000_000_000, Editor: "vscode", Language: "go"},
		Proof:    proof.Body{Events: log},
		Content:  text,
	}
	if withCheckpoints {
		doc.Checkpoints = chain.BuildCheckpoints(log, 8)
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return doc, raw
}

func runThroughQueue(t *testing.T, raw []byte, filename string) *pipeline.VerificationResultData {
	t.Helper()

	q := pipeline.New(pipeline.WithPoSWParams(testPoSW))
	defer q.Close()

	results := make(chan *pipeline.VerificationResultData, 1)
	errs := make(chan error, 1)
	q.SetOnComplete(func(id string, r *pipeline.VerificationResultData) { results <- r })
	q.SetOnError(func(id string, err error) { errs <- err })

	_, err := q.Enqueue(pipeline.Item{Filename: filename, RawData: raw})
	require.NoError(t, err)

	select {
	case r := <-results:
		return r
	case err := <-errs:
		t.Fatalf("verification errored: %v", err)
	case <-time.After(30 * time.Second):
		t.Fatal("verification timed out")
	}
	return nil
}

func TestEngineFlow_CleanProof(t *testing.T) {
	text := "package main\n\nfunc main() {\n\tprintln(\"ok\")\n}\n"
	doc, raw := captureDocument(t, text, false)

	result := runThroughQueue(t, raw, "clean.json")
	assert.True(t, result.MetadataValid)
	assert.True(t, result.ChainValid)
	assert.True(t, result.PoSWValid)
	assert.True(t, result.IsPureTyping)
	assert.Equal(t, pipeline.MethodFull, result.VerificationMethod)

	// Replay reconstructs the recorded content exactly.
	r := replay.New(doc.Events())
	assert.Equal(t, text, r.ContentAt(r.Len()))
	assert.Equal(t, "package", r.ContentAt(7))

	// And the verdict comes out verified.
	verdict := trust.NewEvaluator().Calculate(result, nil, nil)
	assert.Equal(t, trust.LevelVerified, verdict.Level)
	assert.Empty(t, verdict.Issues)
}

func TestEngineFlow_SampledVerification(t *testing.T) {
	text := "a long enough body of typed text to span several checkpoint segments"
	_, raw := captureDocument(t, text, true)

	result := runThroughQueue(t, raw, "sampled.json")
	assert.True(t, result.ChainValid)
	assert.Equal(t, pipeline.MethodSampled, result.VerificationMethod)
	require.NotNil(t, result.SampledResult)
	assert.Equal(t, len(text), result.SampledResult.TotalEvents)
	assert.Greater(t, result.SampledResult.TotalEventsVerified, 0)
}

func TestEngineFlow_TamperedProofFails(t *testing.T) {
	doc, _ := captureDocument(t, "the quick brown fox", false)
	doc.Proof.Events[7].Data.Text = "X"
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	result := runThroughQueue(t, raw, "tampered.json")
	assert.False(t, result.ChainValid)
	require.NotNil(t, result.ErrorAt)
	assert.Equal(t, 7, *result.ErrorAt)

	verdict := trust.NewEvaluator().Calculate(result, nil, nil)
	assert.Equal(t, trust.LevelFailed, verdict.Level)
}

func TestEngineFlow_PastedContentDowngrades(t *testing.T) {
	doc, _ := captureDocument(t, "typed", false)
	doc.Proof.Events = append(doc.Proof.Events, proof.Event{
		Type:        proof.EventPaste,
		Timestamp:   doc.Proof.Events[len(doc.Proof.Events)-1].Timestamp + 100,
		Data:        proof.EventData{Text: " and pasted"},
		RangeOffset: intp(5),
		RangeLength: intp(0),
	})
	chain.Seal(doc.Proof.Events)
	require.NoError(t, posw.Attach(doc.Proof.Events, testPoSW))
	doc.Content = "typed and pasted"
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	result := runThroughQueue(t, raw, "pasted.json")
	assert.True(t, result.ChainValid)
	assert.False(t, result.IsPureTyping)

	verdict := trust.NewEvaluator().Calculate(result, nil, nil)
	assert.Equal(t, trust.LevelPartial, verdict.Level)
}

func TestEngineFlow_SourceComparisonAndArchive(t *testing.T) {
	text := "final content\n"
	doc, raw := captureDocument(t, text, false)
	result := runThroughQueue(t, raw, "archived.json")

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.go")
	writeFile(t, srcPath, text)

	evaluator := trust.NewEvaluator()
	evaluator.SetSourceComparison(sourcecheck.Compare(doc, srcPath))
	verdict := evaluator.Calculate(result, nil, nil)
	assert.Equal(t, trust.LevelVerified, verdict.Level)

	// Divergence after the fact downgrades without failing.
	writeFile(t, srcPath, "edited later\n")
	evaluator.SetSourceComparison(sourcecheck.Compare(doc, srcPath))
	verdict = evaluator.Calculate(result, nil, nil)
	assert.Equal(t, trust.LevelPartial, verdict.Level)

	// The run lands in the archive and reads back.
	a, err := archive.Open(filepath.Join(dir, "verifications.db"))
	require.NoError(t, err)
	defer a.Close()

	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, a.Save(&archive.Record{
		ID:            "flow-1",
		Filename:      "archived.json",
		VerifiedAt:    time.Now(),
		Method:        result.VerificationMethod,
		MetadataValid: result.MetadataValid,
		ChainValid:    result.ChainValid,
		PureTyping:    result.IsPureTyping,
		PoSWValid:     result.PoSWValid,
		TrustLevel:    string(verdict.Level),
		Result:        resultJSON,
	}))

	records, err := a.ForFile("archived.json")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "full", records[0].Method)
	assert.True(t, records[0].ChainValid)
}
