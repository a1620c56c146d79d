// Command typedverify is a standalone verifier for typedcode typing
// proofs.
//
// It replays the capture's verification pipeline outside any editor
// UI, making it suitable for:
// - Offline verification of exported proof files
// - Third-party review of submitted code
// - CI gates rejecting unverifiable submissions
//
// Usage:
//
//	typedverify [flags] <proof.json>
//
// Examples:
//
//	# Basic verification
//	typedverify proof.json
//
//	# JSON report, compare against the submitted source file
//	typedverify -format json -source main.go proof.json
//
//	# Check the screenshot manifest against a directory of captures
//	typedverify -screenshots ./captures proof.json
//
//	# Print the reconstructed document as of event 250
//	typedverify -content-at 250 proof.json
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"typedcode/internal/archive"
	"typedcode/internal/chain"
	"typedcode/internal/config"
	"typedcode/internal/logging"
	"typedcode/internal/pipeline"
	"typedcode/internal/posw"
	"typedcode/internal/proof"
	"typedcode/internal/replay"
	"typedcode/internal/sourcecheck"
	"typedcode/internal/trust"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "configuration file (TOML or YAML)")
	formatStr := flag.String("format", "text", "output format: text, json")
	output := flag.String("output", "", "output file (default: stdout)")
	quiet := flag.Bool("quiet", false, "quiet mode - suppress progress, only print the report")
	exitCode := flag.Bool("exit-code", true, "exit non-zero when the trust verdict is failed")
	sourcePath := flag.String("source", "", "source file to compare against the proof's recorded content")
	screenshotDir := flag.String("screenshots", "", "directory holding the proof's screenshot captures")
	archiveFlag := flag.Bool("archive", false, "record this run in the verification archive")
	contentAt := flag.Int("content-at", -1, "print the reconstructed document at an event index and exit")
	timeout := flag.Duration("timeout", 10*time.Minute, "verification timeout")
	versionFlag := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "typedverify - Verify typedcode typing proofs\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <proof.json>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nTrust Levels:\n")
		fmt.Fprintf(os.Stderr, "  verified  - hash chain, timing and typing provenance all check out\n")
		fmt.Fprintf(os.Stderr, "  partial   - integrity holds but warnings were found (paste, timing, ...)\n")
		fmt.Fprintf(os.Stderr, "  failed    - metadata, chain or screenshot integrity is broken\n")
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("typedverify %s (commit: %s, built: %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: proof file required\n\n")
		flag.Usage()
		os.Exit(2)
	}
	proofFile := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := buildLogger(cfg, *quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	raw, err := os.ReadFile(proofFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading proof: %v\n", err)
		os.Exit(1)
	}

	doc, err := proof.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *contentAt >= 0 {
		r := replay.NewWithInterval(doc.Events(), cfg.Replay.SnapshotInterval)
		fmt.Print(r.ContentAt(*contentAt))
		os.Exit(0)
	}

	result, verifyErr := runVerification(cfg, logger, proofFile, raw, *quiet, *timeout)

	verdict := evaluate(doc, result, *sourcePath, *screenshotDir)

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	rep := &report{
		File:     proofFile,
		Result:   result,
		Error:    errString(verifyErr),
		Trust:    verdict,
		Events:   len(doc.Events()),
		Sampled:  doc.HasCheckpoints(),
		Version:  version,
		Verified: time.Now().UTC(),
	}
	if err := rep.render(*formatStr, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *archiveFlag || cfg.Archive.Enabled {
		if err := saveToArchive(cfg, proofFile, rep); err != nil {
			logger.Warn("archive write failed", "error", err)
		}
	}

	if *exitCode && (verdict.Level == trust.LevelFailed || verifyErr != nil) {
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config, quiet bool) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if quiet {
		level = logging.LevelError
	}
	logCfg := &logging.Config{
		Level:     level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "typedverify",
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultConfig().FilePath
	}
	return logging.New(logCfg)
}

// runVerification pushes the proof through the pipeline and waits for
// its terminal outcome.
func runVerification(cfg *config.Config, logger *logging.Logger, filename string, raw []byte, quiet bool, timeout time.Duration) (*pipeline.VerificationResultData, error) {
	queue := pipeline.New(
		pipeline.WithLogger(logger.WithComponent("pipeline")),
		pipeline.WithPoSWParams(posw.Params{
			IterationsPerSecond: cfg.Verification.IterationsPerSecond,
			MinIterations:       cfg.Verification.MinIterations,
			MaxIterations:       cfg.Verification.MaxIterations,
		}),
		pipeline.WithSamplePolicy(chain.SamplePolicy{Coverage: cfg.Verification.SampleCoverage}),
	)
	defer queue.Close()

	type outcome struct {
		result *pipeline.VerificationResultData
		err    error
	}
	done := make(chan outcome, 1)

	if !quiet {
		queue.SetOnProgress(func(p pipeline.Progress) {
			if p.HashInfo != nil {
				fmt.Fprintf(os.Stderr, "  %s: mismatch at event %d\n", p.Phase, p.HashInfo.Index)
				return
			}
			fmt.Fprintf(os.Stderr, "  %s: %d/%d\r", p.Phase, p.Current, p.Total)
		})
	}
	queue.SetOnComplete(func(id string, result *pipeline.VerificationResultData) {
		done <- outcome{result: result}
	})
	queue.SetOnError(func(id string, err error) {
		done <- outcome{err: err}
	})

	if _, err := queue.Enqueue(pipeline.Item{Filename: filename, RawData: raw}); err != nil {
		return nil, err
	}

	select {
	case o := <-done:
		if !quiet {
			fmt.Fprintln(os.Stderr)
		}
		return o.result, o.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("verification timed out after %s", timeout)
	}
}

func evaluate(doc *proof.Document, result *pipeline.VerificationResultData, sourcePath, screenshotDir string) trust.Result {
	evaluator := trust.NewEvaluator()
	if sourcePath != "" {
		evaluator.SetSourceComparison(sourcecheck.Compare(doc, sourcePath))
	}

	var attestation *trust.AttestationResult
	if doc.Attestation != nil {
		attestation = &trust.AttestationResult{Attested: doc.Attestation.Verified}
		if !doc.Attestation.Verified {
			attestation.Reason = "attestation token was recorded but never validated"
		}
	}

	var screenshots *sourcecheck.ScreenshotSummary
	if screenshotDir != "" {
		screenshots = sourcecheck.CheckScreenshots(doc, screenshotDir)
	}

	return evaluator.Calculate(result, attestation, screenshots)
}

func saveToArchive(cfg *config.Config, filename string, rep *report) error {
	a, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Save(rep.toRecord())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
