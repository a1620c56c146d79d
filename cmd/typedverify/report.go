package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"typedcode/internal/archive"
	"typedcode/internal/pipeline"
	"typedcode/internal/trust"
)

// report is the CLI's rendered view of one verification run.
type report struct {
	File     string                           `json:"file"`
	Events   int                              `json:"events"`
	Sampled  bool                             `json:"sampled"`
	Result   *pipeline.VerificationResultData `json:"result,omitempty"`
	Error    string                           `json:"error,omitempty"`
	Trust    trust.Result                     `json:"trust"`
	Version  string                           `json:"version"`
	Verified time.Time                        `json:"verifiedAt"`
}

func (r *report) render(format string, w io.Writer) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text", "":
		return r.renderText(w)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func (r *report) renderText(w io.Writer) error {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "                 TYPEDCODE PROOF VERIFICATION REPORT")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "File:       %s\n", r.File)
	fmt.Fprintf(w, "Events:     %d\n", r.Events)
	fmt.Fprintf(w, "Verified:   %s\n", r.Verified.Format(time.RFC3339))

	if r.Error != "" {
		fmt.Fprintf(w, "\nVerification error: %s\n", r.Error)
	}

	if res := r.Result; res != nil {
		fmt.Fprintf(w, "Method:     %s\n", res.VerificationMethod)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  metadata valid:  %s\n", mark(res.MetadataValid))
		fmt.Fprintf(w, "  chain valid:     %s\n", mark(res.ChainValid))
		fmt.Fprintf(w, "  pure typing:     %s\n", mark(res.IsPureTyping))
		fmt.Fprintf(w, "  timing valid:    %s\n", mark(res.PoSWValid))
		if res.ErrorAt != nil {
			fmt.Fprintf(w, "  first bad event: %d\n", *res.ErrorAt)
		}
		if s := res.PoSWStats; s != nil {
			fmt.Fprintf(w, "  posw:            %d claims, %d iterations, avg %.1fms\n",
				s.Count, s.Iterations, s.AvgTimeMs)
		}
		if sr := res.SampledResult; sr != nil {
			fmt.Fprintf(w, "  sampled:         %d/%d segments, %d/%d events verified\n",
				len(sr.Segments), sr.TotalSegments, sr.TotalEventsVerified, sr.TotalEvents)
		}
		if res.Message != "" {
			fmt.Fprintf(w, "  note:            %s\n", res.Message)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Trust: %s\n", strings.ToUpper(string(r.Trust.Level)))
	fmt.Fprintf(w, "  %s\n", r.Trust.Summary)
	for _, issue := range r.Trust.Issues {
		fmt.Fprintf(w, "  [%s] %s: %s\n", issue.Severity, issue.Component, issue.Message)
	}
	fmt.Fprintln(w, line)
	return nil
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "NO"
}

func (r *report) toRecord() *archive.Record {
	rec := &archive.Record{
		ID:         uuid.NewString(),
		Filename:   r.File,
		VerifiedAt: r.Verified,
		TrustLevel: string(r.Trust.Level),
	}
	if res := r.Result; res != nil {
		rec.Method = res.VerificationMethod
		rec.MetadataValid = res.MetadataValid
		rec.ChainValid = res.ChainValid
		rec.PureTyping = res.IsPureTyping
		rec.PoSWValid = res.PoSWValid
		rec.ErrorAt = res.ErrorAt
	}
	if raw, err := json.Marshal(r); err == nil {
		rec.Result = raw
	}
	return rec
}
