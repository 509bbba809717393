// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditReport is the per-target output of one enrichment run.
type AuditReport struct {
	RunID       string          `json:"runId"`
	Target      string          `json:"target"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Summary     ReportSummary   `json:"summary"`
	Elements    []ElementReport `json:"elements"`
}

// ReportSummary aggregates the run.
type ReportSummary struct {
	TotalElements    int            `json:"totalElements"`
	WithNaturalSize  int            `json:"withNaturalSize"`
	WithCSSSizing    int            `json:"withCssSizing"`
	WithNetworkMatch int            `json:"withNetworkMatch"`
	Enrichment       enrich.Summary `json:"enrichment"`
}

// ElementReport wraps an enriched element with the delivered-format
// classification derived from its joined network record.
type ElementReport struct {
	*enrich.ImageElementRecord
	// DeliveredFormat is derived from the transfer that actually carried
	// the bytes, not from the URL's extension or any declared type.
	DeliveredFormat string `json:"deliveredFormat"`
}

// Generate assembles a report for one completed run.
func Generate(runID, target string, elements []*enrich.ImageElementRecord, summary enrich.Summary) *AuditReport {
	report := &AuditReport{
		RunID:       runID,
		Target:      target,
		GeneratedAt: time.Now().UTC(),
		Summary: ReportSummary{
			TotalElements: len(elements),
			Enrichment:    summary,
		},
		Elements: make([]ElementReport, 0, len(elements)),
	}

	for _, el := range elements {
		if el == nil {
			continue
		}
		if el.NaturalWidth != nil {
			report.Summary.WithNaturalSize++
		}
		if el.Sizing != nil {
			report.Summary.WithCSSSizing++
		}
		if el.Network != nil {
			report.Summary.WithNetworkMatch++
		}
		report.Elements = append(report.Elements, ElementReport{
			ImageElementRecord: el,
			DeliveredFormat:    DeliveredFormat(el),
		})
	}
	return report
}

// DeliveredFormat classifies the format that actually arrived for an
// element, or "unknown" when no completed transfer was matched. Consumers
// must treat "unknown" as absence of information, not as a finding.
func DeliveredFormat(el *enrich.ImageElementRecord) string {
	if el.Network == nil {
		return "unknown"
	}
	mime := strings.ToLower(strings.TrimSpace(el.Network.MimeType))
	format, ok := strings.CutPrefix(mime, "image/")
	if !ok || format == "" {
		// Octet-stream and other MIME lies still carry real image bytes;
		// the join itself is the signal, the declared type is not.
		return "unknown"
	}
	if format == "svg+xml" {
		return "svg"
	}
	return format
}

// Write encodes the reports to the configured output. Path "-" or ""
// means stdout.
func Write(reports []*AuditReport, format, path string) error {
	if format != "json" {
		return fmt.Errorf("unsupported report format: %s", format)
	}

	var out io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create report file %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
