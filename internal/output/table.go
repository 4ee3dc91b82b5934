package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/debtrust/internal/hashdb"
	"github.com/blackwell-systems/debtrust/internal/trust"
)

// ANSI color codes for verdict display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is
// not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorFor(level int) string {
	switch level {
	case trust.Verified, trust.Recorded:
		return colorGreen
	case trust.Local:
		return colorYellow
	case trust.Mismatch:
		return colorRed
	default:
		return colorGray
	}
}

// RenderRecordTable renders records with their current verdicts.
func RenderRecordTable(records []*hashdb.FileRecord) string {
	if len(records) == 0 {
		return "No records found.\n"
	}

	color := IsColorEnabled()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-3s %-44s %-20s %s\n", "V", "File", "Package", "Status"))
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, rec := range records {
		level, _ := trust.Evaluate(rec, false)
		symbol := trust.Symbol(level)
		status := trust.Describe(level)
		if color {
			symbol = colorFor(level) + symbol + colorReset
		}
		sb.WriteString(fmt.Sprintf("%-3s %-44s %-20s %s\n",
			symbol,
			truncate(rec.Filename, 44),
			truncate(rec.Package, 20),
			status))
	}
	return sb.String()
}

// RenderRecordDetail renders every populated field of one record.
func RenderRecordDetail(rec *hashdb.FileRecord) string {
	level, distinct := trust.Evaluate(rec, false)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File:        %s\n", rec.Filename))
	if rec.Package != "" {
		sb.WriteString(fmt.Sprintf("Package:     %s\n", rec.Package))
	}
	if rec.SourceURI != "" {
		sb.WriteString(fmt.Sprintf("Source:      %s\n", rec.SourceURI))
	}
	if rec.HashPrimary != "" {
		sb.WriteString(fmt.Sprintf("Local:       %s\n", rec.HashPrimary))
	}
	if rec.HashIndependent != "" {
		sb.WriteString(fmt.Sprintf("Independent: %s\n", rec.HashIndependent))
	}
	if rec.HashRecorded != "" {
		sb.WriteString(fmt.Sprintf("Recorded:    %s\n", rec.HashRecorded))
	}
	if rec.HashOnline != "" {
		sb.WriteString(fmt.Sprintf("Online:      %s\n", rec.HashOnline))
	}
	sb.WriteString(fmt.Sprintf("Verdict:     %d (%s)\n", level, trust.Describe(level)))
	if len(distinct) > 1 {
		sb.WriteString(fmt.Sprintf("Conflict:    %d distinct digest values observed\n", len(distinct)))
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
