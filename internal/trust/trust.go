// Package trust computes the confidence verdict for a file record.
//
// The verdict is asymmetric on purpose: corroboration from increasingly
// authoritative sources can only raise it, and any single disagreement
// destroys it outright. A tampered byte must never be diluted by
// otherwise-agreeing sources.
package trust

import (
	"github.com/blackwell-systems/debtrust/internal/hashdb"
)

// Verdict levels, weakest to strongest.
const (
	// Mismatch means at least two observed digests disagree.
	Mismatch = 0
	// Unknown means no digest has been observed, or only a single
	// fresh local one (a first observation is never self-corroborating).
	Unknown = 1
	// Local means the locally computed digest is the only evidence.
	Local = 2
	// Recorded means the local digest agrees with the digest dpkg
	// recorded at install time.
	Recorded = 3
	// Verified means the local digest additionally agrees with one
	// recomputed from the authoritative package fetched online.
	Verified = 4
)

// Evaluate computes the verdict for rec together with the set of
// distinct digest values observed across all populated fields.
// firstSeen marks a record created during this run with no prior stored
// state; its lone local digest is downgraded from Local to Unknown.
//
// The independent tamper-detection digest contributes to the distinct
// set (so a divergent reimplementation forces Mismatch) but never raises
// the level on its own.
func Evaluate(rec *hashdb.FileRecord, firstSeen bool) (int, []string) {
	var distinct []string
	seen := make(map[string]bool, 4)
	for _, d := range []string{rec.HashPrimary, rec.HashIndependent, rec.HashRecorded, rec.HashOnline} {
		if d != "" && !seen[d] {
			seen[d] = true
			distinct = append(distinct, d)
		}
	}

	if len(distinct) > 1 {
		return Mismatch, distinct
	}
	if len(distinct) == 0 {
		return Unknown, distinct
	}

	level := Unknown
	if rec.HashPrimary != "" {
		level = Local
		if rec.HashRecorded != "" {
			level = Recorded
		}
		if rec.HashOnline != "" {
			level = Verified
		}
	}

	if level == Local && firstSeen {
		level = Unknown
	}
	return level, distinct
}

// Symbol maps a verdict level to the single character emitted per file
// in the streaming progress output.
func Symbol(level int) string {
	switch level {
	case Verified:
		return "+"
	case Recorded:
		return "*"
	case Local:
		return "."
	case Mismatch:
		return "!"
	default:
		return "?"
	}
}

// Describe maps a verdict level to the phrase used in reports.
func Describe(level int) string {
	switch level {
	case Verified:
		return "fully verified"
	case Recorded:
		return "trusted from package metadata"
	case Local:
		return "locally computed only"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}
