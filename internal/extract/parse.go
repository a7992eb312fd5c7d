package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// listMarker matches "1.", "1)", "-", "*" and "•" prefixes
var listMarker = regexp.MustCompile(`^(?:\d{1,3}[.)]|[-*•])(?:\s+|$)`)

// sentinelForms are the normalized spellings accepted for the malformed-claim
// reply. Generators drop the article often enough to need both.
var sentinelForms = map[string]bool{
	normalizeSentinel(string(model.MalformedClaimSentinel)): true,
	"please provide proper claim for verification":          true,
}

// ParseLines splits generated text into content lines.
// Blank lines, code fences and "...Subclaims:" headers are dropped,
// list markers and markdown emphasis are stripped. Order is kept.
func ParseLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.TrimSpace(strings.Trim(line, "*_"))
		if line == "" || isHeader(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isHeader(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasSuffix(lower, "subclaims:") || lower == "claim:"
}

// ToSubclaims converts parsed lines to subclaims
func ToSubclaims(lines []string) []model.Subclaim {
	out := make([]model.Subclaim, len(lines))
	for i, l := range lines {
		out[i] = model.Subclaim(l)
	}
	return out
}

// IsSentinel reports whether the extractor rejected the claim
func IsSentinel(subclaims []model.Subclaim) bool {
	return len(subclaims) == 1 && subclaims[0] == model.MalformedClaimSentinel
}

// isSentinelLine matches the malformed-claim reply regardless of case,
// quoting, list markers and trailing punctuation
func isSentinelLine(line string) bool {
	return sentinelForms[normalizeSentinel(line)]
}

func normalizeSentinel(s string) string {
	s = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(s), ""))
	s = strings.Trim(s, "\"'`“”*_ ")
	s = strings.TrimRight(s, ".!? ")
	s = strings.Trim(s, "\"'`“”*_ ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
