package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MalformedClaimSentinel is returned in place of subclaims when the generator
// judges the input to be garbage rather than a checkable claim
const MalformedClaimSentinel Subclaim = "Please provide a proper claim for verification"

// DefaultMaxClaimChars bounds claim length in runes
const DefaultMaxClaimChars = 2000

// Claim is the user-supplied assertion to verify
type Claim string

// Subclaim is one decomposed statement derived from a claim, order-significant
type Subclaim string

// ClaimProblem describes why a claim was rejected before entering the pipeline
type ClaimProblem string

const (
	ClaimOK       ClaimProblem = ""
	ClaimEmpty    ClaimProblem = "claim is empty"
	ClaimTooLong  ClaimProblem = "claim is too long"
	ClaimNoLetter ClaimProblem = "claim contains no words"
)

// NormalizeClaim trims surrounding whitespace
func NormalizeClaim(raw string) Claim {
	return Claim(strings.TrimSpace(raw))
}

// Check reports the first problem with the claim, or ClaimOK.
// maxChars <= 0 disables the length check.
func (c Claim) Check(maxChars int) ClaimProblem {
	text := strings.TrimSpace(string(c))
	if text == "" {
		return ClaimEmpty
	}
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		return ClaimTooLong
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return ClaimOK
		}
	}
	return ClaimNoLetter
}

func (c Claim) String() string {
	return string(c)
}

func (s Subclaim) String() string {
	return string(s)
}

// SubclaimStrings converts subclaims to plain strings
func SubclaimStrings(subclaims []Subclaim) []string {
	out := make([]string, len(subclaims))
	for i, s := range subclaims {
		out[i] = string(s)
	}
	return out
}
