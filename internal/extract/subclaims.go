// Package extract decomposes a claim into subclaims and cross-checks them
// with a text generator.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// TextGenerator produces text for a prompt. llm.Generator implements it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const extractPrompt = `You are an AI that extracts explicit subclaims from a given claim. Given the following claim:

Claim: "%s"

Break down the claim into distinct subclaims, ensuring that each subclaim is a direct, structured statement that preserves the wording and logical meaning of the original claim.
Write one subclaim per line. If the claim is not in a correct format or the input is garbage text, reply exactly with "%s" and nothing else.

Subclaims:
1.
2.
3.`

const verifyPrompt = `You are an AI that verifies and corrects extracted subclaims for logical consistency. Given the original claim and its extracted subclaims, check if the subclaims are correct and make necessary corrections if any errors exist.

Claim: "%s"

Extracted Subclaims:
%s

If any subclaims contain incorrect information, rephrase them correctly while keeping them logically aligned with the original claim. If the subclaims are correct, return them as they are, one per line.

Verified and Corrected Subclaims:
1.
2.
3.`

// SubclaimExtractor decomposes a claim into ordered subclaims
type SubclaimExtractor struct {
	gen TextGenerator
	log *slog.Logger
}

// NewSubclaimExtractor creates an extractor backed by gen
func NewSubclaimExtractor(gen TextGenerator) *SubclaimExtractor {
	return &SubclaimExtractor{gen: gen, log: logging.Named("extract")}
}

// Extract returns at least one subclaim, or exactly the malformed-claim
// sentinel. Generation errors are returned unchanged.
func (e *SubclaimExtractor) Extract(ctx context.Context, claim model.Claim) ([]model.Subclaim, error) {
	text, err := e.gen.Generate(ctx, BuildExtractPrompt(claim))
	if err != nil {
		return nil, err
	}

	lines := ParseLines(text)
	for _, line := range lines {
		if isSentinelLine(line) {
			e.log.Info("claim rejected by generator", "claim_chars", len(claim))
			return []model.Subclaim{model.MalformedClaimSentinel}, nil
		}
	}

	if len(lines) == 0 {
		e.log.Warn("no subclaims parsed, using claim as its own subclaim")
		return []model.Subclaim{model.Subclaim(claim)}, nil
	}
	return ToSubclaims(lines), nil
}

// BuildExtractPrompt renders the decomposition prompt
func BuildExtractPrompt(claim model.Claim) string {
	return fmt.Sprintf(extractPrompt, claim, model.MalformedClaimSentinel)
}

// SubclaimVerifier cross-checks subclaims against their claim
type SubclaimVerifier struct {
	gen TextGenerator
	log *slog.Logger
}

// NewSubclaimVerifier creates a verifier backed by gen
func NewSubclaimVerifier(gen TextGenerator) *SubclaimVerifier {
	return &SubclaimVerifier{gen: gen, log: logging.Named("verify")}
}

// Verify returns the corrected subclaims. An unparseable reply leaves the
// input unchanged.
func (v *SubclaimVerifier) Verify(ctx context.Context, claim model.Claim, subclaims []model.Subclaim) ([]model.Subclaim, error) {
	text, err := v.gen.Generate(ctx, BuildVerifyPrompt(claim, subclaims))
	if err != nil {
		return nil, err
	}

	lines := ParseLines(text)
	if len(lines) == 0 {
		v.log.Warn("verifier returned no subclaims, keeping input", "subclaims", len(subclaims))
		return subclaims, nil
	}
	return ToSubclaims(lines), nil
}

// BuildVerifyPrompt renders the verification prompt with numbered subclaims
func BuildVerifyPrompt(claim model.Claim, subclaims []model.Subclaim) string {
	var numbered strings.Builder
	for i, s := range subclaims {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, s)
	}
	return fmt.Sprintf(verifyPrompt, claim, strings.TrimRight(numbered.String(), "\n"))
}
