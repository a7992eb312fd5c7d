// Package synthesize turns a claim, its subclaims and gathered evidence into
// a final verdict.
package synthesize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// TextGenerator produces text for a prompt. llm.Generator implements it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// urlPattern matches http(s) URLs in generated text
var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"'<]+`)

// Synthesizer produces the final verdict text
type Synthesizer struct {
	gen      TextGenerator
	provider string
	model    string
	now      func() time.Time
	log      *slog.Logger
}

// New creates a synthesizer. provider and modelName are recorded on verdicts.
func New(gen TextGenerator, provider, modelName string) *Synthesizer {
	return &Synthesizer{
		gen:      gen,
		provider: provider,
		model:    modelName,
		now:      time.Now,
		log:      logging.Named("synthesize"),
	}
}

// Synthesize runs regardless of how much evidence survived; sentinels are
// shown to the generator as provider errors
func (s *Synthesizer) Synthesize(ctx context.Context, claim model.Claim, subclaims []model.Subclaim, evidence []model.Evidence) (*model.Verdict, error) {
	text, err := s.gen.Generate(ctx, BuildPrompt(claim, subclaims, evidence))
	if err != nil {
		return nil, err
	}

	verdict := &model.Verdict{
		Claim:     claim,
		Subclaims: subclaims,
		Evidence:  evidence,
		Text:      text,
		CitedURLs: ExtractURLs(text),
		Provider:  s.provider,
		Model:     s.model,
		CreatedAt: s.now().UTC(),
	}

	for _, provider := range verdict.DegradedProviders() {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("evidence provider %s unavailable", provider))
	}

	// Strict evidence: citations outside the gathered evidence are flagged, not fatal
	allowed := make(map[string]bool)
	for _, u := range model.EvidenceURLs(evidence) {
		allowed[u] = true
	}
	for _, cited := range verdict.CitedURLs {
		if !allowed[cited] {
			verdict.Warnings = append(verdict.Warnings, "cited URL not found in evidence: "+cited)
			s.log.Warn("citation outside evidence", "url", cited)
		}
	}

	return verdict, nil
}

// BuildPrompt renders the synthesis prompt
func BuildPrompt(claim model.Claim, subclaims []model.Subclaim, evidence []model.Evidence) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Main Claim: %s\n\n", claim)

	b.WriteString("Subclaims:\n")
	for i, sc := range subclaims {
		fmt.Fprintf(&b, "%d. %s\n", i+1, sc)
	}

	var search, retrieval []model.Evidence
	for _, ev := range evidence {
		if ev.Kind == model.EvidenceKindRetrieval {
			retrieval = append(retrieval, ev)
		} else {
			search = append(search, ev)
		}
	}

	b.WriteString("\nRetrieval Response:\n")
	writeEvidence(&b, retrieval)
	b.WriteString("\nSearch Sources:\n")
	writeEvidence(&b, search)

	b.WriteString(`
Generate a final response based on this information.
Keep the response short. Focus only on the main claim: state whether it is true or false, then the reason, then the supporting references and sources.
Only cite URLs that appear above.`)

	return b.String()
}

func writeEvidence(b *strings.Builder, evidence []model.Evidence) {
	if len(evidence) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, ev := range evidence {
		fmt.Fprintf(b, "- %s\n", RenderEvidence(ev))
	}
}

// RenderEvidence formats one evidence record for the prompt
func RenderEvidence(ev model.Evidence) string {
	if ev.IsSentinel() {
		return fmt.Sprintf("[%s] ERROR: %s", ev.Provider, ev.Error)
	}

	switch ev.Kind {
	case model.EvidenceKindRetrieval:
		var parts []string
		switch {
		case ev.Content != "":
			parts = append(parts, ev.Content)
		case len(ev.Structured) > 0:
			parts = append(parts, string(ev.Structured))
		default:
			parts = append(parts, "(empty response)")
		}
		if len(ev.References) > 0 {
			parts = append(parts, "References: "+strings.Join(ev.References, ", "))
		}
		return fmt.Sprintf("[%s] %s", ev.Provider, strings.Join(parts, " "))

	default:
		var line string
		if ev.Question != "" {
			line = fmt.Sprintf("%s: %s: %s",
				ev.Question,
				orDefault(ev.Snippet, "No snippet available"),
				orDefault(ev.Title, "No title available"))
		} else {
			// Organic results carry no question
			line = fmt.Sprintf("%s: %s",
				orDefault(ev.Title, "No title available"),
				orDefault(ev.Snippet, "No snippet available"))
		}
		if ev.URL != "" {
			line += " (" + ev.URL + ")"
		}
		return line
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ExtractURLs returns distinct URLs in text, trailing punctuation removed
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?*`")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}
