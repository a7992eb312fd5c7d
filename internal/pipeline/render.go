package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Renderer writes verdicts for humans and scripts
type Renderer struct {
	verbose bool
}

// NewRenderer creates a renderer. Verbose output includes subclaims, evidence
// and citation checks.
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{verbose: verbose}
}

// RenderJSON writes the result as indented JSON
func (r *Renderer) RenderJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jsonView(res)); err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	return nil
}

// RenderMarkdown writes the result as a Markdown report
func (r *Renderer) RenderMarkdown(w io.Writer, res *Result) error {
	v := res.Verdict
	var b strings.Builder

	fmt.Fprintf(&b, "# Claim check\n\n> %s\n\n", v.Claim)
	fmt.Fprintf(&b, "Request: `%s`\n\n", res.RequestID)

	if v.Rejected {
		fmt.Fprintf(&b, "**Rejected:** %s\n", v.Text)
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("## Verdict\n\n")
	b.WriteString(strings.TrimSpace(v.Text))
	b.WriteString("\n\n## Subclaims\n\n")
	for i, s := range v.Subclaims {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	b.WriteString("\n## Evidence\n\n")
	for _, ev := range v.Evidence {
		switch {
		case ev.IsSentinel():
			fmt.Fprintf(&b, "- **%s unavailable:** %s\n", ev.Provider, ev.Error)
		case ev.URL != "":
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", orText(ev.Title, ev.URL), ev.URL, ev.Provider)
		default:
			fmt.Fprintf(&b, "- %s response (%s)\n", ev.Provider, ev.Kind)
		}
	}

	if len(v.Citations) > 0 {
		b.WriteString("\n## Citations\n\n| URL | In evidence | Reachable | Authority |\n|---|---|---|---|\n")
		for _, c := range v.Citations {
			reach := "not checked"
			if c.Checked {
				reach = fmt.Sprintf("%t (%d)", c.Accessible, c.StatusCode)
			}
			fmt.Fprintf(&b, "| %s | %t | %s | %s |\n", c.URL, c.InEvidence, reach, c.Authority)
		}
	}

	if len(v.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, warn := range v.Warnings {
			fmt.Fprintf(&b, "- %s\n", warn)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary prints the verdict text and, when verbose, the supporting detail
func (r *Renderer) RenderSummary(w io.Writer, res *Result) {
	v := res.Verdict
	_, _ = fmt.Fprintln(w, strings.TrimSpace(v.Text))
	if !r.verbose {
		return
	}

	_, _ = fmt.Fprintf(w, "\nRequest: %s\n", res.RequestID)
	if len(v.Subclaims) > 0 && !v.Rejected {
		_, _ = fmt.Fprintln(w, "Subclaims:")
		for i, s := range v.Subclaims {
			_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	_, _ = fmt.Fprintf(w, "Evidence: %d record(s)\n", len(v.Evidence))
	for _, warn := range v.Warnings {
		_, _ = fmt.Fprintf(w, "Warning: %s\n", warn)
	}
}

// RenderFiles writes JSON and Markdown reports to the given paths; empty paths are skipped
func (r *Renderer) RenderFiles(res *Result, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := writeFile(jsonPath, func(w io.Writer) error { return r.RenderJSON(w, res) }); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if mdPath != "" {
		if err := writeFile(mdPath, func(w io.Writer) error { return r.RenderMarkdown(w, res) }); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}
	return nil
}

type resultJSON struct {
	RequestID   string         `json:"request_id"`
	FinalResult string         `json:"final_result"`
	State       State          `json:"state"`
	History     []Transition   `json:"history,omitempty"`
	Verdict     *model.Verdict `json:"verdict"`
}

func jsonView(res *Result) resultJSON {
	return resultJSON{
		RequestID:   res.RequestID,
		FinalResult: res.Verdict.Text,
		State:       res.State,
		History:     res.History,
		Verdict:     res.Verdict,
	}
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f)
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
