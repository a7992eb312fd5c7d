package model

import "time"

// Verdict is the final synthesized determination bound to exactly one claim
type Verdict struct {
	Claim     Claim      `json:"claim"`
	Subclaims []Subclaim `json:"subclaims"`
	Evidence  []Evidence `json:"evidence"`
	Text      string     `json:"text"`                 // Generator output, returned verbatim
	CitedURLs []string   `json:"cited_urls,omitempty"` // URLs found in Text
	Citations []Citation `json:"citations,omitempty"`  // Citation check results (optional stage)
	Warnings  []string   `json:"warnings,omitempty"`   // Non-fatal issues (degraded evidence, citation leaks)
	Provider  string     `json:"provider,omitempty"`   // Generation provider name
	Model     string     `json:"model,omitempty"`      // Generation model
	Rejected  bool       `json:"rejected,omitempty"`   // Claim judged malformed by the extractor
	CreatedAt time.Time  `json:"created_at"`
}

// DegradedProviders lists providers whose evidence is a sentinel
func (v *Verdict) DegradedProviders() []string {
	var out []string
	for _, ev := range v.Evidence {
		if ev.IsSentinel() {
			out = append(out, ev.Provider)
		}
	}
	return out
}
