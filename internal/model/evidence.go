package model

import (
	"encoding/json"
	"time"
)

// Evidence is a normalized record produced by a search or retrieval provider.
// A failed provider call is represented by a sentinel record with Error set.
type Evidence struct {
	Provider   string          `json:"provider"`             // serpapi, jina
	Kind       EvidenceKind    `json:"kind"`                 // search or retrieval
	Question   string          `json:"question,omitempty"`   // Related question (search)
	Title      string          `json:"title,omitempty"`      // Result title (search)
	Snippet    string          `json:"snippet,omitempty"`    // Result snippet (search)
	URL        string          `json:"url,omitempty"`        // Source link if known
	Content    string          `json:"content,omitempty"`    // Raw text, truncated (retrieval)
	Structured json.RawMessage `json:"structured,omitempty"` // Parsed body when the provider returns JSON (retrieval)
	References []string        `json:"references,omitempty"` // Source links named inside retrieved content
	Error      string          `json:"error,omitempty"`      // Set only on sentinel records
}

// EvidenceKind classifies the provider that produced the evidence
type EvidenceKind string

const (
	EvidenceKindSearch    EvidenceKind = "search"
	EvidenceKindRetrieval EvidenceKind = "retrieval"
)

// SentinelEvidence builds the placeholder record for a failed provider call
func SentinelEvidence(provider string, kind EvidenceKind, err error) Evidence {
	msg := "unknown provider failure"
	if err != nil {
		msg = err.Error()
	}
	return Evidence{
		Provider: provider,
		Kind:     kind,
		Error:    msg,
	}
}

// IsSentinel reports whether the record stands in for a failed provider call
func (e Evidence) IsSentinel() bool {
	return e.Error != ""
}

// EvidenceURLs returns the distinct non-empty URLs and references carried by
// the evidence, in order
func EvidenceURLs(evidence []Evidence) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}
	for _, ev := range evidence {
		add(ev.URL)
		for _, ref := range ev.References {
			add(ref)
		}
	}
	return urls
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, tourism sites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the tier by name
func (t AuthorityTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Citation describes a URL cited by a verdict
type Citation struct {
	URL          string        `json:"url"`
	InEvidence   bool          `json:"in_evidence"`           // Whether the URL came from gathered evidence
	Checked      bool          `json:"checked"`               // Whether liveness was checked
	Accessible   bool          `json:"accessible"`            // 2xx/3xx on check
	StatusCode   int           `json:"status_code,omitempty"`
	Authority    AuthorityTier `json:"authority"`
	LastModified *time.Time    `json:"last_modified,omitempty"`
	Error        string        `json:"error,omitempty"`
}
