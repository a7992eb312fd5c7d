package model

import (
	"errors"
	"strings"
	"testing"
)

func TestClaim_Check(t *testing.T) {
	tests := []struct {
		claim    string
		maxChars int
		want     ClaimProblem
	}{
		{"Pune is in the state of Goa in Europe", 2000, ClaimOK},
		{"", 2000, ClaimEmpty},
		{"   \n\t ", 2000, ClaimEmpty},
		{"?!?! ... ---", 2000, ClaimNoLetter},
		{"42", 2000, ClaimOK},
		{strings.Repeat("a", 11), 10, ClaimTooLong},
		{strings.Repeat("a", 11), 0, ClaimOK},
	}

	for _, tt := range tests {
		got := NormalizeClaim(tt.claim).Check(tt.maxChars)
		if got != tt.want {
			t.Errorf("Check(%q, %d) = %q, want %q", tt.claim, tt.maxChars, got, tt.want)
		}
	}
}

func TestNormalizeClaim(t *testing.T) {
	if got := NormalizeClaim("  Water boils at 100C.  "); got != "Water boils at 100C." {
		t.Errorf("Unexpected normalized claim: %q", got)
	}
}

func TestSentinelEvidence(t *testing.T) {
	ev := SentinelEvidence("serpapi", EvidenceKindSearch, errors.New("status 500"))
	if !ev.IsSentinel() {
		t.Fatal("Expected sentinel evidence")
	}
	if ev.Error != "status 500" || ev.Provider != "serpapi" {
		t.Errorf("Unexpected sentinel: %+v", ev)
	}

	nilErr := SentinelEvidence("jina", EvidenceKindRetrieval, nil)
	if nilErr.Error == "" {
		t.Error("Expected sentinel to carry an error marker even without a cause")
	}
}

func TestEvidenceURLs_DedupesInOrder(t *testing.T) {
	evidence := []Evidence{
		{URL: "https://b.example"},
		{URL: ""},
		{URL: "https://a.example"},
		{URL: "https://b.example"},
		{Provider: "jina", References: []string{"https://a.example", "https://c.example"}},
	}

	urls := EvidenceURLs(evidence)
	if len(urls) != 3 || urls[0] != "https://b.example" || urls[1] != "https://a.example" || urls[2] != "https://c.example" {
		t.Errorf("Unexpected URLs: %v", urls)
	}
}

func TestVerdict_DegradedProviders(t *testing.T) {
	v := &Verdict{Evidence: []Evidence{
		{Provider: "serpapi", Title: "ok"},
		{Provider: "jina", Error: "timeout"},
	}}
	got := v.DegradedProviders()
	if len(got) != 1 || got[0] != "jina" {
		t.Errorf("Unexpected degraded providers: %v", got)
	}
}
