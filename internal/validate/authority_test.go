package validate

import (
	"testing"

	"github.com/ppiankov/claimcheck/internal/model"
)

func TestAuthorityClassifier_Classify(t *testing.T) {
	classifier := NewAuthorityClassifier(&model.AuthorityConfig{
		PrimaryDomains:   []string{"gov.in", "doi.org", "who.int"},
		SecondaryDomains: []string{"wikipedia.org", ".britannica.com"},
		DomainMap: map[string]string{
			"maharashtratourism.gov.in": "tertiary",
			"Reuters.com":               "2",
		},
		PathPatterns: []model.PathPattern{
			{Pattern: `^/(?:abs|pdf)/\d{4}\.\d{4,5}`, Tier: "primary"},
			{Pattern: "([", Tier: "primary"}, // invalid, skipped
		},
	})

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://pmc.gov.in/en", model.TierPrimary, "primary suffix with subdomain"},
		{"https://doi.org/10.1038/nature12373", model.TierPrimary, "primary exact"},
		{"https://www.who.int/news", model.TierPrimary, "www prefix ignored"},
		{"https://en.wikipedia.org/wiki/Pune", model.TierSecondary, "secondary subdomain"},
		{"https://www.britannica.com/place/Pune", model.TierSecondary, "leading dot in config"},
		{"https://maharashtratourism.gov.in/pune", model.TierTertiary, "domain map beats suffix"},
		{"https://reuters.com/world", model.TierSecondary, "domain map is case-insensitive"},
		{"https://arxiv.org/abs/2401.12345", model.TierPrimary, "path pattern"},
		{"https://whitehouse.gov/briefing", model.TierPrimary, ".gov heuristic"},
		{"https://ox.ac.uk/research", model.TierPrimary, ".ac.uk heuristic"},
		{"https://example.gov.in:8443/page", model.TierPrimary, "port ignored"},
		{"https://goa-travel-blog.example/pune", model.TierTertiary, "default tertiary"},
		{"not-a-url", model.TierUnknown, "no host"},
		{"", model.TierUnknown, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.expected {
				t.Errorf("Classify(%s) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestAuthorityClassifier_Defaults(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	if got := classifier.Classify("https://en.wikipedia.org/wiki/Goa"); got != model.TierSecondary {
		t.Errorf("Expected wikipedia secondary with defaults, got %v", got)
	}
	if got := classifier.Classify("https://www.mea.gov.in/"); got != model.TierPrimary {
		t.Errorf("Expected gov.in primary with defaults, got %v", got)
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]model.AuthorityTier{
		"primary":   model.TierPrimary,
		"PRIMARY":   model.TierPrimary,
		"1":         model.TierPrimary,
		"secondary": model.TierSecondary,
		"2":         model.TierSecondary,
		"tertiary":  model.TierTertiary,
		"3":         model.TierTertiary,
		"bogus":     model.TierTertiary,
		"":          model.TierTertiary,
	}
	for in, want := range tests {
		if got := ParseTier(in); got != want {
			t.Errorf("ParseTier(%q) = %v, want %v", in, got, want)
		}
	}
}
