// Package evidence gathers external evidence for a claim from a web-search
// provider and a content-retrieval provider.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/model"
)

// SearchProvider answers a text query with search evidence
type SearchProvider interface {
	Name() string
	Query(ctx context.Context, text string) ([]model.Evidence, error)
}

// SerpAPI queries serpapi.com and normalizes related questions
type SerpAPI struct {
	baseURL    string
	apiKey     string
	engine     string
	maxResults int
	fetch      *fetcher
}

type serpResponse struct {
	Error            string            `json:"error"`
	RelatedQuestions []serpRelatedItem `json:"related_questions"`
	OrganicResults   []serpOrganicItem `json:"organic_results"`
}

type serpRelatedItem struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet"`
	Title    string `json:"title"`
	Link     string `json:"link"`
}

type serpOrganicItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// NewSerpAPI creates a search provider from the search config section
func NewSerpAPI(cfg model.SearchConfig, opts ClientOptions) *SerpAPI {
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	engine := cfg.Engine
	if engine == "" {
		engine = "google"
	}
	return &SerpAPI{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		engine:     engine,
		maxResults: cfg.MaxResults,
		fetch:      newFetcher(opts),
	}
}

// Name returns the provider name
func (s *SerpAPI) Name() string {
	return "serpapi"
}

// Query runs one search. Related questions are preferred; organic results
// fill in when the engine returned none.
func (s *SerpAPI) Query(ctx context.Context, text string) ([]model.Evidence, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("api_key", s.apiKey)
	params.Set("engine", s.engine)
	endpoint := fmt.Sprintf("%s/search?%s", s.baseURL, params.Encode())

	res, err := s.fetch.get(ctx, endpoint, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "evidence.serpapi", err, "search request failed")
	}

	var body serpResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "evidence.serpapi", err, "malformed search response")
	}

	if body.Error != "" && len(body.RelatedQuestions) == 0 && len(body.OrganicResults) == 0 {
		// An empty result page is reported through the error field
		if strings.Contains(strings.ToLower(body.Error), "hasn't returned any results") {
			return []model.Evidence{}, nil
		}
		return nil, apperr.New(apperr.KindProvider, "evidence.serpapi", body.Error)
	}

	evidence := make([]model.Evidence, 0, len(body.RelatedQuestions))
	for _, rq := range body.RelatedQuestions {
		evidence = append(evidence, model.Evidence{
			Provider: s.Name(),
			Kind:     model.EvidenceKindSearch,
			Question: strings.TrimSpace(rq.Question),
			Snippet:  strings.TrimSpace(rq.Snippet),
			Title:    strings.TrimSpace(rq.Title),
			URL:      rq.Link,
		})
	}

	if len(evidence) == 0 {
		for i, or := range body.OrganicResults {
			if s.maxResults > 0 && i >= s.maxResults {
				break
			}
			evidence = append(evidence, model.Evidence{
				Provider: s.Name(),
				Kind:     model.EvidenceKindSearch,
				Title:    strings.TrimSpace(or.Title),
				Snippet:  strings.TrimSpace(or.Snippet),
				URL:      or.Link,
			})
		}
	}

	return evidence, nil
}
