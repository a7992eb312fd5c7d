package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/model"
)

// RetrievalProvider fetches grounding content for a text subject
type RetrievalProvider interface {
	Name() string
	Fetch(ctx context.Context, text string) (model.Evidence, error)
}

// Jina queries the Jina grounding reader (g.jina.ai)
type Jina struct {
	baseURL  string
	apiKey   string
	maxChars int
	fetch    *fetcher
}

// jinaGrounding is the JSON shape returned by the grounding endpoint
type jinaGrounding struct {
	Data struct {
		Factuality float64 `json:"factuality"`
		Result     *bool   `json:"result"`
		Reason     string  `json:"reason"`
		References []struct {
			URL          string `json:"url"`
			KeyQuote     string `json:"keyQuote"`
			IsSupportive bool   `json:"isSupportive"`
		} `json:"references"`
	} `json:"data"`
}

// NewJina creates a retrieval provider from the retrieval config section
func NewJina(cfg model.RetrievalConfig, opts ClientOptions) *Jina {
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 200
	}
	return &Jina{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		maxChars: maxChars,
		fetch:    newFetcher(opts),
	}
}

// Name returns the provider name
func (j *Jina) Name() string {
	return "jina"
}

// Fetch retrieves content for text. JSON bodies are kept as structured data,
// HTML is reduced to visible text, anything else is truncated raw text.
func (j *Jina) Fetch(ctx context.Context, text string) (model.Evidence, error) {
	endpoint := j.baseURL + "/" + url.PathEscape(text)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+j.apiKey)
	header.Set("Accept", "application/json")

	res, err := j.fetch.get(ctx, endpoint, header)
	if err != nil {
		return model.Evidence{}, apperr.Wrap(apperr.KindProvider, "evidence.jina", err, "retrieval request failed")
	}

	ev := model.Evidence{
		Provider: j.Name(),
		Kind:     model.EvidenceKindRetrieval,
	}

	switch {
	case isJSON(res.ContentType, res.Body):
		var compact bytes.Buffer
		if err := json.Compact(&compact, res.Body); err != nil {
			return model.Evidence{}, apperr.Wrap(apperr.KindProvider, "evidence.jina", err, "malformed retrieval response")
		}
		ev.Structured = json.RawMessage(compact.Bytes())

		var grounding jinaGrounding
		if err := json.Unmarshal(res.Body, &grounding); err == nil {
			ev.Content = truncateRunes(strings.TrimSpace(grounding.Data.Reason), j.maxChars)
			for _, ref := range grounding.Data.References {
				if ref.URL != "" {
					ev.References = append(ev.References, ref.URL)
				}
			}
		}

	case res.ContentType == "text/html" || res.ContentType == "application/xhtml+xml":
		visible, err := VisibleText(string(res.Body))
		if err != nil {
			visible = string(res.Body)
		}
		ev.Content = truncateRunes(visible, j.maxChars)
		ev.References = Links(string(res.Body), endpoint)

	default:
		body := res.Body
		if !utf8.Valid(body) {
			body = bytes.ToValidUTF8(body, []byte("�"))
		}
		ev.Content = truncateRunes(strings.TrimSpace(string(body)), j.maxChars)
	}

	return ev, nil
}

func isJSON(contentType string, body []byte) bool {
	if contentType == "application/json" || strings.HasSuffix(contentType, "+json") {
		return json.Valid(body)
	}
	// Some deployments send JSON as text/plain
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed)
}
