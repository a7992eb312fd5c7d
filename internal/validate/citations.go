// Package validate checks the URLs cited by a verdict: whether they came from
// the gathered evidence, whether they are reachable, and how authoritative
// their source is.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/worker"
)

const checkMaxAttempts = 3

// checkSleepFunc waits between retries (injectable for tests)
var checkSleepFunc = func(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// CitationChecker checks cited URLs concurrently. It never fails: problems
// are recorded on each Citation.
type CitationChecker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	authority  *AuthorityClassifier
	robots     *util.RobotsChecker // nil disables robots.txt checks
	limiter    *worker.Limiter     // Optional per-host limiter
	log        *slog.Logger
}

// NewCitationChecker creates a checker from the citations and authority config
func NewCitationChecker(cfg model.CitationsConfig, authority *model.AuthorityConfig, limiter *worker.Limiter, httpProxy, httpsProxy string) *CitationChecker {
	maxWorkers := cfg.Workers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "claimcheck/0.1 (+https://github.com/ppiankov/claimcheck)"
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(httpProxy, httpsProxy, ""),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	c := &CitationChecker{
		httpClient: client,
		maxWorkers: maxWorkers,
		userAgent:  userAgent,
		authority:  NewAuthorityClassifier(authority),
		limiter:    limiter,
		log:        logging.Named("citations"),
	}
	if cfg.Robots {
		c.robots = util.NewRobotsChecker(userAgent, cfg.Timeout, client)
	}
	return c
}

// Classify returns citations for urls without any network access
func (c *CitationChecker) Classify(urls []string, evidence []model.Evidence) []model.Citation {
	allowed := make(map[string]bool)
	for _, u := range model.EvidenceURLs(evidence) {
		allowed[u] = true
	}

	citations := make([]model.Citation, len(urls))
	for i, u := range urls {
		citations[i] = model.Citation{
			URL:        u,
			InEvidence: allowed[u],
			Authority:  c.authority.Classify(u),
		}
	}
	return citations
}

// Check classifies and probes every URL; results keep the input order
func (c *CitationChecker) Check(ctx context.Context, urls []string, evidence []model.Evidence) []model.Citation {
	citations := c.Classify(urls, evidence)
	if len(citations) == 0 {
		return citations
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i := range citations {
		wg.Add(1)
		go func(cit *model.Citation) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				cit.Error = "context cancelled"
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			c.checkWithRetry(ctx, cit)
		}(&citations[i])
	}

	wg.Wait()
	return citations
}

// checkWithRetry retries transient failures with exponential backoff
func (c *CitationChecker) checkWithRetry(ctx context.Context, cit *model.Citation) {
	for attempt := 0; attempt < checkMaxAttempts; attempt++ {
		c.checkOne(ctx, cit)
		if !isRetryable(cit) || ctx.Err() != nil {
			return
		}
		if attempt < checkMaxAttempts-1 {
			checkSleepFunc(ctx, time.Duration(1<<uint(attempt))*time.Second)
		}
	}
}

// checkOne issues a HEAD request, honoring robots.txt and per-host limits
func (c *CitationChecker) checkOne(ctx context.Context, cit *model.Citation) {
	cit.Checked = false
	cit.Accessible = false
	cit.StatusCode = 0
	cit.Error = ""

	var crawlDelay time.Duration
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, cit.URL)
		if err != nil {
			cit.Error = err.Error()
			return
		}
		if !allowed {
			cit.Error = "disallowed by robots.txt"
			return
		}
		crawlDelay = delay
	}

	if c.limiter != nil {
		if err := c.limiter.WaitWithDelay(ctx, cit.URL, crawlDelay); err != nil {
			cit.Error = fmt.Sprintf("rate limit: %v", err)
			return
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cit.URL, nil)
	if err != nil {
		cit.Error = fmt.Sprintf("create request: %v", err)
		return
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cit.Error = fmt.Sprintf("request failed: %v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	cit.Checked = true
	cit.StatusCode = resp.StatusCode
	cit.Accessible = resp.StatusCode >= 200 && resp.StatusCode < 400

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			cit.LastModified = &t
		}
	}
}

// isRetryable reports transient failures: 5xx, 429 and network timeouts
func isRetryable(cit *model.Citation) bool {
	if cit.StatusCode >= 500 && cit.StatusCode < 600 {
		return true
	}
	if cit.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if cit.Error != "" {
		s := strings.ToLower(cit.Error)
		return strings.Contains(s, "timeout") ||
			strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset")
	}
	return false
}
