package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// ClaimProcessor runs one claim through the pipeline
type ClaimProcessor interface {
	Process(ctx context.Context, claim string) (*model.Verdict, error)
}

// ClaimJob processes a single claim
type ClaimJob struct {
	Index     int
	Claim     string
	Processor ClaimProcessor
}

// Execute runs the claim through the processor
func (j *ClaimJob) Execute(ctx context.Context) Result {
	verdict, err := j.Processor.Process(ctx, j.Claim)
	return &ClaimResult{
		Index:   j.Index,
		Claim:   j.Claim,
		Verdict: verdict,
		Error:   err,
	}
}

// ClaimResult is the outcome for one claim of a batch
type ClaimResult struct {
	Index   int
	Claim   string
	Verdict *model.Verdict
	Error   error
}

// Err returns the processing error, if any
func (r *ClaimResult) Err() error {
	return r.Error
}

// Record is one JSON line of batch output
type Record struct {
	Claim       string         `json:"claim"`
	FinalResult string         `json:"final_result,omitempty"`
	Verdict     *model.Verdict `json:"verdict,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
}

// Record converts the result to its output form. Verbose keeps the full verdict.
func (r *ClaimResult) Record(verbose bool) Record {
	rec := Record{Claim: r.Claim}
	if r.Error != nil {
		rec.Error = apperr.Public(r.Error)
		rec.ErrorKind = string(apperr.KindOf(r.Error))
		return rec
	}
	if r.Verdict != nil {
		rec.FinalResult = r.Verdict.Text
		if verbose {
			rec.Verdict = r.Verdict
		}
	}
	return rec
}

// BatchProcessor processes many claims concurrently
type BatchProcessor struct {
	processor   ClaimProcessor
	concurrency int
	log         *slog.Logger
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(processor ClaimProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
		log:         logging.Named("batch"),
	}
}

// ProcessClaims processes claims concurrently. Results keep the input order;
// claims never started because ctx ended carry the context error.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, claim := range claims {
			if !pool.Submit(&ClaimJob{Index: i, Claim: claim, Processor: b.processor}) {
				break
			}
		}
		pool.Close()
	}()

	results := make([]*ClaimResult, len(claims))
	failed := 0
	for res := range pool.Results() {
		cr := res.(*ClaimResult)
		results[cr.Index] = cr
		if cr.Error != nil {
			failed++
			b.log.Warn("claim failed", "index", cr.Index, "kind", apperr.KindOf(cr.Error), "error", cr.Error)
		}
	}

	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &ClaimResult{
				Index: i,
				Claim: claims[i],
				Error: apperr.Wrap(apperr.KindPipeline, "batch", err, "claim not processed"),
			}
			failed++
		}
	}

	b.log.Info("batch complete", "claims", len(claims), "failed", failed)
	return results
}

// ProcessFile reads claims from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a file, one per line
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadClaims(file)
}

// ReadClaims reads one claim per line, skipping blanks and # comments.
// Duplicate claims are dropped, keeping the first occurrence.
func ReadClaims(r io.Reader) ([]string, error) {
	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan claims: %w", err)
	}
	return claims, nil
}

// WriteJSONLines writes one Record per result, in index order
func WriteJSONLines(w io.Writer, results []*ClaimResult, verbose bool) error {
	sorted := make([]*ClaimResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range sorted {
		if err := enc.Encode(r.Record(verbose)); err != nil {
			return fmt.Errorf("write result %d: %w", r.Index, err)
		}
	}
	return nil
}
