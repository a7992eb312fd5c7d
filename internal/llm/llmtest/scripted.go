// Package llmtest provides a scripted generation provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ppiankov/claimcheck/internal/llm"
)

// Step is one scripted provider outcome
type Step struct {
	Text string
	Err  error
}

// Responder picks a reply for a prompt; used when replies depend on prompt content
type Responder func(prompt string) (string, error)

// Provider replays Steps in order, or routes through Respond when set.
// It records every prompt it receives.
type Provider struct {
	Steps   []Step
	Respond Responder

	mu      sync.Mutex
	prompts []string
}

var _ llm.Provider = (*Provider)(nil)

// Name returns the provider name
func (p *Provider) Name() string {
	return "scripted"
}

// IsAvailable always reports true
func (p *Provider) IsAvailable(context.Context) bool {
	return true
}

// Generate returns the next scripted step
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.mu.Lock()
	idx := len(p.prompts)
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.Respond != nil {
		text, err := p.Respond(req.Prompt)
		if err != nil {
			return nil, err
		}
		return &llm.GenerateResponse{Text: text, Model: "scripted-1"}, nil
	}

	if idx >= len(p.Steps) {
		return &llm.GenerateResponse{Model: "scripted-1"}, nil
	}
	step := p.Steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	return &llm.GenerateResponse{Text: step.Text, Model: "scripted-1"}, nil
}

// Calls returns how many times Generate was invoked
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

// Prompts returns a copy of the received prompts
func (p *Provider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// ByMarker builds a Responder that answers with the reply of the first marker
// contained in the prompt
func ByMarker(replies map[string]string) Responder {
	return func(prompt string) (string, error) {
		for marker, reply := range replies {
			if strings.Contains(prompt, marker) {
				return reply, nil
			}
		}
		return "", nil
	}
}
