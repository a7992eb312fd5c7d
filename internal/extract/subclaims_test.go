package extract

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/model"
)

// fakeGenerator returns a fixed reply and records prompts
type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestSubclaimExtractor_Extract(t *testing.T) {
	gen := &fakeGenerator{reply: "Subclaims:\n1. Pune is a city.\n2. Pune is located in Goa."}
	e := NewSubclaimExtractor(gen)

	got, err := e.Extract(context.Background(), "Pune is a city in Goa")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := []model.Subclaim{"Pune is a city.", "Pune is located in Goa."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
	if !strings.Contains(gen.prompts[0], `Claim: "Pune is a city in Goa"`) {
		t.Errorf("Prompt missing claim: %s", gen.prompts[0])
	}
	if !strings.Contains(gen.prompts[0], string(model.MalformedClaimSentinel)) {
		t.Error("Prompt must instruct the sentinel reply")
	}
}

func TestSubclaimExtractor_Sentinel(t *testing.T) {
	gen := &fakeGenerator{reply: `"Please Provide proper claim For verification"`}
	e := NewSubclaimExtractor(gen)

	got, err := e.Extract(context.Background(), "asdfgh qwerty")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !IsSentinel(got) {
		t.Errorf("Expected sentinel, got %v", got)
	}
}

func TestSubclaimExtractor_EmptyReplyFallsBackToClaim(t *testing.T) {
	gen := &fakeGenerator{reply: "Subclaims:\n1.\n2.\n3."}
	e := NewSubclaimExtractor(gen)

	got, err := e.Extract(context.Background(), "Water boils at 100C")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(got) != 1 || got[0] != "Water boils at 100C" {
		t.Errorf("Expected claim as single subclaim, got %v", got)
	}
}

func TestSubclaimExtractor_PropagatesGenerationError(t *testing.T) {
	genErr := apperr.New(apperr.KindGeneration, "llm.generate", "failed after 3 attempts")
	e := NewSubclaimExtractor(&fakeGenerator{err: genErr})

	_, err := e.Extract(context.Background(), "claim")
	if !errors.Is(err, genErr) {
		t.Errorf("Expected generation error unchanged, got %v", err)
	}
}

func TestSubclaimVerifier_Verify(t *testing.T) {
	gen := &fakeGenerator{reply: "Verified and Corrected Subclaims:\n1. Pune is a city.\n2. Pune is located in Maharashtra."}
	v := NewSubclaimVerifier(gen)

	in := []model.Subclaim{"Pune is a city.", "Pune is located in Goa."}
	got, err := v.Verify(context.Background(), "Pune is a city in Goa", in)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if len(got) != 2 || got[1] != "Pune is located in Maharashtra." {
		t.Errorf("Unexpected verified subclaims: %v", got)
	}
	if !strings.Contains(gen.prompts[0], "1. Pune is a city.\n2. Pune is located in Goa.") {
		t.Errorf("Prompt missing numbered subclaims: %s", gen.prompts[0])
	}
}

func TestSubclaimVerifier_PreservesCorrectSubclaims(t *testing.T) {
	in := []model.Subclaim{"Water boils at 100C at sea level."}
	gen := &fakeGenerator{reply: "1. Water boils at 100C at sea level."}

	got, err := NewSubclaimVerifier(gen).Verify(context.Background(), "Water boils at 100C at sea level", in)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("Expected unchanged subclaims, got %v", got)
	}
}

func TestSubclaimVerifier_EmptyReplyKeepsInput(t *testing.T) {
	in := []model.Subclaim{"A", "B"}
	got, err := NewSubclaimVerifier(&fakeGenerator{reply: "\n\n"}).Verify(context.Background(), "A and B", in)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("Expected input returned, got %v", got)
	}
}
