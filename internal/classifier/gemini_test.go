package classifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeGenerator struct {
	text  string
	err   error
	block bool

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func testGemini(gen contentGenerator, timeout time.Duration) *Gemini {
	return newGemini(gen, GeminiConfig{
		Timeout: timeout,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

var jpegStub = []byte{0xff, 0xd8, 0xff, 0xd9}

func TestGeminiReturnsVerdict(t *testing.T) {
	gen := &fakeGenerator{text: `{"isReal": true, "confidence": 0.93, "sentiment": "Fluid", "reasoning": "natural micro-motion"}`}
	v := testGemini(gen, time.Second).Classify(context.Background(), Request{ImageJPEG: jpegStub, ChallengeText: "Smile"})
	if !v.IsReal || v.Confidence != 0.93 || v.Sentiment != SentimentFluid {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if gen.gotModel != DefaultModel {
		t.Fatalf("expected default model, got %s", gen.gotModel)
	}
	if gen.gotConfig == nil || gen.gotConfig.ResponseMIMEType != "application/json" {
		t.Fatal("expected json response config")
	}
	parts := gen.gotContents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("expected jpeg inline data first, got %+v", parts)
	}
	if !strings.Contains(parts[1].Text, `"Smile"`) {
		t.Fatal("prompt missing challenge text")
	}
}

func TestGeminiNegativeVerdictPassesThrough(t *testing.T) {
	gen := &fakeGenerator{text: `{"isReal": false, "confidence": 0.1, "sentiment": "rigid", "reasoning": "moire detected"}`}
	v := testGemini(gen, time.Second).Classify(context.Background(), Request{ImageJPEG: jpegStub})
	if v.IsReal || v.Sentiment != SentimentRigid || v.Reasoning != "moire detected" {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestGeminiFailuresBecomeNegativeVerdicts(t *testing.T) {
	cases := map[string]struct {
		gen *fakeGenerator
		req Request
	}{
		"network":   {gen: &fakeGenerator{err: errors.New("connection reset")}, req: Request{ImageJPEG: jpegStub}},
		"empty":     {gen: &fakeGenerator{text: "   "}, req: Request{ImageJPEG: jpegStub}},
		"malformed": {gen: &fakeGenerator{text: "not json"}, req: Request{ImageJPEG: jpegStub}},
		"partial":   {gen: &fakeGenerator{text: `{"isReal": true}`}, req: Request{ImageJPEG: jpegStub}},
		"no image":  {gen: &fakeGenerator{text: `{}`}, req: Request{}},
		"timeout":   {gen: &fakeGenerator{block: true}, req: Request{ImageJPEG: jpegStub}},
	}
	for name, tc := range cases {
		v := testGemini(tc.gen, 20*time.Millisecond).Classify(context.Background(), tc.req)
		if v.IsReal || v.Confidence != 0 || v.Sentiment != SentimentUnknown {
			t.Fatalf("%s: expected negative verdict, got %+v", name, v)
		}
		if v.Reasoning == "" {
			t.Fatalf("%s: expected diagnostic reasoning", name)
		}
	}
}

func TestGeminiMissingCredential(t *testing.T) {
	g := NewGemini(context.Background(), GeminiConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	v := g.Classify(context.Background(), Request{ImageJPEG: jpegStub})
	if v.IsReal {
		t.Fatal("missing credential must not yield a positive verdict")
	}
	if !strings.Contains(v.Reasoning, ErrMissingCredential.Error()) {
		t.Fatalf("expected credential reason, got %q", v.Reasoning)
	}
}

func TestParseVerdictClampsConfidence(t *testing.T) {
	v, err := ParseVerdict(`{"isReal": true, "confidence": 7, "sentiment": "fluid", "reasoning": "ok"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Confidence != 1 {
		t.Fatalf("expected clamp to 1, got %v", v.Confidence)
	}
	if _, err := ParseVerdict(`{"isReal": true}`); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if _, err := ParseVerdict(""); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestStaticClassifier(t *testing.T) {
	s := Static{Verdict: Verdict{IsReal: true, Confidence: 0.9, Sentiment: SentimentFluid, Reasoning: "static"}}
	if v := s.Classify(context.Background(), Request{ImageJPEG: jpegStub}); !v.IsReal {
		t.Fatal("expected configured verdict")
	}
	if v := s.Classify(context.Background(), Request{}); v.IsReal {
		t.Fatal("expected negative verdict without image")
	}
}
