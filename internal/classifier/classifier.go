package classifier

import (
	"context"
	"errors"
	"fmt"
)

const (
	// SentimentUnknown is reported when no verdict could be obtained.
	SentimentUnknown = "unknown"
	// SentimentFluid describes natural facial motion.
	SentimentFluid = "fluid"
	// SentimentRigid describes synthetic-looking motion.
	SentimentRigid = "rigid"
)

var (
	// ErrMissingCredential is reported when no API key is configured.
	ErrMissingCredential = errors.New("missing classification credential")
	// ErrEmptyImage is reported when the request carries no image.
	ErrEmptyImage = errors.New("no image to classify")
	// ErrEmptyResponse is reported when the model returns no text.
	ErrEmptyResponse = errors.New("empty classification response")
	// ErrMalformedResponse is reported when the model reply is not a verdict.
	ErrMalformedResponse = errors.New("malformed classification response")
)

// Verdict is the structured real/synthetic judgment for one snapshot.
type Verdict struct {
	IsReal     bool    `json:"isReal"`
	Confidence float64 `json:"confidence"`
	Sentiment  string  `json:"sentiment"`
	Reasoning  string  `json:"reasoning"`
}

// Request is one classification call: a JPEG snapshot and the descriptions
// of the challenges the user was shown.
type Request struct {
	ImageJPEG     []byte
	ChallengeText string
}

// Classifier judges a snapshot. Implementations never fail: every error is
// folded into a negative verdict whose Reasoning explains what went wrong.
type Classifier interface {
	Classify(ctx context.Context, req Request) Verdict
}

// Negative builds the deterministic failure verdict for err.
func Negative(err error) Verdict {
	return Verdict{
		IsReal:     false,
		Confidence: 0,
		Sentiment:  SentimentUnknown,
		Reasoning:  fmt.Sprintf("AI security pipeline failed: %v", err),
	}
}

// Static returns a fixed verdict. Useful for local runs without a model.
type Static struct {
	Verdict Verdict
}

// Classify returns the configured verdict, or a negative one when the
// request has no image.
func (s Static) Classify(_ context.Context, req Request) Verdict {
	if len(req.ImageJPEG) == 0 {
		return Negative(ErrEmptyImage)
	}
	return s.Verdict
}
