// Package oracle defines the optional external sentiment collaborator used to
// refine keyword-derived cultural signals.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

// ErrMalformedResponse is returned when an oracle answers with values outside
// their documented ranges or with an unparseable body
var ErrMalformedResponse = errors.New("malformed oracle response")

// CountryContext describes the audience the text is being evaluated for
type CountryContext struct {
	Code        string
	Name        string
	Description string
	Dimensions  reference.Vector
}

// Signal is an oracle's reading of a text for one country. Dimensions, when
// set, is the text's own cultural vector on the 0-100 scale.
type Signal struct {
	Sentiment  float64           `json:"sentiment"`
	Confidence float64           `json:"confidence"`
	Dimensions *reference.Vector `json:"dimensions,omitempty"`
	Concerns   []string          `json:"concerns,omitempty"`
}

// Validate checks every value is within range
func (s Signal) Validate() error {
	if s.Sentiment < 0 || s.Sentiment > 1 || s.Sentiment != s.Sentiment {
		return fmt.Errorf("%w: sentiment %v outside [0,1]", ErrMalformedResponse, s.Sentiment)
	}
	if s.Confidence < 0 || s.Confidence > 1 || s.Confidence != s.Confidence {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, s.Confidence)
	}
	if s.Dimensions != nil {
		if err := s.Dimensions.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return nil
}

// Oracle infers audience sentiment for a text
type Oracle interface {
	InferSentiment(ctx context.Context, text string, country CountryContext) (Signal, error)
	Name() string
}

// Func adapts a function to the Oracle interface
type Func func(ctx context.Context, text string, country CountryContext) (Signal, error)

// InferSentiment calls f
func (f Func) InferSentiment(ctx context.Context, text string, country CountryContext) (Signal, error) {
	return f(ctx, text, country)
}

// Name returns "func"
func (f Func) Name() string {
	return "func"
}

// Stub returns a fixed signal, or a fixed error when Err is set
type Stub struct {
	Signal Signal
	Err    error
}

// InferSentiment returns the configured response, honouring ctx
func (s Stub) InferSentiment(ctx context.Context, _ string, _ CountryContext) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Signal{}, err
	}
	if s.Err != nil {
		return Signal{}, s.Err
	}
	return s.Signal, nil
}

// Name returns "stub"
func (s Stub) Name() string {
	return "stub"
}
