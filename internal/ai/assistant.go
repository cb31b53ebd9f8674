package ai

import (
	"context"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

type FitAssessment struct {
	Fit     bool
	Score   float64
	Reason  string
	Message string
	Raw     string
}

// Matcher judges a listing for a profile and drafts the greeting to send.
type Matcher interface {
	Evaluate(ctx context.Context, profile *zhipin.Profile, listing *zhipin.Listing) (*FitAssessment, error)
}

// ToListing converts an assessment into the form stored on a listing.
func (a *FitAssessment) ToListing() *zhipin.AIAssessment {
	if a == nil {
		return nil
	}
	return &zhipin.AIAssessment{
		Fit:     a.Fit,
		Score:   a.Score,
		Reason:  a.Reason,
		Message: a.Message,
		Raw:     a.Raw,
	}
}
