package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/ai"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// DescriptionFetcher loads the full description of a listing. An empty
// result means "use the card text".
type DescriptionFetcher interface {
	FetchDescription(ctx context.Context, id string) (string, error)
}

type AIFitFilterDeps struct {
	Logger      *zap.Logger
	Matcher     ai.Matcher
	Profile     *zhipin.Profile
	Fetcher     DescriptionFetcher
	ExcludeFile string
}

type aiFitFilter struct {
	toggle
	deps *AIFitFilterDeps
}

// NewAIFit creates the AI-based filtering step. Listings the matcher rejects
// are dropped (and appended to the exclude file when one is set); listings it
// accepts carry its drafted message.
func NewAIFit(enabled bool, deps *AIFitFilterDeps) Filter {
	f := &aiFitFilter{deps: deps}
	if !enabled {
		f.Disable("disabled in config")
	}
	return f
}

func (f *aiFitFilter) Name() string { return "ai_fit" }

func (f *aiFitFilter) Validate() error {
	if f.deps == nil || f.deps.Matcher == nil {
		return fmt.Errorf("ai matcher is not configured")
	}
	if f.deps.Profile == nil {
		return fmt.Errorf("profile is required for AI evaluation")
	}
	if f.deps.Logger == nil {
		f.deps.Logger = zap.NewNop()
	}
	return nil
}

func (f *aiFitFilter) Apply(ctx context.Context, l *zhipin.Listings) (*zhipin.Listings, Step, error) {
	initial := l.Len()
	approved := make([]*zhipin.Listing, 0, initial)
	logger := f.deps.Logger

	for _, listing := range l.Items {
		if err := ctx.Err(); err != nil {
			return l, Step{}, err
		}

		evaluated := listing
		if f.deps.Fetcher != nil {
			full, err := f.deps.Fetcher.FetchDescription(ctx, listing.ID)
			if err != nil {
				return l, Step{}, fmt.Errorf("reading listing %s: %w", listing.ID, err)
			}
			if full != "" {
				copied := *listing
				copied.Description = full
				evaluated = &copied
			}
		}

		assessment, err := f.deps.Matcher.Evaluate(ctx, f.deps.Profile, evaluated)
		if err != nil {
			logger.Warn("AI evaluation failed",
				zap.String("job_id", listing.ID),
				zap.Error(err),
			)
			listing.AI = &zhipin.AIAssessment{Error: err.Error()}
			approved = append(approved, listing)
			continue
		}

		listing.AI = assessment.ToListing()

		if !assessment.Fit {
			logger.Info("listing rejected by AI provider",
				zap.String("job_id", listing.ID),
				zap.Float64("ai_score", assessment.Score),
				zap.String("reason", assessment.Reason),
			)

			if err := f.appendToExcludeFile(listing); err != nil {
				logger.Warn("failed to append listing to exclude file",
					zap.String("job_id", listing.ID),
					zap.Error(err),
				)
			}
			continue
		}

		logger.Info("listing approved by AI",
			zap.String("job_id", listing.ID),
			zap.Float64("ai_score", assessment.Score),
		)
		approved = append(approved, listing)
	}

	l.Items = approved

	logger.Info("AI filtering completed",
		zap.Int("initial_listings", initial),
		zap.Int("approved_listings", len(approved)),
	)

	return l, Step{Initial: initial, Dropped: initial - len(approved), Left: len(approved)}, nil
}

func (f *aiFitFilter) appendToExcludeFile(listing *zhipin.Listing) error {
	path := strings.TrimSpace(f.deps.ExcludeFile)
	if path == "" {
		return nil
	}

	excluded, err := zhipin.GetExcludedListingsFromFile(path)
	if err != nil {
		return fmt.Errorf("load excluded listings: %w", err)
	}

	excluded.Append((&zhipin.Listings{Items: []*zhipin.Listing{listing}}).ToExcluded())

	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("write excluded listings: %w", err)
	}

	return nil
}
