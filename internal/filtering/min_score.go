package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/matching"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

type minScoreFilter struct {
	toggle
	min    int
	logger *zap.Logger
}

// NewMinScore drops listings whose match score is below min. Listings must
// be scored before this step runs.
func NewMinScore(min int, logger *zap.Logger) Filter {
	return &minScoreFilter{min: min, logger: logger}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate() error {
	if f.min < matching.MinScore || f.min > matching.MaxScore {
		return fmt.Errorf("minimum score %d is outside [%d, %d]", f.min, matching.MinScore, matching.MaxScore)
	}
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, l *zhipin.Listings) (*zhipin.Listings, Step, error) {
	initial := l.Len()
	dropped := l.Keep(func(listing *zhipin.Listing) bool { return listing.Score >= f.min })
	if f.logger != nil && dropped > 0 {
		f.logger.Info("excluding listings below minimum score",
			zap.Int("min_score", f.min),
			zap.Int("dropped", dropped),
			zap.Int("listings_left", l.Len()),
		)
	}

	return l, Step{Initial: initial, Dropped: dropped, Left: l.Len()}, nil
}
