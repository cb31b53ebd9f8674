package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

type missingIDFilter struct {
	toggle
	logger *zap.Logger
}

// NewMissingID drops listings scraped without an identifier. There is no
// detail page to open for them, so outreach is impossible.
func NewMissingID(logger *zap.Logger) Filter {
	return &missingIDFilter{logger: logger}
}

func (f *missingIDFilter) Name() string { return "missing_id" }

func (f *missingIDFilter) Validate() error { return nil }

func (f *missingIDFilter) Apply(_ context.Context, l *zhipin.Listings) (*zhipin.Listings, Step, error) {
	initial := l.Len()
	dropped := l.Keep(func(listing *zhipin.Listing) bool { return listing.ID != "" })
	if f.logger != nil && dropped > 0 {
		f.logger.Info("excluding listings without id. It is impossible to reach them",
			zap.Int("dropped", dropped),
			zap.Int("listings_left", l.Len()),
		)
	}

	return l, Step{Initial: initial, Dropped: dropped, Left: l.Len()}, nil
}
