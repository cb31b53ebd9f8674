package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

type excludeFileFilter struct {
	toggle
	path   string
	logger *zap.Logger
}

// NewExcludeFile creates a filter that removes listings contained in an exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path), logger: logger}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, l *zhipin.Listings) (*zhipin.Listings, Step, error) {
	initial := l.Len()
	if f.path == "" {
		return l, Step{Initial: initial, Dropped: 0, Left: l.Len()}, nil
	}

	excluded, err := zhipin.GetExcludedListingsFromFile(f.path)
	if err != nil {
		return l, Step{}, fmt.Errorf("getting excluded listings from file: %w", err)
	}

	removed := l.Exclude(zhipin.ListingIDField, excluded.IDs())
	if f.logger != nil && len(removed) > 0 {
		f.logger.Info("excluding listings based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_listings", removed),
			zap.Int("listings_left", l.Len()),
		)
	}

	return l, Step{Initial: initial, Dropped: len(removed), Left: l.Len()}, nil
}
