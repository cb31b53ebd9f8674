package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

type employersFilter struct {
	toggle
	employers []string
	logger    *zap.Logger
}

// NewExcludedEmployers creates a filter that removes listings of the given companies.
func NewExcludedEmployers(employers []string, logger *zap.Logger) Filter {
	return &employersFilter{employers: employers, logger: logger}
}

func (f *employersFilter) Name() string { return "employers" }

func (f *employersFilter) Validate() error { return nil }

func (f *employersFilter) Apply(_ context.Context, l *zhipin.Listings) (*zhipin.Listings, Step, error) {
	initial := l.Len()
	if len(f.employers) == 0 {
		return l, Step{Initial: initial, Dropped: 0, Left: l.Len()}, nil
	}

	excluded := l.Exclude(zhipin.ListingCompanyField, f.employers)
	if f.logger != nil && len(excluded) > 0 {
		f.logger.Info("excluding listings by employers",
			zap.Strings("excluded_employers", f.employers),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", l.Len()),
		)
	}

	return l, Step{Initial: initial, Dropped: len(excluded), Left: l.Len()}, nil
}
