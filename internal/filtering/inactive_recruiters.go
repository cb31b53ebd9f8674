package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// DefaultInactiveStatuses are activity labels of recruiters who have not
// been online for a long time.
var DefaultInactiveStatuses = []string{"半年前活跃", "近半年活跃", "4月前活跃", "5月前活跃"}

type inactiveRecruitersFilter struct {
	toggle
	statuses []string
	logger   *zap.Logger
}

// NewInactiveRecruiters drops listings whose recruiter activity text contains
// one of statuses. An empty list uses DefaultInactiveStatuses.
func NewInactiveRecruiters(statuses []string, logger *zap.Logger) Filter {
	if len(statuses) == 0 {
		statuses = DefaultInactiveStatuses
	}
	return &inactiveRecruitersFilter{statuses: statuses, logger: logger}
}

func (f *inactiveRecruitersFilter) Name() string { return "inactive_recruiters" }

func (f *inactiveRecruitersFilter) Validate() error { return nil }

func (f *inactiveRecruitersFilter) Apply(_ context.Context, l *zhipin.Listings) (*zhipin.Listings, Step, error) {
	initial := l.Len()
	var excluded []string
	l.Keep(func(listing *zhipin.Listing) bool {
		for _, status := range f.statuses {
			if status != "" && strings.Contains(listing.RecruiterActivity, status) {
				excluded = append(excluded, listing.ID)
				return false
			}
		}
		return true
	})

	if f.logger != nil && len(excluded) > 0 {
		f.logger.Info("excluding listings with inactive recruiters",
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", l.Len()),
		)
	}

	return l, Step{Initial: initial, Dropped: len(excluded), Left: l.Len()}, nil
}
