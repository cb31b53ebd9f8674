package matching

import (
	"slices"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// Ranked pairs a listing with the score it got.
type Ranked struct {
	Listing *zhipin.Listing `json:"job"`
	Score   int             `json:"match_score"`
}

// ScoreAll scores every listing in order and records the score on it.
func ScoreAll(listings *zhipin.Listings, profile *zhipin.Profile) []Ranked {
	if listings == nil {
		return nil
	}

	ranked := make([]Ranked, 0, listings.Len())
	for _, listing := range listings.Items {
		listing.Score = Score(listing, profile, "")
		ranked = append(ranked, Ranked{Listing: listing, Score: listing.Score})
	}
	return ranked
}

// FromListings pairs listings with the score they already carry.
func FromListings(listings *zhipin.Listings) []Ranked {
	if listings == nil {
		return nil
	}

	ranked := make([]Ranked, 0, listings.Len())
	for _, listing := range listings.Items {
		ranked = append(ranked, Ranked{Listing: listing, Score: listing.Score})
	}
	return ranked
}

// Recommend scores listings and ranks them with Rank.
func Recommend(listings *zhipin.Listings, profile *zhipin.Profile, minScore, maxCount int) []Ranked {
	return Rank(ScoreAll(listings, profile), minScore, maxCount)
}

// Rank keeps entries scoring at least minScore, best first, at most maxCount
// of them (no cap when maxCount <= 0). Equal scores keep their input order.
func Rank(ranked []Ranked, minScore, maxCount int) []Ranked {
	ranked = slices.DeleteFunc(ranked, func(r Ranked) bool {
		return r.Score < minScore
	})

	slices.SortStableFunc(ranked, func(a, b Ranked) int {
		return b.Score - a.Score
	})

	if maxCount > 0 && len(ranked) > maxCount {
		ranked = ranked[:maxCount]
	}
	return ranked
}
