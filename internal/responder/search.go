package responder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
	"github.com/spigell/zhipin-responder/internal/matching"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// Search walks up to params.Pages result pages and returns the listings in
// page order.
func (s *Session) Search(ctx context.Context, params *zhipin.SearchParams) (*zhipin.Listings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.search(ctx, params)
}

func (s *Session) search(ctx context.Context, params *zhipin.SearchParams) (*zhipin.Listings, error) {
	if err := s.ensureNotBlocked(); err != nil {
		return nil, err
	}
	if params == nil {
		params = &zhipin.SearchParams{}
	}
	pages := params.Pages
	if pages <= 0 {
		pages = zhipin.DefaultPages
	}
	if !s.loggedIn {
		s.logger.Warn("searching without a login, results may be limited")
	}

	if err := s.governor.AdmitBlocking(ctx); err != nil {
		return nil, err
	}
	searchURL := zhipin.SearchURL(params)
	s.logger.Info("searching", zap.String("url", searchURL), zap.Int("pages", pages))
	if err := s.open(ctx, searchURL, s.opts.NavigationTimeout, afterLanding); err != nil {
		return nil, err
	}
	if err := s.browse(ctx, 2, 4); err != nil {
		return nil, err
	}

	listings := &zhipin.Listings{}
	for page := 1; page <= pages; page++ {
		var cards []browser.Element
		err := s.retry(ctx, "list cards", func() error {
			var qerr error
			cards, qerr = s.page.QueryAll(zhipin.SelectorCard)
			return browser.Interaction("list cards", zhipin.SelectorCard, qerr)
		})
		if err != nil {
			return nil, err
		}

		for _, card := range cards {
			listings.Items = append(listings.Items, zhipin.ExtractListing(card))
			if err := s.timer.Wait(ctx, afterCard[0], afterCard[1]); err != nil {
				return nil, err
			}
		}
		s.logger.Debug("page scraped", zap.Int("page", page), zap.Int("cards", len(cards)))

		if page == pages {
			break
		}
		next, ok := zhipin.HasNextPage(s.page)
		if !ok {
			break
		}
		if err := s.governor.AdmitBlocking(ctx); err != nil {
			return nil, err
		}
		if err := s.retry(ctx, "next page", func() error {
			return s.timer.ClickElement(ctx, next)
		}); err != nil {
			return nil, err
		}
		if err := s.timer.Wait(ctx, afterLanding[0], afterLanding[1]); err != nil {
			return nil, err
		}
		if err := s.checkRisk(); err != nil {
			return nil, err
		}
		if err := s.browse(ctx, 1, 2); err != nil {
			return nil, err
		}
	}

	s.succeeded()
	s.logger.Info("search finished", zap.Int("listings", listings.Len()))
	return listings, nil
}

// browse scrolls a few steps down the page when anti-detection is on.
func (s *Session) browse(ctx context.Context, minSteps, maxSteps int) error {
	if !s.opts.AntiDetection {
		return nil
	}
	return s.timer.ScrollToBottom(ctx, s.timer.Intn(minSteps, maxSteps))
}

// FetchDescription returns the full text of a listing page. A page that
// cannot be read gives ""; a risk signal on it is returned as an error.
func (s *Session) FetchDescription(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return "", err
	}
	return s.fetchDescription(ctx, id)
}

func (s *Session) fetchDescription(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	if err := s.ensureNotBlocked(); err != nil {
		return "", err
	}
	log := s.logger.With(zap.String("job_id", id))

	if err := s.governor.AdmitBlocking(ctx); err != nil {
		return "", err
	}
	if err := s.page.Navigate(zhipin.DetailURL(id), detailTimeout); err != nil {
		log.Debug("description page unavailable", zap.Error(err))
		return "", nil
	}
	if err := s.timer.Wait(ctx, afterDescription[0], afterDescription[1]); err != nil {
		return "", err
	}
	if err := s.checkRisk(); err != nil {
		log.Warn("description page flagged", zap.Error(err))
		return "", err
	}

	if el, err := s.page.QueryOne(zhipin.SelectorDetailDescription); err == nil && el != nil {
		if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
	}

	items, err := s.page.QueryAll(zhipin.SelectorDetailRequirement)
	if err != nil {
		return "", nil
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if text, err := item.Text(); err == nil && strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	return strings.Join(parts, " "), nil
}

// Score rates one listing for profile, reading the full listing page first
// when FullDescription is set. A risk signal on that page stops scoring and
// leaves the listing score untouched.
func (s *Session) Score(ctx context.Context, listing *zhipin.Listing, profile *zhipin.Profile) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score(ctx, listing, profile)
}

func (s *Session) score(ctx context.Context, listing *zhipin.Listing, profile *zhipin.Profile) (int, error) {
	extra := ""
	if s.opts.FullDescription && s.page != nil {
		text, err := s.fetchDescription(ctx, listing.ID)
		if err != nil {
			return listing.Score, fmt.Errorf("reading listing %s: %w", listing.ID, err)
		}
		extra = text
	}
	listing.Score = matching.Score(listing, profile, extra)
	return listing.Score, nil
}
