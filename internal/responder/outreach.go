package responder

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/matching"
	"github.com/spigell/zhipin-responder/internal/risk"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// Outreach statuses reported per listing.
const (
	StatusSkipped       = "skipped"
	StatusSuccess       = "success"
	StatusFailed        = "failed"
	StatusQuotaExceeded = "quota_exceeded"
)

// Detail is the outcome for one listing of a batch.
type Detail struct {
	JobID   string `json:"job_id"`
	Title   string `json:"job"`
	Company string `json:"company"`
	Score   int    `json:"score"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// BatchReport summarises a batch. Details hold one entry per listing that
// was considered before the batch ended.
type BatchReport struct {
	Total   int      `json:"total"`
	Matched int      `json:"matched"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Details []Detail `json:"details"`
}

// Outreach opens the listing, starts a chat and sends message. A refusal by
// the session guard returns false without error; a page showing risk
// signals returns a risk.DetectedError. An empty message is rendered from
// DefaultTemplate.
func (s *Session) Outreach(ctx context.Context, listing *zhipin.Listing, profile *zhipin.Profile, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return false, err
	}
	if listing == nil {
		return false, ErrNoListingID
	}
	if message == "" {
		message = messageFor(listing, profile, "")
	}
	return s.outreach(ctx, listing, message)
}

func (s *Session) outreach(ctx context.Context, listing *zhipin.Listing, message string) (bool, error) {
	if listing.ID == "" {
		return false, ErrNoListingID
	}
	if err := s.ensureNotBlocked(); err != nil {
		return false, err
	}
	if reason := s.guard.Reason(); reason != "" {
		s.logger.Warn("outreach refused", zap.String("reason", reason), zap.String("job_id", listing.ID))
		return false, nil
	}

	log := s.logger.With(zap.String("job_id", listing.ID), zap.String("company", listing.Company))

	if err := s.governor.AdmitBlocking(ctx); err != nil {
		return false, err
	}
	if err := s.open(ctx, listing.URL(), s.opts.NavigationTimeout, afterDetail); err != nil {
		return false, err
	}

	if err := s.retry(ctx, "start chat", func() error {
		el, err := s.page.QueryOne(zhipin.SelectorStartChat)
		if err != nil || el == nil {
			// Some listings open the chat box directly.
			return nil
		}
		return s.timer.ClickElement(ctx, el)
	}); err != nil {
		return false, err
	}
	if err := s.timer.Wait(ctx, afterStartChat[0], afterStartChat[1]); err != nil {
		return false, err
	}

	if message != "" {
		if err := s.retry(ctx, "type message", func() error {
			return s.timer.Type(ctx, zhipin.SelectorMessage, message)
		}); err != nil {
			return false, err
		}
		if err := s.timer.Wait(ctx, afterMessage[0], afterMessage[1]); err != nil {
			return false, err
		}
	}

	if err := s.retry(ctx, "send message", func() error {
		return s.timer.Click(ctx, zhipin.SelectorSend)
	}); err != nil {
		return false, err
	}
	if err := s.timer.Wait(ctx, afterSend[0], afterSend[1]); err != nil {
		return false, err
	}

	s.guard.RecordOutreach()
	s.succeeded()
	log.Info("outreach sent", zap.Int("score", listing.Score), zap.Int("remaining", s.guard.Remaining()))
	return true, nil
}

// BatchOutreach scores every listing and reaches out to those scoring at
// least minScore, pausing 2–5s between listings. The batch stops early when
// the quota runs out, on a risk detection or when the session aborts; the
// partial report is returned together with the stopping error.
func (s *Session) BatchOutreach(ctx context.Context, listings *zhipin.Listings, profile *zhipin.Profile, minScore int, template string) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileRequired
	}
	if listings == nil {
		listings = &zhipin.Listings{}
	}

	for _, listing := range listings.Items {
		if _, err := s.score(ctx, listing, profile); err != nil {
			s.logger.Warn("batch stopped while scoring", zap.String("job_id", listing.ID), zap.Error(err))
			return &BatchReport{Total: listings.Len(), Details: []Detail{}}, err
		}
	}
	return s.batch(ctx, listings, profile, minScore, template)
}

func (s *Session) batch(ctx context.Context, listings *zhipin.Listings, profile *zhipin.Profile, minScore int, template string) (*BatchReport, error) {
	report := &BatchReport{Total: listings.Len(), Details: make([]Detail, 0, listings.Len())}

	for i, listing := range listings.Items {
		if i > 0 {
			if err := s.timer.Wait(ctx, betweenListings[0], betweenListings[1]); err != nil {
				return report, err
			}
		}

		detail := Detail{
			JobID:   listing.ID,
			Title:   listing.Title,
			Company: listing.Company,
			Score:   listing.Score,
			Status:  StatusSkipped,
		}
		if listing.Score < minScore {
			report.Details = append(report.Details, detail)
			continue
		}

		report.Matched++
		sent, err := s.outreach(ctx, listing, messageFor(listing, profile, template))
		switch {
		case err != nil:
			report.Failed++
			detail.Status = StatusFailed
			detail.Error = err.Error()
			report.Details = append(report.Details, detail)
			if stopsBatch(ctx, err) {
				s.logger.Warn("batch stopped", zap.Error(err), zap.Int("sent", report.Sent))
				return report, err
			}
			continue
		case !sent:
			detail.Status = StatusQuotaExceeded
			report.Details = append(report.Details, detail)
			s.logger.Info("batch stopped, session quota exhausted", zap.Int("sent", report.Sent))
			return report, nil
		}

		report.Sent++
		detail.Status = StatusSuccess
		report.Details = append(report.Details, detail)
	}

	s.logger.Info("batch finished",
		zap.Int("total", report.Total),
		zap.Int("matched", report.Matched),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// stopsBatch is true for failures that make every later listing fail too.
func stopsBatch(ctx context.Context, err error) bool {
	return errors.Is(err, risk.ErrDetected) ||
		errors.Is(err, ErrSessionAborted) ||
		ctx.Err() != nil
}

// Recommend searches and returns the best matches for profile.
func (s *Session) Recommend(ctx context.Context, params *zhipin.SearchParams, profile *zhipin.Profile, minScore, maxCount int) ([]matching.Ranked, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileRequired
	}
	return s.recommend(ctx, params, profile, minScore, maxCount)
}

func (s *Session) recommend(ctx context.Context, params *zhipin.SearchParams, profile *zhipin.Profile, minScore, maxCount int) ([]matching.Ranked, error) {
	listings, err := s.search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	ranked := make([]matching.Ranked, 0, listings.Len())
	for _, listing := range listings.Items {
		score, err := s.score(ctx, listing, profile)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, matching.Ranked{Listing: listing, Score: score})
	}
	return matching.Rank(ranked, minScore, maxCount), nil
}

// MatchAndOutreach searches, keeps up to maxCount listings scoring at least
// minScore and reaches out to them.
func (s *Session) MatchAndOutreach(ctx context.Context, params *zhipin.SearchParams, profile *zhipin.Profile, minScore, maxCount int, template string) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileRequired
	}

	ranked, err := s.recommend(ctx, params, profile, minScore, maxCount)
	if err != nil {
		return nil, err
	}

	selected := &zhipin.Listings{Items: make([]*zhipin.Listing, 0, len(ranked))}
	for _, r := range ranked {
		selected.Items = append(selected.Items, r.Listing)
	}
	s.logger.Info("matched listings", zap.Int("count", selected.Len()), zap.Int("min_score", minScore))
	return s.batch(ctx, selected, profile, minScore, template)
}

// OutreachSelected reaches out to listings that were already scored and
// filtered, in their given order, without scoring them again.
func (s *Session) OutreachSelected(ctx context.Context, listings *zhipin.Listings, profile *zhipin.Profile, template string) (*BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileRequired
	}
	if listings == nil {
		listings = &zhipin.Listings{}
	}
	return s.batch(ctx, listings, profile, math.MinInt, template)
}
